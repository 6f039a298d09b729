package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/tagbot/internal/tags"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		data   string
		action string
		field  tags.Field
		ok     bool
	}{
		{"done", actionDone, "", true},
		{"edit_more", actionEditMore, "", true},
		{"back", actionBack, "", true},
		{"edit_title", actionEditPrefix, tags.FieldTitle, true},
		{"edit_year", actionEditPrefix, tags.FieldYear, true},
		{"edit_cover", actionEditPrefix, tags.FieldCover, true},
		{"edit_lyrics", "", "", false},
		{"", "", "", false},
		{"finish", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, field, ok := parseAction(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestMenuKeyboardButtonsParse(t *testing.T) {
	kb := menuKeyboard()
	assert.Len(t, kb.InlineKeyboard, 4)

	for _, row := range kb.InlineKeyboard {
		for _, button := range row {
			if assert.NotNil(t, button.CallbackData) {
				_, _, ok := parseAction(*button.CallbackData)
				assert.True(t, ok, *button.CallbackData)
			}
		}
	}
}

func TestMenuText(t *testing.T) {
	snap := tags.Snapshot{
		Values: map[tags.Field]string{
			tags.FieldTitle:  "Song",
			tags.FieldArtist: "Band",
		},
	}

	text := menuText(snap)
	assert.Contains(t, text, "Current Tags:")
	assert.Contains(t, text, "Title: Song")
	assert.Contains(t, text, "Artist: Band")
	assert.Contains(t, text, "Album: Not set")
	assert.Contains(t, text, "Year: Not set")
	assert.NotContains(t, text, "Genre: \n")
	assert.Contains(t, text, "Cover: ✗ Not set")
	assert.Contains(t, text, "Select what you want to edit:")

	snap.HasCover = true
	assert.Contains(t, menuText(snap), "Cover: ✓ Set")
}

func TestWelcomeText(t *testing.T) {
	text := welcomeText()
	assert.Contains(t, text, "Music Tag Editor Bot")
	assert.Contains(t, text, tags.SupportedList())
	assert.Contains(t, text, "Album Cover")
}
