package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/tagbot/internal/tags"
)

func TestState_CanTransition(t *testing.T) {
	menu := State{Stage: SelectingTag}
	cover := State{Stage: AwaitingCover}

	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"upload", State{Stage: AwaitingFile}, menu, true},
		{"select text tag", menu, Editing(tags.FieldYear), true},
		{"select cover", menu, cover, true},
		{"apply value", Editing(tags.FieldTitle), menu, true},
		{"apply cover", cover, menu, true},
		{"edit while editing", Editing(tags.FieldTitle), Editing(tags.FieldArtist), false},
		{"cover while editing", Editing(tags.FieldTitle), cover, false},
		{"edit without file", State{Stage: AwaitingFile}, Editing(tags.FieldTitle), false},
		{"editing the cover slot", menu, Editing(tags.FieldCover), false},
		{"editing nothing", menu, State{Stage: EditingTag}, false},
		{"menu to menu", menu, menu, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "editing_tag(genre)", Editing(tags.FieldGenre).String())
	assert.Equal(t, "awaiting_cover", State{Stage: AwaitingCover}.String())
}

func TestValidationError(t *testing.T) {
	err := error(&ValidationError{Field: tags.FieldYear, Message: "year must be a whole number"})

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "year")
	assert.False(t, IsFileError(err))
	assert.True(t, IsFileError(ErrCorruptFile))
}
