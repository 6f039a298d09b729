package daemon

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/harun/tagbot/internal/tags"
)

// Callback tokens carried by inline buttons.
const (
	actionEditPrefix = "edit_"
	actionEditCover  = "edit_cover"
	actionEditMore   = "edit_more"
	actionDone       = "done"
	actionBack       = "back"
)

var fieldIcons = map[tags.Field]string{
	tags.FieldTitle:  "📝",
	tags.FieldArtist: "👤",
	tags.FieldAlbum:  "💿",
	tags.FieldYear:   "📅",
	tags.FieldGenre:  "🎭",
	tags.FieldCover:  "🖼",
}

const (
	textAskForAudio      = "Please send an audio file."
	textDownloading      = "⏳ Downloading file..."
	textPreparing        = "⏳ Preparing your edited file..."
	textDeliveredCaption = "✅ Here's your edited file!"
	textNextFile         = "Send me another file to edit, or use /start to see instructions."
	textCancelled        = "Operation cancelled. Send me a file to start editing, or use /start for help."
	textNothingToCancel  = "Nothing to cancel. Send me an audio file to start editing."
	textNoSession        = "❌ File not found. Please send a new file."
	textCoverPrompt      = "🖼 Send me an image file for the album cover.\nSupported formats: JPG, PNG, WEBP"
	textAskForImage      = "Please send an image file (JPG, PNG, WEBP)."
	textProcessingImage  = "⏳ Processing image..."
	textInvalidImage     = "❌ Error processing image. Please try another image."
	textCorruptFile      = "❌ Error reading file tags. Please try another file."
	textWriteFailed      = "❌ Failed to save the change. Please try again."
	textDeliveryFailed   = "❌ Could not send the file. Press Done to try again."
	textInternalError    = "❌ Something went wrong. Please try again."
	textNotAllowed       = "⛔ You are not allowed to use this bot."
	textExpired          = "⌛ Your editing session expired and the file was discarded. Send the file again to continue."
	textWhatNext         = "What would you like to do?"
	textUseButtons       = "Use the buttons below to pick a tag."
	textNotNow           = "That action is not available right now."
	textSendValueOrBack  = "Send the new value as a text message, or press Back."
)

func welcomeText() string {
	var b strings.Builder
	b.WriteString("🎵 Music Tag Editor Bot\n\n")
	fmt.Fprintf(&b, "Send me an audio file (%s) and I'll help you edit its tags!\n\n", tags.SupportedList())
	b.WriteString("Supported tags:\n")
	for _, f := range append(append([]tags.Field{}, tags.TextFields...), tags.FieldCover) {
		fmt.Fprintf(&b, "• %s\n", f.Label())
	}
	b.WriteString("\nJust send me a file to get started!\nUse /cancel to discard the current file.")
	return b.String()
}

func unsupportedText() string {
	return fmt.Sprintf("❌ Unsupported file format. Please send %s files.", tags.SupportedList())
}

func tooLargeText(limit string) string {
	return fmt.Sprintf("❌ File is too large. The limit is %s.", limit)
}

// menuText renders the current tag values.
func menuText(snap tags.Snapshot) string {
	var b strings.Builder
	b.WriteString("Current Tags:\n\n")
	for _, f := range tags.TextFields {
		value := snap.Get(f)
		if value == "" {
			value = "Not set"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", fieldIcons[f], f.Label(), value)
	}
	cover := "✗ Not set"
	if snap.HasCover {
		cover = "✓ Set"
	}
	fmt.Fprintf(&b, "%s Cover: %s\n\n", fieldIcons[tags.FieldCover], cover)
	b.WriteString("Select what you want to edit:")
	return b.String()
}

func menuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	button := func(f tags.Field) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(fieldIcons[f]+" "+f.Label(), actionEditPrefix+string(f))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(tags.FieldTitle), button(tags.FieldArtist)),
		tgbotapi.NewInlineKeyboardRow(button(tags.FieldAlbum), button(tags.FieldYear)),
		tgbotapi.NewInlineKeyboardRow(button(tags.FieldGenre), button(tags.FieldCover)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Done", actionDone)),
	)
	return &kb
}

func nextStepKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📝 Edit More Tags", actionEditMore)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Done - Get File", actionDone)),
	)
	return &kb
}

func backKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Back", actionBack)),
	)
	return &kb
}

func promptText(f tags.Field, current string) string {
	text := fmt.Sprintf("✏️ Send me the new %s:", f.Label())
	if f == tags.FieldYear {
		text += fmt.Sprintf("\n(a year from %d to next year)", tags.MinYear)
	}
	if current != "" {
		text += fmt.Sprintf("\nCurrent value: %s", current)
	}
	return text
}

func updatedText(f tags.Field, snap tags.Snapshot) string {
	if f == tags.FieldCover {
		cover := "✗ Not set"
		if snap.HasCover {
			cover = "✓ Set"
		}
		return fmt.Sprintf("✅ Album cover updated successfully!\n🖼 Cover: %s", cover)
	}
	return fmt.Sprintf("✅ %s updated successfully!", f.Label())
}

// parseAction splits a callback token into an action and, for edit buttons,
// the field.
func parseAction(data string) (string, tags.Field, bool) {
	switch data {
	case actionDone, actionEditMore, actionBack:
		return data, "", true
	case actionEditCover:
		return actionEditPrefix, tags.FieldCover, true
	}
	if name, ok := strings.CutPrefix(data, actionEditPrefix); ok {
		if f, ok := tags.ParseField(name); ok {
			return actionEditPrefix, f, true
		}
	}
	return "", "", false
}
