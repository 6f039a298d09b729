package session

import (
	"fmt"

	"github.com/harun/tagbot/internal/tags"
)

// Stage is the coarse position of a conversation.
type Stage int

const (
	AwaitingFile Stage = iota
	SelectingTag
	EditingTag
	AwaitingCover
)

func (s Stage) String() string {
	switch s {
	case AwaitingFile:
		return "awaiting_file"
	case SelectingTag:
		return "selecting_tag"
	case EditingTag:
		return "editing_tag"
	case AwaitingCover:
		return "awaiting_cover"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// State is a Stage plus, for EditingTag, the field being edited.
type State struct {
	Stage Stage
	Field tags.Field
}

func (s State) String() string {
	if s.Stage == EditingTag {
		return fmt.Sprintf("%s(%s)", s.Stage, s.Field)
	}
	return s.Stage.String()
}

// Editing returns the EditingTag state for field.
func Editing(field tags.Field) State {
	return State{Stage: EditingTag, Field: field}
}

var transitions = map[Stage][]Stage{
	AwaitingFile:  {SelectingTag},
	SelectingTag:  {EditingTag, AwaitingCover},
	EditingTag:    {SelectingTag},
	AwaitingCover: {SelectingTag},
}

// CanTransition reports whether the state machine allows s -> to.
// EditingTag additionally requires a text field.
func (s State) CanTransition(to State) bool {
	if to.Stage == EditingTag && (to.Field == "" || to.Field == tags.FieldCover) {
		return false
	}
	for _, next := range transitions[s.Stage] {
		if next == to.Stage {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
