package tags

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field names a tag slot.
type Field string

const (
	FieldTitle  Field = "title"
	FieldArtist Field = "artist"
	FieldAlbum  Field = "album"
	FieldYear   Field = "year"
	FieldGenre  Field = "genre"

	// FieldCover is the artwork slot. It has no text value.
	FieldCover Field = "cover"
)

const (
	MinYear        = 1850
	MaxValueLength = 1024
)

// TextFields are the editable text tags, in menu order.
var TextFields = []Field{FieldTitle, FieldArtist, FieldAlbum, FieldYear, FieldGenre}

var titleCaser = cases.Title(language.English)

// ParseField accepts any of the text fields or the cover slot.
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if f == FieldCover {
		return f, true
	}
	for _, tf := range TextFields {
		if f == tf {
			return f, true
		}
	}
	return "", false
}

// Label is the human readable name of the field.
func (f Field) Label() string {
	if f == FieldCover {
		return "Album Cover"
	}
	return titleCaser.String(string(f))
}

// ValueError describes why a value was rejected for a field.
type ValueError struct {
	Field  Field
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NormalizeValue validates raw user input for field and returns the value to
// store. now bounds the accepted year range.
func NormalizeValue(field Field, raw string, now time.Time) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", &ValueError{Field: field, Reason: "value is empty"}
	}

	switch field {
	case FieldYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return "", &ValueError{Field: field, Reason: "year must be a whole number"}
		}
		maxYear := now.Year() + 1
		if year < MinYear || year > maxYear {
			return "", &ValueError{Field: field, Reason: fmt.Sprintf("year must be between %d and %d", MinYear, maxYear)}
		}
		return strconv.Itoa(year), nil
	case FieldTitle, FieldArtist, FieldAlbum, FieldGenre:
		if utf8.RuneCountInString(value) > MaxValueLength {
			return "", &ValueError{Field: field, Reason: fmt.Sprintf("value is longer than %d characters", MaxValueLength)}
		}
		return value, nil
	default:
		return "", &ValueError{Field: field, Reason: "not a text tag"}
	}
}

// Snapshot is the tag state of a file as last read from disk.
type Snapshot struct {
	Values   map[Field]string
	HasCover bool
}

// NewSnapshot returns a snapshot with every text field present and empty.
func NewSnapshot() Snapshot {
	values := make(map[Field]string, len(TextFields))
	for _, f := range TextFields {
		values[f] = ""
	}
	return Snapshot{Values: values}
}

// Get returns the value of f, or "" when unset.
func (s Snapshot) Get(f Field) string {
	return s.Values[f]
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	values := make(map[Field]string, len(s.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	return Snapshot{Values: values, HasCover: s.HasCover}
}
