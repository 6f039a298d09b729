package tags

import (
	"fmt"
	"strconv"

	mp4tag "github.com/Sorrow446/go-mp4tag"
)

type m4aCodec struct{}

func (m4aCodec) Read(path string) (Snapshot, error) {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open mp4: %w", err)
	}
	defer mp4.Close()

	t, err := mp4.Read()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read mp4 tags: %w", err)
	}

	snap := NewSnapshot()
	snap.Values[FieldTitle] = t.Title
	snap.Values[FieldArtist] = t.Artist
	snap.Values[FieldAlbum] = t.Album
	if t.Year > 0 {
		snap.Values[FieldYear] = strconv.Itoa(int(t.Year))
	}
	snap.Values[FieldGenre] = t.CustomGenre
	if t.CustomGenre == "" && t.Genre > 0 {
		// gnre stores the ID3v1 index plus one
		if name, ok := genreName(int(t.Genre) - 1); ok {
			snap.Values[FieldGenre] = name
		}
	}
	snap.HasCover = len(t.Pictures) > 0
	return snap, nil
}

func (m4aCodec) Write(path string, field Field, value string) error {
	update := &mp4tag.MP4Tags{}
	switch field {
	case FieldTitle:
		update.Title = value
	case FieldArtist:
		update.Artist = value
	case FieldAlbum:
		update.Album = value
	case FieldYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("year %q: %w", value, err)
		}
		update.Year = int32(year)
	case FieldGenre:
		// ©gen wins on read, so a stale gnre item may stay
		update.CustomGenre = value
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}
	return writeMP4(path, update, nil)
}

func (m4aCodec) WriteCover(path string, jpeg []byte) error {
	update := &mp4tag.MP4Tags{
		Pictures: []*mp4tag.MP4Picture{{Format: mp4tag.ImageTypeJPEG, Data: jpeg}},
	}
	return writeMP4(path, update, []string{"allpictures"})
}

func (m4aCodec) Cover(path string) ([]byte, error) {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp4: %w", err)
	}
	defer mp4.Close()

	t, err := mp4.Read()
	if err != nil {
		return nil, fmt.Errorf("read mp4 tags: %w", err)
	}
	for _, pic := range t.Pictures {
		if pic != nil && len(pic.Data) > 0 {
			return pic.Data, nil
		}
	}
	return nil, ErrNoCover
}

// writeMP4 merges update into the file. Empty fields of update are left
// untouched; drop names atoms to clear first.
func writeMP4(path string, update *mp4tag.MP4Tags, drop []string) error {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("open mp4: %w", err)
	}
	defer mp4.Close()

	if err := mp4.Write(update, drop); err != nil {
		return fmt.Errorf("write mp4 tags: %w", err)
	}
	return nil
}
