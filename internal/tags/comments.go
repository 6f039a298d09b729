package tags

import (
	"strings"

	"github.com/go-flac/flacvorbis"
)

const (
	keyPicture       = "METADATA_BLOCK_PICTURE"
	keyLegacyCover   = "COVERART"
	defaultVendorTag = "tagbot"
)

var vorbisKeys = map[Field]string{
	FieldTitle:  flacvorbis.FIELD_TITLE,
	FieldArtist: flacvorbis.FIELD_ARTIST,
	FieldAlbum:  flacvorbis.FIELD_ALBUM,
	FieldYear:   flacvorbis.FIELD_DATE,
	FieldGenre:  flacvorbis.FIELD_GENRE,
}

// commentValue returns the first value stored under key. Keys compare
// case-insensitively.
func commentValue(comments []string, key string) string {
	for _, c := range comments {
		k, v, ok := strings.Cut(c, "=")
		if ok && strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func hasComment(comments []string, key string) bool {
	for _, c := range comments {
		k, _, ok := strings.Cut(c, "=")
		if ok && strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// removeComments drops every entry stored under any of keys.
func removeComments(comments []string, keys ...string) []string {
	out := comments[:0:0]
	for _, c := range comments {
		k, _, _ := strings.Cut(c, "=")
		drop := false
		for _, key := range keys {
			if strings.EqualFold(k, key) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, c)
		}
	}
	return out
}

// setComment replaces all values under key with a single value.
func setComment(comments []string, key, value string) []string {
	return append(removeComments(comments, key), key+"="+value)
}

func snapshotFromComments(comments []string) Snapshot {
	snap := NewSnapshot()
	for field, key := range vorbisKeys {
		snap.Values[field] = commentValue(comments, key)
	}
	return snap
}
