// Package tags reads and writes the metadata of MP3, FLAC, M4A, Ogg Vorbis
// and Ogg Opus files.
//
// Invariants:
// - A file's Format is fixed once detected; CodecFor maps it to exactly one codec.
// - Writes replace a single field (or the cover) and leave every other tag intact.
// - Snapshot always carries an entry for every text field, empty when unset.
// - Cover art is stored as a front cover with MIME type image/jpeg.
//
// Usage:
//
//	format := tags.Detect(name, header)
//	codec, err := tags.CodecFor(format)
//	snap, err := codec.Read(path)
//	err = codec.Write(path, tags.FieldArtist, "The Beatles")
package tags
