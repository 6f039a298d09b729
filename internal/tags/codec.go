package tags

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrUnsupportedFormat = errors.New("tags: unsupported container format")
	ErrUnsupportedField  = errors.New("tags: field not supported")
	ErrNoCover           = errors.New("tags: file has no cover art")
)

const (
	coverMIME        = "image/jpeg"
	coverDescription = "Cover"
)

// Codec reads and writes the tags of one container format.
type Codec interface {
	Read(path string) (Snapshot, error)
	Write(path string, field Field, value string) error
	WriteCover(path string, jpeg []byte) error
	Cover(path string) ([]byte, error)
}

// CodecFor returns the codec for f.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatMP3:
		return mp3Codec{}, nil
	case FormatFLAC:
		return flacCodec{}, nil
	case FormatM4A:
		return m4aCodec{}, nil
	case FormatOGG:
		return oggCodec{opus: false}, nil
	case FormatOpus:
		return oggCodec{opus: true}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// writeFileAtomic replaces path with data via a sibling temp file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tagbot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
