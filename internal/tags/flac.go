package tags

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

type flacCodec struct{}

func (flacCodec) Read(path string) (Snapshot, error) {
	f, err := parseFLAC(path)
	if err != nil {
		return Snapshot{}, err
	}

	snap := NewSnapshot()
	for _, meta := range f.Meta {
		switch meta.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return Snapshot{}, fmt.Errorf("parse vorbis comment: %w", err)
			}
			hasCover := snap.HasCover
			snap = snapshotFromComments(cmt.Comments)
			snap.HasCover = hasCover
		case flac.Picture:
			snap.HasCover = true
		}
	}
	return snap, nil
}

func (flacCodec) Write(path string, field Field, value string) error {
	key, ok := vorbisKeys[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}

	f, err := parseFLAC(path)
	if err != nil {
		return err
	}

	idx := -1
	cmt := &flacvorbis.MetaDataBlockVorbisComment{Vendor: defaultVendorTag}
	for i, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}
		parsed, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return fmt.Errorf("parse vorbis comment: %w", err)
		}
		idx, cmt = i, parsed
		break
	}

	cmt.Comments = setComment(cmt.Comments, key, value)
	block := cmt.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &block
	} else {
		f.Meta = insertAfterStreamInfo(f.Meta, &block)
	}
	return writeFileAtomic(path, f.Marshal())
}

func (flacCodec) WriteCover(path string, jpeg []byte) error {
	f, err := parseFLAC(path)
	if err != nil {
		return err
	}

	pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, coverDescription, jpeg, coverMIME)
	if err != nil {
		return fmt.Errorf("build picture block: %w", err)
	}
	block := pic.Marshal()

	kept := f.Meta[:0]
	for _, meta := range f.Meta {
		if meta.Type != flac.Picture {
			kept = append(kept, meta)
		}
	}
	f.Meta = append(kept, &block)
	return writeFileAtomic(path, f.Marshal())
}

func (flacCodec) Cover(path string) ([]byte, error) {
	f, err := parseFLAC(path)
	if err != nil {
		return nil, err
	}

	for _, meta := range f.Meta {
		if meta.Type != flac.Picture {
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil, fmt.Errorf("parse picture block: %w", err)
		}
		if len(pic.ImageData) > 0 {
			return pic.ImageData, nil
		}
	}
	return nil, ErrNoCover
}

func parseFLAC(path string) (*flac.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flac: %w", err)
	}
	f, err := flac.ParseBytes(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse flac: %w", err)
	}
	if len(f.Meta) == 0 || f.Meta[0].Type != flac.StreamInfo {
		return nil, fmt.Errorf("parse flac: missing STREAMINFO block")
	}
	return f, nil
}

// insertAfterStreamInfo keeps STREAMINFO as the first metadata block.
func insertAfterStreamInfo(meta []*flac.MetaDataBlock, block *flac.MetaDataBlock) []*flac.MetaDataBlock {
	out := make([]*flac.MetaDataBlock, 0, len(meta)+1)
	out = append(out, meta[0], block)
	return append(out, meta[1:]...)
}
