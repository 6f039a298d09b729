package tags

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/harun/tagbot/internal/ogg"
)

var (
	vorbisIdent   = []byte("\x01vorbis")
	vorbisComment = []byte("\x03vorbis")
	opusIdent     = []byte("OpusHead")
	opusComment   = []byte("OpusTags")

	errBadHeader = errors.New("unexpected ogg header packet")
)

// oggCodec edits the comment header of an Ogg Vorbis or Ogg Opus stream.
// Audio pages are copied through with only their sequence numbers changed.
type oggCodec struct {
	opus bool
}

func (c oggCodec) headerCount() int {
	if c.opus {
		return 2
	}
	return 3
}

func (c oggCodec) Read(path string) (Snapshot, error) {
	cmt, err := c.comments(path)
	if err != nil {
		return Snapshot{}, err
	}
	snap := snapshotFromComments(cmt.Comments)
	snap.HasCover = hasComment(cmt.Comments, keyPicture) || hasComment(cmt.Comments, keyLegacyCover)
	return snap, nil
}

func (c oggCodec) Write(path string, field Field, value string) error {
	key, ok := vorbisKeys[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}
	return c.rewrite(path, func(cmt *flacvorbis.MetaDataBlockVorbisComment) error {
		cmt.Comments = setComment(cmt.Comments, key, value)
		return nil
	})
}

func (c oggCodec) WriteCover(path string, jpeg []byte) error {
	pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, coverDescription, jpeg, coverMIME)
	if err != nil {
		return fmt.Errorf("build picture block: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(pic.Marshal().Data)

	return c.rewrite(path, func(cmt *flacvorbis.MetaDataBlockVorbisComment) error {
		cmt.Comments = removeComments(cmt.Comments, keyLegacyCover)
		cmt.Comments = setComment(cmt.Comments, keyPicture, encoded)
		return nil
	})
}

func (c oggCodec) Cover(path string) ([]byte, error) {
	cmt, err := c.comments(path)
	if err != nil {
		return nil, err
	}

	if encoded := commentValue(cmt.Comments, keyPicture); encoded != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode picture: %w", err)
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(flac.MetaDataBlock{Type: flac.Picture, Data: raw})
		if err != nil {
			return nil, fmt.Errorf("parse picture: %w", err)
		}
		return pic.ImageData, nil
	}
	if encoded := commentValue(cmt.Comments, keyLegacyCover); encoded != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode picture: %w", err)
		}
		return raw, nil
	}
	return nil, ErrNoCover
}

func (c oggCodec) comments(path string) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	pages, err := loadPages(path)
	if err != nil {
		return nil, err
	}
	packets, _, err := ogg.HeaderPackets(pages, c.headerCount())
	if err != nil {
		return nil, fmt.Errorf("read ogg headers: %w", err)
	}
	return c.parseComment(packets)
}

func (c oggCodec) rewrite(path string, mutate func(*flacvorbis.MetaDataBlockVorbisComment) error) error {
	pages, err := loadPages(path)
	if err != nil {
		return err
	}

	out, err := ogg.RewriteHeaders(pages, c.headerCount(), func(packets [][]byte) ([][]byte, error) {
		cmt, err := c.parseComment(packets)
		if err != nil {
			return nil, err
		}
		if err := mutate(cmt); err != nil {
			return nil, err
		}
		packets[1] = c.commentPacket(cmt)
		return packets, nil
	})
	if err != nil {
		return fmt.Errorf("rewrite ogg headers: %w", err)
	}

	var buf bytes.Buffer
	if err := ogg.WritePages(&buf, out); err != nil {
		return fmt.Errorf("encode ogg: %w", err)
	}
	return writeFileAtomic(path, buf.Bytes())
}

// parseComment validates the identification packet and decodes the comment
// packet that follows it.
func (c oggCodec) parseComment(packets [][]byte) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	ident, prefix := vorbisIdent, vorbisComment
	if c.opus {
		ident, prefix = opusIdent, opusComment
	}
	if !bytes.HasPrefix(packets[0], ident) || !bytes.HasPrefix(packets[1], prefix) {
		return nil, errBadHeader
	}

	body := packets[1][len(prefix):]
	cmt, err := flacvorbis.ParseFromMetaDataBlock(flac.MetaDataBlock{Type: flac.VorbisComment, Data: body})
	if err != nil {
		return nil, fmt.Errorf("parse comment header: %w", err)
	}
	return cmt, nil
}

func (c oggCodec) commentPacket(cmt *flacvorbis.MetaDataBlockVorbisComment) []byte {
	body := cmt.Marshal().Data
	if c.opus {
		return append(append([]byte{}, opusComment...), body...)
	}
	packet := append(append([]byte{}, vorbisComment...), body...)
	// Vorbis headers end with a framing bit.
	return append(packet, 0x01)
}

func loadPages(path string) ([]*ogg.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ogg: %w", err)
	}
	defer f.Close()

	pages, err := ogg.ReadPages(f)
	if err != nil {
		return nil, fmt.Errorf("read ogg: %w", err)
	}
	return pages, nil
}
