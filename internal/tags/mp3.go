package tags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bogem/id3v2/v2"
)

const (
	id3HeaderSize = 10
	// frameScanLimit bounds how far past the tag we look for an MPEG frame.
	frameScanLimit = 64 * 1024
)

var errNoAudioFrames = errors.New("no mpeg audio frame found")

type mp3Codec struct{}

func (mp3Codec) Read(path string) (Snapshot, error) {
	if err := checkMPEGAudio(path); err != nil {
		return Snapshot{}, err
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse id3 tag: %w", err)
	}
	defer tag.Close()

	snap := NewSnapshot()
	snap.Values[FieldTitle] = tag.Title()
	snap.Values[FieldArtist] = tag.Artist()
	snap.Values[FieldAlbum] = tag.Album()
	snap.Values[FieldYear] = tag.Year()
	snap.Values[FieldGenre] = resolveGenre(tag.Genre())
	snap.HasCover = len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0
	return snap, nil
}

func (mp3Codec) Write(path string, field Field, value string) error {
	tag, err := openID3ForWrite(path)
	if err != nil {
		return err
	}
	defer tag.Close()

	switch field {
	case FieldTitle:
		tag.SetTitle(value)
	case FieldArtist:
		tag.SetArtist(value)
	case FieldAlbum:
		tag.SetAlbum(value)
	case FieldYear:
		tag.SetYear(value)
	case FieldGenre:
		tag.SetGenre(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

func (mp3Codec) WriteCover(path string, jpeg []byte) error {
	tag, err := openID3ForWrite(path)
	if err != nil {
		return err
	}
	defer tag.Close()

	pictureID := tag.CommonID("Attached picture")
	tag.DeleteFrames(pictureID)
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    textEncoding(tag),
		MimeType:    coverMIME,
		PictureType: id3v2.PTFrontCover,
		Description: coverDescription,
		Picture:     jpeg,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

func (mp3Codec) Cover(path string) ([]byte, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("parse id3 tag: %w", err)
	}
	defer tag.Close()

	for _, frame := range tag.GetFrames(tag.CommonID("Attached picture")) {
		if pic, ok := frame.(id3v2.PictureFrame); ok && len(pic.Picture) > 0 {
			return pic.Picture, nil
		}
	}
	return nil, ErrNoCover
}

func openID3ForWrite(path string) (*id3v2.Tag, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("parse id3 tag: %w", err)
	}
	tag.SetDefaultEncoding(textEncoding(tag))
	return tag, nil
}

// textEncoding picks UTF-8 for ID3v2.4 and UTF-16 for older tags, which do
// not allow UTF-8 text frames.
func textEncoding(tag *id3v2.Tag) id3v2.Encoding {
	if tag.Version() >= 4 {
		return id3v2.EncodingUTF8
	}
	return id3v2.EncodingUTF16
}

// checkMPEGAudio verifies that real MPEG audio follows the ID3 tag, if any:
// a valid frame header whose successors sit at the computed frame lengths.
func checkMPEGAudio(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	header := make([]byte, id3HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read mp3 header: %w", err)
	}
	header = header[:n]

	var offset int64
	if bytes.HasPrefix(header, []byte("ID3")) && len(header) == id3HeaderSize {
		offset = int64(syncsafe(header[6:10])) + id3HeaderSize
		if header[5]&0x10 != 0 {
			offset += id3HeaderSize
		}
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek mp3 audio: %w", err)
	}
	buf := make([]byte, frameScanLimit)
	n, err = io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read mp3 audio: %w", err)
	}
	// the whole stream fits in buf when it came up short
	atEOF := n < len(buf)
	buf = buf[:n]

	for i := 0; i+4 <= len(buf); i++ {
		if frameRunAt(buf, i, atEOF) {
			return nil
		}
	}
	return errNoAudioFrames
}

// minFrameRun is how many back-to-back frames must parse before a stream is
// accepted as MPEG audio.
const minFrameRun = 3

// frameRunAt reports whether minFrameRun consistent frames start at i. A run
// of two is accepted when it ends exactly at the end of the stream.
func frameRunAt(buf []byte, i int, atEOF bool) bool {
	first, ok := parseFrameHeader(buf[i:])
	if !ok {
		return false
	}

	pos := i
	for run := 0; run < minFrameRun; run++ {
		if pos == len(buf) && atEOF && run > 1 {
			return true
		}
		if pos+4 > len(buf) {
			return false
		}
		h, ok := parseFrameHeader(buf[pos:])
		if !ok || !h.sameStream(first) {
			return false
		}
		pos += h.length
	}
	return true
}

type frameHeader struct {
	version    byte
	layer      byte
	sampleRate int
	length     int
}

func (h frameHeader) sameStream(o frameHeader) bool {
	return h.version == o.version && h.layer == o.layer && h.sampleRate == o.sampleRate
}

const (
	mpeg25 byte = 0
	mpeg2  byte = 2
	mpeg1  byte = 3

	layer3 byte = 1
	layer2 byte = 2
	layer1 byte = 3
)

// bitrates in kbit/s, indexed by [mpeg1?0:1][layer][index]
var bitrates = [2][4][16]int{
	{
		{},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
	},
	{
		{},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
	},
}

var sampleRates = map[byte][3]int{
	mpeg1:  {44100, 48000, 32000},
	mpeg2:  {22050, 24000, 16000},
	mpeg25: {11025, 12000, 8000},
}

// parseFrameHeader decodes a 4-byte MPEG audio frame header. Reserved
// version, layer, bitrate and sample-rate values are rejected, as is the
// free-format bitrate whose frame length cannot be computed.
func parseFrameHeader(b []byte) (frameHeader, bool) {
	if len(b) < 4 || b[0] != 0xff || b[1]&0xe0 != 0xe0 {
		return frameHeader{}, false
	}

	version := (b[1] >> 3) & 0x03
	layer := (b[1] >> 1) & 0x03
	bitrateIndex := b[2] >> 4
	rateIndex := (b[2] >> 2) & 0x03
	padding := int((b[2] >> 1) & 0x01)

	if version == 1 || layer == 0 || rateIndex == 3 {
		return frameHeader{}, false
	}

	table := 1
	if version == mpeg1 {
		table = 0
	}
	bitrate := bitrates[table][layer][bitrateIndex] * 1000
	if bitrate == 0 {
		return frameHeader{}, false
	}
	sampleRate := sampleRates[version][rateIndex]

	var length int
	switch {
	case layer == layer1:
		length = (12*bitrate/sampleRate + padding) * 4
	case layer == layer3 && version != mpeg1:
		length = 72*bitrate/sampleRate + padding
	default:
		length = 144*bitrate/sampleRate + padding
	}

	return frameHeader{version: version, layer: layer, sampleRate: sampleRate, length: length}, true
}

func syncsafe(b []byte) uint32 {
	return uint32(b[0]&0x7f)<<21 | uint32(b[1]&0x7f)<<14 | uint32(b[2]&0x7f)<<7 | uint32(b[3]&0x7f)
}
