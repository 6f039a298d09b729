// Package tagtest builds small synthetic audio files for tests.
package tagtest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harun/tagbot/internal/ogg"
)

// mpegFrame is a silent MPEG-1 Layer III frame header, 128 kbit/s, 44.1 kHz.
var mpegFrame = []byte{0xff, 0xfb, 0x90, 0x64}

const mpegFrameLen = 417

// MP3 returns a few untagged MPEG audio frames.
func MP3() []byte {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		buf.Write(mpegFrame)
		buf.Write(make([]byte, mpegFrameLen-len(mpegFrame)))
	}
	return buf.Bytes()
}

// FLAC returns a stream with only a STREAMINFO block followed by a stub
// frame.
func FLAC() []byte {
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	// last-metadata-block flag set, type 0, length 34
	buf.Write([]byte{0x80, 0x00, 0x00, 34})

	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:], 4096)
	binary.BigEndian.PutUint16(info[2:], 4096)
	// sample rate (20 bits), channels-1 (3), bits per sample-1 (5), total samples (36)
	packed := uint64(44100)<<44 | uint64(1)<<41 | uint64(15)<<36
	binary.BigEndian.PutUint64(info[10:], packed)
	buf.Write(info)

	buf.Write([]byte{0xff, 0xf8, 0x69, 0x08, 0x00, 0x00, 0x00, 0x00})
	return buf.Bytes()
}

// Vorbis returns an Ogg Vorbis stream with an empty comment header and one
// audio page.
func Vorbis() []byte {
	ident := []byte("\x01vorbis")
	ident = binary.LittleEndian.AppendUint32(ident, 0)
	ident = append(ident, 2)
	ident = binary.LittleEndian.AppendUint32(ident, 44100)
	ident = append(ident, make([]byte, 12)...)
	ident = append(ident, 0xb8, 0x01)

	comment := []byte("\x03vorbis")
	comment = append(comment, commentBody("fixture")...)
	comment = append(comment, 0x01)

	setup := append([]byte("\x05vorbis"), bytes.Repeat([]byte{0x42}, 32)...)

	return stream(0x5eed, [][]byte{ident}, [][]byte{comment, setup})
}

// Opus returns an Ogg Opus stream with an empty comment header and one audio
// page.
func Opus() []byte {
	head := []byte("OpusHead")
	head = append(head, 1, 2)
	head = binary.LittleEndian.AppendUint16(head, 312)
	head = binary.LittleEndian.AppendUint32(head, 48000)
	head = binary.LittleEndian.AppendUint16(head, 0)
	head = append(head, 0)

	tags := append([]byte("OpusTags"), commentBody("fixture")...)

	return stream(0x0905, [][]byte{head}, [][]byte{tags})
}

// JPEG encodes a solid w x h image.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h), nil))
	return buf.Bytes()
}

// PNG encodes a solid w x h image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	return buf.Bytes()
}

// WriteFile stores data under dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: 0xc0, G: 0x30, B: 0x30, A: 0xff}
	draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	return img
}

func commentBody(vendor string) []byte {
	body := binary.LittleEndian.AppendUint32(nil, uint32(len(vendor)))
	body = append(body, vendor...)
	return binary.LittleEndian.AppendUint32(body, 0)
}

func stream(serial uint32, first, rest [][]byte) []byte {
	pages := ogg.Paginate(first, serial, 0, ogg.FlagBOS)
	pages = append(pages, ogg.Paginate(rest, serial, uint32(len(pages)), 0)...)
	pages = append(pages, &ogg.Page{
		HeaderType: ogg.FlagEOS,
		Granule:    48000,
		Serial:     serial,
		Sequence:   uint32(len(pages)),
		Segments:   []byte{8},
		Body:       bytes.Repeat([]byte{0x7f}, 8),
	})

	var buf bytes.Buffer
	_ = ogg.WritePages(&buf, pages)
	return buf.Bytes()
}
