package ogg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageMarshalRoundTrip(t *testing.T) {
	page := &Page{
		HeaderType: FlagBOS,
		Granule:    0,
		Serial:     0x1234,
		Sequence:   0,
		Segments:   []byte{5},
		Body:       []byte("hello"),
	}

	pages, err := ReadPages(bytes.NewReader(page.Marshal()))
	require.NoError(t, err)
	require.Len(t, pages, 1)

	got := pages[0]
	assert.Equal(t, page.HeaderType, got.HeaderType)
	assert.Equal(t, page.Serial, got.Serial)
	assert.Equal(t, page.Body, got.Body)
	assert.Equal(t, page.Segments, got.Segments)
}

func TestReadPages_Errors(t *testing.T) {
	t.Run("empty stream", func(t *testing.T) {
		_, err := ReadPages(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrNoPages)
	})

	t.Run("bad capture pattern", func(t *testing.T) {
		data := (&Page{Segments: []byte{1}, Body: []byte{1}}).Marshal()
		data[0] = 'X'
		_, err := ReadPages(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrBadCapture)
	})

	t.Run("corrupted body", func(t *testing.T) {
		data := (&Page{Segments: []byte{3}, Body: []byte("abc")}).Marshal()
		data[len(data)-1] ^= 0xff
		_, err := ReadPages(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrBadChecksum)
	})

	t.Run("truncated body", func(t *testing.T) {
		data := (&Page{Segments: []byte{3}, Body: []byte("abc")}).Marshal()
		_, err := ReadPages(bytes.NewReader(data[:len(data)-1]))
		assert.Error(t, err)
	})
}

func TestChecksumIgnoresCRCField(t *testing.T) {
	data := (&Page{Segments: []byte{1}, Body: []byte{9}}).Marshal()
	before := checksum(data)

	data[22], data[23], data[24], data[25] = 1, 2, 3, 4
	assert.Equal(t, before, checksum(data))
}
