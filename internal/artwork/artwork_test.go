package artwork

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tagbot/internal/tags/tagtest"
)

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{3000, 3000, 1000, 1000},
		{4000, 2000, 1000, 500},
		{1200, 3600, 333, 1000},
		{640, 480, 640, 480},
		{1000, 1000, 1000, 1000},
		{5000, 2, 1000, 1},
	}
	for _, tt := range tests {
		w, h := Fit(tt.w, tt.h, MaxDimension)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestPrepare_ScalesLargePNG(t *testing.T) {
	res, err := Prepare(tagtest.PNG(t, 3000, 3000))
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Width)
	assert.Equal(t, 1000, res.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.JPEG))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1000, cfg.Width)
	assert.Equal(t, 1000, cfg.Height)
}

func TestPrepare_KeepsSmallImageSize(t *testing.T) {
	res, err := Prepare(tagtest.JPEG(t, 300, 200))
	require.NoError(t, err)
	assert.Equal(t, 300, res.Width)
	assert.Equal(t, 200, res.Height)
}

func TestPrepare_FlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := Prepare(buf.Bytes())
	require.NoError(t, err)

	out, err := jpeg.Decode(bytes.NewReader(res.JPEG))
	require.NoError(t, err)
	r, g, b, _ := out.At(5, 5).RGBA()
	white := color.White
	wr, wg, wb, _ := white.RGBA()
	assert.InDelta(t, wr, r, 0x0800)
	assert.InDelta(t, wg, g, 0x0800)
	assert.InDelta(t, wb, b, 0x0800)
}

func TestPrepare_InvalidImage(t *testing.T) {
	_, err := Prepare([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = Prepare(nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
}
