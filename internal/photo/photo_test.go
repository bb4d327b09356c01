package photo

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

// testImage returns a w x h image with a red left half and a blue right half.
func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.NRGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	t.Parallel()

	img, format, err := Decode(pngBytes(t, testImage(40, 20)))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, _, err := Decode([]byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndecodableImage)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageProcessing))

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestSquareCropsCenterAndResizes(t *testing.T) {
	t.Parallel()

	sq, err := Square(testImage(300, 100), 224)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 224, 224), sq.Bounds())

	// A centered crop of a half red / half blue image keeps both colours.
	left := sq.NRGBAAt(10, 112)
	right := sq.NRGBAAt(213, 112)
	assert.Greater(t, left.R, left.B)
	assert.Greater(t, right.B, right.R)

	_, err = Square(testImage(10, 10), 0)
	assert.ErrorIs(t, err, ErrInvalidTargetSize)
}

func TestEncoderRoundTrip(t *testing.T) {
	t.Parallel()

	src := pngBytes(t, testImage(64, 48))

	for _, format := range []string{"jpg", FormatJPEG, FormatWebP} {
		enc, err := NewEncoder(format, 80)
		require.NoError(t, err)

		out, err := enc.EncodeBytes(src)
		require.NoError(t, err, format)
		require.NotEmpty(t, out)

		img, decodedFormat, err := Decode(out)
		require.NoError(t, err)
		assert.Equal(t, enc.Format, decodedFormat)
		assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	}
}

func TestNewEncoderValidation(t *testing.T) {
	t.Parallel()

	_, err := NewEncoder("bmp", 80)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	enc, err := NewEncoder("", 0)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, enc.Format)
	assert.Equal(t, DefaultQuality, enc.Quality)

	enc, err = NewEncoder("WEBP", 500)
	require.NoError(t, err)
	assert.Equal(t, 100, enc.Quality)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", ContentType("jpeg"))
	assert.Equal(t, "image/webp", ContentType("webp"))
	assert.Equal(t, "application/octet-stream", ContentType(""))
}
