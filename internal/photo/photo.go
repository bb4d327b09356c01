// Package photo decodes captured meal photos, prepares model input and encodes photos for storage.
package photo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

// Supported storage formats.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// DefaultQuality is the compression quality used for stored photos.
const DefaultQuality = 80

var (
	ErrEmptyImage        = errors.NewStd("image data is empty")
	ErrUnsupportedFormat = errors.NewStd("unsupported photo format")
	ErrInvalidTargetSize = errors.NewStd("target size must be positive")
	ErrUndecodableImage  = errors.NewStd("image could not be decoded")
	errNilImage          = errors.NewStd("image is nil")
)

// Decode parses JPEG, PNG, GIF or WebP data and returns the image with its format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", imageError(ErrEmptyImage, "decode")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}

	// Some WebP variants only decode with libwebp.
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, FormatWebP, nil
	}

	return nil, "", errors.New(fmt.Errorf("%w: %w", ErrUndecodableImage, err)).
		Component("photo").
		Category(errors.CategoryImageProcessing).
		Context("operation", "decode").
		Context("size_bytes", len(data)).
		Build()
}

// Square center-crops img to a square and resizes it to size x size with Lanczos resampling.
func Square(img image.Image, size int) (*image.NRGBA, error) {
	if img == nil {
		return nil, imageError(errNilImage, "square")
	}
	if size <= 0 {
		return nil, imageError(ErrInvalidTargetSize, "square")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, imageError(ErrEmptyImage, "square")
	}
	return imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos), nil
}

// Encoder compresses photos for storage.
type Encoder struct {
	Format  string
	Quality int
}

// NewEncoder normalises format ("jpg" is accepted) and clamps quality to 1..100.
func NewEncoder(format string, quality int) (*Encoder, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "", "jpg", FormatJPEG:
		f = FormatJPEG
	case FormatWebP:
	default:
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)).
			Component("photo").
			Category(errors.CategoryValidation).
			Build()
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Encoder{Format: f, Quality: min(quality, 100)}, nil
}

// Encode compresses img in the encoder's format.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, imageError(errNilImage, "encode")
	}

	var buf bytes.Buffer
	var err error
	switch e.Format {
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(e.Quality)})
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.Quality))
	}
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to encode %s photo: %w", e.Format, err)).
			Component("photo").
			Category(errors.CategoryImageProcessing).
			Context("operation", "encode").
			Context("format", e.Format).
			Build()
	}
	return buf.Bytes(), nil
}

// EncodeBytes decodes raw capture data and re-encodes it.
func (e *Encoder) EncodeBytes(data []byte) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return e.Encode(img)
}

// ContentType returns the MIME type for a storage format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG, "jpg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func imageError(err error, operation string) error {
	return errors.New(err).
		Component("photo").
		Category(errors.CategoryImageProcessing).
		Context("operation", operation).
		Build()
}
