package storage

import (
	"bytes"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rentalops/backend/internal/domain/shared"
)

// SlipContentType is the content type of every stored slip
const SlipContentType = "image/webp"

// SlipNormalizer re-encodes uploaded slip photos as upright WebP images no larger than
// MaxDimension on either side.
type SlipNormalizer struct {
	MaxDimension int
	Quality      float32
}

// NewSlipNormalizer creates a SlipNormalizer; non-positive arguments use 2048px and quality 80
func NewSlipNormalizer(maxDimension int, quality float32) *SlipNormalizer {
	if maxDimension <= 0 {
		maxDimension = 2048
	}
	if quality <= 0 {
		quality = 80
	}
	return &SlipNormalizer{MaxDimension: maxDimension, Quality: quality}
}

// Normalize returns the WebP encoding of data. Undecodable input is a validation error.
func (n *SlipNormalizer) Normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, shared.NewValidationError("INVALID_IMAGE", "Slip is not a supported image (jpeg, png, gif, webp)")
	}
	img = n.bound(img)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *SlipNormalizer) bound(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= n.MaxDimension && b.Dy() <= n.MaxDimension {
		return img
	}
	return imaging.Fit(img, n.MaxDimension, n.MaxDimension, imaging.Lanczos)
}
