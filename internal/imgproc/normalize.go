package imgproc

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrBadImage marks input that could not be decoded as an image. Callers must
// not treat this as a recognition miss; the user sent something broken.
var ErrBadImage = errors.New("imgproc: undecodable image")

const (
	// DefaultMaxBytes bounds the re-encoded JPEG; the OCR endpoint rejects
	// larger uploads on the free tier.
	DefaultMaxBytes = 1 << 20

	startQuality = 85
	floorQuality = 50
	qualityStep  = 5
	scaleFactor  = 0.7
	minWidth     = 64

	// contrastBoost lifts faint barcode edges before OCR. Grayscale
	// conversion was tried here and removed: it lowered the recognition
	// rate on glossy labels.
	contrastBoost = 10
)

// Normalizer converts arbitrary uploaded photos into compact JPEGs suitable
// for OCR submission.
type Normalizer struct {
	MaxBytes int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{MaxBytes: DefaultMaxBytes}
}

// Normalize re-encodes raw into a JPEG no larger than MaxBytes, applying
// EXIF auto-orientation and a mild contrast boost. Inputs that are already
// JPEG and under the bound are returned unchanged, so the function is
// idempotent once an image has passed through it.
func (n *Normalizer) Normalize(raw []byte) ([]byte, error) {
	maxBytes := n.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	if len(raw) <= maxBytes && isJPEG(raw) {
		return raw, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(ErrBadImage, err.Error())
	}

	img = imaging.AdjustContrast(img, contrastBoost)

	out, err := encodeBounded(img, maxBytes)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// encodeBounded lowers JPEG quality step by step and, once the quality floor
// is reached, downscales the image and starts over at the initial quality.
func encodeBounded(img image.Image, maxBytes int) ([]byte, error) {
	quality := startQuality
	for {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, errors.Wrap(err, "jpeg encode")
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
		if quality-qualityStep >= floorQuality {
			quality -= qualityStep
			continue
		}
		width := img.Bounds().Dx()
		if width <= minWidth {
			// cannot shrink further; return the smallest rendition we have
			return buf.Bytes(), nil
		}
		img = imaging.Resize(img, int(float64(width)*scaleFactor), 0, imaging.Lanczos)
		quality = startQuality
	}
}

func isJPEG(b []byte) bool {
	return len(b) >= 3 && b[0] == 0xff && b[1] == 0xd8 && b[2] == 0xff
}
