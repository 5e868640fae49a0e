package imgproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// noisyImage produces an image that compresses poorly, so the encoder is
// actually forced through its quality and downscale loops.
func noisyImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*7 + y*13) % 256),
				G: uint8((x * y) % 256),
				B: uint8((x*31 ^ y*17) % 256),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeReencodesPNG(t *testing.T) {
	n := NewNormalizer()
	out, err := n.Normalize(encodePNG(t, noisyImage(320, 240)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !isJPEG(out) {
		t.Fatal("output is not a JPEG")
	}
	if len(out) > n.MaxBytes {
		t.Fatalf("output %d bytes exceeds bound %d", len(out), n.MaxBytes)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
}

func TestNormalizeRespectsTightBound(t *testing.T) {
	n := &Normalizer{MaxBytes: 20 * 1024}
	out, err := n.Normalize(encodePNG(t, noisyImage(800, 600)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) > n.MaxBytes {
		t.Fatalf("output %d bytes exceeds bound %d", len(out), n.MaxBytes)
	}
	if !isJPEG(out) {
		t.Fatal("output is not a JPEG")
	}
}

func TestNormalizeIdempotentOnSmallJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noisyImage(100, 100), &jpeg.Options{Quality: 70}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	in := buf.Bytes()

	n := NewNormalizer()
	out, err := n.Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatal("a compliant JPEG must pass through unchanged")
	}
	// second pass stays stable too
	out2, err := n.Normalize(out)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if !bytes.Equal(out, out2) {
		t.Fatal("Normalize is not idempotent")
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer()
	for _, raw := range [][]byte{
		[]byte("this is not an image at all"),
		{0x00, 0x01, 0x02, 0x03},
		{},
	} {
		if _, err := n.Normalize(raw); !errors.Is(err, ErrBadImage) {
			t.Errorf("Normalize(%d bytes) err = %v, want ErrBadImage", len(raw), err)
		}
	}
}
