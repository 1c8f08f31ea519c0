// Package dhash computes 64-bit difference-hash fingerprints for catalog
// images. Fingerprints are stable under recompression and resizing, which
// makes them suitable for matching a visitor's photo against stored imagery.
package dhash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Bits is the fingerprint length. All fingerprints produced by this package
// carry exactly this many bits.
const Bits = 64

var (
	// ErrDecode indicates the input bytes are not a decodable image.
	ErrDecode = errors.New("not a decodable image")

	// ErrLengthMismatch indicates two fingerprints of different declared
	// bit-lengths were compared. This is an internal invariant violation,
	// never a user-facing condition.
	ErrLengthMismatch = errors.New("fingerprint length mismatch")
)

// Fingerprint is a fixed-length perceptual hash. The zero value carries no
// bits and fails loudly when compared, so an unset fingerprint can never
// silently match anything.
type Fingerprint struct {
	bits uint64
	size int
}

// New builds a fingerprint from a raw 64-bit hash value.
func New(v uint64) Fingerprint {
	return Fingerprint{bits: v, size: Bits}
}

// Compute decodes imageData and derives its difference hash:
// resize to a 9x8 grid (stretched, aspect ratio intentionally discarded),
// convert to greyscale, then emit one bit per horizontally adjacent pixel
// pair: 1 when the left pixel is brighter than its right neighbor.
// The result is deterministic for identical input bytes.
func Compute(imageData []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s", ErrDecode, err)
	}

	// 9 columns give 8 adjacent pairs per row; 8 rows give 64 bits.
	resized := resizeImage(img, 9, 8)
	gray := toGrayscale(resized)

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}

	return New(hash), nil
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f.size == 0
}

// Size returns the declared bit-length (0 for the zero value).
func (f Fingerprint) Size() int {
	return f.size
}

// Uint64 returns the packed hash value.
func (f Fingerprint) Uint64() uint64 {
	return f.bits
}

// Hex returns the 16-character hexadecimal form used for storage.
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%016x", f.bits)
}

// BitString returns the 64-character '0'/'1' form, most significant bit first.
func (f Fingerprint) BitString() string {
	return fmt.Sprintf("%064b", f.bits)
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string {
	if f.IsZero() {
		return "<none>"
	}
	return f.Hex()
}

// Parse reads a stored fingerprint. Both the 16-character hex form and the
// legacy 64-character bit-string form are accepted.
func Parse(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 16:
		v, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("parse hex fingerprint %q: %w", s, err)
		}
		return New(v), nil
	case 64:
		v, err := strconv.ParseUint(s, 2, 64)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("parse bit-string fingerprint: %w", err)
		}
		return New(v), nil
	default:
		return Fingerprint{}, fmt.Errorf("fingerprint must be 16 hex or 64 binary characters, got %d", len(s))
	}
}

// Distance returns the Hamming distance between two fingerprints: the number
// of bit positions at which they differ. Comparing fingerprints of different
// declared lengths returns ErrLengthMismatch instead of a partial distance.
func Distance(a, b Fingerprint) (int, error) {
	if a.size != b.size {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrLengthMismatch, a.size, b.size)
	}
	return bits.OnesCount64(a.bits ^ b.bits), nil
}

// resizeImage scales an image to the given dimensions, stretching to fill.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of luma values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return gray
}
