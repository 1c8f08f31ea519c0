package recognizer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/catalog/mock"
	"github.com/tripmarket/placelens/internal/dhash"
)

func candidates(pairs ...any) []catalog.Candidate {
	var out []catalog.Candidate
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, catalog.Candidate{
			PlaceID:     pairs[i].(int64),
			Fingerprint: dhash.New(pairs[i+1].(uint64)),
		})
	}
	return out
}

func TestMatcherBest(t *testing.T) {
	query := dhash.New(0x0)

	tests := []struct {
		name       string
		threshold  int
		candidates []catalog.Candidate
		wantPlace  int64
		wantDist   int
		wantErr    error
	}{
		{
			name:       "exact match",
			threshold:  10,
			candidates: candidates(int64(1), uint64(0x0)),
			wantPlace:  1,
			wantDist:   0,
		},
		{
			name:       "closest of several wins",
			threshold:  10,
			candidates: candidates(int64(1), uint64(0x1F), int64(2), uint64(0x3), int64(3), uint64(0x7F)),
			wantPlace:  2,
			wantDist:   2,
		},
		{
			name:       "distance equal to threshold rejected",
			threshold:  10,
			candidates: candidates(int64(1), uint64(0x3FF)), // exactly 10 bits
			wantErr:    ErrNoMatch,
		},
		{
			name:       "distance just below threshold accepted",
			threshold:  10,
			candidates: candidates(int64(1), uint64(0x1FF)), // 9 bits
			wantPlace:  1,
			wantDist:   9,
		},
		{
			name:      "empty collection",
			threshold: 10,
			wantErr:   ErrNoMatch,
		},
		{
			name:       "all candidates above threshold",
			threshold:  10,
			candidates: candidates(int64(1), uint64(0xFFFF), int64(2), uint64(0xFFFFFFFF)),
			wantErr:    ErrNoMatch,
		},
		{
			name:       "tie keeps first in scan order",
			threshold:  10,
			candidates: candidates(int64(7), uint64(0x3), int64(8), uint64(0x5)), // both distance 2
			wantPlace:  7,
			wantDist:   2,
		},
		{
			name:       "custom threshold",
			threshold:  3,
			candidates: candidates(int64(1), uint64(0x7)), // 3 bits
			wantErr:    ErrNoMatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMatcher(tc.threshold)
			match, err := m.Best(query, tc.candidates)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Best() error = %v; want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Best() failed: %v", err)
			}
			if match.PlaceID != tc.wantPlace {
				t.Errorf("Best() place = %d; want %d", match.PlaceID, tc.wantPlace)
			}
			if match.Distance != tc.wantDist {
				t.Errorf("Best() distance = %d; want %d", match.Distance, tc.wantDist)
			}
		})
	}
}

func TestMatcherSkipsZeroFingerprints(t *testing.T) {
	m := NewMatcher(10)
	cands := []catalog.Candidate{
		{PlaceID: 1}, // no stored fingerprint, must not fail the query
		{PlaceID: 2, Fingerprint: dhash.New(0x1)},
	}

	match, err := m.Best(dhash.New(0x0), cands)
	if err != nil {
		t.Fatalf("Best() failed: %v", err)
	}
	if match.PlaceID != 2 {
		t.Errorf("Best() place = %d; want 2", match.PlaceID)
	}
}

func TestMatcherDefaultThreshold(t *testing.T) {
	if got := NewMatcher(0).Threshold(); got != DefaultThreshold {
		t.Errorf("NewMatcher(0).Threshold() = %d; want %d", got, DefaultThreshold)
	}
	if got := NewMatcher(-5).Threshold(); got != DefaultThreshold {
		t.Errorf("NewMatcher(-5).Threshold() = %d; want %d", got, DefaultThreshold)
	}
	if got := NewMatcher(4).Threshold(); got != 4 {
		t.Errorf("NewMatcher(4).Threshold() = %d; want 4", got)
	}
}

// Recognition scenarios against the in-memory catalog.

func TestServiceRecognizeExactCopy(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	photo := testJPEG(t, 100, 80, 0)
	fp := mustCompute(t, photo)

	p1, _ := cat.CreatePlace(ctx, &catalog.Place{Name: "Prague Castle", Active: true})
	if err := cat.SetPlaceImage(ctx, p1, "places/p1.jpg", fp); err != nil {
		t.Fatalf("SetPlaceImage failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	match, err := svc.Recognize(ctx, photo)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if match.PlaceID != p1 {
		t.Errorf("Recognize place = %d; want %d", match.PlaceID, p1)
	}
	if match.Distance != 0 {
		t.Errorf("Recognize distance = %d; want 0 for exact copy", match.Distance)
	}
}

func TestServiceRecognizeReencodedCopy(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	original := testJPEGQuality(t, 200, 160, 0, 95)
	reencoded := testJPEGQuality(t, 200, 160, 0, 40)

	p1, _ := cat.CreatePlace(ctx, &catalog.Place{Name: "Charles Bridge", Active: true})
	if err := cat.SetPlaceImage(ctx, p1, "places/p1.jpg", mustCompute(t, original)); err != nil {
		t.Fatalf("SetPlaceImage failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	match, err := svc.Recognize(ctx, reencoded)
	if err != nil {
		t.Fatalf("Recognize of re-encoded copy failed: %v", err)
	}
	if match.PlaceID != p1 {
		t.Errorf("Recognize place = %d; want %d", match.PlaceID, p1)
	}
	if match.Distance >= DefaultThreshold {
		t.Errorf("re-encoded copy distance = %d; want < %d", match.Distance, DefaultThreshold)
	}
}

func TestServiceRecognizeUnrelatedImage(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	p1, _ := cat.CreatePlace(ctx, &catalog.Place{Name: "Old Town Square", Active: true})
	// Stored fingerprint far from anything a flat test image produces.
	if err := cat.SetPlaceImage(ctx, p1, "places/p1.jpg", dhash.New(0xAAAAAAAAAAAAAAAA)); err != nil {
		t.Fatalf("SetPlaceImage failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	_, err := svc.Recognize(ctx, testJPEG(t, 100, 80, 3))
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Recognize of unrelated image = %v; want ErrNoMatch", err)
	}
}

func TestServiceRecognizeProductRoutesToPlace(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	p2, _ := cat.CreatePlace(ctx, &catalog.Place{Name: "Petrin Tower", Active: true})

	photo := testJPEG(t, 120, 90, 1)
	prodID, _ := cat.CreateProduct(ctx, &catalog.Product{
		Name:          "Evening Tower Tour",
		Active:        true,
		RoutePlaceIDs: []int64{p2},
	})
	if err := cat.SetProductImage(ctx, prodID, "products/tour.jpg", mustCompute(t, photo)); err != nil {
		t.Fatalf("SetProductImage failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	match, err := svc.Recognize(ctx, photo)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if match.PlaceID != p2 {
		t.Errorf("product photo routed to place %d; want first route place %d", match.PlaceID, p2)
	}
}

func TestServiceRecognizeProductWithoutRoute(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	photo := testJPEG(t, 120, 90, 2)
	prodID, _ := cat.CreateProduct(ctx, &catalog.Product{Name: "Unrouted Tour", Active: true})
	if err := cat.SetProductImage(ctx, prodID, "products/unrouted.jpg", mustCompute(t, photo)); err != nil {
		t.Fatalf("SetProductImage failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	_, err := svc.Recognize(ctx, photo)
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("product without route points must contribute no candidates, got %v", err)
	}
}

func TestServiceRecognizeSecondaryMedia(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	p1, _ := cat.CreatePlace(ctx, &catalog.Place{Name: "Vysehrad", Active: true})

	photo := testJPEG(t, 150, 100, 4)
	mediaID, err := cat.AddMedia(ctx, &catalog.Media{PlaceID: p1, Key: "media/v1.jpg", DHash: mustCompute(t, photo)})
	if err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	match, err := svc.Recognize(ctx, photo)
	if err != nil {
		t.Fatalf("Recognize via secondary media failed: %v", err)
	}
	if match.PlaceID != p1 {
		t.Errorf("Recognize place = %d; want %d", match.PlaceID, p1)
	}

	// Deleting the media removes its fingerprint from the candidate set.
	if err := cat.DeleteMedia(ctx, mediaID); err != nil {
		t.Fatalf("DeleteMedia failed: %v", err)
	}
	if _, err := svc.Recognize(ctx, photo); !errors.Is(err, ErrNoMatch) {
		t.Errorf("deleted media must not be matched, got %v", err)
	}
}

func TestServiceRecognizeInvalidImage(t *testing.T) {
	svc := NewService(mock.NewCatalog(), DefaultThreshold)

	_, err := svc.Recognize(context.Background(), []byte("not an image"))
	if !errors.Is(err, dhash.ErrDecode) {
		t.Errorf("Recognize on garbage = %v; want ErrDecode", err)
	}
}

func TestServiceRecognizeInactivePlaceExcluded(t *testing.T) {
	ctx := context.Background()
	cat := mock.NewCatalog()

	photo := testJPEG(t, 100, 80, 5)
	p1, _ := cat.CreatePlace(ctx, &catalog.Place{Name: "Closed Museum", Active: false})
	if err := cat.SetPlaceImage(ctx, p1, "places/closed.jpg", mustCompute(t, photo)); err != nil {
		t.Fatalf("SetPlaceImage failed: %v", err)
	}

	svc := NewService(cat, DefaultThreshold)
	if _, err := svc.Recognize(ctx, photo); !errors.Is(err, ErrNoMatch) {
		t.Errorf("inactive place must not be matched, got %v", err)
	}
}

// Helper functions

// testJPEG renders a deterministic smooth gradient; the seed selects the
// gradient direction so different seeds produce visually different images.
// Smooth gradients keep the difference hash stable across JPEG re-encodes.
func testJPEG(t *testing.T, width, height, seed int) []byte {
	t.Helper()
	return testJPEGQuality(t, width, height, seed, 90)
}

func testJPEGQuality(t *testing.T, width, height, seed, quality int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			gx := x * 255 / width
			gy := y * 255 / height
			var v int
			switch seed % 4 {
			case 0:
				v = gx
			case 1:
				v = 255 - gx
			case 2:
				v = gy
			case 3:
				v = (gx + gy) / 2
			}
			img.Set(x, y, color.RGBA{uint8(v), uint8(v), uint8(255 - v), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func mustCompute(t *testing.T, data []byte) dhash.Fingerprint {
	t.Helper()
	fp, err := dhash.Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	return fp
}
