package dctdm

import (
	"bytes"
	"context"
	"testing"

	"github.com/steepcloud/dctdm/jpeg"
)

// buildCarrierImage constructs a synthetic single-component (luma-only)
// Image with nBlocks blocks, each pre-populated with varied AC
// coefficients well away from the clamp boundary, suitable as a DCTDM
// carrier in tests.
func buildCarrierImage(nBlocks int) *jpeg.Image {
	img := &jpeg.Image{Width: uint32(nBlocks) * 8, Height: 8}
	c := jpeg.ComponentDescriptor{ID: 1, H: 1, V: 1, BlocksPerMCU: 1, BlockWidth: uint32(nBlocks), BlockHeight: 1}
	img.Components = []jpeg.ComponentDescriptor{c}
	plane := jpeg.CoefficientPlane{BlockWidth: uint32(nBlocks), BlockHeight: 1, Blocks: make([]jpeg.CoefficientBlock, nBlocks)}
	for i := range plane.Blocks {
		blk := &plane.Blocks[i]
		for k := 1; k < 16; k++ {
			blk[k] = int16(((i*7 + k*13) % 41) - 20)
		}
	}
	img.Planes = []jpeg.CoefficientPlane{plane}
	return img
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		cfg     Config
	}{
		{"empty_payload", nil, DefaultConfig()},
		{"short_payload", []byte("hi"), DefaultConfig()},
		{"default_delta", []byte("the quick brown fox"), DefaultConfig()},
		{"small_delta", []byte("abc"), Config{Delta: 4, PairsPerBlock: 8, Component: 1}},
		{"large_delta", []byte("xyz123"), Config{Delta: 64, PairsPerBlock: 8, Component: 1}},
		{"skip_zero_pairs", []byte("zz"), Config{Delta: 10, PairsPerBlock: 8, Component: 1, SkipZeroPairs: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			img := buildCarrierImage(64)
			e := NewEngine(tc.cfg)
			if err := e.Embed(context.Background(), img, tc.payload); err != nil {
				t.Fatalf("Embed failed: %v", err)
			}
			got, err := e.Extract(context.Background(), img)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if !bytes.Equal(got, tc.payload) && !(len(got) == 0 && len(tc.payload) == 0) {
				t.Errorf("got payload %q, want %q", got, tc.payload)
			}
		})
	}
}

func TestEmbedDeterministic(t *testing.T) {
	payload := []byte("deterministic")
	cfg := DefaultConfig()

	img1 := buildCarrierImage(64)
	img2 := buildCarrierImage(64)
	e := NewEngine(cfg)
	if err := e.Embed(context.Background(), img1, payload); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if err := e.Embed(context.Background(), img2, payload); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for b := range img1.Planes[0].Blocks {
		if img1.Planes[0].Blocks[b] != img2.Planes[0].Blocks[b] {
			t.Fatalf("embedding is not deterministic at block %d", b)
		}
	}
}

func TestCapacityBound(t *testing.T) {
	img := buildCarrierImage(100)
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	capacity, err := e.Capacity(img)
	if err != nil {
		t.Fatalf("Capacity failed: %v", err)
	}
	want := (100*cfg.PairsPerBlock)/8 - 4
	if capacity != want {
		t.Fatalf("Capacity() = %d, want %d", capacity, want)
	}

	tooBig := make([]byte, capacity+1)
	if err := e.Embed(context.Background(), img, tooBig); err == nil {
		t.Fatal("expected Embed to fail for oversized payload")
	} else if e2, ok := IsError(err); !ok || e2.Kind != PayloadTooLarge {
		t.Fatalf("got err %v, want PayloadTooLarge", err)
	}

	justRight := make([]byte, capacity)
	if err := e.Embed(context.Background(), img, justRight); err != nil {
		t.Fatalf("expected Embed to succeed at exact capacity, got %v", err)
	}
}

func TestExtractTruncated(t *testing.T) {
	img := buildCarrierImage(3) // too small to hold even the 4-byte length header
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	_, err := e.Extract(context.Background(), img)
	if err == nil {
		t.Fatal("expected Extract to fail on an image with no embedded frame")
	}
}

func TestRoundHalfEvenBoundaries(t *testing.T) {
	cases := []struct {
		d, delta, want int32
	}{
		{5, 10, 0},   // 0.5 -> even (0)
		{15, 10, 2},  // 1.5 -> even (2)
		{-5, 10, 0},  // -0.5 -> even (0)
		{25, 10, 2},  // 2.5 -> even (2)
		{4, 10, 0},
		{6, 10, 1},
	}
	for _, tc := range cases {
		if got := roundHalfEven(tc.d, tc.delta); got != tc.want {
			t.Errorf("roundHalfEven(%d, %d) = %d, want %d", tc.d, tc.delta, got, tc.want)
		}
	}
}

func TestPassphraseTransformRoundTrip(t *testing.T) {
	passphrase := "correct horse battery staple"
	tr := NewTransform(&passphrase)

	plaintext := []byte("a secret payload for the stego channel")
	sealed, err := tr.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	opened, err := tr.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("got %q, want %q", opened, plaintext)
	}

	wrong := "wrong passphrase entirely"
	_, err = NewTransform(&wrong).Open(sealed)
	e, ok := IsError(err)
	if !ok || e.Kind != AuthenticationFailed {
		t.Fatalf("got err %v, want AuthenticationFailed", err)
	}
}

func TestEmbedWithEncryption(t *testing.T) {
	passphrase := "stego-passphrase"
	cfg := DefaultConfig()
	cfg.Passphrase = &passphrase

	img := buildCarrierImage(256)
	e := NewEngine(cfg)
	payload := []byte("encrypted end to end")
	if err := e.Embed(context.Background(), img, payload); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	got, err := e.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}
