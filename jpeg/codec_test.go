package jpeg

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildFlatHuffman constructs a valid (if non-optimal) canonical Huffman
// table that assigns every symbol an 8-bit code, sufficient for
// round-trip tests without transcribing the standard JPEG tables.
func buildFlatHuffman(symbols []uint8) *huffmanTable {
	var counts [16]uint8
	counts[7] = uint8(len(symbols)) // length 8 (index 7 == length-1 offset into DHT's 16 counts)
	return newHuffmanTable(counts, symbols)
}

func dcSymbols() []uint8 {
	syms := make([]uint8, 0, 12)
	for s := uint8(0); s <= 11; s++ {
		syms = append(syms, s)
	}
	return syms
}

func acSymbols() []uint8 {
	syms := make([]uint8, 0, 162)
	syms = append(syms, 0x00) // EOB
	for run := 0; run < 16; run++ {
		for size := 1; size <= 10; size++ {
			syms = append(syms, uint8(run<<4)|uint8(size))
		}
	}
	syms = append(syms, 0xF0) // ZRL
	return syms
}

// testImage builds a synthetic Image with the given sampling factors and
// pixel dimensions, filling every block with a deterministic but varied
// coefficient pattern so both DC prediction and AC runs/EOB get exercised.
func testImage(width, height uint32, h, v []uint32, restartInterval uint16) *Image {
	img := &Image{Width: width, Height: height, RestartInterval: restartInterval}
	dc := buildFlatHuffman(dcSymbols())
	ac := buildFlatHuffman(acSymbols())
	img.HuffDC[0] = dc
	img.HuffAC[0] = ac

	qt := QuantTable{}
	for i := range qt {
		qt[i] = 1
	}
	img.QuantTables[0] = &qt
	img.QuantPrecision[0] = 0

	var maxH, maxV uint32 = 1, 1
	for i := range h {
		if h[i] > maxH {
			maxH = h[i]
		}
		if v[i] > maxV {
			maxV = v[i]
		}
	}
	img.MaxH, img.MaxV = maxH, maxV
	img.McuW = (width + maxH*8 - 1) / (maxH * 8)
	img.McuH = (height + maxV*8 - 1) / (maxV * 8)

	for i := range h {
		c := newComponentDescriptor()
		c.ID = uint8(i + 1)
		c.H, c.V = h[i], v[i]
		c.QTableIndex = 0
		c.DCTableIndex = 0
		c.ACTableIndex = 0
		c.BlocksPerMCU = h[i] * v[i]
		c.BlockWidth = img.McuW * h[i]
		c.BlockHeight = img.McuH * v[i]
		img.Components = append(img.Components, c)
		plane := newCoefficientPlane(c.BlockWidth, c.BlockHeight)
		for b := range plane.Blocks {
			blk := &plane.Blocks[b]
			blk[0] = int16((b%31)*7 - 90) // DC, varies with block index
			blk[1] = int16((b + i) % 5)
			blk[2] = 0
			blk[3] = int16(-(b % 13))
			// leave the rest zero so EOB/ZRL paths are exercised
		}
		img.Planes = append(img.Planes, plane)
	}

	return img
}

func roundTrip(t *testing.T, img *Image) *Image {
	t.Helper()
	encoded, err := Encode(context.Background(), img)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(context.Background(), bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return decoded
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name            string
		width, height   uint32
		h, v             []uint32
		restartInterval uint16
	}{
		{"444_no_restart", 33, 17, []uint32{1, 1, 1}, []uint32{1, 1, 1}, 0},
		{"420_no_restart", 35, 21, []uint32{2, 1, 1}, []uint32{2, 1, 1}, 0},
		{"422_with_restart", 40, 16, []uint32{2, 1, 1}, []uint32{1, 1, 1}, 2},
		{"grayscale", 16, 16, []uint32{1}, []uint32{1}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			img := testImage(tc.width, tc.height, tc.h, tc.v, tc.restartInterval)
			decoded := roundTrip(t, img)

			if len(decoded.Planes) != len(img.Planes) {
				t.Fatalf("component count mismatch: got %d, want %d", len(decoded.Planes), len(img.Planes))
			}
			for i := range img.Planes {
				if diff := cmp.Diff(img.Planes[i].Blocks, decoded.Planes[i].Blocks); diff != "" {
					t.Errorf("component %d coefficient mismatch (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestDecodeRejectsProgressive(t *testing.T) {
	img := testImage(16, 16, []uint32{1}, []uint32{1}, 0)
	encoded, err := Encode(context.Background(), img)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Flip SOF0 to SOF2 (progressive) in the encoded stream.
	patched := append([]byte(nil), encoded...)
	found := false
	for i := 0; i+1 < len(patched); i++ {
		if patched[i] == 0xFF && patched[i+1] == markerSOF0 {
			patched[i+1] = markerSOF2
			found = true
			break
		}
	}
	if !found {
		t.Fatal("SOF0 marker not found in encoded stream")
	}
	_, err = Decode(context.Background(), bytes.NewReader(patched))
	e, ok := IsError(err)
	if !ok || e.Kind != UnsupportedMode {
		t.Fatalf("got err %v, want UnsupportedMode", err)
	}
}

func TestDecodeCancelled(t *testing.T) {
	img := testImage(64, 64, []uint32{1}, []uint32{1}, 0)
	encoded, err := Encode(context.Background(), img)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Decode(ctx, bytes.NewReader(encoded))
	e, ok := IsError(err)
	if !ok || e.Kind != Cancelled {
		t.Fatalf("got err %v, want Cancelled", err)
	}
}

func TestVLIRoundTrip(t *testing.T) {
	for diff := int32(-1023); diff <= 1023; diff += 37 {
		size := category(diff)
		bits := encodeVLIBits(diff, size)
		got := decodeVLI(bits, size)
		if got != diff {
			t.Errorf("VLI round trip failed for diff=%d: got %d", diff, got)
		}
	}
}

func TestCategoryBoundaries(t *testing.T) {
	cases := []struct {
		v    int32
		want uint8
	}{
		{0, 0},
		{1, 1},
		{-1, 1},
		{2, 2},
		{-3, 2},
		{1023, 10},
		{-1024, 11},
	}
	for _, tc := range cases {
		if got := category(tc.v); got != tc.want {
			t.Errorf("category(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

// TestHuffmanSlowPath exercises codes longer than 8 bits, which bypass the
// fast lookup table in huffmanTable.decodeSymbol.
func TestHuffmanSlowPath(t *testing.T) {
	var counts [16]uint8
	counts[11] = 3 // three symbols encoded at length 12
	symbols := []uint8{0xAA, 0xBB, 0xCC}
	table := newHuffmanTable(counts, symbols)

	w := newBitWriter()
	table.encodeSymbol(w, 0xAA)
	table.encodeSymbol(w, 0xCC)
	table.encodeSymbol(w, 0xBB)
	w.FlushWithPadding()

	r := newBitReader(w.Bytes())
	for _, want := range []uint8{0xAA, 0xCC, 0xBB} {
		got, err := table.decodeSymbol(r)
		if err != nil {
			t.Fatalf("decodeSymbol failed: %v", err)
		}
		if got != want {
			t.Errorf("decodeSymbol() = %#x, want %#x", got, want)
		}
	}
}

func TestBitReaderRestartMarker(t *testing.T) {
	w := newBitWriter()
	w.WriteBits(0x3, 2)
	w.FlushWithPadding()
	w.WriteByteUnescaped(0xFF)
	w.WriteByteUnescaped(markerRST0 + 3)

	r := newBitReader(w.Bytes())
	if _, err := r.ReadBits(2); err != nil {
		t.Fatalf("ReadBits failed: %v", err)
	}
	if err := r.ConsumeRestartMarker(3); err != nil {
		t.Fatalf("ConsumeRestartMarker failed: %v", err)
	}
}
