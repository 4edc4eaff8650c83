package jpeg

import (
	"bytes"
	"context"
)

// Encode re-emits a baseline JPEG from img: SOI, preserved APPn/COM
// segments, DQT (tables referenced by components), DHT (every defined DC/AC
// table), SOF0, DRI (when RestartInterval > 0), SOS, entropy-coded scan
// data, EOI. For any
// coefficient plane obtained by Decode, Encode followed by Decode again
// yields an equal coefficient plane; byte-level equality with the
// original input is not required.
func Encode(ctx context.Context, img *Image) ([]byte, error) {
	var out bytes.Buffer
	out.Write([]byte{0xFF, markerSOI})

	for _, seg := range img.PrefixSegments {
		writeSegmentHeader(&out, seg.Marker, len(seg.Payload)+2)
		out.Write(seg.Payload)
	}

	writeDQT(&out, img)
	writeDHT(&out, img)
	writeSOF0(&out, img)
	if img.RestartInterval > 0 {
		writeSegmentHeader(&out, markerDRI, 4)
		out.WriteByte(byte(img.RestartInterval >> 8))
		out.WriteByte(byte(img.RestartInterval))
	}

	if len(img.ScanComponentOrder) == 0 {
		// Single interleaved scan over every component, the common case.
		all := make([]int, len(img.Components))
		for i := range all {
			all[i] = i
		}
		img.ScanComponentOrder = [][]int{all}
	}

	for _, components := range img.ScanComponentOrder {
		writeSOS(&out, img, components)
		scanBytes, err := encodeScan(ctx, img, components)
		if err != nil {
			return nil, err
		}
		out.Write(scanBytes)
	}

	out.Write([]byte{0xFF, markerEOI})
	out.Write(img.Trailing)

	return out.Bytes(), nil
}

func writeSegmentHeader(out *bytes.Buffer, marker byte, length int) {
	out.Write([]byte{0xFF, marker, byte(length >> 8), byte(length)})
}

func writeDQT(out *bytes.Buffer, img *Image) {
	used := usedQuantTables(img)
	for id := 0; id < 4; id++ {
		if !used[id] || img.QuantTables[id] == nil {
			continue
		}
		precision := img.QuantPrecision[id]
		entrySize := 1
		if precision != 0 {
			entrySize = 2
		}
		length := 2 + 1 + 64*entrySize
		writeSegmentHeader(out, markerDQT, length)
		out.WriteByte((precision << 4) | byte(id))
		for _, v := range img.QuantTables[id] {
			if precision == 0 {
				out.WriteByte(byte(v))
			} else {
				out.WriteByte(byte(v >> 8))
				out.WriteByte(byte(v))
			}
		}
	}
}

func usedQuantTables(img *Image) [4]bool {
	var used [4]bool
	for _, c := range img.Components {
		used[c.QTableIndex] = true
	}
	return used
}

func writeDHT(out *bytes.Buffer, img *Image) {
	writeHuffTables(out, 0, img.HuffDC)
	writeHuffTables(out, 1, img.HuffAC)
}

func writeHuffTables(out *bytes.Buffer, class byte, tables [4]*huffmanTable) {
	for id := 0; id < 4; id++ {
		t := tables[id]
		if t == nil {
			continue
		}
		length := 2 + 1 + 16 + t.numSym
		writeSegmentHeader(out, markerDHT, length)
		out.WriteByte((class << 4) | byte(id))
		for l := 1; l <= 16; l++ {
			out.WriteByte(t.counts[l])
		}
		out.Write(t.symbols[:t.numSym])
	}
}

func writeSOF0(out *bytes.Buffer, img *Image) {
	length := 2 + 1 + 2 + 2 + 1 + 3*len(img.Components)
	writeSegmentHeader(out, markerSOF0, length)
	out.WriteByte(8) // precision
	out.WriteByte(byte(img.Height >> 8))
	out.WriteByte(byte(img.Height))
	out.WriteByte(byte(img.Width >> 8))
	out.WriteByte(byte(img.Width))
	out.WriteByte(byte(len(img.Components)))
	for _, c := range img.Components {
		out.WriteByte(c.ID)
		out.WriteByte(byte(c.H<<4) | byte(c.V))
		out.WriteByte(c.QTableIndex)
	}
}

func writeSOS(out *bytes.Buffer, img *Image, components []int) {
	length := 2 + 1 + 2*len(components) + 3
	writeSegmentHeader(out, markerSOS, length)
	out.WriteByte(byte(len(components)))
	for _, ci := range components {
		c := &img.Components[ci]
		out.WriteByte(c.ID)
		out.WriteByte(byte(c.DCTableIndex<<4) | byte(c.ACTableIndex))
	}
	out.WriteByte(0)  // Ss
	out.WriteByte(63) // Se
	out.WriteByte(0)  // Ah/Al
}

func encodeScan(ctx context.Context, img *Image, components []int) ([]byte, error) {
	w := newBitWriter()
	lastDC := make([]int16, len(img.Components))
	units := img.scanUnits(components)
	restartEvery := img.restartUnitCount(components)
	var sinceRestart uint32
	restartNext := uint8(0)

	for i, u := range units {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, NewError(Cancelled, int64(i), "cancelled")
			}
		}
		c := &img.Components[u.component]
		dcTable := img.HuffDC[c.DCTableIndex]
		acTable := img.HuffAC[c.ACTableIndex]
		block := img.Planes[u.component].AtIndex(u.dpos)
		newDC := encodeBlock(w, dcTable, acTable, block, lastDC[u.component])
		lastDC[u.component] = newDC

		sinceRestart++
		if restartEvery > 0 && sinceRestart == restartEvery && i != len(units)-1 {
			w.FlushWithPadding()
			w.WriteByteUnescaped(0xFF)
			w.WriteByteUnescaped(markerRST0 + restartNext)
			restartNext = (restartNext + 1) % 8
			sinceRestart = 0
			for j := range lastDC {
				lastDC[j] = 0
			}
		}
	}

	w.FlushWithPadding()
	return w.Bytes(), nil
}
