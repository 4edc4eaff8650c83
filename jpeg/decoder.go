package jpeg

import (
	"context"
	"io"
)

// Decode parses a baseline JPEG byte stream into an Image: segment table,
// quant/Huffman tables, and per-component coefficient planes in zigzag
// order. Only SOF0 (baseline sequential, 8-bit precision, Huffman entropy
// coding) is supported; anything else fails with
// UnsupportedMode/UnsupportedPrecision.
func Decode(ctx context.Context, r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := &decoderState{data: data, img: &Image{}}
	return d.img, d.run(ctx)
}

type decoderState struct {
	data []byte
	pos  int64
	img  *Image
}

func (d *decoderState) errf(kind Kind, msg string) error {
	return NewError(kind, d.pos, msg)
}

func (d *decoderState) need(n int64) error {
	if d.pos+n > int64(len(d.data)) {
		return d.errf(UnexpectedEndOfStream, "truncated segment")
	}
	return nil
}

func (d *decoderState) u8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *decoderState) u16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := uint16(d.data[d.pos])<<8 | uint16(d.data[d.pos+1])
	d.pos += 2
	return v, nil
}

// readMarker expects the reader to be positioned at a 0xFF marker
// introducer (skipping any 0xFF fill bytes) and returns the marker byte.
func (d *decoderState) readMarker() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	if d.data[d.pos] != 0xFF {
		return 0, d.errf(InvalidMarker, "expected marker introducer 0xFF")
	}
	d.pos++
	for {
		if err := d.need(1); err != nil {
			return 0, err
		}
		b := d.data[d.pos]
		d.pos++
		if b != 0xFF {
			return b, nil
		}
	}
}

func (d *decoderState) run(ctx context.Context) error {
	if len(d.data) < 2 || d.data[0] != 0xFF || d.data[1] != markerSOI {
		return d.errf(InvalidMarker, "missing SOI")
	}
	d.pos = 2

	for {
		if err := ctx.Err(); err != nil {
			return NewError(Cancelled, d.pos, "cancelled")
		}
		marker, err := d.readMarker()
		if err != nil {
			return err
		}
		switch {
		case marker == markerEOI:
			if d.pos < int64(len(d.data)) {
				d.img.Trailing = append([]byte(nil), d.data[d.pos:]...)
			}
			return nil
		case marker == markerDQT:
			if err := d.parseDQT(); err != nil {
				return err
			}
		case marker == markerDHT:
			if err := d.parseDHT(); err != nil {
				return err
			}
		case marker == markerDRI:
			if err := d.parseDRI(); err != nil {
				return err
			}
		case marker == markerSOS:
			if err := d.parseSOSAndScan(ctx); err != nil {
				return err
			}
		case isSOF(marker):
			if marker != markerSOF0 {
				return d.errf(UnsupportedMode, "only baseline sequential (SOF0) JPEGs are supported")
			}
			if err := d.parseSOF0(); err != nil {
				return err
			}
		case isAPPn(marker) || marker == markerCOM:
			if err := d.parsePreservedSegment(marker); err != nil {
				return err
			}
		default:
			return d.errf(InvalidMarker, "unrecognized marker")
		}
	}
}

func (d *decoderState) parsePreservedSegment(marker byte) error {
	length, err := d.u16()
	if err != nil {
		return err
	}
	if length < 2 {
		return d.errf(InvalidSegmentLength, "segment length below minimum")
	}
	payloadLen := int64(length) - 2
	if err := d.need(payloadLen); err != nil {
		return err
	}
	payload := append([]byte(nil), d.data[d.pos:d.pos+payloadLen]...)
	d.pos += payloadLen
	d.img.PrefixSegments = append(d.img.PrefixSegments, Segment{Marker: marker, Payload: payload})
	return nil
}

func (d *decoderState) parseDQT() error {
	length, err := d.u16()
	if err != nil {
		return err
	}
	end := d.pos + int64(length) - 2
	for d.pos < end {
		pq, err := d.u8()
		if err != nil {
			return err
		}
		precision := pq >> 4
		id := pq & 0x0F
		if id >= 4 {
			return d.errf(InvalidSegmentLength, "quantization table id out of range")
		}
		var table QuantTable
		for i := 0; i < 64; i++ {
			if precision == 0 {
				v, err := d.u8()
				if err != nil {
					return err
				}
				table[i] = uint16(v)
			} else {
				v, err := d.u16()
				if err != nil {
					return err
				}
				table[i] = v
			}
		}
		t := table
		d.img.QuantTables[id] = &t
		d.img.QuantPrecision[id] = precision
	}
	return nil
}

func (d *decoderState) parseDHT() error {
	length, err := d.u16()
	if err != nil {
		return err
	}
	end := d.pos + int64(length) - 2
	for d.pos < end {
		tc, err := d.u8()
		if err != nil {
			return err
		}
		class := tc >> 4
		id := tc & 0x0F
		if id >= 4 {
			return d.errf(InvalidSegmentLength, "huffman table id out of range")
		}
		var counts [16]uint8
		total := 0
		for i := 0; i < 16; i++ {
			c, err := d.u8()
			if err != nil {
				return err
			}
			counts[i] = c
			total += int(c)
		}
		if err := d.need(int64(total)); err != nil {
			return err
		}
		symbols := append([]byte(nil), d.data[d.pos:d.pos+int64(total)]...)
		d.pos += int64(total)
		table := newHuffmanTable(counts, symbols)
		if class == 0 {
			d.img.HuffDC[id] = table
		} else {
			d.img.HuffAC[id] = table
		}
	}
	return nil
}

func (d *decoderState) parseDRI() error {
	length, err := d.u16()
	if err != nil {
		return err
	}
	if length != 4 {
		return d.errf(InvalidSegmentLength, "DRI segment must be length 4")
	}
	v, err := d.u16()
	if err != nil {
		return err
	}
	d.img.RestartInterval = v
	return nil
}

func (d *decoderState) parseSOF0() error {
	_, err := d.u16() // length, unused (derivable)
	if err != nil {
		return err
	}
	precision, err := d.u8()
	if err != nil {
		return err
	}
	if precision != 8 {
		return d.errf(UnsupportedPrecision, "only 8-bit sample precision is supported")
	}
	height, err := d.u16()
	if err != nil {
		return err
	}
	width, err := d.u16()
	if err != nil {
		return err
	}
	nComp, err := d.u8()
	if err != nil {
		return err
	}
	if nComp == 0 || nComp > MaxComponents {
		return d.errf(InvalidSegmentLength, "unsupported component count")
	}
	d.img.Width = uint32(width)
	d.img.Height = uint32(height)
	d.img.Components = make([]ComponentDescriptor, nComp)

	var maxH, maxV uint32 = 1, 1
	for i := 0; i < int(nComp); i++ {
		id, err := d.u8()
		if err != nil {
			return err
		}
		hv, err := d.u8()
		if err != nil {
			return err
		}
		qidx, err := d.u8()
		if err != nil {
			return err
		}
		c := newComponentDescriptor()
		c.ID = id
		c.H = uint32(hv >> 4)
		c.V = uint32(hv & 0x0F)
		c.QTableIndex = qidx
		if c.H == 0 || c.V == 0 {
			return d.errf(InvalidSegmentLength, "zero sampling factor")
		}
		if c.H > maxH {
			maxH = c.H
		}
		if c.V > maxV {
			maxV = c.V
		}
		d.img.Components[i] = c
	}

	d.img.MaxH = maxH
	d.img.MaxV = maxV
	d.img.McuW = (d.img.Width + maxH*8 - 1) / (maxH * 8)
	d.img.McuH = (d.img.Height + maxV*8 - 1) / (maxV * 8)

	for i := range d.img.Components {
		c := &d.img.Components[i]
		c.BlocksPerMCU = c.H * c.V
		c.BlockWidth = d.img.McuW * c.H
		c.BlockHeight = d.img.McuH * c.V
		d.img.Planes = append(d.img.Planes, newCoefficientPlane(c.BlockWidth, c.BlockHeight))
	}
	return nil
}

func (d *decoderState) parseSOSAndScan(ctx context.Context) error {
	_, err := d.u16() // length
	if err != nil {
		return err
	}
	nComp, err := d.u8()
	if err != nil {
		return err
	}
	components := make([]int, 0, nComp)
	for i := 0; i < int(nComp); i++ {
		sel, err := d.u8()
		if err != nil {
			return err
		}
		tdta, err := d.u8()
		if err != nil {
			return err
		}
		idx := d.img.ComponentByID(sel)
		if idx < 0 {
			return d.errf(InvalidSegmentLength, "scan references unknown component")
		}
		d.img.Components[idx].DCTableIndex = tdta >> 4
		d.img.Components[idx].ACTableIndex = tdta & 0x0F
		components = append(components, idx)
	}
	// Ss, Se, AhAl: baseline always codes the full spectral range.
	if _, err := d.u8(); err != nil {
		return err
	}
	if _, err := d.u8(); err != nil {
		return err
	}
	if _, err := d.u8(); err != nil {
		return err
	}

	d.img.ScanComponentOrder = append(d.img.ScanComponentOrder, components)

	return d.decodeScan(ctx, components)
}

func (d *decoderState) decodeScan(ctx context.Context, components []int) error {
	br := newBitReader(d.data[d.pos:])

	lastDC := make([]int16, len(d.img.Components))
	units := d.img.scanUnits(components)
	restartEvery := d.img.restartUnitCount(components)
	var sinceRestart uint32
	restartExpected := uint8(0)

	for i, u := range units {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return NewError(Cancelled, d.pos+br.StreamPosition(), "cancelled")
			}
		}
		c := &d.img.Components[u.component]
		dcTable := d.img.HuffDC[c.DCTableIndex]
		acTable := d.img.HuffAC[c.ACTableIndex]
		if dcTable == nil || acTable == nil {
			return d.errf(InvalidHuffmanCode, "scan references undefined huffman table")
		}

		block, newDC, err := decodeBlock(br, dcTable, acTable, lastDC[u.component])
		if err != nil {
			return err
		}
		lastDC[u.component] = newDC
		*d.img.Planes[u.component].AtIndex(u.dpos) = block

		sinceRestart++
		if restartEvery > 0 && sinceRestart == restartEvery && i != len(units)-1 {
			if err := br.ConsumeRestartMarker(restartExpected); err != nil {
				return err
			}
			restartExpected = (restartExpected + 1) % 8
			sinceRestart = 0
			for j := range lastDC {
				lastDC[j] = 0
			}
		}
	}

	if _, ok := br.PeekMarker(); !ok {
		br.AlignToByte()
		br.bits = 0
		br.bitsLeft = 0
		_, _, _ = br.nextRawByte()
	}

	d.pos += br.StreamPosition()
	if _, ok := br.PeekMarker(); ok {
		// Leave the main segment loop to consume it; rewind to the 0xFF.
		d.pos = d.pos - (br.StreamPosition() - br.MarkerOffset())
	}
	return nil
}
