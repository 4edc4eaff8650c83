package jpeg

// huffmanTable is a canonical Huffman table as defined by a JPEG DHT
// segment, plus derived structures for O(1)-amortized decode.
type huffmanTable struct {
	counts  [17]uint8  // number of codes of each length 1..16
	symbols [256]uint8 // symbols in canonical code order
	numSym  int

	// fastLookup[b] for an 8-bit lookahead b: low byte = symbol, bits
	// 8..15 = code length, or -1 if no code of <=8 bits matches.
	fastLookup [256]int16

	minCode [17]int32
	maxCode [18]int32
	valPtr  [17]int32

	// encode tables, built on demand by buildEncodeTable.
	encCode [256]uint16
	encLen  [256]uint8
	hasEnc  bool
}

func newHuffmanTable(counts [16]uint8, symbols []uint8) *huffmanTable {
	h := &huffmanTable{}
	for i := 0; i < 16; i++ {
		h.counts[i+1] = counts[i]
	}
	h.numSym = len(symbols)
	copy(h.symbols[:], symbols)
	h.build()
	return h
}

func (h *huffmanTable) build() {
	for i := range h.fastLookup {
		h.fastLookup[i] = -1
	}

	code := 0
	symIdx := 0
	for length := 1; length <= 8; length++ {
		for i := 0; i < int(h.counts[length]); i++ {
			shift := 8 - length
			base := code << shift
			n := 1 << shift
			for j := 0; j < n; j++ {
				h.fastLookup[base+j] = int16(h.symbols[symIdx]) | int16(length<<8)
			}
			code++
			symIdx++
		}
		code <<= 1
	}

	code = 0
	symIdx = 0
	for length := 1; length <= 16; length++ {
		h.minCode[length] = int32(code)
		h.valPtr[length] = int32(symIdx) - int32(code)
		if h.counts[length] > 0 {
			h.maxCode[length] = int32(code) + int32(h.counts[length]) - 1
			symIdx += int(h.counts[length])
		} else {
			h.maxCode[length] = -1
		}
		code = (code + int(h.counts[length])) << 1
	}
	h.maxCode[17] = 0x7FFFFFFF
}

// decodeSymbol reads one Huffman symbol from r.
func (h *huffmanTable) decodeSymbol(r *bitReader) (uint8, error) {
	peekLen := uint32(8)
	accum, err := h.peekBits(r, peekLen)
	if err == nil {
		if entry := h.fastLookup[accum]; entry >= 0 {
			length := uint32(entry >> 8)
			if _, derr := r.ReadBits(length); derr != nil {
				return 0, derr
			}
			return uint8(entry & 0xFF), nil
		}
	}

	// Slow path: read bit by bit for codes longer than 8 bits (or when
	// fewer than 8 bits remain in the stream).
	code := int32(0)
	for length := 1; length <= 16; length++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		code = (code << 1) | int32(bit)
		if length >= 9 || h.counts[length] == 0 {
			if code <= h.maxCode[length] && h.counts[length] > 0 {
				idx := h.valPtr[length] + code
				if idx < 0 || int(idx) >= h.numSym {
					return 0, NewError(InvalidHuffmanCode, r.StreamPosition(), "huffman code resolves outside symbol table")
				}
				return h.symbols[idx], nil
			}
			continue
		}
		if code <= h.maxCode[length] {
			idx := h.valPtr[length] + code
			if idx < 0 || int(idx) >= h.numSym {
				return 0, NewError(InvalidHuffmanCode, r.StreamPosition(), "huffman code resolves outside symbol table")
			}
			return h.symbols[idx], nil
		}
	}
	return 0, NewError(InvalidHuffmanCode, r.StreamPosition(), "no huffman code matched within 16 bits")
}

// peekBits peeks n bits without consuming them, by snapshotting reader state.
func (h *huffmanTable) peekBits(r *bitReader, n uint32) (uint32, error) {
	snapshot := *r
	v, err := r.ReadBits(n)
	*r = snapshot
	return v, err
}

// buildEncodeTable derives (code, length) per symbol from the canonical
// table, for use by the encoder.
func (h *huffmanTable) buildEncodeTable() {
	if h.hasEnc {
		return
	}
	code := 0
	symIdx := 0
	for length := 1; length <= 16; length++ {
		for i := 0; i < int(h.counts[length]); i++ {
			sym := h.symbols[symIdx]
			h.encCode[sym] = uint16(code)
			h.encLen[sym] = uint8(length)
			code++
			symIdx++
		}
		code <<= 1
	}
	h.hasEnc = true
}

func (h *huffmanTable) encodeSymbol(w *bitWriter, symbol uint8) {
	h.buildEncodeTable()
	w.WriteBits(uint32(h.encCode[symbol]), uint32(h.encLen[symbol]))
}
