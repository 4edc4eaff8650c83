package dctdm

import (
	"context"

	"github.com/steepcloud/dctdm/jpeg"
)

// Engine embeds and extracts payloads under a fixed Config.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine bound to cfg. cfg is stored as given and is
// not validated, here or by Embed/Extract.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Capacity returns the maximum payload size, in bytes, that Embed can
// place in img's target component under e's Config.
func (e *Engine) Capacity(img *jpeg.Image) (int, error) {
	lumaIdx := img.ComponentByID(e.cfg.Component)
	if lumaIdx < 0 {
		return 0, NewError(ComponentNotFound, -1, "target component not present in image")
	}
	lumaBlocks := img.Planes[lumaIdx].NumBlocks()
	bits := int64(lumaBlocks) * int64(e.cfg.PairsPerBlock)
	capBytes := bits/8 - 4
	if capBytes < 0 {
		capBytes = 0
	}
	return int(capBytes), nil
}

// Embed writes payload into img's target component coefficient plane in
// place. It returns PayloadTooLarge if the frame cannot fit, and
// ClampingExhausted if a coefficient pair would need to clamp out of
// [-1024, 1023] to carry its bits; in either case whether img is left
// unmodified up to the point of failure is not guaranteed, so callers
// should operate on a copy.
func (e *Engine) Embed(ctx context.Context, img *jpeg.Image, payload []byte) error {
	sealed, err := NewTransform(e.cfg.Passphrase).Seal(payload)
	if err != nil {
		return err
	}

	capacity, err := e.Capacity(img)
	if err != nil {
		return err
	}
	if len(sealed) > capacity {
		return NewError(PayloadTooLarge, -1, "payload plus 4-byte length header exceeds capacity")
	}

	lumaIdx := img.ComponentByID(e.cfg.Component)
	plane := &img.Planes[lumaIdx]
	frame := newFrameReader(buildFrame(sealed))

	pairIdx := 0
	for b := 0; b < plane.NumBlocks(); b++ {
		if b%256 == 0 {
			if err := ctx.Err(); err != nil {
				return NewError(Cancelled, pairIdx, "cancelled")
			}
		}
		if frame.done() {
			break
		}
		block := plane.AtIndex(uint32(b))
		for p := 0; p < e.cfg.numPairs() && !frame.done(); p++ {
			pos1 := uint32(1 + 2*p)
			pos2 := pos1 + 1
			ac1 := int32(block[pos1])
			ac2 := int32(block[pos2])

			if e.cfg.SkipZeroPairs && ac1 == 0 && ac2 == 0 {
				pairIdx++
				continue
			}

			bits := frame.next2()
			newAC1, newAC2, err := e.embedPair(ac1, ac2, bits)
			if err != nil {
				return NewError(ClampingExhausted, pairIdx, "pair required clamping beyond the signed 11-bit range")
			}
			block[pos1] = int16(newAC1)
			block[pos2] = int16(newAC2)
			pairIdx++
		}
	}

	if !frame.done() {
		return NewError(PayloadTooLarge, pairIdx, "ran out of pairs before the frame was fully embedded")
	}
	return nil
}

// Extract recovers the payload previously embedded into img's target
// component under e's Config. It returns PayloadTruncated if the
// coefficient plane is exhausted before the declared length is satisfied,
// and InvalidLength if the length declared in the 4-byte header already
// exceeds what the plane could possibly hold.
func (e *Engine) Extract(ctx context.Context, img *jpeg.Image) ([]byte, error) {
	lumaIdx := img.ComponentByID(e.cfg.Component)
	if lumaIdx < 0 {
		return nil, NewError(ComponentNotFound, -1, "target component not present in image")
	}
	plane := &img.Planes[lumaIdx]

	capacity, err := e.Capacity(img)
	if err != nil {
		return nil, err
	}

	sink := &frameSink{}
	needBytes := 4 // grows to 4+length once the header is read
	pairIdx := 0

	for b := 0; b < plane.NumBlocks(); b++ {
		if b%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, NewError(Cancelled, pairIdx, "cancelled")
			}
		}
		if sink.bytesRead() >= needBytes {
			break
		}
		block := plane.AtIndex(uint32(b))
		for p := 0; p < e.cfg.numPairs(); p++ {
			if sink.bytesRead() >= needBytes {
				break
			}
			pos1 := uint32(1 + 2*p)
			pos2 := pos1 + 1
			ac1 := int32(block[pos1])
			ac2 := int32(block[pos2])

			if e.cfg.SkipZeroPairs && ac1 == 0 && ac2 == 0 {
				pairIdx++
				continue
			}

			bits := e.extractPair(ac1, ac2)
			sink.push2(bits)
			pairIdx++

			if needBytes == 4 && sink.bytesRead() >= 4 {
				raw := sink.Bytes()
				length := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
				if int(length) > capacity {
					return nil, NewError(InvalidLength, pairIdx, "declared payload length exceeds remaining plane capacity")
				}
				needBytes = 4 + int(length)
			}
		}
	}

	if sink.bytesRead() < needBytes {
		return nil, NewError(PayloadTruncated, pairIdx, "coefficient plane exhausted before declared length was satisfied")
	}
	return NewTransform(e.cfg.Passphrase).Open(sink.Bytes()[4:needBytes])
}

// embedPair computes the modified (AC1, AC2) carrying the two-bit value
// bits = (b1<<1)|b2. It returns an error if the target difference cannot
// be reached without clamping a coefficient outside [-1024, 1023].
func (e *Engine) embedPair(ac1, ac2 int32, bits uint32) (int32, int32, error) {
	delta := e.cfg.Delta
	d := ac1 - ac2
	k := roundHalfEven(d, delta)

	var offset int32
	switch bits {
	case 0b00:
		offset = e.cfg.epsilon1()
	case 0b01:
		offset = e.cfg.epsilon2()
	case 0b10:
		offset = -e.cfg.epsilon2()
	case 0b11:
		offset = -e.cfg.epsilon1()
	}
	target := k*delta + offset

	deltaD := target - d
	newAC1 := clampCoeff(ac1 + ceilDiv2(deltaD))
	newAC2 := clampCoeff(ac2 - floorDiv2(deltaD))

	if newAC1-newAC2 != target {
		return 0, 0, NewError(ClampingExhausted, -1, "clamping altered the target difference")
	}
	return newAC1, newAC2, nil
}

// extractPair recovers the two-bit value embedded in (AC1, AC2).
func (e *Engine) extractPair(ac1, ac2 int32) uint32 {
	delta := e.cfg.Delta
	d := ac1 - ac2
	k := roundHalfEven(d, delta)
	r := d - k*delta

	twoAbsR := 2 * abs32(r)
	if twoAbsR < delta {
		if r >= 0 {
			return 0b00
		}
		return 0b11
	}
	if r > 0 {
		return 0b01
	}
	return 0b10
}

func roundHalfEven(d, delta int32) int32 {
	q, r := floorDivMod(d, delta)
	twiceR := 2 * r
	switch {
	case twiceR < delta:
		return q
	case twiceR > delta:
		return q + 1
	default:
		if q%2 == 0 {
			return q
		}
		return q + 1
	}
}

func floorDivMod(a, b int32) (q, r int32) {
	q = a / b
	r = a % b
	if r != 0 && (r < 0) != (b < 0) {
		q--
		r += b
	}
	return q, r
}

func clampCoeff(v int32) int32 {
	if v > 1023 {
		return 1023
	}
	if v < -1024 {
		return -1024
	}
	return v
}

func ceilDiv2(x int32) int32  { return -(floorDiv2(-x)) }
func floorDiv2(x int32) int32 { return x >> 1 }

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
