package jpeg

// CoefficientBlock holds the 64 signed DCT coefficients of one 8x8 data
// unit, indexed directly by zigzag position: index 0 is DC, indices 1..63
// are AC in zigzag scan order. Coefficients are never de-zigzagged into
// raster order — both the entropy coder and the DCTDM engine address
// coefficients by zigzag position directly, so no transposition step
// exists anywhere in this package.
type CoefficientBlock [64]int16

// DC returns the DC coefficient (zigzag index 0).
func (b *CoefficientBlock) DC() int16 { return b[0] }

// SetDC sets the DC coefficient.
func (b *CoefficientBlock) SetDC(v int16) { b[0] = v }

// CoefficientPlane is a 2D grid of coefficient blocks for one component.
// Grid dimensions are the MCU-padded block counts (see
// ComponentDescriptor.BlockWidth/BlockHeight) so that every block the
// entropy coder actually wrote — including any partial-MCU padding at the
// image's right/bottom edge — has a home; re-emitting fewer blocks than
// were decoded would silently drop coded data at the image edge.
type CoefficientPlane struct {
	BlockWidth  uint32
	BlockHeight uint32
	Blocks      []CoefficientBlock
}

func newCoefficientPlane(w, h uint32) CoefficientPlane {
	return CoefficientPlane{
		BlockWidth:  w,
		BlockHeight: h,
		Blocks:      make([]CoefficientBlock, w*h),
	}
}

// At returns a pointer to the block at grid position (bx, by).
func (p *CoefficientPlane) At(bx, by uint32) *CoefficientBlock {
	return &p.Blocks[by*p.BlockWidth+bx]
}

// AtIndex returns a pointer to the block at flat dpos index.
func (p *CoefficientPlane) AtIndex(dpos uint32) *CoefficientBlock {
	return &p.Blocks[dpos]
}

// NumBlocks returns the total number of blocks in the plane.
func (p *CoefficientPlane) NumBlocks() int {
	return len(p.Blocks)
}
