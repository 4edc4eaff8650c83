package jpeg

// scanUnit identifies one 8x8 data unit to be coded within a scan: which
// component and which block position within that component's plane.
type scanUnit struct {
	component int
	dpos      uint32
}

// scanUnits enumerates, in decode/encode order, every data unit a scan
// must code. For an interleaved scan (more than one
// component), units are grouped by MCU in raster order, each MCU
// contributing H*V units per component in row-major (v*H+h) order — the
// standard JPEG MCU layout, valid for any sampling factors. For a
// non-interleaved (single-component) scan, units are the component's own
// block grid in raster order, restricted to its exact (non-MCU-padded)
// extent.
func (img *Image) scanUnits(components []int) []scanUnit {
	if len(components) == 1 {
		c := &img.Components[components[0]]
		nw := (img.Width*c.H + img.MaxH*8 - 1) / (img.MaxH * 8)
		nh := (img.Height*c.V + img.MaxV*8 - 1) / (img.MaxV * 8)
		units := make([]scanUnit, 0, nw*nh)
		for by := uint32(0); by < nh; by++ {
			for bx := uint32(0); bx < nw; bx++ {
				units = append(units, scanUnit{components[0], by*c.BlockWidth + bx})
			}
		}
		return units
	}

	units := make([]scanUnit, 0, img.McuW*img.McuH*4)
	for mcuRow := uint32(0); mcuRow < img.McuH; mcuRow++ {
		for mcuCol := uint32(0); mcuCol < img.McuW; mcuCol++ {
			for _, ci := range components {
				c := &img.Components[ci]
				for s := uint32(0); s < c.BlocksPerMCU; s++ {
					by := mcuRow*c.V + s/c.H
					bx := mcuCol*c.H + s%c.H
					units = append(units, scanUnit{ci, by*c.BlockWidth + bx})
				}
			}
		}
	}
	return units
}

// restartUnitCount returns the number of scanUnits that make up one
// restart interval's worth of MCUs/blocks for a scan over the given
// components.
func (img *Image) restartUnitCount(components []int) uint32 {
	if img.RestartInterval == 0 {
		return 0
	}
	if len(components) == 1 {
		return uint32(img.RestartInterval)
	}
	perMCU := uint32(0)
	for _, ci := range components {
		perMCU += img.Components[ci].BlocksPerMCU
	}
	return uint32(img.RestartInterval) * perMCU
}
