package jpeg

// ComponentDescriptor is a JPEG frame component, as parsed from SOF0.
type ComponentDescriptor struct {
	ID          uint8
	H           uint32 // horizontal sampling factor
	V           uint32 // vertical sampling factor
	QTableIndex uint8

	// Set once a scan referencing this component has been parsed.
	DCTableIndex uint8
	ACTableIndex uint8

	// BlocksPerMCU is H*V: the number of 8x8 data units of this component
	// per MCU.
	BlocksPerMCU uint32

	// BlockWidth/BlockHeight are the MCU-padded block-grid dimensions used
	// for entropy coding, including any right/bottom padding blocks
	// belonging to partial MCUs at the image edge.
	BlockWidth  uint32
	BlockHeight uint32
}

func newComponentDescriptor() ComponentDescriptor {
	return ComponentDescriptor{QTableIndex: 0xff, DCTableIndex: 0xff, ACTableIndex: 0xff}
}
