package jpeg

// QuantTable holds the 64 quantization divisors for one DQT table id, in
// zigzag order, as received on the wire.
type QuantTable [64]uint16
