// Package dctdm implements DCT Difference Modulation: embedding and
// extracting a short byte payload in the luminance AC coefficient
// differences of a baseline JPEG's coefficient plane.
package dctdm

// Config holds the DCTDM parameters recognized by the engine. Embed and
// Extract must be invoked with an identical Config; it is not stored in
// the stego image.
type Config struct {
	// Delta is the embedding step size delta (default 10).
	Delta int32
	// PairsPerBlock is K: the number of AC zigzag positions (1..K,
	// excluding the DC at index 0) used per luma block; pairs = K/2
	// (default 8).
	PairsPerBlock int
	// Component is the target component id to embed into (default 1,
	// conventionally luminance).
	Component uint8
	// SkipZeroPairs, if true, skips pairs where both AC coefficients are
	// zero (default false: the reference policy embeds in every pair).
	SkipZeroPairs bool
	// Passphrase, if non-nil, enables the PBKDF2/AES-256-GCM Transform.
	// Nil means the identity transform.
	Passphrase *string
}

// DefaultConfig returns the package's default configuration.
func DefaultConfig() Config {
	return Config{
		Delta:         10,
		PairsPerBlock: 8,
		Component:     1,
		SkipZeroPairs: false,
	}
}

func (c Config) epsilon1() int32 { return c.Delta / 4 }
func (c Config) epsilon2() int32 { return (3 * c.Delta) / 4 }

func (c Config) numPairs() int { return c.PairsPerBlock / 2 }
