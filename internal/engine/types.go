package engine

// Source is a deterministic randomness source.
type Source interface {
	Luck(key string) float64
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(key string) float64

func (f SourceFunc) Luck(key string) float64 { return f(key) }

// HMACSource draws from Luck under a fixed world seed.
type HMACSource struct {
	WorldSeed string
}

// NewSource returns an HMAC-backed source. An empty seed falls back to
// DefaultWorldSeed.
func NewSource(worldSeed string) HMACSource {
	if worldSeed == "" {
		worldSeed = DefaultWorldSeed
	}
	return HMACSource{WorldSeed: worldSeed}
}

func (s HMACSource) Luck(key string) float64 {
	return Luck(s.WorldSeed, key)
}
