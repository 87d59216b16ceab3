package tasks

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// SeedFromID derives a 32-bit deterministic seed from a sample identifier,
// so a sample's random content is reproducible across runs and processes.
func SeedFromID(id string) uint64 {
	sum := sha256.Sum256([]byte(id))
	return uint64(binary.BigEndian.Uint32(sum[28:]))
}

// rngFor returns a deterministic RNG for one sample.
func rngFor(sampleID string) *rand.Rand {
	seed := SeedFromID(sampleID)
	return rand.New(rand.NewPCG(seed, seed))
}
