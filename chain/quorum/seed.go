package quorum

import (
	"encoding/binary"

	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Type enumerates the quorum kinds spec §3/§4.4 define.
type Type int

const (
	TypePulse Type = iota
	TypeObligations
	TypeCheckpoint
	TypeBlink
)

// quorumRNG derives the 64-bit MT PRNG for (quorumType, hash), per
// spec §4.4 step 1 and the source's quorum_rng: for HF >= pulse, seed
// from a std::seed_seq built from the nine 32-bit words type ‖
// hash[0:32] (no further hashing — the hash's own bytes, reinterpreted
// little-endian, are the seed_seq's input); for older HF, seed from
// le_u64(hash[0:8]) + type via the plain single-integer constructor
// path. Every quorum draw goes through this one function — including
// the per-round Pulse producer/validator draws, which call it against
// a lagged entropy hash instead of the block's own hash — so the type
// word is never dropped and round is never substituted for it.
func quorumRNG(typ Type, hash [32]byte, hf primitives.HFVersion) *mt19937_64 {
	if hf.AtLeast(params.HF16Pulse) {
		words := make([]uint32, 1+len(hash)/4)
		words[0] = uint32(typ)
		for i := 1; i < len(words); i++ {
			words[i] = binary.LittleEndian.Uint32(hash[(i-1)*4 : (i-1)*4+4])
		}
		return newMT19937FromSeedSeq(words)
	}

	seed := binary.LittleEndian.Uint64(hash[0:8]) + uint64(typ)
	return newMT19937FromSeed(seed)
}

// DeterministicRNG exposes the package's MT19937-64 engine to callers
// outside chain/quorum that need the same byte-identical-across-nodes
// guarantee (spec Testable Property 1) for a non-quorum use, such as
// swarm re-partitioning (spec §4.2.2).
type DeterministicRNG struct{ engine *mt19937_64 }

// Intn returns a uniform value in [0, n).
func (r *DeterministicRNG) Intn(n uint64) uint64 { return r.engine.Intn(n) }

// NewSwarmRNG seeds a DeterministicRNG directly from block_hash, per
// spec §4.2.2 ("seed a PRNG from block_hash").
func NewSwarmRNG(blockHash primitives.BlockHash) *DeterministicRNG {
	return &DeterministicRNG{engine: newMT19937FromSeed(binary.LittleEndian.Uint64(blockHash[0:8]))}
}
