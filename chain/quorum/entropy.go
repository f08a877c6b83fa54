package quorum

import (
	"github.com/syssiproject/oxen-core-sub000/chain/crypto"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// FoldEntropyForRound mixes a Pulse round number into a lagged block
// hash before it is used to seed a quorum draw, matching
// make_pulse_entropy_from_blocks: the round byte is prepended to the
// hash and the pair re-hashed, so the same window of lagged blocks
// yields a distinct entropy stream per round (spec §4.4 step 2).
// cn_fast_hash is Keccak in the source; this module already stands on
// blake2b as its one general-purpose hash throughout chain/crypto, so
// the fold reuses that rather than introducing a second hash
// primitive for a single call site.
func FoldEntropyForRound(round primitives.Round, hash [32]byte) ([32]byte, error) {
	return crypto.Blake2b256(nil, []byte{byte(round)}, hash[:])
}
