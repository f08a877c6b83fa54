package snse

import (
	"fmt"

	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// SigVerifier verifies a validator's signature over the final block
// hash; production wires this to crypto.Ed25519Verify.
type SigVerifier func(pub primitives.PubKey, msg, sig []byte) bool

// RequiresPulse reports whether the network has enough active service
// nodes to form a Pulse quorum at all; below this, blocks fall back
// to the miner path (spec §4.5.2 "fall back to miner block").
func RequiresPulse(cfg *params.Config, activeNodeCount int) bool {
	return activeNodeCount >= cfg.PulseMinServiceNodes
}

// ValidatePulseBlock enforces spec §4.5.2 against validators, the
// Pulse quorum computed from the predecessor snapshot for block's
// round.
func ValidatePulseBlock(cfg *params.Config, height primitives.Height, block *iface.Block, validators []primitives.PubKey, verify SigVerifier) error {
	if block.Pulse == nil {
		return errors.NewInternalLogicError("ValidatePulseBlock called on a non-pulse block")
	}
	ph := block.Pulse

	if int(ph.ValidatorBitset.Count()) < cfg.PulseBlockRequiredSigs {
		return errors.NewConsensusMismatch(height, "pulse validator_bitset has too few bits set")
	}
	if len(ph.Signatures) != cfg.PulseBlockRequiredSigs {
		return errors.NewConsensusMismatch(height, fmt.Sprintf("pulse block carries %d signatures, expected %d", len(ph.Signatures), cfg.PulseBlockRequiredSigs))
	}

	seen := make(map[int]bool, len(ph.Signatures))
	for _, sig := range ph.Signatures {
		if sig.VoterIndex < 0 || sig.VoterIndex >= len(validators) {
			return errors.NewConsensusMismatch(height, "pulse signature voter_index out of quorum range")
		}
		if seen[sig.VoterIndex] {
			return errors.NewConsensusMismatch(height, "pulse signature voter_index repeated")
		}
		seen[sig.VoterIndex] = true
		if !verify(validators[sig.VoterIndex], block.Hash[:], sig.Signature) {
			return errors.NewConsensusMismatch(height, "pulse signature does not verify against block hash")
		}
	}

	roundTimeoutSecs := int64(cfg.PulseRoundTimeout.Seconds())
	roundStart := block.RoundZeroTimestamp + int64(ph.Round)*roundTimeoutSecs
	roundEnd := roundStart + roundTimeoutSecs
	if block.Timestamp < roundStart || block.Timestamp > roundEnd {
		return errors.NewConsensusMismatch(height, "pulse block timestamp outside round window")
	}

	if block.Nonce != 0 {
		return errors.NewConsensusMismatch(height, "pulse block must carry a zero nonce")
	}

	return nil
}

// ValidateMinerFallbackBlock enforces the "insufficient SNs" fallback
// path: no Pulse header, and a genuine proof-of-work nonce.
func ValidateMinerFallbackBlock(height primitives.Height, block *iface.Block) error {
	if block.Pulse != nil {
		return errors.NewConsensusMismatch(height, "miner fallback block must not carry a pulse header")
	}
	if block.Nonce == 0 {
		return errors.NewConsensusMismatch(height, "miner fallback block must carry a nonzero nonce")
	}
	return nil
}
