package snapshot

import (
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// L2EventKind enumerates the confirmed Ethereum events spec §4.2.1
// materializes once a PendingL2Event crosses its confirm threshold.
type L2EventKind int

const (
	L2NewServiceNode L2EventKind = iota
	L2RemovalRequest
	L2Removal
)

// PendingL2Event tracks a not-yet-confirmed Ethereum event awaiting
// weighted service-node votes (spec §3 PendingL2Event).
type PendingL2Event struct {
	Kind           L2EventKind
	HeightAdded    primitives.Height
	Confirmations  uint64
	Denials        uint64
	InitialScore   uint64

	// Payload carries the kind-specific fields needed once the event
	// confirms (registration details for NewServiceNode, bls pubkey
	// for RemovalRequest/Removal, returned amount for Removal).
	Payload L2EventPayload
}

// L2EventPayload carries the decoded Ethereum log fields needed to
// materialize a confirmed event (spec §4.2.1). Only the fields
// relevant to Kind are populated.
type L2EventPayload struct {
	BLSPubKey       primitives.BLSPubKey
	PrimaryPubKey   primitives.PubKey
	OperatorAddress primitives.EthAddress
	Contributors    []PendingContribution
	ReturnedAmount  primitives.Amount
}

// PendingContribution mirrors nodeinfo.Contribution for an
// as-yet-unconfirmed registration.
type PendingContribution struct {
	Address primitives.Address
	Amount  primitives.Amount
}

// Expired reports whether e has aged out without reaching either
// threshold (spec §3: "expiry after MAX_AGE blocks").
func (e *PendingL2Event) Expired(cfg *params.Config, height primitives.Height) bool {
	return uint64(height-e.HeightAdded) > cfg.L2MaxAgeBlocks
}

// voteWeight returns the weighted score a single block's vote
// contributes at the given round: FULL_SCORE / (1 + round), per spec
// §3.
func voteWeight(cfg *params.Config, round uint64) uint64 {
	return cfg.L2FullScore / (1 + round)
}

// applyVote adds a weighted confirm/deny vote to e and reports
// whether a threshold was newly crossed (spec Testable Property 8:
// confirmations+denials increases monotonically by exactly
// FULL_SCORE/(1+round) per block).
func (e *PendingL2Event) applyVote(cfg *params.Config, confirm bool, round uint64) (confirmedNow, deniedNow bool) {
	w := voteWeight(cfg, round)
	if confirm {
		e.Confirmations += w
	} else {
		e.Denials += w
	}
	confirmedNow = e.Confirmations >= cfg.L2ConfirmThreshold
	deniedNow = e.Denials >= cfg.L2DenyThreshold
	return
}

// insertPending adds a newly-seen L2 event to the pending set,
// preserving insertion order.
func (s *StateSnapshot) insertPending(hash primitives.TxHash, e *PendingL2Event) {
	if _, exists := s.PendingL2[hash]; exists {
		s.PendingL2[hash] = e
		return
	}
	s.PendingL2[hash] = e
	s.pendingL2Order = append(s.pendingL2Order, hash)
}

// removePending drops hash from both the map and the order slice.
func (s *StateSnapshot) removePending(hash primitives.TxHash) {
	delete(s.PendingL2, hash)
	for i, h := range s.pendingL2Order {
		if h == hash {
			s.pendingL2Order = append(s.pendingL2Order[:i], s.pendingL2Order[i+1:]...)
			break
		}
	}
}

// PendingOrder exposes the insertion-ordered pending-tx hash list for
// persistence (chain/history.Save); callers outside this package
// should otherwise treat it as an implementation detail.
func (s *StateSnapshot) PendingOrder() []primitives.TxHash {
	return s.orderedPendingHashes()
}

// SetPendingOrder restores the insertion order recorded by a prior
// PendingOrder call (chain/history.Load). order must name exactly the
// keys already present in s.PendingL2.
func (s *StateSnapshot) SetPendingOrder(order []primitives.TxHash) {
	s.pendingL2Order = append([]primitives.TxHash(nil), order...)
}

// orderedPendingHashes returns pending L2 event tx hashes in insertion
// (oldest-first) order, so block.l2_votes[i] always corresponds to
// the i-th oldest pending tx (spec §5 L2 vote ordering guarantee).
// Snapshot maintains this order via pendingL2Order rather than
// relying on (non-deterministic) map iteration.
func (s *StateSnapshot) orderedPendingHashes() []primitives.TxHash {
	return append([]primitives.TxHash(nil), s.pendingL2Order...)
}
