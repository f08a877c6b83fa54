package cache

import (
	"sync"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// QuorumRecord is one entry of the historical-quorum ring: enough to
// validate a lingering message from a just-finished Pulse round
// without logging it as an error (spec §4.6 "Historical-quorum
// validation").
type QuorumRecord struct {
	Height     primitives.Height
	Round      primitives.Round
	BlockHash  primitives.BlockHash
	Validators []primitives.PubKey
}

// OldQuorumRing is a bounded ring buffer of the most recent Pulse
// quorums, sized per config.HistoricalQuorumRingSize (3 by default,
// per spec §4.6).
type OldQuorumRing struct {
	mu      sync.Mutex
	entries []QuorumRecord
	size    int
}

// NewOldQuorumRing constructs a ring holding at most size entries.
func NewOldQuorumRing(size int) *OldQuorumRing {
	if size <= 0 {
		size = 3
	}
	return &OldQuorumRing{size: size}
}

// Push records rec, evicting the oldest entry if the ring is full.
func (r *OldQuorumRing) Push(rec QuorumRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, rec)
	if len(r.entries) > r.size {
		r.entries = r.entries[len(r.entries)-r.size:]
	}
}

// Find returns the ring entry matching height and round, if any.
func (r *OldQuorumRing) Find(height primitives.Height, round primitives.Round) (QuorumRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.Height == height && e.Round == round {
			return e, true
		}
	}
	return QuorumRecord{}, false
}

// Contains reports whether pub appears as a validator in the
// remembered quorum for (height, round) — used to silently ignore
// late messages from validators of a just-finished round.
func (r *OldQuorumRing) Contains(height primitives.Height, round primitives.Round, pub primitives.PubKey) bool {
	rec, ok := r.Find(height, round)
	if !ok {
		return false
	}
	for _, v := range rec.Validators {
		if v == pub {
			return true
		}
	}
	return false
}
