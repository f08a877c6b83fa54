// Package history implements StateHistory (spec.md §4.3): the
// reorg-safe backing store for StateSnapshot. A short-term ring keeps
// full snapshots for the last MAX_SHORT_TERM_HISTORY blocks; an
// archive retains quorums-only snapshots every LONG_TERM_INTERVAL
// blocks; alt_state holds snapshots for not-yet-reorganized
// alternative chain tips; old_quorum_states is a small bounded ring
// used for late-message validation.
//
// Grounded on beacon-chain/db's versioned-blob persistence pattern
// (save/load with an explicit schema version) and
// original_source/src/cryptonote_core/service_node_list.cpp's
// m_transient (short-term) / m_archived (long-term) split.
package history

import (
	"sync"

	"github.com/syssiproject/oxen-core-sub000/chain/cache"
	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// ArchivedSnapshot is the long-term retention shape: quorums and
// identity only, nodes/blacklist dropped (spec §4.3 lifecycle).
type ArchivedSnapshot struct {
	Height    primitives.Height
	BlockHash primitives.BlockHash
	Quorums   snapshot.Quorums
}

// StateHistory is the append-only, reorg-safe backing store for
// StateSnapshot (spec §4.3). All methods are safe for concurrent use;
// SNSE callers already hold sn_mutex for the duration of block_add/
// detach, but reads may race uptime-proof handling in production.
type StateHistory struct {
	cfg *params.Config

	mu        sync.RWMutex
	shortTerm map[primitives.Height]*snapshot.StateSnapshot
	archive   map[primitives.Height]*ArchivedSnapshot
	altStates map[primitives.BlockHash]*snapshot.StateSnapshot

	oldQuorums *cache.OldQuorumRing
}

// New constructs an empty StateHistory for cfg.
func New(cfg *params.Config) *StateHistory {
	return &StateHistory{
		cfg:        cfg,
		shortTerm:  map[primitives.Height]*snapshot.StateSnapshot{},
		archive:    map[primitives.Height]*ArchivedSnapshot{},
		altStates:  map[primitives.BlockHash]*snapshot.StateSnapshot{},
		oldQuorums: cache.NewOldQuorumRing(cfg.HistoricalQuorumRingSize),
	}
}

// shortTermWindow is the number of trailing blocks kept in full.
func (h *StateHistory) shortTermWindow() uint64 {
	return h.cfg.ShortTermHistoryMultiplier * h.cfg.StateChangeTxLifetimeBlocks
}

// Insert records s in the short-term window, culls anything older than
// the window, and promotes an archive entry every
// StoreLongTermStateInterval blocks (spec §4.3 lifecycle).
func (h *StateHistory) Insert(s *snapshot.StateSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.shortTerm[s.Height] = s
	h.cull(s.Height)

	if uint64(s.Height)%h.cfg.StoreLongTermStateInterval == 0 {
		h.archive[s.Height] = &ArchivedSnapshot{
			Height:    s.Height,
			BlockHash: s.BlockHash,
			Quorums:   s.Quorums,
		}
	}

	if s.Quorums.Pulse != nil {
		h.oldQuorums.Push(cache.QuorumRecord{
			Height:     s.Height,
			BlockHash:  s.BlockHash,
			Validators: s.Quorums.Pulse.Validators,
		})
	}
}

func (h *StateHistory) cull(newest primitives.Height) {
	window := h.shortTermWindow()
	if uint64(newest) <= window {
		return
	}
	cutoff := newest - primitives.Height(window)
	for height := range h.shortTerm {
		if height < cutoff {
			delete(h.shortTerm, height)
		}
	}
}

// InsertAlt records s as the state for an alternative (not yet
// main-chain) block hash.
func (h *StateHistory) InsertAlt(hash primitives.BlockHash, s *snapshot.StateSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.altStates[hash] = s
}

// DropAlt discards an alt-chain state, used once it either becomes
// the main chain (and is re-inserted via Insert) or loses the race.
func (h *StateHistory) DropAlt(hash primitives.BlockHash) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.altStates, hash)
}

// Lookup returns the full short-term snapshot at height, if still
// retained.
func (h *StateHistory) Lookup(height primitives.Height) (*snapshot.StateSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.shortTerm[height]
	return s, ok
}

// LookupAlt returns the snapshot for an alt-chain block hash.
func (h *StateHistory) LookupAlt(hash primitives.BlockHash) (*snapshot.StateSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.altStates[hash]
	return s, ok
}

// LookupQuorum resolves the quorums in effect at height: short-term
// first, falling back to the archive (spec §4.2 step 9's "resolve
// target via obligations quorum of the referenced height (may be in
// history, archive, or alt)").
func (h *StateHistory) LookupQuorum(height primitives.Height) (snapshot.Quorums, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.shortTerm[height]; ok {
		return s.Quorums, true
	}
	if a, ok := h.archive[height]; ok {
		return a.Quorums, true
	}
	return snapshot.Quorums{}, false
}

// Detach truncates history to the largest retained height <=
// targetHeight, per spec §4.3: prefer an exact short-term match (the
// full snapshot is returned directly); otherwise fall back to the
// nearest archive interval <= targetHeight and report its height as
// rescanFrom, since archive entries carry quorums only and node state
// must be rebuilt by rescanning forward from there. ok is false only
// when neither source covers targetHeight at all, in which case the
// caller must reinitialize from a full rescan of the chain.
func (h *StateHistory) Detach(targetHeight primitives.Height) (snap *snapshot.StateSnapshot, rescanFrom primitives.Height, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for height := range h.shortTerm {
		if height > targetHeight {
			delete(h.shortTerm, height)
		}
	}
	for height := range h.archive {
		if height > targetHeight {
			delete(h.archive, height)
		}
	}

	if s, exists := h.shortTerm[targetHeight]; exists {
		return s, targetHeight, true
	}

	var best primitives.Height
	found := false
	for height := range h.archive {
		if height <= targetHeight && (!found || height > best) {
			best, found = height, true
		}
	}
	if !found {
		return nil, 0, false
	}
	return nil, best, true
}
