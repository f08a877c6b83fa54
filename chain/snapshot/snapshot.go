// Package snapshot implements StateSnapshot (spec.md §3, §4.2): an
// immutable, height-keyed value object holding the full service-node
// registry and derived quorums. Snapshots are produced from a
// predecessor by UpdateFromBlock; nothing in this package mutates a
// snapshot already handed to a caller (spec Testable Property 3).
package snapshot

import (
	"github.com/syssiproject/oxen-core-sub000/chain/cache"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/chain/quorum"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// KeyImageBlacklistEntry is a deregistered or removed stake's locked
// key image, barred from re-use until UnlockHeight (spec §3).
type KeyImageBlacklistEntry struct {
	KeyImage    primitives.KeyImage
	UnlockHeight primitives.Height
	Amount      primitives.Amount
}

// Quorums holds the four quorum kinds a snapshot may carry. Checkpoint
// and Blink are nil except on their rotation heights (spec §4.4).
type Quorums struct {
	Pulse         *quorum.PulseResult
	Obligations   *quorum.Quorum
	Checkpointing *quorum.Quorum
	Blink         *quorum.Quorum
}

// StateSnapshot is the immutable value object keyed by height (spec
// §3). Nodes are stored behind a pointer so copy-on-write mutation
// (chain/nodeinfo.Clone) never touches a snapshot that already exists;
// only StateSnapshot.nodes itself — a fresh map on every update — is
// ever "mutated", and only during construction, before the snapshot
// is handed to any caller.
type StateSnapshot struct {
	Height    primitives.Height
	BlockHash primitives.BlockHash

	Nodes map[primitives.PubKey]*nodeinfo.NodeInfo

	Quorums Quorums

	KeyImageBlacklist []KeyImageBlacklistEntry
	PendingL2         map[primitives.TxHash]*PendingL2Event
	// pendingL2Order preserves insertion order so block.l2_votes[i]
	// always maps to the i-th oldest pending tx (spec §5).
	pendingL2Order []primitives.TxHash

	// RecentlyExpired records the BLS pubkey of every node expired
	// this update, TTL'd to height+ETH_REMOVAL_BUFFER (spec §4.2 step
	// 5), so a stale L2 removal event arriving late can still be
	// recognized as already handled.
	RecentlyExpired map[primitives.BLSPubKey]primitives.Height

	X25519Map *cache.X25519Map

	BlockLeader primitives.PubKey

	nextBlockLeader     *primitives.PubKey
	nextBlockLeaderSet bool
}

// Empty constructs the genesis snapshot: height 0, no nodes, no
// quorums.
func Empty() *StateSnapshot {
	return &StateSnapshot{
		Nodes:           map[primitives.PubKey]*nodeinfo.NodeInfo{},
		PendingL2:       map[primitives.TxHash]*PendingL2Event{},
		RecentlyExpired: map[primitives.BLSPubKey]primitives.Height{},
		X25519Map:       cache.NewX25519Map(),
	}
}

// shallowCloneForUpdate returns a new StateSnapshot sharing no mutable
// backing storage with s, ready to be mutated in place during
// UpdateFromBlock construction. s itself is never touched.
func (s *StateSnapshot) shallowCloneForUpdate() *StateSnapshot {
	next := &StateSnapshot{
		Height:    s.Height,
		BlockHash: s.BlockHash,
		Nodes:     make(map[primitives.PubKey]*nodeinfo.NodeInfo, len(s.Nodes)),
		PendingL2: make(map[primitives.TxHash]*PendingL2Event, len(s.PendingL2)),
		RecentlyExpired: make(map[primitives.BLSPubKey]primitives.Height, len(s.RecentlyExpired)),
		X25519Map: s.X25519Map.Clone(),
		BlockLeader: s.BlockLeader,
	}
	for k, v := range s.Nodes {
		next.Nodes[k] = v // shared pointer: copy-on-write, only replaced if mutated
	}
	for k, v := range s.PendingL2 {
		cp := *v
		next.PendingL2[k] = &cp
	}
	for k, v := range s.RecentlyExpired {
		next.RecentlyExpired[k] = v
	}
	next.pendingL2Order = append([]primitives.TxHash(nil), s.pendingL2Order...)
	next.KeyImageBlacklist = append([]KeyImageBlacklistEntry(nil), s.KeyImageBlacklist...)
	return next
}

// putNode installs a copy-on-write replacement for pub in s.Nodes.
// Never call this on a snapshot that has already been returned from
// UpdateFromBlock.
func (s *StateSnapshot) putNode(pub primitives.PubKey, n *nodeinfo.NodeInfo) {
	s.Nodes[pub] = n
}

// PutNode installs a copy-on-write replacement for pub, for the
// out-of-pipeline mutations chain/snse applies directly against the
// live current snapshot (handle_uptime_proof, set_peer_reachable):
// neither runs through UpdateFromBlock, since neither is driven by a
// block (spec §4.5).
func (s *StateSnapshot) PutNode(pub primitives.PubKey, n *nodeinfo.NodeInfo) {
	s.putNode(pub, n)
}

// ActiveNodes returns active nodes sorted by pubkey (spec §4.2).
func (s *StateSnapshot) ActiveNodes() []*nodeinfo.NodeInfo {
	return s.filterSorted(func(n *nodeinfo.NodeInfo) bool { return n.IsActive() })
}

// DecommissionedNodes returns fully-funded, decommissioned nodes
// sorted by pubkey.
func (s *StateSnapshot) DecommissionedNodes() []*nodeinfo.NodeInfo {
	return s.filterSorted(func(n *nodeinfo.NodeInfo) bool {
		return n.IsDecommissioned() && n.IsFullyFunded()
	})
}

// PayableNodes returns nodes eligible for rewards at height h.
func (s *StateSnapshot) PayableNodes(h primitives.Height, net params.Network) []*nodeinfo.NodeInfo {
	var out []*nodeinfo.NodeInfo
	for _, n := range s.sortedPubkeys() {
		node := s.Nodes[n]
		if node.IsPayable(h, net) {
			out = append(out, node)
		}
	}
	return out
}

func (s *StateSnapshot) filterSorted(pred func(*nodeinfo.NodeInfo) bool) []*nodeinfo.NodeInfo {
	var out []*nodeinfo.NodeInfo
	for _, pub := range s.sortedPubkeys() {
		n := s.Nodes[pub]
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s *StateSnapshot) sortedPubkeys() []primitives.PubKey {
	keys := make([]primitives.PubKey, 0, len(s.Nodes))
	for k := range s.Nodes {
		keys = append(keys, k)
	}
	sortPubKeys(keys)
	return keys
}

func sortPubKeys(keys []primitives.PubKey) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && less(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func less(a, b primitives.PubKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// GetNextBlockLeader returns the tuple-min over active nodes on
// (last_reward_block_height, last_reward_transaction_index, pubkey),
// cached after first computation (spec §4.2).
func (s *StateSnapshot) GetNextBlockLeader() (primitives.PubKey, bool) {
	if s.nextBlockLeaderSet {
		if s.nextBlockLeader == nil {
			return primitives.PubKey{}, false
		}
		return *s.nextBlockLeader, true
	}

	var best *nodeinfo.NodeInfo
	var winner primitives.PubKey
	found := false
	for pk, n := range s.Nodes {
		if !n.IsActive() {
			continue
		}
		if !found || less2(n, pk, best, winner) {
			best, winner, found = n, pk, true
		}
	}
	if !found {
		s.nextBlockLeaderSet = true
		return primitives.PubKey{}, false
	}
	s.nextBlockLeader = &winner
	s.nextBlockLeaderSet = true
	return winner, true
}

func less2(a *nodeinfo.NodeInfo, aKey primitives.PubKey, b *nodeinfo.NodeInfo, bKey primitives.PubKey) bool {
	if a.LastRewardBlockHeight != b.LastRewardBlockHeight {
		return a.LastRewardBlockHeight < b.LastRewardBlockHeight
	}
	if a.LastRewardTransactionIndex != b.LastRewardTransactionIndex {
		return a.LastRewardTransactionIndex < b.LastRewardTransactionIndex
	}
	return less(aKey, bKey)
}

// clearNextBlockLeaderCache resets the cached leader (spec §4.2 step 12).
func (s *StateSnapshot) clearNextBlockLeaderCache() {
	s.nextBlockLeaderSet = false
	s.nextBlockLeader = nil
}

