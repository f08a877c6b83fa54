package history

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// wireVersion is bumped whenever shortTermBlob/longTermBlob gains a
// field. Only version 1 exists so far: Load rejects blobs with a newer
// version and applies no per-version field defaults.
const wireVersion = 1

// shortTermBlob is the full-fidelity wire shape for one short-term
// snapshot: everything UpdateFromBlock can reconstruct, flattened into
// exported fields so gob can walk it directly.
type shortTermBlob struct {
	Height    primitives.Height
	BlockHash primitives.BlockHash
	Nodes     map[primitives.PubKey]nodeinfo.NodeInfo
	Quorums   snapshot.Quorums

	KeyImageBlacklist []snapshot.KeyImageBlacklistEntry
	PendingL2         map[primitives.TxHash]snapshot.PendingL2Event
	PendingL2Order    []primitives.TxHash
	RecentlyExpired   map[primitives.BLSPubKey]primitives.Height
	BlockLeader       primitives.PubKey
}

type longTermBlob struct {
	Height    primitives.Height
	BlockHash primitives.BlockHash
	Quorums   snapshot.Quorums
}

// onDiskSchema is the versioned container persisted to the chain's
// auxiliary data slot (spec §4.3 "save(chain)/load(chain, ...)").
type onDiskSchema struct {
	Version    int
	ShortTerm  []shortTermBlob
	LongTerm   []longTermBlob
}

// Save serializes the current short-term and archive contents.
func (h *StateHistory) Save() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := onDiskSchema{Version: wireVersion}
	for _, s := range h.shortTerm {
		out.ShortTerm = append(out.ShortTerm, toShortTermBlob(s))
	}
	for _, a := range h.archive {
		out.LongTerm = append(out.LongTerm, longTermBlob{Height: a.Height, BlockHash: a.BlockHash, Quorums: a.Quorums})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(out); err != nil {
		return nil, errors.Wrap(err, "encode state history")
	}
	return buf.Bytes(), nil
}

// Load reconstructs a StateHistory from a blob produced by Save,
// upgrading older schema versions by filling in documented defaults
// for fields absent from the encoded version (spec §4.3).
func Load(cfg *params.Config, data []byte) (*StateHistory, error) {
	var in onDiskSchema
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&in); err != nil {
		return nil, errors.Wrap(err, "decode state history")
	}
	if in.Version > wireVersion {
		return nil, errors.Errorf("state history blob version %d newer than supported %d", in.Version, wireVersion)
	}
	// No prior schema versions exist yet to upgrade from; when
	// wireVersion increments, add a per-version field-default branch
	// here rather than rejecting the blob.

	h := New(cfg)
	for _, b := range in.ShortTerm {
		h.shortTerm[b.Height] = fromShortTermBlob(b)
	}
	for _, b := range in.LongTerm {
		h.archive[b.Height] = &ArchivedSnapshot{Height: b.Height, BlockHash: b.BlockHash, Quorums: b.Quorums}
	}
	return h, nil
}

func toShortTermBlob(s *snapshot.StateSnapshot) shortTermBlob {
	nodes := make(map[primitives.PubKey]nodeinfo.NodeInfo, len(s.Nodes))
	for k, v := range s.Nodes {
		nodes[k] = *v
	}
	pending := make(map[primitives.TxHash]snapshot.PendingL2Event, len(s.PendingL2))
	for k, v := range s.PendingL2 {
		pending[k] = *v
	}
	return shortTermBlob{
		Height:            s.Height,
		BlockHash:         s.BlockHash,
		Nodes:             nodes,
		Quorums:           s.Quorums,
		KeyImageBlacklist: s.KeyImageBlacklist,
		PendingL2:         pending,
		PendingL2Order:    s.PendingOrder(),
		RecentlyExpired:   s.RecentlyExpired,
		BlockLeader:       s.BlockLeader,
	}
}

func fromShortTermBlob(b shortTermBlob) *snapshot.StateSnapshot {
	s := snapshot.Empty()
	s.Height = b.Height
	s.BlockHash = b.BlockHash
	s.Quorums = b.Quorums
	s.KeyImageBlacklist = b.KeyImageBlacklist
	s.BlockLeader = b.BlockLeader
	for k, v := range b.Nodes {
		n := v
		s.Nodes[k] = &n
	}
	for k, v := range b.PendingL2 {
		e := v
		s.PendingL2[k] = &e
	}
	s.SetPendingOrder(b.PendingL2Order)
	if b.RecentlyExpired != nil {
		s.RecentlyExpired = b.RecentlyExpired
	}
	return s
}
