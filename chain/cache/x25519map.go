// Package cache holds the small bounded caches used outside the
// immutable StateSnapshot: the x25519->primary lookup (older HF era,
// pruned on a wall-clock timer independent of block height) and the
// bounded historical-quorum ring used by chain/pulse to validate
// lingering messages from just-finished rounds.
//
// Grounded on beacon-chain/cache's keyFn+LRU pattern (hashicorp/golang-lru)
// for the ring, and the source's X25519_MAP_PRUNING_INTERVAL (5min)
// wall-clock pruning for the map (patrickmn/go-cache).
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// X25519PruningInterval mirrors the source's X25519_MAP_PRUNING_INTERVAL.
const X25519PruningInterval = 5 * time.Minute

// X25519Map maps a node's derived X25519 public key back to its
// primary Ed25519 pubkey (spec §3 x25519->primary map; §4.2 step 8
// "Initialise x25519_map if empty and this is the first post-unified
// -pubkey snapshot"). Entries are wall-clock TTL'd independent of
// block height, matching the source's timer-driven pruning.
type X25519Map struct {
	c *gocache.Cache
}

// NewX25519Map constructs an empty map with the standard pruning
// interval and no default expiration (entries live until explicitly
// replaced or the node re-keys, which this module models as an
// explicit Delete).
func NewX25519Map() *X25519Map {
	return &X25519Map{c: gocache.New(gocache.NoExpiration, X25519PruningInterval)}
}

func (m *X25519Map) Set(x primitives.X25519PubKey, primary primitives.PubKey) {
	m.c.Set(string(x[:]), primary, gocache.NoExpiration)
}

func (m *X25519Map) Get(x primitives.X25519PubKey) (primitives.PubKey, bool) {
	v, ok := m.c.Get(string(x[:]))
	if !ok {
		return primitives.PubKey{}, false
	}
	return v.(primitives.PubKey), true
}

func (m *X25519Map) Delete(x primitives.X25519PubKey) {
	m.c.Delete(string(x[:]))
}

// Len reports the number of entries currently cached.
func (m *X25519Map) Len() int { return m.c.ItemCount() }

// Clone returns an independent copy, used when a StateSnapshot needs
// to fork the map for an alt-chain state without affecting the
// canonical map.
func (m *X25519Map) Clone() *X25519Map {
	out := NewX25519Map()
	for k, item := range m.c.Items() {
		out.c.Set(k, item.Object, gocache.NoExpiration)
	}
	return out
}

// Equal reports whether two maps hold the same entries. Defined so
// go-cmp compares by contents instead of recursing into the
// underlying cache's unexported timer and mutex state.
func (m *X25519Map) Equal(other *X25519Map) bool {
	if m == nil || other == nil {
		return m == other
	}
	a, b := m.c.Items(), other.c.Items()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || v.Object != ov.Object {
			return false
		}
	}
	return true
}
