package cache

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// ProofCache rate-limits accepted uptime proofs per pubkey: spec §4.5
// requires handle_uptime_proof to reject proofs more frequent than
// UPTIME_PROOF_FREQUENCY/2. Grounded on beacon-chain/cache's keyFn+LRU
// pattern (hashicorp/golang-lru), sized generously since service-node
// counts are bounded (thousands, not millions).
type ProofCache struct {
	lru *lru.Cache
}

// NewProofCache constructs a cache holding up to capacity entries.
func NewProofCache(capacity int) (*ProofCache, error) {
	c, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &ProofCache{lru: c}, nil
}

// LastAccepted returns the unix timestamp of the last accepted proof
// for pub, if any.
func (p *ProofCache) LastAccepted(pub primitives.PubKey) (int64, bool) {
	v, ok := p.lru.Get(pub)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// RecordAccepted stores ts as the last-accepted timestamp for pub.
func (p *ProofCache) RecordAccepted(pub primitives.PubKey, ts int64) {
	p.lru.Add(pub, ts)
}
