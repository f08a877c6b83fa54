// Package primitives defines the narrow scalar types shared by the
// service-node state engine and the Pulse state machine. Every domain
// quantity that crosses a function boundary gets its own type instead
// of a bare uint64/int64, so a height can never be passed where a
// swarm ID was expected.
package primitives

import "fmt"

// Height is a block height. Heights are always non-negative and
// monotonically increase with StateSnapshot.update_from_block.
type Height uint64

// Add returns h+n.
func (h Height) Add(n uint64) Height { return h + Height(n) }

// Sub returns h-n, or 0 if n > h.
func (h Height) Sub(n uint64) Height {
	if uint64(h) < n {
		return 0
	}
	return h - Height(n)
}

func (h Height) String() string { return fmt.Sprintf("%d", uint64(h)) }

// TxIndex is a transaction's position within a block, used as the
// tie-break in the reward-rotation sort key. UINT32_MAX marks "no
// transaction" (the coinbase/no-tx case).
type TxIndex uint32

// NoTxIndex is the sentinel used for last_reward_transaction_index
// when a node's reward was not won via a specific transaction.
const NoTxIndex TxIndex = 1<<32 - 1

// Round is a Pulse round number within a height. Round 0 means the
// original block leader is producing; round > 0 means round-robin
// fallback to a randomly sampled producer.
type Round uint8

// SwarmID identifies a data-redundancy swarm. UnassignedSwarmID is the
// sentinel for a node not yet assigned to a swarm.
type SwarmID uint64

// UnassignedSwarmID is the sentinel swarm ID for un-partitioned nodes.
const UnassignedSwarmID SwarmID = ^SwarmID(0)

// Portions expresses a fraction of block rewards owed to the node
// operator. The scale differs pre/post HF19 (see config/params).
type Portions uint64

// Amount is an atomic-currency amount (the smallest on-chain unit).
type Amount uint64

// Add returns a+b, saturating at MaxAmount on overflow rather than
// wrapping, since stake sums are consensus-critical (spec invariant 1).
func (a Amount) Add(b Amount) Amount {
	sum := a + b
	if sum < a {
		return MaxAmount
	}
	return sum
}

// Sub returns a-b, or 0 if b > a.
func (a Amount) Sub(b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}

// MaxAmount is the saturation ceiling for Amount arithmetic.
const MaxAmount Amount = ^Amount(0)

// HFVersion is a hard-fork version number. Hard forks are totally
// ordered; rule changes throughout chain/* are gated on AtLeast.
type HFVersion uint8

// AtLeast reports whether hf is at or after other.
func (hf HFVersion) AtLeast(other HFVersion) bool { return hf >= other }

// Before reports whether hf is strictly before other.
func (hf HFVersion) Before(other HFVersion) bool { return hf < other }
