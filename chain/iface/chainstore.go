// Package iface defines the external collaborator interfaces named in
// spec.md §6: ChainStore (the LMDB-backed blockchain/tx storage layer)
// and QuorumNet (the P2P/Quorumnet transport). Neither is implemented
// here — both are out of scope per spec.md §1 — but chain/snse and
// chain/pulse are written entirely against these interfaces so a real
// storage/transport implementation can be substituted without
// touching consensus logic.
package iface

import (
	"context"

	"github.com/prysmaticlabs/go-bitfield"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Block is the minimal block view chain/snse and chain/pulse need.
// Field-level block/transaction structure beyond this is owned by the
// (out of scope) blockchain validation layer.
type Block struct {
	Hash      primitives.BlockHash
	Height    primitives.Height
	Timestamp int64
	HFVersion primitives.HFVersion

	Pulse        *PulseHeader
	RoundZeroTimestamp int64 // prepare_round's start_time baseline for round 0 at this height
	SNWinner     primitives.PubKey
	SNWinnerTail primitives.PubKey // HF20+: tail of winner's primary pubkey, verified against block.sn_winner_tail
	MinerTxOutputs []Output
	L2Votes    []bool // block.l2_votes[i] votes on the i-th oldest pending L2 event

	Nonce uint32
}

// PulseHeader is the subset of a block's Pulse-specific fields chain
// cares about.
type PulseHeader struct {
	Round           primitives.Round
	Producer        primitives.PubKey // round 0: equals the block leader; round > 0: the sampled alt producer
	ValidatorBitset bitfield.Bitvector64
	Signatures      []PulseSignature
	RandomValue     [32]byte
}

// PulseSignature is one validator's signature over the final block
// hash, tagged with its quorum position.
type PulseSignature struct {
	VoterIndex int
	Signature  []byte
}

// Output is a single coinbase/miner_tx output, used by coinbase
// validation (spec §4.5.1).
type Output struct {
	Amount    primitives.Amount
	Recipient primitives.Address
}

// Tx is the minimal transaction view chain/snse applies during
// update_from_block (spec §4.2 step 9).
type Tx struct {
	Hash primitives.TxHash
	Type TxType
	Body []byte // opaque; decoded by chain/snapshot's per-type parsers
}

// TxType enumerates the transaction kinds update_from_block dispatches
// on, per spec §4.2 step 9.
type TxType int

const (
	TxStateChange TxType = iota
	TxStake
	TxStandard
	TxKeyImageUnlock
	TxEthNewServiceNode
	TxEthRemovalRequest
	TxEthRemoval
)

// ChainStore is the subset of the blockchain/tx storage layer SNSE and
// PSM consume. It is implemented by the (out of scope) LMDB-backed
// storage engine.
type ChainStore interface {
	Height(ctx context.Context) (primitives.Height, error)
	GetBlockByHash(ctx context.Context, hash primitives.BlockHash) (*Block, error)
	GetBlockByHeight(ctx context.Context, h primitives.Height) (*Block, error)
	GetBlockTimestamp(ctx context.Context, h primitives.Height) (int64, error)
	GetTx(ctx context.Context, hash primitives.TxHash) (*Tx, error)
	GetAltBlock(ctx context.Context, hash primitives.BlockHash) (*Block, error)

	// BlockLeader resolves the block's pulse/miner leader pubkey,
	// dispatching internally on HF era: pre-HF20 chains store the
	// winner in the miner_tx extra field; HF20+ stores it directly in
	// the block header. Callers never need to know which era they're
	// reading (Open Question 3, SPEC_FULL.md).
	BlockLeader(ctx context.Context, b *Block) (primitives.PubKey, error)

	// LoadTransactions fetches mempool transactions by hash, used by
	// the Pulse template stage to verify embedded L2 state-change txs
	// are present locally (spec §4.6 template stage).
	LoadTransactions(ctx context.Context, hashes []primitives.TxHash) ([]*Tx, error)

	// L2VoteFor returns this node's locally-computed vote (confirm or
	// deny) for a pending L2 event, used by the Pulse template stage
	// to cross-check a proposed block's l2_votes.
	L2VoteFor(ctx context.Context, txHash primitives.TxHash) (bool, error)

	// HandleBlockFound submits a Pulse-produced block for validation
	// and P2P propagation (spec §4.6 signing stage).
	HandleBlockFound(ctx context.Context, b *Block) error

	// CreateNextPulseBlockTemplate assembles the next block's contents
	// (transactions, miner_tx, l2_votes) for the given round and agreed
	// validator bitset, to be signed and broadcast by the Pulse
	// producer (spec §4.6 template stage).
	CreateNextPulseBlockTemplate(ctx context.Context, round primitives.Round, bitset bitfield.Bitvector64) (*Block, error)

	// BatchedRewardRecord persists a batched-reward ledger entry
	// (HF19-20 coinbase mode, spec §4.5.1).
	BatchedRewardRecord(ctx context.Context, height primitives.Height, recipient primitives.Address, milliAtomic uint64) error
}
