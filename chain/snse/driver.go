// Package snse implements the SNSE driver (spec.md §4.5): the
// orchestrator that applies incoming blocks to the service-node
// registry, validating Pulse signatures and coinbase composition
// before committing, and answering uptime-proof/peer-reachability
// updates from the rest of the node.
//
// Grounded on beacon-chain/core/blocks' ordered ProcessBlock pipeline
// (compute what the block must look like, validate, then mutate state)
// and original_source/src/cryptonote_core/service_node_list.cpp's
// block_add/alt_block_add/handle_uptime_proof.
package snse

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/syssiproject/oxen-core-sub000/chain/cache"
	"github.com/syssiproject/oxen-core-sub000/chain/crypto"
	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/chain/history"
	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/chain/quorum"
	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

var log = logrus.WithField("module", "snse")

// Driver is the SNSE orchestrator. One Driver owns the canonical
// current snapshot plus its reorg-safe history; alt-chain snapshots
// are tracked by history alone until they either win or are dropped.
type Driver struct {
	cfg *params.Config
	net params.Network

	store iface.ChainStore
	hist  *history.StateHistory

	mu            sync.Mutex
	current       *snapshot.StateSnapshot
	currentHF     primitives.HFVersion
	proofCache    *cache.ProofCache
	ed25519Verify SigVerifier
}

// NewDriver constructs a Driver seeded with genesis and backed by
// store for reads SNSE itself doesn't own (entropy hashes, mempool
// lookups).
func NewDriver(cfg *params.Config, net params.Network, store iface.ChainStore, genesis *snapshot.StateSnapshot) *Driver {
	proofCache, err := cache.NewProofCache(1 << 16)
	if err != nil {
		// capacity is a compile-time constant; lru.New only errors on
		// size <= 0.
		panic(err)
	}
	return &Driver{
		cfg:           cfg,
		net:           net,
		store:         store,
		hist:          history.New(cfg),
		current:       genesis,
		proofCache:    proofCache,
		ed25519Verify: crypto.Ed25519Verify,
	}
}

// Current returns the driver's canonical snapshot.
func (d *Driver) Current() *snapshot.StateSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// resolveLeaderAndProducer returns the registered NodeInfo for the
// pre-update snapshot's next block leader and (for Pulse blocks) the
// sampled producer, used by both Pulse verification and coinbase
// validation so both see the same identities.
func (d *Driver) resolveLeaderAndProducer(base *snapshot.StateSnapshot, block *iface.Block) (leaderKey primitives.PubKey, leader *nodeinfo.NodeInfo, producer *nodeinfo.NodeInfo) {
	leaderKey, _ = base.GetNextBlockLeader()
	leader = base.Nodes[leaderKey]
	if block.Pulse != nil && block.Pulse.Producer != leaderKey {
		producer = base.Nodes[block.Pulse.Producer]
	}
	return leaderKey, leader, producer
}

// BlockAdd applies block.md §4.5 block_add: computes the Pulse quorum
// for block's round from the current snapshot (or verifies the miner
// fallback path), validates the coinbase, then commits the resulting
// snapshot. Nothing is mutated if validation fails.
func (d *Driver) BlockAdd(ctx context.Context, block *iface.Block, txs []snapshot.DecodedTx, reward RewardParts, batched []BatchedPayment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	base := d.current
	hf := block.HFVersion
	corrID := uuid.NewString()
	entry := log.WithField("corr_id", corrID).WithField("height", block.Height)

	leaderKey, leader, producer := d.resolveLeaderAndProducer(base, block)

	activeCount := len(base.ActiveNodes())
	if hf.AtLeast(params.HF16Pulse) && RequiresPulse(d.cfg, activeCount) {
		if block.Pulse == nil {
			return errors.NewConsensusMismatch(block.Height, "block omits pulse header while enough service nodes are active to form a quorum")
		}
		entropy, err := snapshot.FetchEntropyHashes(ctx, d.store, base.Height, d.cfg.PulseQuorumEntropyLag, d.cfg.PulseQuorumNumValidators+1, block.Pulse.Round)
		if err != nil {
			return err
		}
		candidates := activeCandidates(base)
		result, err := quorum.GeneratePulse(d.cfg, hf, leaderKey, candidates, entropy, block.Pulse.Round)
		if err != nil {
			return err
		}
		if err := ValidatePulseBlock(d.cfg, block.Height, block, result.Validators, d.ed25519Verify); err != nil {
			return err
		}
	} else if block.Pulse != nil {
		return errors.NewConsensusMismatch(block.Height, "pulse header present without enough active service nodes to justify one")
	} else {
		if err := ValidateMinerFallbackBlock(block.Height, block); err != nil {
			return err
		}
	}

	if err := ValidateMinerTx(d.cfg, hf, block.Height, block, leaderKey, leader, producer, reward, batched); err != nil {
		return err
	}

	next, err := snapshot.UpdateFromBlock(ctx, d.cfg, d.store, d.net, hf, base, block, txs)
	if err != nil {
		return err
	}

	d.hist.Insert(next)
	d.current = next
	d.currentHF = hf
	entry.Debug("committed block to the service-node registry")
	return nil
}

// AltBlockAdd applies spec §4.5 alt_block_add: builds and records an
// alt-chain snapshot without committing it to Current(), verifying
// against whichever of the main or a known alt-chain quorum the block
// actually follows from.
func (d *Driver) AltBlockAdd(ctx context.Context, parentHash primitives.BlockHash, block *iface.Block, txs []snapshot.DecodedTx, reward RewardParts, batched []BatchedPayment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	base, ok := d.hist.LookupAlt(parentHash)
	if !ok {
		if d.current.BlockHash == parentHash {
			base = d.current
		} else if s, found := d.hist.Lookup(block.Height - 1); found && s.BlockHash == parentHash {
			base = s
		} else {
			return errors.NewConsensusMismatch(block.Height, "alt block's parent hash matches neither the main chain nor a known alt state")
		}
	}

	hf := block.HFVersion
	leaderKey, leader, producer := d.resolveLeaderAndProducer(base, block)

	if block.Pulse != nil {
		entropy, err := snapshot.FetchEntropyHashes(ctx, d.store, base.Height, d.cfg.PulseQuorumEntropyLag, d.cfg.PulseQuorumNumValidators+1, block.Pulse.Round)
		if err != nil {
			return err
		}
		result, err := quorum.GeneratePulse(d.cfg, hf, leaderKey, activeCandidates(base), entropy, block.Pulse.Round)
		if err != nil {
			return err
		}
		if err := ValidatePulseBlock(d.cfg, block.Height, block, result.Validators, d.ed25519Verify); err != nil {
			return err
		}
	}

	if err := ValidateMinerTx(d.cfg, hf, block.Height, block, leaderKey, leader, producer, reward, batched); err != nil {
		return err
	}

	next, err := snapshot.UpdateFromBlock(ctx, d.cfg, d.store, d.net, hf, base, block, txs)
	if err != nil {
		return err
	}
	d.hist.InsertAlt(block.Hash, next)
	log.WithField("hash", block.Hash).Debug("recorded alt-chain registry state")
	return nil
}

// BlockchainDetached applies spec §4.3's blockchain_detached: truncate
// history to height, resume Current() from the exact snapshot if it
// is still retained in full, or report rescanFrom for the caller to
// replay forward from an archive checkpoint.
func (d *Driver) BlockchainDetached(height primitives.Height) (rescanFrom primitives.Height, needsRescan bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap, from, ok := d.hist.Detach(height)
	if !ok {
		return 0, false, errors.NewDBError("blockchain_detached", errNoRetainedState)
	}
	if snap != nil {
		d.current = snap
		return 0, false, nil
	}
	return from, true, nil
}

var errNoRetainedState = errors.NewInternalLogicError("no retained snapshot covers the detach height")

func activeCandidates(s *snapshot.StateSnapshot) []quorum.Candidate {
	var out []quorum.Candidate
	for pub, n := range s.Nodes {
		if !n.IsActive() {
			continue
		}
		out = append(out, quorum.Candidate{
			PubKey:                       pub,
			LastHeightValidatingInQuorum: n.PulseSorter.LastHeightValidatingInQuorum,
			QuorumIndex:                  n.PulseSorter.QuorumIndex,
			Decommissioned:               n.IsDecommissioned(),
			RequestedUnlockHeight:        n.RequestedUnlockHeight,
		})
	}
	return out
}
