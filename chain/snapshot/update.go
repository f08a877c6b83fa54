package snapshot

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/chain/quorum"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

var log = logrus.WithField("module", "snapshot")

// pubkeyedCandidates pairs each node with its registry key so the
// quorum package (which stays ignorant of NodeInfo) can be handed
// plain Candidate values.
func pubkeyedCandidates(s *StateSnapshot, include func(*nodeinfo.NodeInfo) bool) []quorum.Candidate {
	var out []quorum.Candidate
	for _, pub := range s.sortedPubkeys() {
		n := s.Nodes[pub]
		if !include(n) {
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

// UpdateFromBlock produces the successor snapshot for block, applying
// every step of spec §4.2 in order. s is never mutated; the returned
// snapshot shares no backing storage with it beyond unmodified
// NodeInfo pointers (copy-on-write).
func UpdateFromBlock(ctx context.Context, cfg *params.Config, store iface.ChainStore, net params.Network, hf primitives.HFVersion, s *StateSnapshot, block *iface.Block, txs []DecodedTx) (*StateSnapshot, error) {
	// Step 1: capture the pre-update leader.
	leader, hadLeader := s.GetNextBlockLeader()

	next := s.shallowCloneForUpdate()

	// Step 2: Pulse quorum for the incoming block's round, HF >= pulse only.
	if hf.AtLeast(params.HF16Pulse) && block.Pulse != nil {
		entropy, err := fetchEntropyHashes(ctx, store, s.Height, cfg.PulseQuorumEntropyLag, cfg.PulseQuorumNumValidators+1, block.Pulse.Round)
		if err != nil {
			return nil, err
		}
		candidates := pubkeyedCandidates(s, func(n *nodeinfo.NodeInfo) bool { return n.IsActive() })
		result, err := quorum.GeneratePulse(cfg, hf, leader, candidates, entropy, block.Pulse.Round)
		if err != nil {
			return nil, err
		}
		for i, v := range result.Validators {
			if node, ok := next.Nodes[v]; ok {
				updated := node.Clone()
				updated.PulseSorter = nodeinfo.PulseSorter{LastHeightValidatingInQuorum: block.Height, QuorumIndex: i}
				next.putNode(v, updated)
			}
		}
		next.Quorums.Pulse = &result
	}

	// Step 3: advance height and block hash.
	next.Height = block.Height
	next.BlockHash = block.Hash
	next.BlockLeader = leader

	// Step 4: expire blacklist entries.
	next.expireBlacklistEntries(next.Height)

	// Step 5: expire nodes past their lock/unlock point.
	expireNodes(cfg, next)

	// Step 6: credit the winner's reward bookkeeping.
	if hadLeader {
		if node, ok := next.Nodes[leader]; ok {
			updated := node.Clone()
			updated.LastRewardBlockHeight = next.Height
			updated.LastRewardTransactionIndex = primitives.NoTxIndex
			next.putNode(leader, updated)
		}
	}

	// Step 7: vote on pending L2 events.
	if err := applyL2Votes(cfg, next, block); err != nil {
		return nil, err
	}

	// Step 8: x25519 map lazily initialized by construction (Empty always
	// allocates it); nothing further to do here.

	// Step 9: apply transactions in order.
	for i := range txs {
		tx := &txs[i]
		if err := tx.apply(cfg, hf, block.Height, next); err != nil {
			log.WithError(err).WithField("tx", tx.Hash).Warn("rejecting transaction")
		}
	}

	// Step 10: swarm repartitioning, only meaningful once nodes exist.
	next.RepartitionSwarms(cfg, next.BlockHash)

	// Step 11: obligations / checkpoint / blink quorums. active and
	// decommissioned are kept as separate lists (not one combined,
	// pre-filtered set) because GenerateObligations's partial shuffle
	// only allows active nodes into the leading validator slots.
	activeObligationCandidates := pubkeyedCandidates(s, func(n *nodeinfo.NodeInfo) bool { return n.IsActive() })
	decommissionedObligationCandidates := pubkeyedCandidates(s, func(n *nodeinfo.NodeInfo) bool {
		return n.IsDecommissioned() && n.IsFullyFunded()
	})
	obligations, err := quorum.GenerateObligations(cfg, hf, activeObligationCandidates, decommissionedObligationCandidates, next.BlockHash)
	if err != nil {
		return nil, err
	}
	next.Quorums.Obligations = &obligations

	activeCandidates := activeObligationCandidates
	if quorum.CheckpointDue(cfg, next.Height) {
		cp, err := quorum.GenerateCheckpoint(cfg, hf, activeCandidates, next.BlockHash)
		if err != nil {
			return nil, err
		}
		next.Quorums.Checkpointing = &cp
	}
	if quorum.BlinkDue(cfg, next.Height) {
		bl, err := quorum.GenerateBlink(cfg, hf, activeCandidates, next.BlockHash, next.Height)
		if err != nil {
			return nil, err
		}
		next.Quorums.Blink = &bl
	}

	// Step 12: clear the cached leader so the next query recomputes it.
	next.clearNextBlockLeaderCache()

	return next, nil
}

// expireNodes drops nodes whose lock period has elapsed, recording each
// expired node's BLS pubkey in RecentlyExpired (spec §4.2 step 5).
// get_expired_nodes branches on the node's own registration_hf_version,
// not the chain's current HF: a node that registered under HF11+
// infinite staking expires only once it has an explicit
// requested_unlock_height past s.Height; a node that registered before
// HF11 was never given one and instead expires a fixed
// UnlockDuration+PreHF11LockBlocksExcessBuffer after its own
// registration_height, a "Version 10 Bulletproofs" grace period the
// source notes is unintentionally extended for nodes that registered
// in HF9 and were due to deregister in HF10.
func expireNodes(cfg *params.Config, s *StateSnapshot) {
	for pub, n := range s.Nodes {
		var expired bool
		if n.RegistrationHFVersion.AtLeast(params.HF11InfiniteStaking) {
			expired = n.RequestedUnlockHeight != 0 && s.Height > n.RequestedUnlockHeight
		} else {
			expiryHeight := n.RegistrationHeight.Add(cfg.UnlockDuration + cfg.PreHF11LockBlocksExcessBuffer)
			expired = s.Height > expiryHeight
		}
		if !expired {
			continue
		}
		s.RecentlyExpired[n.BLSPublicKey] = s.Height.Add(cfg.EthRemovalBuffer)
		s.KeyImageBlacklist = append(s.KeyImageBlacklist, blacklistEntriesFor(cfg, n, s.Height)...)
		delete(s.Nodes, pub)
	}
}

// FetchEntropyHashes retrieves count block hashes ending lag blocks
// behind height, oldest first, each folded through round via
// quorum.FoldEntropyForRound (make_pulse_entropy_from_blocks), as spec
// §4.4 step 2's entropy source. Exported so chain/snse can recompute
// the same Pulse quorum ahead of UpdateFromBlock, for signature
// validation (spec §4.5.2), without duplicating the fetch logic.
func FetchEntropyHashes(ctx context.Context, store iface.ChainStore, height primitives.Height, lag uint64, count int, round primitives.Round) ([][32]byte, error) {
	return fetchEntropyHashes(ctx, store, height, lag, count, round)
}

func fetchEntropyHashes(ctx context.Context, store iface.ChainStore, height primitives.Height, lag uint64, count int, round primitives.Round) ([][32]byte, error) {
	out := make([][32]byte, 0, count)
	start := int64(height) - int64(lag) - int64(count) + 1
	for i := 0; i < count; i++ {
		h := start + int64(i)
		var hash [32]byte
		if h >= 0 {
			b, err := store.GetBlockByHeight(ctx, primitives.Height(h))
			if err != nil {
				return nil, err
			}
			hash = b.Hash
		}
		folded, err := quorum.FoldEntropyForRound(round, hash)
		if err != nil {
			return nil, err
		}
		out = append(out, folded)
	}
	return out, nil
}
