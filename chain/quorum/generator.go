// Package quorum implements QuorumGenerator (spec.md §4.4): a pure
// function of (net, hf, block_leader, active_nodes_sorted_by_pubkey,
// entropy_hashes, round) producing the Pulse/Obligations/Checkpoint/
// Blink quorums. Every exported entry point is side-effect free and
// must be byte-identical across platforms and thread counts (spec
// Testable Property 1).
package quorum

import (
	"sort"

	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Candidate is the minimal per-node view QuorumGenerator needs. It
// deliberately does not depend on chain/nodeinfo so the package stays
// a pure function of its inputs, not of the registry's internal shape.
type Candidate struct {
	PubKey                       primitives.PubKey
	LastHeightValidatingInQuorum primitives.Height
	QuorumIndex                  int
	Decommissioned                bool
	RequestedUnlockHeight         primitives.Height // 0 = none
}

// Quorum is the selected validator/worker set for one quorum type.
type Quorum struct {
	Validators []primitives.PubKey
	Workers    []primitives.PubKey
}

// PulseResult additionally reports which candidates were chosen as
// validators this round, so the caller (chain/snapshot) can update
// their pulse_sorter (spec §4.2 step 2).
type PulseResult struct {
	Producer   primitives.PubKey
	Validators []primitives.PubKey
}

// GeneratePulse computes the Pulse quorum for round, given the
// current block leader and the active-node candidate set (spec §4.4
// step 2). entropyHashes must contain PULSE_QUORUM_NUM_VALIDATORS+1
// lagged, round-folded entropy hashes: slot 0 seeds the producer draw,
// slots 1..PULSE_QUORUM_NUM_VALIDATORS seed the validator swap loop
// (generate_pulse_quorum reserves pulse_entropy[0] for the producer
// and indexes validator draws from pulse_entropy[i+1]).
func GeneratePulse(cfg *params.Config, hf primitives.HFVersion, blockLeader primitives.PubKey, active []Candidate, entropyHashes [][32]byte, round primitives.Round) (PulseResult, error) {
	candidates := make([]Candidate, 0, len(active))
	for _, c := range active {
		if round == 0 && c.PubKey == blockLeader {
			continue // leader removed from the pool only for round 0
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.LastHeightValidatingInQuorum != b.LastHeightValidatingInQuorum {
			return a.LastHeightValidatingInQuorum < b.LastHeightValidatingInQuorum
		}
		if a.QuorumIndex != b.QuorumIndex {
			return a.QuorumIndex < b.QuorumIndex
		}
		return less(a.PubKey, b.PubKey)
	})

	var producer primitives.PubKey
	if round == 0 {
		producer = blockLeader
	} else if len(candidates) > 0 && len(entropyHashes) > 0 {
		engine := quorumRNG(TypePulse, entropyHashes[0], hf)
		idx := int(engine.Intn(uint64(len(candidates))))
		producer = candidates[idx].PubKey
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}

	numValidators := cfg.PulseQuorumNumValidators
	if numValidators > len(candidates) {
		numValidators = len(candidates)
	}

	// Partition-relative Fisher-Yates: each draw i picks a swap
	// partner from the still-unfixed tail, bounded by the partition
	// index (not a fixed [0,half) range), mirroring
	// generate_pulse_quorum's running_it-relative bound. When the
	// partition is 0 (too few candidates left to meaningfully
	// shuffle), no swaps happen at all and no entropy is consumed,
	// matching the source's "running_it += NUM_VALIDATORS" shortcut.
	partition := 0
	if len(candidates) > 0 {
		partition = (len(candidates) - 1) / 2
	}
	if partition > 0 {
		for i := 0; i < numValidators; i++ {
			if i+1 >= len(entropyHashes) {
				break
			}
			available := len(candidates) - i
			bound := partition
			if available < bound {
				bound = available
			}
			if bound <= 0 {
				continue
			}
			engine := quorumRNG(TypePulse, entropyHashes[i+1], hf)
			swap := i + int(engine.Intn(uint64(bound)))
			candidates[i], candidates[swap] = candidates[swap], candidates[i]
		}
	}

	validators := make([]primitives.PubKey, 0, numValidators)
	for i := 0; i < numValidators && i < len(candidates); i++ {
		validators = append(validators, candidates[i].PubKey)
	}

	return PulseResult{Producer: producer, Validators: validators}, nil
}

// GenerateObligations computes the obligations quorum: validators
// test other service nodes' liveness and issue state-change votes
// (spec §4.4 step 3). active and decommissioned are kept as separate
// slices (rather than one pre-combined/pre-filtered list) because the
// partial-shuffle split point is exactly len(active) —
// generate_other_quorums concatenates active_snode_list ++
// decomm_snode_list and partially shuffles so that only active-node
// values can land in the leading validator slots.
func GenerateObligations(cfg *params.Config, hf primitives.HFVersion, active []Candidate, decommissioned []Candidate, blockHash primitives.BlockHash) (Quorum, error) {
	combined := make([]Candidate, 0, len(active)+len(decommissioned))
	combined = append(combined, active...)
	combined = append(combined, decommissioned...)

	numValidators := cfg.StateChangeQuorumSize
	if numValidators > len(active) {
		numValidators = len(active)
	}

	partialShuffle(combined, len(active), numValidators, func() *mt19937_64 {
		return quorumRNG(TypeObligations, blockHash, hf)
	})

	validators := make([]primitives.PubKey, numValidators)
	for i := 0; i < numValidators; i++ {
		validators[i] = combined[i].PubKey
	}

	remaining := len(combined) - numValidators
	workerCount := remaining / cfg.ObligationsNthToTest
	if workerCount < cfg.ObligationsMinNodesToTest {
		workerCount = cfg.ObligationsMinNodesToTest
	}
	if workerCount > remaining {
		workerCount = remaining
	}

	workers := make([]primitives.PubKey, 0, workerCount)
	for i := numValidators; i < numValidators+workerCount; i++ {
		workers = append(workers, combined[i].PubKey)
	}

	return Quorum{Validators: validators, Workers: workers}, nil
}

// CheckpointDue reports whether height is a checkpoint height,
// accounting for the reorg safety buffer (spec §4.4 step 4).
func CheckpointDue(cfg *params.Config, height primitives.Height) bool {
	return (uint64(height)+cfg.ReorgSafetyBufferBlocksPostHF12)%cfg.CheckpointInterval == 0
}

// GenerateCheckpoint computes the checkpointing quorum, only valid
// when CheckpointDue(height) is true.
func GenerateCheckpoint(cfg *params.Config, hf primitives.HFVersion, active []Candidate, blockHash primitives.BlockHash) (Quorum, error) {
	engine := quorumRNG(TypeCheckpoint, blockHash, hf)
	shuffled := append([]Candidate(nil), active...)
	shuffleRange(shuffled, 0, len(shuffled), engine)

	size := cfg.CheckpointQuorumSize
	if size > len(shuffled) {
		size = len(shuffled)
	}
	validators := make([]primitives.PubKey, size)
	for i := 0; i < size; i++ {
		validators[i] = shuffled[i].PubKey
	}
	return Quorum{Validators: validators}, nil
}

// BlinkDue reports whether height is a Blink quorum rotation height.
func BlinkDue(cfg *params.Config, height primitives.Height) bool {
	return uint64(height)%cfg.BlinkQuorumInterval == 0
}

// GenerateBlink computes the Blink quorum, filtering out nodes
// scheduled to unlock within BLINK_EXPIRY_BUFFER blocks (spec §4.4
// step 5).
func GenerateBlink(cfg *params.Config, hf primitives.HFVersion, active []Candidate, blockHash primitives.BlockHash, height primitives.Height) (Quorum, error) {
	engine := quorumRNG(TypeBlink, blockHash, hf)

	var eligible []Candidate
	for _, c := range active {
		if c.RequestedUnlockHeight != 0 && c.RequestedUnlockHeight <= height.Add(cfg.BlinkExpiryBuffer) {
			continue
		}
		eligible = append(eligible, c)
	}
	shuffleRange(eligible, 0, len(eligible), engine)

	size := 10 // BLINK_SUBQUORUM_SIZE, spec §3
	if size > len(eligible) {
		return Quorum{}, nil
	}
	validators := make([]primitives.PubKey, size)
	for i := 0; i < size; i++ {
		validators[i] = eligible[i].PubKey
	}
	return Quorum{Validators: validators}, nil
}

func less(a, b primitives.PubKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
