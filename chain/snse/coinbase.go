package snse

import (
	"bytes"
	"fmt"

	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// CoinbaseMode enumerates the five miner_tx verification shapes spec
// §4.5.1 dispatches on.
type CoinbaseMode int

const (
	ModeMiner CoinbaseMode = iota
	ModePulseLeaderIsProducer
	ModePulseDifferentProducer
	ModeBatchedSNRewards
	ModeArbitrumRewards
)

func (m CoinbaseMode) String() string {
	switch m {
	case ModeMiner:
		return "miner"
	case ModePulseLeaderIsProducer:
		return "pulse"
	case ModePulseDifferentProducer:
		return "pulse alt round"
	case ModeBatchedSNRewards:
		return "batched sn rewards"
	case ModeArbitrumRewards:
		return "arbitrum rewards"
	default:
		return "unknown"
	}
}

// RewardParts is the block's miner reward, already split into the
// three buckets spec §4.5.1's modes distribute. base_miner is the
// network's base block reward to the miner proper; miner_fee is the
// sum of tx fees; service_node_total is the chunk owed to the Pulse
// block leader/winning service node.
type RewardParts struct {
	BaseMiner        primitives.Amount
	MinerFee         primitives.Amount
	ServiceNodeTotal primitives.Amount
}

// BatchedPayment is one entry of the reward-batching database the
// HF19-20 coinbase mode pays out against.
type BatchedPayment struct {
	Recipient   primitives.Address
	MilliAtomic uint64
}

// coinbaseModeFor selects the verification mode for a block, per the
// HF-ordered switch in service_node_list.cpp's verify_block_miner_tx.
func coinbaseModeFor(hf primitives.HFVersion, block *iface.Block, blockLeaderKey primitives.PubKey) CoinbaseMode {
	switch {
	case hf.AtLeast(params.HF21EthBLS):
		return ModeArbitrumRewards
	case hf.AtLeast(params.HF19RewardBatching):
		return ModeBatchedSNRewards
	case block.Pulse != nil:
		if block.Pulse.Producer == blockLeaderKey {
			return ModePulseLeaderIsProducer
		}
		return ModePulseDifferentProducer
	default:
		return ModeMiner
	}
}

// HeightHasGovernanceOutput reports whether h must carry a governance
// vout: weekly, pre-batching only (from HF19 governance rewards are
// folded into the batching database instead of a dedicated vout).
func HeightHasGovernanceOutput(cfg *params.Config, hf primitives.HFVersion, h primitives.Height) bool {
	if hf.AtLeast(params.HF19RewardBatching) {
		return false
	}
	return cfg.GovernanceInterval > 0 && uint64(h)%cfg.GovernanceInterval == 0
}

// pubkeyTailLen is the number of trailing bytes compared for the
// HF20+ sn_winner_tail check; spec.md does not give an exact length,
// so this follows the convention already used for other abbreviated
// on-wire identifiers in this codebase (see DESIGN.md).
const pubkeyTailLen = 4

func pubkeyTailMatches(full, tail primitives.PubKey) bool {
	n := len(full)
	return bytes.Equal(full[n-pubkeyTailLen:], tail[n-pubkeyTailLen:])
}

// ValidateMinerTx enforces spec §4.5.1 for block. blockLeader/
// blockProducer are the current snapshot's winning node and (for
// alt-round Pulse blocks) the sampled producer node; either may be
// nil only when the corresponding mode doesn't need it. Per-output
// recipient/one-time-key matching is owned by the out-of-scope
// transaction-construction layer (deterministic keypair derivation);
// this checks output counts and reward totals, which is everything
// observable through iface.Block's minimal Output view.
func ValidateMinerTx(cfg *params.Config, hf primitives.HFVersion, height primitives.Height, block *iface.Block, blockLeaderKey primitives.PubKey, blockLeader *nodeinfo.NodeInfo, blockProducer *nodeinfo.NodeInfo, reward RewardParts, batched []BatchedPayment) error {
	mode := coinbaseModeFor(hf, block, blockLeaderKey)

	if hf.AtLeast(params.HF16Pulse) && reward.BaseMiner != 0 {
		return errors.NewConsensusMismatch(height, "miner reward must be zero from the pulse hard fork onward")
	}

	if hf.AtLeast(params.HF20EthTransition) && !blockLeaderKey.IsZero() {
		if !pubkeyTailMatches(blockLeaderKey, block.SNWinnerTail) {
			return errors.NewConsensusMismatch(height, "block sn_winner_tail does not match the winning node's pubkey")
		}
	}

	switch mode {
	case ModeArbitrumRewards:
		if len(block.MinerTxOutputs) != 0 {
			return errors.NewConsensusMismatch(height, "arbitrum-era blocks must not carry a miner_tx")
		}
		return nil

	case ModeBatchedSNRewards:
		return validateBatchedOutputs(cfg, height, block, batched)

	case ModeMiner:
		if blockLeader == nil {
			return errors.NewConsensusMismatch(height, "miner block has no registered winner to pay")
		}
		splits := snapshot.DistributeRewardByPortions(hf, snapshot.PayoutPortions(hf, blockLeader), reward.ServiceNodeTotal, hf.AtLeast(params.HF16Pulse))
		expected := nonZeroCount(splits)
		if reward.BaseMiner+reward.MinerFee > 0 {
			expected++
		}
		return validateVoutCount(cfg, hf, height, mode, block, expected)

	case ModePulseLeaderIsProducer:
		if blockLeader == nil {
			return errors.NewConsensusMismatch(height, "pulse block has no registered winner to pay")
		}
		total := reward.ServiceNodeTotal.Add(reward.MinerFee)
		splits := snapshot.DistributeRewardByPortions(hf, snapshot.PayoutPortions(hf, blockLeader), total, true)
		if err := validateVoutCount(cfg, hf, height, mode, block, nonZeroCount(splits)); err != nil {
			return err
		}
		return validateTotalAmount(height, block, sumAmounts(splits), HeightHasGovernanceOutput(cfg, hf, height))

	case ModePulseDifferentProducer:
		if blockLeader == nil || blockProducer == nil {
			return errors.NewConsensusMismatch(height, "pulse alt-round block is missing leader or producer registration")
		}
		var producerSplits []primitives.Amount
		if reward.MinerFee > 0 {
			producerSplits = snapshot.DistributeRewardByPortions(hf, snapshot.PayoutPortions(hf, blockProducer), reward.MinerFee, true)
		}
		leaderSplits := snapshot.DistributeRewardByPortions(hf, snapshot.PayoutPortions(hf, blockLeader), reward.ServiceNodeTotal, true)
		expected := nonZeroCount(producerSplits) + nonZeroCount(leaderSplits)
		if err := validateVoutCount(cfg, hf, height, mode, block, expected); err != nil {
			return err
		}
		return validateTotalAmount(height, block, sumAmounts(producerSplits)+sumAmounts(leaderSplits), HeightHasGovernanceOutput(cfg, hf, height))
	}

	return errors.NewInternalLogicError("unreachable coinbase mode")
}

func validateVoutCount(cfg *params.Config, hf primitives.HFVersion, height primitives.Height, mode CoinbaseMode, block *iface.Block, payoutVouts int) error {
	expected := payoutVouts
	if HeightHasGovernanceOutput(cfg, hf, height) {
		expected++
	}
	if len(block.MinerTxOutputs) != expected {
		return errors.NewConsensusMismatch(height, fmt.Sprintf("%s block miner_tx has %d outputs, expected %d", mode, len(block.MinerTxOutputs), expected))
	}
	return nil
}

// validateTotalAmount sums block's payout outputs (excluding the
// trailing governance output, whose amount is set by the out-of-scope
// emission schedule) and compares against the expected reward total.
func validateTotalAmount(height primitives.Height, block *iface.Block, expectedTotal primitives.Amount, hasGovernance bool) error {
	n := len(block.MinerTxOutputs)
	if hasGovernance {
		n--
	}
	if n < 0 {
		return errors.NewConsensusMismatch(height, "miner_tx shorter than the expected governance output")
	}
	var got primitives.Amount
	for _, o := range block.MinerTxOutputs[:n] {
		got = got.Add(o.Amount)
	}
	if got != expectedTotal {
		return errors.NewConsensusMismatch(height, fmt.Sprintf("service-node reward total %d does not match expected %d", got, expectedTotal))
	}
	return nil
}

// validateBatchedOutputs enforces the HF19-20 mode: one vout per
// batched recipient, each vout amount times BATCH_REWARD_FACTOR
// equalling the recorded milli-atomic payout (spec §4.5.1).
func validateBatchedOutputs(cfg *params.Config, height primitives.Height, block *iface.Block, batched []BatchedPayment) error {
	if len(block.MinerTxOutputs) != len(batched) {
		return errors.NewConsensusMismatch(height, fmt.Sprintf("batched reward block has %d outputs, expected %d", len(block.MinerTxOutputs), len(batched)))
	}
	maxAmount := ^uint64(0) / cfg.BatchRewardFactor
	var totalVouts, totalDB uint64
	for i, out := range block.MinerTxOutputs {
		if uint64(out.Amount) > maxAmount {
			return errors.NewConsensusMismatch(height, "batched reward payout exceeds maximum possible payout size")
		}
		paid := uint64(out.Amount) * cfg.BatchRewardFactor
		if paid != batched[i].MilliAtomic {
			return errors.NewConsensusMismatch(height, fmt.Sprintf("batched reward payout %d incorrect: expected %d, got %d", i, batched[i].MilliAtomic, paid))
		}
		totalVouts += paid
		totalDB += batched[i].MilliAtomic
	}
	if totalVouts != totalDB {
		return errors.NewConsensusMismatch(height, "total batched reward amount mismatch")
	}
	return nil
}

func nonZeroCount(amounts []primitives.Amount) int {
	n := 0
	for _, a := range amounts {
		if a > 0 {
			n++
		}
	}
	return n
}

func sumAmounts(amounts []primitives.Amount) primitives.Amount {
	var total primitives.Amount
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
