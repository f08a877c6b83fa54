package snapshot

import (
	"math/bits"

	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Payout is one address's share of a node's reward, expressed as a
// fraction of portionsBasis(hf) (spec §4.5.1 "Pulse alt round" and
// "miner" modes, mirroring the source's service_node_payout_portions).
type Payout struct {
	Address  primitives.Address
	Portions primitives.Portions
}

// PayoutPortions splits node's reward among its contributors: each
// contributor earns a portion proportional to its stake after the
// operator fee is set aside, and the operator's own contribution
// additionally carries PortionsForOperator.
func PayoutPortions(hf primitives.HFVersion, node *nodeinfo.NodeInfo) []Payout {
	basis := portionsBasis(hf)
	afterFee := basis - node.PortionsForOperator

	out := make([]Payout, 0, len(node.Contributors))
	for _, c := range node.Contributors {
		portion := contributionPortion(c.Amount, afterFee, node.StakingRequirement)
		if c.Address == node.OperatorAddress {
			portion += node.PortionsForOperator
		}
		out = append(out, Payout{Address: c.Address, Portions: portion})
	}
	return out
}

// contributionPortion converts a contributor's staked amount into its
// share of afterFee portions, scaled against the node's staking
// requirement, via a 128-bit intermediate (same technique as
// portionsToAmount; the legacy near-UINT64_MAX basis can overflow a
// plain 64-bit multiply).
func contributionPortion(amount primitives.Amount, afterFee primitives.Portions, requirement primitives.Amount) primitives.Portions {
	if requirement == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(amount), uint64(afterFee))
	if hi >= uint64(requirement) {
		return primitives.Portions(uint64(amount) / uint64(requirement) * uint64(afterFee))
	}
	q, _ := bits.Div64(hi, lo, uint64(requirement))
	return primitives.Portions(q)
}

// DistributeRewardByPortions splits total across payouts in
// proportion to each payout's share of portionsBasis(hf). When
// distributeRemainder is set, any atomic units left over from integer
// truncation are credited to the last recipient with a nonzero share,
// matching cryptonote_tx_utils.cpp's distribute_reward_by_portions;
// otherwise (pre-pulse miner mode) the remainder is left for the
// miner's own output to absorb, so it is not redistributed here.
func DistributeRewardByPortions(hf primitives.HFVersion, payouts []Payout, total primitives.Amount, distributeRemainder bool) []primitives.Amount {
	basis := portionsBasis(hf)
	out := make([]primitives.Amount, len(payouts))

	var assigned primitives.Amount
	lastNonZero := -1
	for i, p := range payouts {
		out[i] = portionsToAmount(p.Portions, basis, total)
		assigned = assigned.Add(out[i])
		if out[i] > 0 {
			lastNonZero = i
		}
	}
	if distributeRemainder && lastNonZero >= 0 && assigned < total {
		out[lastNonZero] = out[lastNonZero].Add(total.Sub(assigned))
	}
	return out
}
