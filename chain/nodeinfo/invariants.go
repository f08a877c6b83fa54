package nodeinfo

import (
	"github.com/holiman/uint256"

	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// MaxContributors returns the contributor-count ceiling for hf
// (spec invariant 4): 4 pre-HF19, 10 from HF19 onward.
func MaxContributors(hf primitives.HFVersion, hf19 primitives.HFVersion, v1Limit, hf19Limit int) int {
	if hf.AtLeast(hf19) {
		return hf19Limit
	}
	return v1Limit
}

// CheckInvariants validates the subset of spec §3's per-node
// invariants that can be checked from the node alone (invariants 1-4;
// invariant 5, uniqueness of locked key images, and invariant 6,
// last_reward_block_height <= snapshot height, are cross-node/
// cross-snapshot checks owned by chain/snapshot).
func (n *NodeInfo) CheckInvariants(maxContributors int) error {
	if n.TotalContributed > n.TotalReserved {
		return errors.NewInternalLogicError("total_contributed exceeds total_reserved")
	}
	if n.TotalReserved > n.StakingRequirement {
		return errors.NewInternalLogicError("total_reserved exceeds staking_requirement")
	}

	// Summed via uint256 rather than primitives.Amount.Add so a
	// corrupted/adversarial contributor list that would silently wrap
	// past 2^64 atomic units is caught here instead of passing the
	// equality check by coincidence.
	sum := new(uint256.Int)
	for _, c := range n.Contributors {
		sum.Add(sum, uint256.NewInt(uint64(c.Amount)))
	}
	if !sum.IsUint64() || primitives.Amount(sum.Uint64()) != n.TotalContributed {
		return errors.NewInternalLogicError("sum of contributor amounts does not equal total_contributed")
	}

	if len(n.Contributors) > maxContributors {
		return errors.NewInternalLogicError("contributor count exceeds MAX_CONTRIBUTORS")
	}

	if n.IsActive() && n.IsDecommissioned() {
		return errors.NewInternalLogicError("node cannot be simultaneously active and decommissioned")
	}

	return nil
}
