package snapshot

import (
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// redistributeDust applies the pre-HF16 contribution-amount rounding
// anomaly: dividing totalReserved across contributors by their reserved
// portions can leave atomic units unassigned because of integer
// truncation, and the original implementation credited that remainder
// to the last contributor rather than losing it. New HF16+ single-
// output registrations never call this; it exists only so historical
// (pre-HF16) blocks still replay to the same node state.
func redistributeDust(contributors []nodeinfo.Contribution, totalReserved, stakingRequirement primitives.Amount) {
	if len(contributors) == 0 {
		return
	}

	var assigned primitives.Amount
	for i := range contributors {
		contributors[i].Amount = contributors[i].Reserved
		assigned = assigned.Add(contributors[i].Amount)
	}

	target := stakingRequirement
	if totalReserved < target {
		target = totalReserved
	}
	if assigned < target {
		dust := target.Sub(assigned)
		last := len(contributors) - 1
		contributors[last].Amount = contributors[last].Amount.Add(dust)
	}
}
