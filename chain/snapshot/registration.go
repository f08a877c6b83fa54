package snapshot

import (
	"math/bits"

	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// RegistrationArgs is the parsed, pre-validation content of a
// registration (stake/standard) transaction (spec §4.2 step 9).
type RegistrationArgs struct {
	OperatorAddress primitives.Address
	StakingRequirement primitives.Amount
	Reserved        []ReservedContribution
	PortionsForOperator primitives.Portions
	ExpiryHeight    primitives.Height
}

// ReservedContribution is one pre-committed contributor slot in a
// registration.
type ReservedContribution struct {
	Address  primitives.Address
	Portions primitives.Portions
}

// ContributionArgs is the parsed content of a (non-registration)
// "stake" tx funding an existing reserved or open slot.
type ContributionArgs struct {
	Target  primitives.PubKey
	Address primitives.Address
	Amount  primitives.Amount
	KeyImage primitives.KeyImage
}

// applyRegistration validates and installs a new node from a
// registration tx, enforcing the per-HF rules named in spec §4.2 step
// 9: min stake, max contributors, reserved-slot correctness,
// single-output stakes from HF16.
func (s *StateSnapshot) applyRegistration(cfg *params.Config, hf primitives.HFVersion, height primitives.Height, txHash primitives.TxHash, args RegistrationArgs, pub primitives.PubKey) error {
	if _, exists := s.Nodes[pub]; exists {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "pubkey already registered"}
	}

	maxContributors := nodeinfo.MaxContributors(hf, params.HF19RewardBatching, cfg.MaxContributorsV1, cfg.MaxContributorsHF19)
	if len(args.Reserved) > maxContributors {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "reserved contributor count exceeds MAX_CONTRIBUTORS"}
	}
	if len(args.Reserved) == 0 {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "registration must reserve at least the operator slot"}
	}
	if args.Reserved[0].Address != args.OperatorAddress {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "first reserved contributor must be the operator"}
	}

	seen := map[primitives.Address]bool{}
	for _, r := range args.Reserved {
		if seen[r.Address] {
			return &errors.InvalidRegistration{TxHash: txHash, Reason: "duplicate reserved contributor address"}
		}
		seen[r.Address] = true
	}

	var totalPortions primitives.Portions
	for _, r := range args.Reserved {
		totalPortions += r.Portions
	}

	contributors := make([]nodeinfo.Contribution, len(args.Reserved))
	var totalReserved primitives.Amount
	portionBasis := portionsBasis(hf)
	for i, r := range args.Reserved {
		reserved := portionsToAmount(r.Portions, portionBasis, args.StakingRequirement)
		contributors[i] = nodeinfo.Contribution{Address: r.Address, Reserved: reserved}
		totalReserved = totalReserved.Add(reserved)
	}

	// Single-output stakes (HF16+): the whole reserved amount must be
	// contributed in one output at registration time, pre-funding the
	// node immediately rather than waiting for separate stake txs.
	var totalContributed primitives.Amount
	if hf.AtLeast(params.HF16Pulse) {
		contributors[0].Amount = contributors[0].Reserved
		totalContributed = contributors[0].Reserved
		if len(args.Reserved) > 1 {
			return &errors.InvalidRegistration{TxHash: txHash, Reason: "HF16+ registrations must be single-output; additional contributors join via separate stake txs"}
		}
	} else {
		// Pre-HF16: apply the historical dust-redistribution anomaly
		// so portion rounding doesn't silently lose atomic units. See
		// chain/snapshot/registration_legacy.go.
		redistributeDust(contributors, totalReserved, args.StakingRequirement)
		for _, c := range contributors {
			totalContributed = totalContributed.Add(c.Amount)
		}
	}

	node := &nodeinfo.NodeInfo{
		StakingRequirement:    args.StakingRequirement,
		OperatorAddress:       args.OperatorAddress,
		Contributors:          contributors,
		TotalReserved:         totalReserved,
		TotalContributed:      totalContributed,
		RegistrationHeight:    height,
		RegistrationHFVersion: hf,
		LastRewardBlockHeight: height,
		SwarmID:               primitives.UnassignedSwarmID,
		PortionsForOperator:    args.PortionsForOperator,
	}
	if node.TotalContributed >= node.StakingRequirement {
		node.ActiveSinceHeight = int64(height)
	}

	if err := node.CheckInvariants(maxContributors); err != nil {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: err.Error()}
	}

	s.putNode(pub, node)
	return nil
}

// applyContribution funds an existing node's reserved or open slot
// (spec §4.2 step 9 "stake" tx against a node already registered).
func (s *StateSnapshot) applyContribution(cfg *params.Config, hf primitives.HFVersion, txHash primitives.TxHash, args ContributionArgs) error {
	node, ok := s.Nodes[args.Target]
	if !ok {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "contribution targets unknown node"}
	}
	if node.IsFullyFunded() {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "node already fully funded"}
	}

	next := node.Clone()
	idx := -1
	for i, c := range next.Contributors {
		if c.Address == args.Address {
			idx = i
			break
		}
	}
	maxContributors := nodeinfo.MaxContributors(hf, params.HF19RewardBatching, cfg.MaxContributorsV1, cfg.MaxContributorsHF19)
	if idx < 0 {
		if len(next.Contributors) >= maxContributors {
			return &errors.InvalidRegistration{TxHash: txHash, Reason: "contributor count would exceed MAX_CONTRIBUTORS"}
		}
		next.Contributors = append(next.Contributors, nodeinfo.Contribution{Address: args.Address})
		idx = len(next.Contributors) - 1
	}

	next.Contributors[idx].Amount = next.Contributors[idx].Amount.Add(args.Amount)
	next.Contributors[idx].Locked = append(next.Contributors[idx].Locked, nodeinfo.LockedContribution{
		KeyImage: args.KeyImage,
		Amount:   args.Amount,
	})
	next.TotalContributed = next.TotalContributed.Add(args.Amount)
	if next.Contributors[idx].Reserved < next.Contributors[idx].Amount {
		next.TotalReserved = next.TotalReserved.Add(next.Contributors[idx].Amount.Sub(next.Contributors[idx].Reserved))
		next.Contributors[idx].Reserved = next.Contributors[idx].Amount
	}

	if next.TotalContributed >= next.StakingRequirement && next.ActiveSinceHeight == 0 {
		next.ActiveSinceHeight = int64(next.RegistrationHeight)
	}

	if err := next.CheckInvariants(maxContributors); err != nil {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: err.Error()}
	}

	s.putNode(args.Target, next)
	return nil
}

// legacyStakingPortions is the pre-HF19 portion denominator: the
// largest uint64 evenly divisible by the max legacy contributor count
// (4), matching the source's STAKING_PORTIONS constant.
const legacyStakingPortions primitives.Portions = (1<<64 - 1) - (1<<64-1)%4

// portionsBasis returns the denominator used to convert portions to
// an absolute amount; units differ pre/post HF19 per spec §3.
func portionsBasis(hf primitives.HFVersion) primitives.Portions {
	if hf.AtLeast(params.HF19RewardBatching) {
		return 1_000_000_000
	}
	return legacyStakingPortions
}

// portionsToAmount converts a reserved-contributor portion count into
// an absolute stake amount given the node's total staking requirement.
// portions*requirement can exceed 64 bits (legacy basis is close to
// UINT64_MAX), so the multiply-then-divide is done via a 128-bit
// intermediate rather than truncating silently.
func portionsToAmount(portions, basis primitives.Portions, requirement primitives.Amount) primitives.Amount {
	if basis == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(portions), uint64(requirement))
	if hi >= uint64(basis) {
		// portions*requirement doesn't fit in 128 bits divided safely
		// by basis in one bits.Div64 call; this only arises for the
		// legacy near-UINT64_MAX basis with a large requirement, the
		// documented pre-HF16 dust-redistribution anomaly path.
		return primitives.Amount(uint64(portions) / uint64(basis) * uint64(requirement))
	}
	q, _ := bits.Div64(hi, lo, uint64(basis))
	return primitives.Amount(q)
}

// GetStakingRequirement returns the amount of stake required to
// register a node at height h on network net. It returns the same flat
// amount for every network and height: neither argument is consulted,
// and no height-based taper is applied.
func GetStakingRequirement(_ params.Network, _ primitives.Height) primitives.Amount {
	return 100_000_000_000_000
}
