// Package nodeinfo implements NodeInfo, the unit of the service-node
// registry (spec.md §3, §4.1). A NodeInfo is owned exclusively by the
// StateSnapshot that contains it; mutation is always copy-on-write —
// clone to a new NodeInfo, then the snapshot replaces the shared
// reference. This package never mutates a NodeInfo in place.
package nodeinfo

import (
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Contribution is one contributor's stake within a node.
type Contribution struct {
	Address primitives.Address
	Reserved primitives.Amount
	Amount   primitives.Amount
	Locked   []LockedContribution
}

// LockedContribution is a single locked (pre-infinite-staking) output
// backing a contributor's stake.
type LockedContribution struct {
	KeyImage primitives.KeyImage
	Amount   primitives.Amount
}

// PulseSorter orders validators for Pulse quorum candidate selection:
// least-recently-used (by last_height_validating_in_quorum, then
// quorum_index) validators are preferred, per spec §4.4 step 2.
type PulseSorter struct {
	LastHeightValidatingInQuorum primitives.Height
	QuorumIndex                 int
}

// Less orders two sorters ascending: (height, index) lexicographic,
// matching the source's sort key exactly.
func (s PulseSorter) Less(o PulseSorter) bool {
	if s.LastHeightValidatingInQuorum != o.LastHeightValidatingInQuorum {
		return s.LastHeightValidatingInQuorum < o.LastHeightValidatingInQuorum
	}
	return s.QuorumIndex < o.QuorumIndex
}

// ProofInfo tracks the most recent uptime proof accepted for a node:
// IP history, reachability windows, and the pubkeys/version tuples
// advertised in the proof (spec §4.5 handle_uptime_proof).
type ProofInfo struct {
	PublicIP            string
	LastIPChangeHeight   primitives.Height
	StorageServerReachable bool
	StorageServerLastReachable int64
	StorageServerFirstUnreachable int64
	LokinetReachable      bool
	LokinetLastReachable  int64
	LokinetFirstUnreachable int64
	TimestampUnix         int64
	PubkeyEd25519         primitives.PubKey
	PubkeyX25519          primitives.X25519PubKey
	PubkeyBLS             primitives.BLSPubKey // present during HF20/21 transition
	VersionMajor, VersionMinor, VersionPatch int
}

// NodeInfo is the unit of the service-node registry (spec §3).
// Every field here is copy-on-write: mutation produces a new NodeInfo
// value, never a pointer mutation against a shared instance.
type NodeInfo struct {
	Version uint8 // monotonic schema-migration tag, see spec §9

	StakingRequirement primitives.Amount
	OperatorAddress    primitives.Address
	OperatorEthAddress primitives.EthAddress // post-HF20 registrations

	Contributors     []Contribution
	TotalReserved    primitives.Amount
	TotalContributed primitives.Amount

	RegistrationHeight    primitives.Height
	RegistrationHFVersion primitives.HFVersion

	LastRewardBlockHeight      primitives.Height
	LastRewardTransactionIndex primitives.TxIndex

	// ActiveSinceHeight > 0 while active; negated while decommissioned
	// (spec invariant 2). Zero means never activated.
	ActiveSinceHeight int64

	LastDecommissionHeight primitives.Height
	DecommissionCount      int64
	RecommissionCredit     int64 // blocks

	LastIPChangeHeight primitives.Height

	SwarmID primitives.SwarmID

	PortionsForOperator primitives.Portions

	RequestedUnlockHeight primitives.Height // 0 = none

	PulseSorter PulseSorter

	BLSPublicKey primitives.BLSPubKey // present post-ETH era

	Proof *ProofInfo
}

// Clone returns a deep copy suitable for copy-on-write mutation. The
// returned value shares no backing storage with n.
func (n *NodeInfo) Clone() *NodeInfo {
	if n == nil {
		return nil
	}
	out := *n
	out.Contributors = make([]Contribution, len(n.Contributors))
	for i, c := range n.Contributors {
		out.Contributors[i] = c
		out.Contributors[i].Locked = append([]LockedContribution(nil), c.Locked...)
	}
	if n.Proof != nil {
		p := *n.Proof
		out.Proof = &p
	}
	return &out
}

// IsActive reports whether the node is currently active (not
// decommissioned), spec invariant 2.
func (n *NodeInfo) IsActive() bool { return n.ActiveSinceHeight > 0 }

// IsDecommissioned reports whether the node is temporarily suspended.
func (n *NodeInfo) IsDecommissioned() bool { return n.ActiveSinceHeight < 0 }

// IsFullyFunded reports whether total_contributed has reached
// staking_requirement.
func (n *NodeInfo) IsFullyFunded() bool {
	return n.TotalContributed >= n.StakingRequirement
}

// IsPayable reports whether the node is eligible for rewards at h: it
// must be active, fully funded, and h must be at or after its
// registration height. net is not consulted; every network uses the
// same rule.
func (n *NodeInfo) IsPayable(h primitives.Height, net params.Network) bool {
	if !n.IsActive() || !n.IsFullyFunded() {
		return false
	}
	return h >= n.RegistrationHeight
}

// TotalNumLockedContributions sums the locked-contribution count
// across all contributors.
func (n *NodeInfo) TotalNumLockedContributions() int {
	total := 0
	for _, c := range n.Contributors {
		total += len(c.Locked)
	}
	return total
}

// ProposedState enumerates the state-change votes a state_change tx
// may request (spec §4.2 step 9).
type ProposedState int

const (
	ProposedDecommission ProposedState = iota
	ProposedRecommission
	ProposedDeregister
	ProposedIPChangePenalty
)

// CanTransitionTo validates a proposed state change against the
// node's current status (spec §4.1): decommission needs an active,
// fully funded node; recommission needs a decommissioned node and a
// height past LastDecommissionHeight; an IP-change penalty needs an
// active node; deregistration is always allowed. hf is not consulted;
// the rules are the same for every hard fork.
func (n *NodeInfo) CanTransitionTo(hf primitives.HFVersion, height primitives.Height, proposed ProposedState) bool {
	switch proposed {
	case ProposedDecommission:
		return n.IsActive() && n.IsFullyFunded()
	case ProposedRecommission:
		if !n.IsDecommissioned() {
			return false
		}
		minHeight := n.LastDecommissionHeight.Add(1)
		return height >= minHeight
	case ProposedDeregister:
		return true
	case ProposedIPChangePenalty:
		return n.IsActive()
	default:
		return false
	}
}
