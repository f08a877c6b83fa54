package nodeinfo

import (
	"testing"

	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

func fullyFundedNode() *NodeInfo {
	return &NodeInfo{
		StakingRequirement: 100,
		Contributors: []Contribution{
			{Address: primitives.Address{1}, Amount: 100, Reserved: 100},
		},
		TotalReserved:     100,
		TotalContributed:  100,
		ActiveSinceHeight: 50,
		RegistrationHeight: 50,
	}
}

func TestIsActive_IsDecommissioned(t *testing.T) {
	tests := []struct {
		name              string
		activeSinceHeight int64
		wantActive        bool
		wantDecommissioned bool
	}{
		{"active", 50, true, false},
		{"decommissioned", -50, false, true},
		{"never activated", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &NodeInfo{ActiveSinceHeight: tt.activeSinceHeight}
			assert.Equal(t, tt.wantActive, n.IsActive())
			assert.Equal(t, tt.wantDecommissioned, n.IsDecommissioned())
		})
	}
}

func TestIsFullyFunded(t *testing.T) {
	n := fullyFundedNode()
	assert.True(t, n.IsFullyFunded())

	n.TotalContributed = 99
	assert.False(t, n.IsFullyFunded())
}

func TestIsPayable(t *testing.T) {
	n := fullyFundedNode()
	assert.True(t, n.IsPayable(primitives.Height(50), params.Mainnet))
	assert.False(t, n.IsPayable(primitives.Height(49), params.Mainnet))

	n.ActiveSinceHeight = -50
	assert.False(t, n.IsPayable(primitives.Height(100), params.Mainnet))
}

func TestTotalNumLockedContributions(t *testing.T) {
	n := &NodeInfo{
		Contributors: []Contribution{
			{Locked: []LockedContribution{{}, {}}},
			{Locked: []LockedContribution{{}}},
		},
	}
	assert.Equal(t, 3, n.TotalNumLockedContributions())
}

func TestClone_IsIndependent(t *testing.T) {
	n := fullyFundedNode()
	clone := n.Clone()
	clone.Contributors[0].Amount = 1
	clone.TotalContributed = 1

	assert.Equal(t, primitives.Amount(100), n.Contributors[0].Amount)
	assert.Equal(t, primitives.Amount(100), n.TotalContributed)
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(n *NodeInfo)
		wantErr bool
	}{
		{"valid", func(n *NodeInfo) {}, false},
		{"over-reserved", func(n *NodeInfo) { n.TotalReserved = 200 }, true},
		{"contributed exceeds reserved", func(n *NodeInfo) { n.TotalContributed = 200; n.Contributors[0].Amount = 200 }, true},
		{"reserved exceeds requirement", func(n *NodeInfo) { n.TotalReserved = 200; n.StakingRequirement = 100 }, true},
		{"sum mismatch", func(n *NodeInfo) { n.TotalContributed = 50 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := fullyFundedNode()
			tt.mutate(n)
			err := n.CheckInvariants(4)
			if tt.wantErr {
				require.NotNil(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanTransitionTo_Recommission(t *testing.T) {
	n := fullyFundedNode()
	n.ActiveSinceHeight = -50
	n.LastDecommissionHeight = 50

	assert.False(t, n.CanTransitionTo(params.HF9ServiceNodes, 50, ProposedRecommission))
	assert.True(t, n.CanTransitionTo(params.HF9ServiceNodes, 60, ProposedRecommission))
}

func TestMaxContributors(t *testing.T) {
	cfg := params.Get()
	assert.Equal(t, cfg.MaxContributorsV1, MaxContributors(params.HF9ServiceNodes, params.HF19RewardBatching, cfg.MaxContributorsV1, cfg.MaxContributorsHF19))
	assert.Equal(t, cfg.MaxContributorsHF19, MaxContributors(params.HF19RewardBatching, params.HF19RewardBatching, cfg.MaxContributorsV1, cfg.MaxContributorsHF19))
}
