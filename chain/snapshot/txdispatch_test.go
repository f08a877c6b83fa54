package snapshot

import (
	"testing"

	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

func activeNode(stakingReq primitives.Amount, since int64) *nodeinfo.NodeInfo {
	return &nodeinfo.NodeInfo{
		StakingRequirement: stakingReq,
		TotalContributed:   stakingReq,
		ActiveSinceHeight:  since,
		OperatorAddress:    addrN(1),
		Contributors:       []nodeinfo.Contribution{{Address: addrN(1), Amount: stakingReq}},
	}
}

func TestApplyStateChange_Decommission(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	s.Nodes[pubkeyN(1)] = activeNode(100, 10)

	err := s.applyStateChange(cfg, params.HF16Pulse, 20, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(1), Proposed: nodeinfo.ProposedDecommission,
	})
	require.NoError(t, err)

	node := s.Nodes[pubkeyN(1)]
	assert.True(t, node.IsDecommissioned())
	assert.Equal(t, int64(1), node.DecommissionCount)
	assert.Equal(t, primitives.UnassignedSwarmID, node.SwarmID)
}

func TestApplyStateChange_DecommissionRejectedWhenNotFunded(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	n := activeNode(100, 10)
	n.TotalContributed = 50
	s.Nodes[pubkeyN(1)] = n

	err := s.applyStateChange(cfg, params.HF16Pulse, 20, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(1), Proposed: nodeinfo.ProposedDecommission,
	})
	require.NotNil(t, err)
}

func TestApplyStateChange_RecommissionRestoresCredit(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	n := activeNode(100, 10)
	n.ActiveSinceHeight = -10
	n.LastDecommissionHeight = 10
	n.RecommissionCredit = 100
	s.Nodes[pubkeyN(1)] = n

	err := s.applyStateChange(cfg, params.HF16Pulse, 130, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(1), Proposed: nodeinfo.ProposedRecommission,
	})
	require.NoError(t, err)

	node := s.Nodes[pubkeyN(1)]
	assert.True(t, node.IsActive())
	assert.Equal(t, int64(130), node.ActiveSinceHeight)
	// 100 prior credit + 120 blocks decommissioned, below the initial-grant cap.
	assert.Equal(t, int64(220), node.RecommissionCredit)
}

func TestApplyStateChange_RecommissionRejectedBeforeMinHeight(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	n := activeNode(100, 10)
	n.ActiveSinceHeight = -10
	n.LastDecommissionHeight = 50
	s.Nodes[pubkeyN(1)] = n

	err := s.applyStateChange(cfg, params.HF16Pulse, 50, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(1), Proposed: nodeinfo.ProposedRecommission,
	})
	require.NotNil(t, err)
}

func TestApplyStateChange_DeregisterBlacklistsLockedKeyImages(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	n := activeNode(100, 10)
	n.Contributors[0].Locked = []nodeinfo.LockedContribution{{KeyImage: primitives.KeyImage{7}, Amount: 100}}
	s.Nodes[pubkeyN(1)] = n

	err := s.applyStateChange(cfg, params.HF16Pulse, 20, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(1), Proposed: nodeinfo.ProposedDeregister,
	})
	require.NoError(t, err)

	_, exists := s.Nodes[pubkeyN(1)]
	assert.False(t, exists)
	require.Equal(t, 1, len(s.KeyImageBlacklist))
	assert.Equal(t, primitives.KeyImage{7}, s.KeyImageBlacklist[0].KeyImage)
	assert.Equal(t, primitives.Height(20).Add(cfg.DeregistrationLockDuration), s.KeyImageBlacklist[0].UnlockHeight)
}

func TestApplyStateChange_IPChangePenaltyRecordsHeight(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	s.Nodes[pubkeyN(1)] = activeNode(100, 10)

	err := s.applyStateChange(cfg, params.HF16Pulse, 42, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(1), Proposed: nodeinfo.ProposedIPChangePenalty,
	})
	require.NoError(t, err)
	assert.Equal(t, primitives.Height(42), s.Nodes[pubkeyN(1)].LastIPChangeHeight)
}

func TestApplyStateChange_RejectsUnknownTarget(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	err := s.applyStateChange(cfg, params.HF16Pulse, 1, primitives.TxHash{1}, StateChangeArgs{
		Target: pubkeyN(9), Proposed: nodeinfo.ProposedDecommission,
	})
	require.NotNil(t, err)
}

func TestRecommissionCredit_CapsAtInitialGrant(t *testing.T) {
	got := recommissionCredit(50, 1000, 100)
	assert.Equal(t, int64(100), got)
}

func TestRecommissionCredit_AccumulatesBelowCap(t *testing.T) {
	got := recommissionCredit(10, 20, 100)
	assert.Equal(t, int64(30), got)
}

func TestDecodedTxApply_DispatchesRegistration(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	basis := portionsBasis(params.HF16Pulse)
	tx := DecodedTx{
		Hash:               primitives.TxHash{1},
		RegistrationPubKey: pubkeyN(1),
		Registration: &RegistrationArgs{
			OperatorAddress:    addrN(1),
			StakingRequirement: 100,
			Reserved:           []ReservedContribution{{Address: addrN(1), Portions: basis}},
		},
	}
	err := tx.apply(cfg, params.HF16Pulse, 10, s)
	require.NoError(t, err)
	_, exists := s.Nodes[pubkeyN(1)]
	assert.True(t, exists)
}

func TestDecodedTxApply_DispatchesL2EventIntoPending(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	tx := DecodedTx{
		Hash: primitives.TxHash{5},
		L2Event: &L2EventArgs{
			Kind:    L2NewServiceNode,
			Payload: L2EventPayload{PrimaryPubKey: pubkeyN(1)},
		},
	}
	err := tx.apply(cfg, params.HF16Pulse, 10, s)
	require.NoError(t, err)

	event, ok := s.PendingL2[primitives.TxHash{5}]
	require.True(t, ok)
	assert.Equal(t, L2NewServiceNode, event.Kind)
	assert.Equal(t, primitives.Height(10), event.HeightAdded)
}

func TestDecodedTxApply_RejectsEmptyPayload(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	tx := DecodedTx{Hash: primitives.TxHash{1}}
	err := tx.apply(cfg, params.HF16Pulse, 10, s)
	require.NotNil(t, err)
}
