package snapshot

import (
	"testing"

	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

// TestApplyL2Votes_ThreeConfirmsAtRoundZeroCrossesThreshold exercises
// scenario S6: L2FullScore (1,000,000) per block at round 0, three
// confirming votes in a row crossing the 2,500,000 confirm threshold
// on the third.
func TestApplyL2Votes_ThreeConfirmsAtRoundZeroCrossesThreshold(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	hash := primitives.TxHash{1}
	s.insertPending(hash, &PendingL2Event{
		Kind:        L2NewServiceNode,
		HeightAdded: 1,
		Payload:     L2EventPayload{PrimaryPubKey: pubkeyN(1), Contributors: []PendingContribution{{Address: addrN(1), Amount: 100}}},
	})

	for i := 0; i < 2; i++ {
		block := &iface.Block{Height: primitives.Height(2 + i), L2Votes: []bool{true}}
		require.NoError(t, applyL2Votes(cfg, s, block))
		_, stillPending := s.PendingL2[hash]
		assert.True(t, stillPending)
	}

	block := &iface.Block{Height: 4, L2Votes: []bool{true}}
	require.NoError(t, applyL2Votes(cfg, s, block))

	_, stillPending := s.PendingL2[hash]
	assert.False(t, stillPending)
	_, registered := s.Nodes[pubkeyN(1)]
	assert.True(t, registered)
}

func TestApplyL2Votes_DenialRemovesPendingWithoutMaterializing(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	hash := primitives.TxHash{1}
	s.insertPending(hash, &PendingL2Event{Kind: L2NewServiceNode, HeightAdded: 1, Payload: L2EventPayload{PrimaryPubKey: pubkeyN(1)}})

	for i := 0; i < 3; i++ {
		block := &iface.Block{Height: primitives.Height(2 + i), L2Votes: []bool{false}}
		require.NoError(t, applyL2Votes(cfg, s, block))
	}

	_, stillPending := s.PendingL2[hash]
	assert.False(t, stillPending)
	_, registered := s.Nodes[pubkeyN(1)]
	assert.False(t, registered)
}

func TestApplyL2Votes_HigherRoundWeighsLess(t *testing.T) {
	cfg := params.Get()
	event := &PendingL2Event{}
	confirmedNow, _ := event.applyVote(cfg, true, 1)
	assert.False(t, confirmedNow)
	assert.Equal(t, cfg.L2FullScore/2, event.Confirmations)
}

func TestApplyL2Votes_ExpiresStaleEvent(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	hash := primitives.TxHash{1}
	s.insertPending(hash, &PendingL2Event{Kind: L2NewServiceNode, HeightAdded: 1})
	s.Height = primitives.Height(1 + cfg.L2MaxAgeBlocks + 1)

	block := &iface.Block{Height: s.Height, L2Votes: nil}
	require.NoError(t, applyL2Votes(cfg, s, block))

	_, stillPending := s.PendingL2[hash]
	assert.False(t, stillPending)
}

func TestApplyL2Votes_OrderingMatchesOldestPendingFirst(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	first, second := primitives.TxHash{1}, primitives.TxHash{2}
	s.insertPending(first, &PendingL2Event{Kind: L2NewServiceNode, HeightAdded: 1, Payload: L2EventPayload{PrimaryPubKey: pubkeyN(1)}})
	s.insertPending(second, &PendingL2Event{Kind: L2NewServiceNode, HeightAdded: 1, Payload: L2EventPayload{PrimaryPubKey: pubkeyN(2)}})

	order := s.orderedPendingHashes()
	require.Equal(t, 2, len(order))
	assert.Equal(t, first, order[0])
	assert.Equal(t, second, order[1])
}

func TestMaterializeNewServiceNode_RejectsDuplicateBLSPubkey(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	bls := primitives.BLSPubKey{1}
	s.Nodes[pubkeyN(9)] = &nodeinfo.NodeInfo{BLSPublicKey: bls}

	event := &PendingL2Event{Payload: L2EventPayload{
		PrimaryPubKey: pubkeyN(1),
		BLSPubKey:     bls,
		Contributors:  []PendingContribution{{Address: addrN(1), Amount: 100}},
	}}
	err := materializeNewServiceNode(cfg, s, 10, event)
	require.NotNil(t, err)
}

func TestMaterializeRemovalRequest_SchedulesUnlockIdempotently(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	bls := primitives.BLSPubKey{2}
	s.Nodes[pubkeyN(1)] = &nodeinfo.NodeInfo{BLSPublicKey: bls}

	event := &PendingL2Event{Payload: L2EventPayload{BLSPubKey: bls}}
	require.NoError(t, materializeRemovalRequest(cfg, s, 100, event))
	assert.Equal(t, primitives.Height(100).Add(cfg.UnlockDuration), s.Nodes[pubkeyN(1)].RequestedUnlockHeight)

	// second call against the already-scheduled node is a no-op, not an error
	require.NoError(t, materializeRemovalRequest(cfg, s, 500, event))
	assert.Equal(t, primitives.Height(100).Add(cfg.UnlockDuration), s.Nodes[pubkeyN(1)].RequestedUnlockHeight)
}

func TestMaterializeRemoval_DeletesNodeOnFullReturn(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	bls := primitives.BLSPubKey{3}
	s.Nodes[pubkeyN(1)] = &nodeinfo.NodeInfo{
		BLSPublicKey:       bls,
		StakingRequirement: 100,
		Contributors:       []nodeinfo.Contribution{{Address: addrN(1), Amount: 100}},
	}

	event := &PendingL2Event{Payload: L2EventPayload{BLSPubKey: bls, ReturnedAmount: 100}}
	require.NoError(t, materializeRemoval(cfg, s, 10, event))
	_, exists := s.Nodes[pubkeyN(1)]
	assert.False(t, exists)
}

func TestMaterializeRemoval_RejectsShortfallExceedingOperatorShare(t *testing.T) {
	cfg := params.Get()
	s := Empty()
	bls := primitives.BLSPubKey{3}
	s.Nodes[pubkeyN(1)] = &nodeinfo.NodeInfo{
		BLSPublicKey:       bls,
		StakingRequirement: 100,
		Contributors:       []nodeinfo.Contribution{{Address: addrN(1), Amount: 10}},
	}

	event := &PendingL2Event{Payload: L2EventPayload{BLSPubKey: bls, ReturnedAmount: 50}}
	err := materializeRemoval(cfg, s, 10, event)
	require.NotNil(t, err)
	_, exists := s.Nodes[pubkeyN(1)]
	assert.True(t, exists)
}
