package snse

import (
	"testing"

	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

func singleContributorNode(staking primitives.Amount, operatorPortions primitives.Portions) *nodeinfo.NodeInfo {
	addr := primitives.Address{1}
	return &nodeinfo.NodeInfo{
		StakingRequirement:  staking,
		OperatorAddress:     addr,
		PortionsForOperator: operatorPortions,
		Contributors: []nodeinfo.Contribution{
			{Address: addr, Amount: staking},
		},
		TotalContributed: staking,
		ActiveSinceHeight: 10,
	}
}

func TestValidateMinerTx_MinerMode(t *testing.T) {
	cfg := params.Get()
	leader := singleContributorNode(100, 0)
	block := &iface.Block{
		Height:         100,
		HFVersion:      params.HF9ServiceNodes,
		MinerTxOutputs: []iface.Output{{Amount: 10}}, // miner's own vout
	}
	reward := RewardParts{BaseMiner: 5, MinerFee: 5, ServiceNodeTotal: 0}

	err := ValidateMinerTx(cfg, params.HF9ServiceNodes, block.Height, block, primitives.PubKey{9}, leader, nil, reward, nil)
	require.NoError(t, err)
}

func TestValidateMinerTx_PulseLeaderIsProducer(t *testing.T) {
	cfg := params.Get()
	leaderKey := primitives.PubKey{1}
	leader := singleContributorNode(100, 0)

	block := &iface.Block{
		Height:    200,
		HFVersion: params.HF16Pulse,
		Pulse:     &iface.PulseHeader{Producer: leaderKey},
		MinerTxOutputs: []iface.Output{
			{Amount: 100, Recipient: leader.OperatorAddress},
		},
	}
	reward := RewardParts{ServiceNodeTotal: 100}

	err := ValidateMinerTx(cfg, params.HF16Pulse, block.Height, block, leaderKey, leader, nil, reward, nil)
	require.NoError(t, err)
}

func TestValidateMinerTx_PulseLeaderIsProducer_WrongTotal(t *testing.T) {
	cfg := params.Get()
	leaderKey := primitives.PubKey{1}
	leader := singleContributorNode(100, 0)

	block := &iface.Block{
		Height:    200,
		HFVersion: params.HF16Pulse,
		Pulse:     &iface.PulseHeader{Producer: leaderKey},
		MinerTxOutputs: []iface.Output{
			{Amount: 90, Recipient: leader.OperatorAddress},
		},
	}
	reward := RewardParts{ServiceNodeTotal: 100}

	err := ValidateMinerTx(cfg, params.HF16Pulse, block.Height, block, leaderKey, leader, nil, reward, nil)
	require.NotNil(t, err)
}

func TestValidateMinerTx_PulseDifferentProducer(t *testing.T) {
	cfg := params.Get()
	leaderKey := primitives.PubKey{1}
	producerKey := primitives.PubKey{2}
	leader := singleContributorNode(100, 0)
	producer := singleContributorNode(50, 0)

	block := &iface.Block{
		Height:    201,
		HFVersion: params.HF16Pulse,
		Pulse:     &iface.PulseHeader{Producer: producerKey},
		MinerTxOutputs: []iface.Output{
			{Amount: 5, Recipient: producer.OperatorAddress},
			{Amount: 100, Recipient: leader.OperatorAddress},
		},
	}
	reward := RewardParts{ServiceNodeTotal: 100, MinerFee: 5}

	err := ValidateMinerTx(cfg, params.HF16Pulse, block.Height, block, leaderKey, leader, producer, reward, nil)
	require.NoError(t, err)
}

func TestValidateMinerTx_BatchedRewards(t *testing.T) {
	cfg := params.Get()
	block := &iface.Block{
		Height:    cfg.GovernanceInterval + 1,
		HFVersion: params.HF19RewardBatching,
		MinerTxOutputs: []iface.Output{
			{Amount: 1000, Recipient: primitives.Address{1}},
			{Amount: 2000, Recipient: primitives.Address{2}},
		},
	}
	batched := []BatchedPayment{
		{Recipient: primitives.Address{1}, MilliAtomic: 1000 * cfg.BatchRewardFactor},
		{Recipient: primitives.Address{2}, MilliAtomic: 2000 * cfg.BatchRewardFactor},
	}

	err := ValidateMinerTx(cfg, params.HF19RewardBatching, block.Height, block, primitives.PubKey{}, nil, nil, RewardParts{}, batched)
	require.NoError(t, err)
}

func TestValidateMinerTx_BatchedRewards_Mismatch(t *testing.T) {
	cfg := params.Get()
	block := &iface.Block{
		Height:    1,
		HFVersion: params.HF19RewardBatching,
		MinerTxOutputs: []iface.Output{
			{Amount: 999, Recipient: primitives.Address{1}},
		},
	}
	batched := []BatchedPayment{
		{Recipient: primitives.Address{1}, MilliAtomic: 1000 * cfg.BatchRewardFactor},
	}

	err := ValidateMinerTx(cfg, params.HF19RewardBatching, block.Height, block, primitives.PubKey{}, nil, nil, RewardParts{}, batched)
	require.NotNil(t, err)
}

func TestValidateMinerTx_ArbitrumRewards_NoOutputs(t *testing.T) {
	cfg := params.Get()
	block := &iface.Block{Height: 1, HFVersion: params.HF21EthBLS}

	err := ValidateMinerTx(cfg, params.HF21EthBLS, block.Height, block, primitives.PubKey{}, nil, nil, RewardParts{}, nil)
	require.NoError(t, err)
}

func TestValidateMinerTx_ArbitrumRewards_RejectsOutputs(t *testing.T) {
	cfg := params.Get()
	block := &iface.Block{
		Height:         1,
		HFVersion:      params.HF21EthBLS,
		MinerTxOutputs: []iface.Output{{Amount: 1}},
	}

	err := ValidateMinerTx(cfg, params.HF21EthBLS, block.Height, block, primitives.PubKey{}, nil, nil, RewardParts{}, nil)
	require.NotNil(t, err)
}

func TestValidateMinerTx_PulseEraNonZeroBaseMinerRejected(t *testing.T) {
	cfg := params.Get()
	leaderKey := primitives.PubKey{1}
	leader := singleContributorNode(100, 0)
	block := &iface.Block{
		Height:    200,
		HFVersion: params.HF16Pulse,
		Pulse:     &iface.PulseHeader{Producer: leaderKey},
	}
	reward := RewardParts{BaseMiner: 1, ServiceNodeTotal: 100}

	err := ValidateMinerTx(cfg, params.HF16Pulse, block.Height, block, leaderKey, leader, nil, reward, nil)
	require.NotNil(t, err)
}

func TestHeightHasGovernanceOutput(t *testing.T) {
	cfg := params.Get()
	assert.True(t, HeightHasGovernanceOutput(cfg, params.HF16Pulse, primitives.Height(cfg.GovernanceInterval)))
	assert.False(t, HeightHasGovernanceOutput(cfg, params.HF16Pulse, primitives.Height(cfg.GovernanceInterval+1)))
	assert.False(t, HeightHasGovernanceOutput(cfg, params.HF19RewardBatching, primitives.Height(cfg.GovernanceInterval)))
}
