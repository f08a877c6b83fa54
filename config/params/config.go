// Package params holds the service-node/Pulse consensus configuration:
// every ENUMERATED constant from the specification plus the hard-fork
// version thresholds that gate rule changes throughout chain/*.
//
// The shape mirrors the teacher's params.BeaconConfig() singleton:
// a plain struct returned by a package-level accessor, swappable in
// tests via OverrideForTest.
package params

import (
	"sync"
	"time"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Network identifies which network a Config describes.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Devnet  Network = "devnet"
)

// Hard-fork version thresholds, in the order the source introduces
// the corresponding rule changes. Values are illustrative identifiers
// for this codebase, not wire-format version numbers.
const (
	HF9ServiceNodes        primitives.HFVersion = 9
	HF11InfiniteStaking    primitives.HFVersion = 11
	HF16Pulse              primitives.HFVersion = 16
	HF19RewardBatching     primitives.HFVersion = 19
	HF20EthTransition      primitives.HFVersion = 20
	HF21EthBLS             primitives.HFVersion = 21
)

// Config carries every tunable named in spec.md §6.
type Config struct {
	Network Network

	// Reward / history bookkeeping.
	StateChangeTxLifetimeBlocks  uint64
	StoreLongTermStateInterval   uint64 // LONG_TERM_INTERVAL = 10000
	ShortTermHistoryMultiplier   uint64 // short-term window = N * StateChangeTxLifetimeBlocks

	// Pulse timing.
	PulseRoundTimeout         time.Duration
	PulseStageTimeout         time.Duration
	PulseMaxStartAdjustment   time.Duration
	PulseQuorumEntropyLag     uint64
	PulseQuorumNumValidators  int // = 11
	PulseBlockRequiredSigs    int
	PulseMinServiceNodes      int
	HistoricalQuorumRingSize  int // bounded ring, size 3 per spec §4.6

	// Contributor limits.
	MaxContributorsV1   int // 4 pre-HF19
	MaxContributorsHF19 int // 10 from HF19

	// Quorum sizing.
	ReorgSafetyBufferBlocksPostHF12 uint64 // = 11
	CheckpointInterval              uint64
	BlinkQuorumInterval             uint64
	BlinkExpiryBuffer                uint64
	StateChangeQuorumSize            int
	CheckpointQuorumSize             int
	ObligationsMinNodesToTest        int
	ObligationsNthToTest             int

	// Uptime proofs.
	UptimeProofFrequency  time.Duration
	UptimeProofTolerance  time.Duration
	MinUptimeProofVersion [3]int // oxend version floor a proof must advertise

	// Decommission / deregistration / unlock.
	DecommissionInitialCreditBlocks int64
	DeregistrationLockDuration      uint64
	UnlockDuration                  uint64
	EthRemovalBuffer                uint64

	// PreHF11LockBlocksExcessBuffer is the legacy grace period added on
	// top of registration_height+UnlockDuration for nodes that
	// registered before HF11InfiniteStaking introduced
	// requested_unlock_height-based expiry (get_expired_nodes' "Version
	// 10 Bulletproofs" branch). The filtered original_source doesn't
	// carry cryptonote_config.h's STAKING_REQUIREMENT_LOCK_BLOCKS_EXCESS
	// definition, so this value is an open-question decision: sized to
	// the same order as the other post-registration grace buffers in
	// this table rather than guessed from nothing. See DESIGN.md.
	PreHF11LockBlocksExcessBuffer uint64

	// Reward batching.
	BatchRewardFactor uint64

	// L2 (Ethereum) vote thresholds.
	L2FullScore       uint64
	L2ConfirmThreshold uint64
	L2DenyThreshold    uint64
	L2MaxAgeBlocks     uint64

	// HF19 historical anomaly: unlock predicate compared the raw
	// contribution amount (no atomic-unit scaling) against this
	// constant. See chain/snapshot/unlock.go.
	HF19SmallContributorThreshold uint64

	// Swarm re-partitioning (spec §4.2.2).
	MinSwarmSize   int
	MaxSwarmSize   int
	IdealSwarmSize int

	// Coinbase validation (spec §4.5.1).
	GovernanceInterval uint64 // governance output included every Nth block (= weekly)
}

var (
	mu     sync.RWMutex
	active = Mainnet_()
)

// Get returns the currently active configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	cfg := *active
	return &cfg
}

// Set replaces the active configuration.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	active = cfg
}

// OverrideForTest installs cfg as the active configuration for the
// duration of t, restoring the previous configuration on cleanup.
// Mirrors the teacher's params.OverrideBeaconConfig(t) test helper.
func OverrideForTest(t testingT, cfg *Config) {
	mu.Lock()
	prev := active
	active = cfg
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		active = prev
		mu.Unlock()
	})
}

// testingT is the subset of *testing.T used by OverrideForTest, kept
// narrow so params doesn't import "testing" directly.
type testingT interface {
	Cleanup(func())
}

// Mainnet_ returns the production network configuration. (Named with a
// trailing underscore to avoid colliding with the Network constant
// Mainnet above — callers normally use params.Get() instead.)
func Mainnet_() *Config {
	return &Config{
		Network: Mainnet,

		StateChangeTxLifetimeBlocks: 720,
		StoreLongTermStateInterval:  10000,
		ShortTermHistoryMultiplier:  6,

		PulseRoundTimeout:        60 * time.Second,
		PulseStageTimeout:        6 * time.Second,
		PulseMaxStartAdjustment:  5 * time.Second,
		PulseQuorumEntropyLag:    60,
		PulseQuorumNumValidators: 11,
		PulseBlockRequiredSigs:   7,
		PulseMinServiceNodes:     11,
		HistoricalQuorumRingSize: 3,

		MaxContributorsV1:   4,
		MaxContributorsHF19: 10,

		ReorgSafetyBufferBlocksPostHF12: 11,
		CheckpointInterval:              60,
		BlinkQuorumInterval:             5,
		BlinkExpiryBuffer:               20,
		StateChangeQuorumSize:           10,
		CheckpointQuorumSize:            20,
		ObligationsMinNodesToTest:       10,
		ObligationsNthToTest:            100,

		UptimeProofFrequency:  60 * time.Minute,
		UptimeProofTolerance:  5 * time.Minute,
		MinUptimeProofVersion: [3]int{10, 0, 0},

		DecommissionInitialCreditBlocks: 720,
		DeregistrationLockDuration:      30 * 720,
		UnlockDuration:                  30 * 720,
		EthRemovalBuffer:                10000,
		PreHF11LockBlocksExcessBuffer:   720,

		BatchRewardFactor: 1000,

		L2FullScore:        1_000_000,
		L2ConfirmThreshold: 2_500_000,
		L2DenyThreshold:    2_500_000,
		L2MaxAgeBlocks:     10000,

		HF19SmallContributorThreshold: 3749,

		MinSwarmSize:   5,
		MaxSwarmSize:   10,
		IdealSwarmSize: 6,

		GovernanceInterval: 5040,
	}
}

// Testnet_ returns the testnet configuration: identical rule shape,
// shorter timers so integration tests don't wait on mainnet cadences.
func Testnet_() *Config {
	cfg := *Mainnet_()
	cfg.Network = Testnet
	cfg.PulseRoundTimeout = 10 * time.Second
	cfg.PulseStageTimeout = 2 * time.Second
	cfg.CheckpointInterval = 10
	cfg.UptimeProofFrequency = 5 * time.Minute
	return &cfg
}

// Devnet_ returns a configuration tuned for fast local iteration.
func Devnet_() *Config {
	cfg := *Testnet_()
	cfg.Network = Devnet
	cfg.PulseMinServiceNodes = 2
	cfg.PulseBlockRequiredSigs = 2
	cfg.StateChangeQuorumSize = 2
	cfg.CheckpointQuorumSize = 2
	return &cfg
}
