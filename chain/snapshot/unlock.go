package snapshot

import (
	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// applyKeyImageUnlock handles a pre-ETH key_image_unlock tx: locate
// the locked contribution matching keyImage on node pub and schedule
// its RequestedUnlockHeight (spec §4.2 step 9).
func (s *StateSnapshot) applyKeyImageUnlock(cfg *params.Config, hf primitives.HFVersion, height primitives.Height, txHash primitives.TxHash, pub primitives.PubKey, keyImage primitives.KeyImage) error {
	node, ok := s.Nodes[pub]
	if !ok {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "key_image_unlock targets unknown node"}
	}
	if node.RequestedUnlockHeight != 0 {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "node already has a pending unlock"}
	}

	ci, _, found := findLockedContribution(node, keyImage)
	if !found {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "key image not found among locked contributions"}
	}

	if hf == params.HF19RewardBatching {
		contributor := node.Contributors[ci]
		if uint64(contributor.Amount) < cfg.HF19SmallContributorThreshold {
			return &errors.InvalidRegistration{TxHash: txHash, Reason: "contribution below HF19 unlock threshold"}
		}
	}

	next := node.Clone()
	next.RequestedUnlockHeight = height.Add(cfg.UnlockDuration)
	s.putNode(pub, next)
	return nil
}

// findLockedContribution returns the contributor and locked-output
// index backing keyImage, if any.
func findLockedContribution(n *nodeinfo.NodeInfo, keyImage primitives.KeyImage) (contributorIdx, lockedIdx int, found bool) {
	for ci, c := range n.Contributors {
		for li, l := range c.Locked {
			if l.KeyImage == keyImage {
				return ci, li, true
			}
		}
	}
	return 0, 0, false
}

// expireBlacklistEntries drops key_image_blacklist entries whose
// unlock_height has been reached (spec §4.2 step 4).
func (s *StateSnapshot) expireBlacklistEntries(height primitives.Height) {
	kept := s.KeyImageBlacklist[:0]
	for _, e := range s.KeyImageBlacklist {
		if e.UnlockHeight > height {
			kept = append(kept, e)
		}
	}
	s.KeyImageBlacklist = kept
}

// blacklistKeyImages adds one blacklist entry per locked contribution
// of node, unlocking after cfg.DeregistrationLockDuration blocks from
// height (spec §4.2 step 5, Testable Property S3).
func blacklistEntriesFor(cfg *params.Config, node *nodeinfo.NodeInfo, height primitives.Height) []KeyImageBlacklistEntry {
	var out []KeyImageBlacklistEntry
	for _, c := range node.Contributors {
		for _, l := range c.Locked {
			out = append(out, KeyImageBlacklistEntry{
				KeyImage:     l.KeyImage,
				UnlockHeight: height.Add(cfg.DeregistrationLockDuration),
				Amount:       l.Amount,
			})
		}
	}
	return out
}
