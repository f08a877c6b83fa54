package snapshot

import (
	"github.com/syssiproject/oxen-core-sub000/chain/errors"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// StateChangeArgs is the parsed content of a decommission / recommission
// / deregister / ip_change_penalty tx (spec §4.2 step 9).
type StateChangeArgs struct {
	Target   primitives.PubKey
	Proposed nodeinfo.ProposedState
}

// KeyImageUnlockArgs is the parsed content of a pre-ETH
// key_image_unlock tx.
type KeyImageUnlockArgs struct {
	Target   primitives.PubKey
	KeyImage primitives.KeyImage
}

// L2EventArgs is the parsed content of an ethereum_new_service_node /
// _removal_request / _removal tx, not yet confirmed (spec §4.2 step 9).
type L2EventArgs struct {
	Kind    L2EventKind
	Payload L2EventPayload
}

// DecodedTx is one already-parsed transaction update_from_block
// applies, in block order. Exactly one of the typed fields is set;
// decoding raw transaction bytes into this shape is owned by the
// (out of scope) blockchain validation layer and chain/snse, which
// dispatches on iface.TxType before calling UpdateFromBlock.
type DecodedTx struct {
	Hash primitives.TxHash

	StateChange    *StateChangeArgs
	Registration   *RegistrationArgs
	Contribution   *ContributionArgs
	KeyImageUnlock *KeyImageUnlockArgs
	L2Event        *L2EventArgs

	// RegistrationPubKey is the node pubkey a Registration installs.
	RegistrationPubKey primitives.PubKey
}

// apply dispatches tx to the matching snapshot mutator, per the
// per-type rules of spec §4.2 step 9.
func (tx *DecodedTx) apply(cfg *params.Config, hf primitives.HFVersion, height primitives.Height, s *StateSnapshot) error {
	switch {
	case tx.StateChange != nil:
		return s.applyStateChange(cfg, hf, height, tx.Hash, *tx.StateChange)
	case tx.Registration != nil:
		return s.applyRegistration(cfg, hf, height, tx.Hash, *tx.Registration, tx.RegistrationPubKey)
	case tx.Contribution != nil:
		return s.applyContribution(cfg, hf, tx.Hash, *tx.Contribution)
	case tx.KeyImageUnlock != nil:
		return s.applyKeyImageUnlock(cfg, hf, height, tx.Hash, tx.KeyImageUnlock.Target, tx.KeyImageUnlock.KeyImage)
	case tx.L2Event != nil:
		s.insertPending(tx.Hash, &PendingL2Event{
			Kind:         tx.L2Event.Kind,
			HeightAdded:  height,
			InitialScore: cfg.L2FullScore,
			Payload:      tx.L2Event.Payload,
		})
		return nil
	default:
		return &errors.InternalLogicError{Reason: "DecodedTx has no typed payload set"}
	}
}

// applyStateChange resolves the obligations-quorum-backed vote target
// and mutates it according to proposed (spec §4.2 step 9's
// state_change handling). Vote-count-vs-quorum-size threshold
// enforcement is the caller's responsibility (chain/snse), since it
// depends on the *historical* quorum at the tx's referenced height,
// which lives in chain/history rather than chain/snapshot.
func (s *StateSnapshot) applyStateChange(cfg *params.Config, hf primitives.HFVersion, height primitives.Height, txHash primitives.TxHash, args StateChangeArgs) error {
	node, ok := s.Nodes[args.Target]
	if !ok {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "state_change targets unknown node"}
	}
	if !node.CanTransitionTo(hf, height, args.Proposed) {
		return &errors.InvalidRegistration{TxHash: txHash, Reason: "node cannot transition to proposed state"}
	}

	next := node.Clone()
	switch args.Proposed {
	case nodeinfo.ProposedDecommission:
		next.ActiveSinceHeight = -next.ActiveSinceHeight
		next.LastDecommissionHeight = height
		next.DecommissionCount++
		next.SwarmID = primitives.UnassignedSwarmID
		s.putNode(args.Target, next)

	case nodeinfo.ProposedRecommission:
		decommBlocks := int64(height) - int64(next.LastDecommissionHeight)
		next.RecommissionCredit = recommissionCredit(next.RecommissionCredit, decommBlocks, cfg.DecommissionInitialCreditBlocks)
		next.ActiveSinceHeight = int64(height)
		s.putNode(args.Target, next)

	case nodeinfo.ProposedDeregister:
		s.KeyImageBlacklist = append(s.KeyImageBlacklist, blacklistEntriesFor(cfg, next, height)...)
		delete(s.Nodes, args.Target)

	case nodeinfo.ProposedIPChangePenalty:
		next.LastIPChangeHeight = height
		s.putNode(args.Target, next)
	}
	return nil
}

// recommissionCredit restores credit spent while decommissioned,
// capped at the network's initial grant. The source's
// RECOMMISSION_CREDIT macro body wasn't available to this port; this
// mirrors its documented behavior (credit regenerates while
// decommissioned, capped at the initial grant) — see DESIGN.md.
func recommissionCredit(prevCredit, blocksDecommissioned, initial int64) int64 {
	credit := prevCredit + blocksDecommissioned
	if credit > initial {
		credit = initial
	}
	return credit
}
