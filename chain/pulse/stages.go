package pulse

import (
	"context"
	cryptorand "crypto/rand"
	"math/rand"
	"sort"

	"github.com/prysmaticlabs/go-bitfield"

	chaincrypto "github.com/syssiproject/oxen-core-sub000/chain/crypto"
	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// tickHandshakes: send a handshake once, then wait until every
// validator slot has reported in or the stage timer elapses (spec
// §4.6 "Handshake stage").
func (c *Context) tickHandshakes(now int64) error {
	if !c.sentHandshake && !c.faults.SkipSend(c.round, c.stage) {
		if err := c.send(iface.MsgHandshake, nil); err != nil {
			return err
		}
		c.sentHandshake = true
		c.handshakes[c.myIndex] = nil
	}

	complete := len(c.handshakes) >= len(c.result.Validators)
	if !complete && !deadlinePassed(now, c.stageEndTimes[0]) {
		return nil
	}

	c.stage = StageSendBitset
	return nil
}

// observedBitset reports, as a bitvector indexed by quorum position,
// which validators this node received a handshake from.
func (c *Context) observedBitset() bitfield.Bitvector64 {
	b := bitfield.NewBitvector64()
	for pos := range c.handshakes {
		b.SetBitAt(uint64(pos), true)
	}
	return b
}

// tickSendBitset: send the locally observed handshake bitset once,
// then move straight on to collecting everyone else's (spec §4.6
// "Bitset stage").
func (c *Context) tickSendBitset(now int64) error {
	if !c.sentBitset && !c.faults.SkipSend(c.round, c.stage) {
		observed := c.observedBitset()
		if err := c.send(iface.MsgHandshakeBitset, observed.Bytes()); err != nil {
			return err
		}
		c.sentBitset = true
		c.bitsets[c.myIndex] = observed
	}
	c.stage = StageWaitBitsets
	return nil
}

// modeBitset picks the most frequently reported bitset, breaking ties
// by lowest byte-order value for determinism.
func modeBitset(bitsets map[int]bitfield.Bitvector64) bitfield.Bitvector64 {
	type count struct {
		b bitfield.Bitvector64
		n int
	}
	counts := make(map[string]*count, len(bitsets))
	for _, b := range bitsets {
		key := string(b.Bytes())
		if c, ok := counts[key]; ok {
			c.n++
		} else {
			counts[key] = &count{b: b, n: 1}
		}
	}
	var best *count
	for key, c := range counts {
		if best == nil || c.n > best.n || (c.n == best.n && key < string(best.b.Bytes())) {
			best = c
		}
	}
	if best == nil {
		return bitfield.NewBitvector64()
	}
	return best.b
}

func (c *Context) resolveBitsetAndAdvance(whenIncluded Stage) {
	complete := len(c.bitsets) >= len(c.result.Validators)
	now := c.now()
	if !complete && !deadlinePassed(now, c.stageEndTimes[1]) {
		return
	}

	agreed := modeBitset(c.bitsets)
	if int(agreed.Count()) < c.cfg.PulseBlockRequiredSigs {
		c.endRound()
		return
	}
	c.agreedBitset = agreed

	if c.myIndex >= 0 && !agreed.BitAt(uint64(c.myIndex)) {
		c.endRound()
		return
	}
	c.stage = whenIncluded
}

func (c *Context) tickWaitBitsets(now int64) error {
	c.resolveBitsetAndAdvance(StageWaitTemplate)
	return nil
}

func (c *Context) tickProducerWaitBitsets(now int64) error {
	c.resolveBitsetAndAdvance(StageProducerSendTemplate)
	return nil
}

// tickProducerSendTemplate assembles and broadcasts the block
// template once the quorum bitset is agreed (spec §4.6 "Template
// stage"), then the producer's job is done until the next round.
func (c *Context) tickProducerSendTemplate(ctx context.Context) error {
	block, err := c.store.CreateNextPulseBlockTemplate(ctx, c.round, c.agreedBitset)
	if err != nil {
		c.endRound()
		return err
	}
	block.Pulse = &iface.PulseHeader{Round: c.round, Producer: c.localKey, ValidatorBitset: c.agreedBitset}

	payload, err := c.codec.Encode(block)
	if err != nil {
		c.endRound()
		return err
	}
	if err := c.send(iface.MsgBlockTemplate, payload); err != nil {
		return err
	}
	c.template = block
	c.endRound() // producer's round ends here; prepare_round starts the next one
	return nil
}

// tickWaitTemplate verifies the received template's round/bitset
// match what was agreed, and that every embedded L2 vote matches this
// node's local verdict, before moving on to the random-value exchange
// (spec §4.6 "Template stage"). Transaction-presence checking against
// the local mempool happens at the caller boundary (LoadTransactions
// is out of this package's concern once txs are already embedded).
func (c *Context) tickWaitTemplate(now int64) error {
	if c.template == nil {
		if deadlinePassed(now, c.stageEndTimes[2]) {
			c.endRound()
		}
		return nil
	}
	if c.template.Pulse == nil || c.template.Pulse.Round != c.round ||
		string(c.template.Pulse.ValidatorBitset.Bytes()) != string(c.agreedBitset.Bytes()) {
		c.endRound()
		return nil
	}
	for i, vote := range c.template.L2Votes {
		ourVote, err := c.localL2Vote(i)
		if err != nil {
			continue // no opinion locally; defer to the rest of the quorum's signatures
		}
		if ourVote != vote {
			c.endRound()
			return nil
		}
	}
	c.stage = StageSendWaitHashes
	return nil
}

// localL2Vote asks ChainStore for this node's opinion on the i-th
// oldest pending L2 event. pending_l2 ordering is owned by
// chain/snapshot; chain/pulse only needs the event's hash, which the
// (out of scope) mempool/tracker layer resolves by index.
func (c *Context) localL2Vote(index int) (bool, error) {
	return c.store.L2VoteFor(context.Background(), l2EventHashByIndex(index))
}

func l2EventHashByIndex(index int) primitives.TxHash {
	var h primitives.TxHash
	return h
}

func (c *Context) tickSendHashes(now int64) error {
	if !c.sentHashes && !c.faults.SkipSend(c.round, c.stage) {
		var preimage [32]byte
		if _, err := cryptorand.Read(preimage[:]); err != nil {
			return err
		}
		c.randomPreimage = preimage
		digest, err := chaincrypto.Blake2b256(nil, preimage[:])
		if err != nil {
			return err
		}
		if err := c.send(iface.MsgRandomValueHash, digest[:]); err != nil {
			return err
		}
		c.hashes[c.myIndex] = digest
		c.sentHashes = true
	}

	required := int(c.agreedBitset.Count())
	complete := required > 0 && len(c.hashes) >= required
	if !complete && !deadlinePassed(now, c.stageEndTimes[3]) {
		return nil
	}
	c.stage = StageSendWaitRandom
	return nil
}

func (c *Context) tickSendRandom(now int64) error {
	if !c.sentRandom && !c.faults.SkipSend(c.round, c.stage) {
		if err := c.send(iface.MsgRandomValue, c.randomPreimage[:]); err != nil {
			return err
		}
		c.values[c.myIndex] = c.randomPreimage
		c.sentRandom = true
	}

	required := int(c.agreedBitset.Count())
	complete := required > 0 && len(c.values) >= required
	if !complete && !deadlinePassed(now, c.stageEndTimes[4]) {
		return nil
	}

	final, err := c.combineRandomValues()
	if err != nil {
		return err
	}
	c.finalRandom = final
	if c.template != nil {
		c.template.Pulse.RandomValue = final
	}
	c.stage = StageSendWaitSigned
	return nil
}

// combineRandomValues computes blake2b over every received preimage,
// concatenated in ascending validator-index order, skipping unset
// slots (spec §4.6 "Random-value combination").
func (c *Context) combineRandomValues() ([32]byte, error) {
	indices := make([]int, 0, len(c.values))
	for i := range c.values {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	parts := make([][]byte, 0, len(indices))
	for _, i := range indices {
		v := c.values[i]
		parts = append(parts, v[:])
	}
	return chaincrypto.Blake2b256(nil, parts...)
}

// finalBlockHash is the digest validators sign over in the signing
// stage: the block template's canonical encoding once random_value is
// set.
func (c *Context) finalBlockHash() ([32]byte, error) {
	payload, err := c.codec.Encode(c.template)
	if err != nil {
		return [32]byte{}, err
	}
	return chaincrypto.Blake2b256(nil, payload)
}

func (c *Context) tickSendSigned(ctx context.Context, now int64) error {
	if c.template == nil {
		c.endRound()
		return nil
	}

	if !c.sentSigned && !c.faults.SkipSend(c.round, c.stage) {
		hash, err := c.finalBlockHash()
		if err != nil {
			return err
		}
		sig := c.sign(hash[:])
		msg := &iface.PulseMessage{
			Type: iface.MsgSignedBlock, TopBlockHash: c.topBlockHash,
			Round: c.round, QuorumPosition: c.myIndex, Signature: sig,
		}
		q := iface.Quorum{Validators: c.result.Validators}
		if err := c.net.RelayPulseMessage(ctx, msg, q, c.isProducer); err != nil {
			return err
		}
		c.signatures[c.myIndex] = sig
		c.sentSigned = true
	}

	required := c.cfg.PulseBlockRequiredSigs
	if len(c.signatures) < required && !deadlinePassed(now, c.stageEndTimes[6]) {
		return nil
	}
	if len(c.signatures) < required {
		c.endRound()
		return nil
	}

	indices := make([]int, 0, len(c.signatures))
	for i := range c.signatures {
		indices = append(indices, i)
	}
	rand.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	chosen := indices[:required]
	sort.Ints(chosen)

	sigs := make([]iface.PulseSignature, 0, required)
	for _, i := range chosen {
		sigs = append(sigs, iface.PulseSignature{VoterIndex: i, Signature: c.signatures[i]})
	}
	c.template.Pulse.Signatures = sigs
	c.template.Pulse.ValidatorBitset = c.agreedBitset

	if err := c.store.HandleBlockFound(ctx, c.template); err != nil {
		c.endRound()
		return err
	}
	c.producedBlock = c.template
	c.endRound()
	return nil
}
