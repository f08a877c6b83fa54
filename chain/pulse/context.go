package pulse

import (
	"context"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/sirupsen/logrus"

	chaincrypto "github.com/syssiproject/oxen-core-sub000/chain/crypto"
	"github.com/syssiproject/oxen-core-sub000/chain/cache"
	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/quorum"
	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

var log = logrus.WithField("module", "pulse")

// Signer produces an Ed25519 signature over msg using the local
// node's primary key.
type Signer func(msg []byte) []byte

// Verifier reports whether sig is a valid signature by pub over msg.
type Verifier func(pub primitives.PubKey, msg, sig []byte) bool

// Clock abstracts wall-clock reads so round timing is testable
// without sleeping (compare chain/history's injectable retention
// logic).
type Clock func() int64

// TemplateCodec serializes/deserializes a block template for the wire.
// Block encoding is the (out of scope) blockchain layer's concern;
// chain/pulse only needs a pluggable encode/decode pair, the same way
// chain/snapshot consumes already-decoded transactions rather than
// owning a tx codec.
type TemplateCodec interface {
	Encode(b *iface.Block) ([]byte, error)
	Decode(payload []byte) (*iface.Block, error)
}

// FaultInjector lets tests simulate a validator skipping its outbound
// message for a stage, or arriving late, without touching production
// code paths (spec §4.6 "compile-time fault-injection hooks").
type FaultInjector interface {
	// SkipSend reports whether the local node should withhold its
	// one-shot outbound message for stage this round.
	SkipSend(round primitives.Round, stage Stage) bool
}

type noFaults struct{}

func (noFaults) SkipSend(primitives.Round, Stage) bool { return false }

// stageMessages buffers arrivals for one stage, keyed by quorum
// position, so a message for a later stage that arrives early is kept
// rather than dropped (spec §4.6 "Message relay").
type stageMessages map[int]*iface.PulseMessage

// Context holds everything one Pulse round needs. It is driven
// entirely by Tick; nothing here blocks or spawns a goroutine, per
// the single-thread cooperative model (spec §5).
type Context struct {
	cfg   *params.Config
	store iface.ChainStore
	net   iface.QuorumNet
	queue iface.InboundQueue

	localKey primitives.PubKey
	sign     Signer
	verify   Verifier
	now      Clock
	faults   FaultInjector
	codec    TemplateCodec

	oldQuorums *cache.OldQuorumRing

	stage Stage
	round primitives.Round

	baseHeight    primitives.Height
	topBlockHash  primitives.BlockHash
	r0Timestamp   int64
	stageEndTimes [numStages]int64

	result       quorum.PulseResult
	myIndex      int // -1 if not a validator this round
	isProducer   bool

	handshakes    stageMessages
	bitsets       map[int]bitfield.Bitvector64
	agreedBitset  bitfield.Bitvector64
	template      *iface.Block
	hashes        map[int][32]byte
	values        map[int][32]byte
	finalRandom   [32]byte
	signatures    map[int][]byte

	buffered map[Stage]stageMessages

	sentHandshake bool
	sentBitset    bool
	sentHashes    bool
	sentRandom    bool
	sentSigned    bool
	randomPreimage [32]byte

	needsNewRound bool
	producedBlock *iface.Block
}

// NeedsNewRound reports whether the round aborted (missed its
// supporter threshold, or the producer never delivered a usable
// template) and the caller must call PrepareRound for round+1.
func (c *Context) NeedsNewRound() bool { return c.needsNewRound }

// NextRound returns the round PrepareRound should be called with next.
func (c *Context) NextRound() primitives.Round { return c.round + 1 }

// Stage reports the current stage, for logging/tests.
func (c *Context) Stage() Stage { return c.stage }

// ProducedBlock returns the block submitted via HandleBlockFound this
// round, or nil if the round has not reached that point yet.
func (c *Context) ProducedBlock() *iface.Block { return c.producedBlock }

func (c *Context) endRound() {
	c.needsNewRound = true
	c.stage = StageWaitNextBlock
}

// NewContext constructs a Context in the null stage. The caller drives
// it forward by calling Tick once the blockchain has a new tip.
func NewContext(cfg *params.Config, store iface.ChainStore, net iface.QuorumNet, queue iface.InboundQueue, localKey primitives.PubKey, sign Signer, verify Verifier, now Clock, codec TemplateCodec) *Context {
	return &Context{
		cfg: cfg, store: store, net: net, queue: queue,
		localKey: localKey, sign: sign, verify: verify, now: now,
		faults:     noFaults{},
		codec:      codec,
		oldQuorums: cache.NewOldQuorumRing(cfg.HistoricalQuorumRingSize),
		stage:      StageNull,
		buffered:   make(map[Stage]stageMessages),
	}
}

// SetFaultInjector installs a non-default fault injector (tests only).
func (c *Context) SetFaultInjector(f FaultInjector) { c.faults = f }

// PrepareRound regenerates the quorum for round against base (the
// current registry snapshot) and entropyHashes (already fetched by
// the caller the same way chain/snse does ahead of block validation),
// resetting all per-round collection state (spec §4.6 prepare_round).
func (c *Context) PrepareRound(base *snapshot.StateSnapshot, entropyHashes [][32]byte, blockLeader primitives.PubKey, round primitives.Round, r0Timestamp int64) error {
	candidates := make([]quorum.Candidate, 0, len(base.Nodes))
	for pub, n := range base.Nodes {
		if !n.IsActive() {
			continue
		}
		candidates = append(candidates, quorum.Candidate{
			PubKey:                       pub,
			LastHeightValidatingInQuorum: n.PulseSorter.LastHeightValidatingInQuorum,
			QuorumIndex:                  n.PulseSorter.QuorumIndex,
			Decommissioned:               n.IsDecommissioned(),
			RequestedUnlockHeight:        n.RequestedUnlockHeight,
		})
	}

	result, err := quorum.GeneratePulse(c.cfg, base.HFVersion, blockLeader, candidates, entropyHashes, round)
	if err != nil {
		return err
	}

	c.baseHeight = base.Height
	c.topBlockHash = base.BlockHash
	c.round = round
	c.r0Timestamp = r0Timestamp
	c.result = result
	c.isProducer = result.Producer == c.localKey

	c.myIndex = -1
	for i, v := range result.Validators {
		if v == c.localKey {
			c.myIndex = i
			break
		}
	}

	startTime := r0Timestamp + int64(round)*int64(c.cfg.PulseRoundTimeout.Seconds())
	stageLen := int64(c.cfg.PulseStageTimeout.Seconds())
	for i := range c.stageEndTimes {
		c.stageEndTimes[i] = startTime + int64(i+1)*stageLen
	}

	c.handshakes = make(stageMessages)
	c.bitsets = make(map[int]bitfield.Bitvector64)
	c.agreedBitset = bitfield.NewBitvector64()
	c.template = nil
	c.hashes = make(map[int][32]byte)
	c.values = make(map[int][32]byte)
	c.finalRandom = [32]byte{}
	c.signatures = make(map[int][]byte)
	c.buffered = make(map[Stage]stageMessages)
	c.sentHandshake = false
	c.sentBitset = false
	c.sentHashes = false
	c.sentRandom = false
	c.sentSigned = false
	c.randomPreimage = [32]byte{}
	c.needsNewRound = false
	c.producedBlock = nil

	c.oldQuorums.Push(cache.QuorumRecord{
		Height:     base.Height,
		Round:      round,
		BlockHash:  base.BlockHash,
		Validators: result.Validators,
	})

	if c.myIndex < 0 && !c.isProducer {
		c.stage = StageWaitNextBlock
	} else if c.isProducer {
		c.stage = StageProducerWaitBitsets
	} else {
		c.stage = StageSendWaitHandshakes
	}
	return nil
}

// Tick drains queued messages and advances the state machine. It
// never blocks: each call either sends a one-shot message and starts
// waiting, or finds the stage timer unexpired and returns unchanged.
func (c *Context) Tick(ctx context.Context) error {
	for _, msg := range c.queue.Drain() {
		c.route(msg)
	}
	c.applyBuffered()

	now := c.now()
	switch c.stage {
	case StageNull, StageWaitNextBlock:
		// Driven externally via PrepareRound once a new tip/round is known.
		return nil
	case StageSendWaitHandshakes:
		return c.tickHandshakes(now)
	case StageSendBitset:
		return c.tickSendBitset(now)
	case StageWaitBitsets:
		return c.tickWaitBitsets(now)
	case StageProducerWaitBitsets:
		return c.tickProducerWaitBitsets(now)
	case StageProducerSendTemplate:
		return c.tickProducerSendTemplate(ctx)
	case StageWaitTemplate:
		return c.tickWaitTemplate(now)
	case StageSendWaitHashes:
		return c.tickSendHashes(now)
	case StageSendWaitRandom:
		return c.tickSendRandom(now)
	case StageSendWaitSigned:
		return c.tickSendSigned(ctx, now)
	}
	return nil
}

// route delivers an inbound message either to the current stage's
// collector or, if it targets a later stage, into the per-stage
// buffer (spec §4.6 "buffered per-validator-slot"). Messages that
// match a remembered historical quorum but not the live one are
// silently dropped rather than logged as errors.
func (c *Context) route(msg *iface.PulseMessage) {
	if msg.Round != c.round {
		if !c.oldQuorums.Contains(c.baseHeight, msg.Round, c.senderOf(msg)) {
			log.WithField("round", msg.Round).Debug("dropping pulse message for an unrecognized round")
		}
		return
	}
	if !c.verifyEnvelope(msg) {
		log.WithField("type", msg.Type).Debug("dropping pulse message with an invalid signature")
		return
	}
	stage := stageForMessageType(msg.Type)
	if stage != c.stage {
		if c.buffered[stage] == nil {
			c.buffered[stage] = make(stageMessages)
		}
		c.buffered[stage][msg.QuorumPosition] = msg
		return
	}
	c.collect(msg)
}

// applyBuffered replays any messages that arrived early for the stage
// the machine just reached (spec §4.6 "buffered per-validator-slot,
// processed when the context reaches that stage").
func (c *Context) applyBuffered() {
	pending, ok := c.buffered[c.stage]
	if !ok {
		return
	}
	for _, msg := range pending {
		c.collect(msg)
	}
	delete(c.buffered, c.stage)
}

// senderOf resolves which validator slot sent msg, from the quorum
// remembered for its round (best-effort; only used to suppress
// spurious logging of late messages).
func (c *Context) senderOf(msg *iface.PulseMessage) primitives.PubKey {
	rec, ok := c.oldQuorums.Find(c.baseHeight, msg.Round)
	if !ok || msg.QuorumPosition < 0 || msg.QuorumPosition >= len(rec.Validators) {
		return primitives.PubKey{}
	}
	return rec.Validators[msg.QuorumPosition]
}

// verifyEnvelope checks msg's relay signature against the claimed
// sender's pubkey: the producer for a block template, or the quorum
// validator at msg.QuorumPosition for everything else.
func (c *Context) verifyEnvelope(msg *iface.PulseMessage) bool {
	if msg.Type == iface.MsgSignedBlock {
		// Signed over hash(final_block), not the generic relay domain;
		// verifySignedBlock in collect() checks it once the template
		// (and therefore the final block hash) is known.
		return true
	}
	var sender primitives.PubKey
	if msg.Type == iface.MsgBlockTemplate {
		sender = c.result.Producer
	} else {
		if msg.QuorumPosition < 0 || msg.QuorumPosition >= len(c.result.Validators) {
			return false
		}
		sender = c.result.Validators[msg.QuorumPosition]
	}
	domain, err := c.signDomain(msg.QuorumPosition, msg.Payload)
	if err != nil {
		return false
	}
	return c.verify(sender, domain, msg.Signature)
}

func stageForMessageType(t iface.MessageType) Stage {
	switch t {
	case iface.MsgHandshake:
		return StageSendWaitHandshakes
	case iface.MsgHandshakeBitset:
		return StageWaitBitsets
	case iface.MsgBlockTemplate:
		return StageWaitTemplate
	case iface.MsgRandomValueHash:
		return StageSendWaitHashes
	case iface.MsgRandomValue:
		return StageSendWaitRandom
	case iface.MsgSignedBlock:
		return StageSendWaitSigned
	default:
		return StageNull
	}
}

func (c *Context) collect(msg *iface.PulseMessage) {
	switch msg.Type {
	case iface.MsgHandshake:
		c.handshakes[msg.QuorumPosition] = msg
	case iface.MsgHandshakeBitset:
		if len(msg.Payload) == 8 {
			c.bitsets[msg.QuorumPosition] = bitfield.Bitvector64(append([]byte(nil), msg.Payload...))
		}
	case iface.MsgBlockTemplate:
		b, err := c.codec.Decode(msg.Payload)
		if err != nil {
			log.WithError(err).Debug("dropping undecodable block template")
			return
		}
		c.template = b
	case iface.MsgRandomValueHash:
		if len(msg.Payload) == 32 {
			var h [32]byte
			copy(h[:], msg.Payload)
			c.hashes[msg.QuorumPosition] = h
		}
	case iface.MsgRandomValue:
		if len(msg.Payload) == 32 {
			var v [32]byte
			copy(v[:], msg.Payload)
			if !c.verifyRandomValue(msg.QuorumPosition, v) {
				return
			}
			c.values[msg.QuorumPosition] = v
		}
	case iface.MsgSignedBlock:
		if !c.verifySignedBlock(msg.QuorumPosition, msg.Signature) {
			return
		}
		c.signatures[msg.QuorumPosition] = msg.Signature
	}
}

// verifySignedBlock checks a signing-stage signature against the
// claimed voter's pubkey over the locally computed final block hash;
// a signature that doesn't verify is dropped rather than counted
// (spec §4.6 "Collect signatures").
func (c *Context) verifySignedBlock(pos int, sig []byte) bool {
	if pos < 0 || pos >= len(c.result.Validators) || c.template == nil {
		return false
	}
	hash, err := c.finalBlockHash()
	if err != nil {
		return false
	}
	return c.verify(c.result.Validators[pos], hash[:], sig)
}

func (c *Context) verifyRandomValue(pos int, value [32]byte) bool {
	h, ok := c.hashes[pos]
	if !ok {
		return false
	}
	got, err := chaincrypto.Blake2b256(nil, value[:])
	if err != nil {
		return false
	}
	return got == h
}

// signDomain builds the message-signing domain for one outbound
// message: blake2b(top_block_hash ‖ quorum_position ‖ round ‖ payload)
// (spec §4.6 "Message relay").
func (c *Context) signDomain(quorumPosition int, payload []byte) ([]byte, error) {
	pos := []byte{byte(quorumPosition)}
	rnd := []byte{byte(c.round)}
	digest, err := chaincrypto.Blake2b256(nil, c.topBlockHash[:], pos, rnd, payload)
	if err != nil {
		return nil, err
	}
	return digest[:], nil
}

func (c *Context) send(msgType iface.MessageType, payload []byte) error {
	domain, err := c.signDomain(c.myIndex, payload)
	if err != nil {
		return err
	}
	msg := &iface.PulseMessage{
		Type:           msgType,
		TopBlockHash:   c.topBlockHash,
		Round:          c.round,
		QuorumPosition: c.myIndex,
		Signature:      c.sign(domain),
		Payload:        payload,
	}
	q := iface.Quorum{Validators: c.result.Validators}
	return c.net.RelayPulseMessage(context.Background(), msg, q, c.isProducer)
}

func deadlinePassed(now int64, end int64) bool { return now >= end }
