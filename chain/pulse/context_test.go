package pulse

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	chaincrypto "github.com/syssiproject/oxen-core-sub000/chain/crypto"
	"github.com/syssiproject/oxen-core-sub000/chain/iface"
	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
	"github.com/syssiproject/oxen-core-sub000/testing/assert"
	"github.com/syssiproject/oxen-core-sub000/testing/require"
)

// fakeQueue is a trivial FIFO InboundQueue.
type fakeQueue struct{ pending []*iface.PulseMessage }

func (q *fakeQueue) Post(msg *iface.PulseMessage) { q.pending = append(q.pending, msg) }
func (q *fakeQueue) Drain() []*iface.PulseMessage {
	out := q.pending
	q.pending = nil
	return out
}

// spyNet records every outbound relay without delivering it anywhere;
// the test drives peer responses explicitly via fakeQueue.Post.
type spyNet struct{ sent []*iface.PulseMessage }

func (n *spyNet) RelayPulseMessage(ctx context.Context, msg *iface.PulseMessage, q iface.Quorum, isProducer bool) error {
	n.sent = append(n.sent, msg)
	return nil
}

type fixedClock struct{ t int64 }

func (c *fixedClock) now() int64 { return c.t }

// fakeStore only needs to answer L2VoteFor and HandleBlockFound for
// this package's tests; every other method panics if called.
type fakeStore struct{}

func (fakeStore) Height(context.Context) (primitives.Height, error)        { panic("unused") }
func (fakeStore) GetBlockByHash(context.Context, primitives.BlockHash) (*iface.Block, error) {
	panic("unused")
}
func (fakeStore) GetBlockByHeight(context.Context, primitives.Height) (*iface.Block, error) {
	panic("unused")
}
func (fakeStore) GetBlockTimestamp(context.Context, primitives.Height) (int64, error) {
	panic("unused")
}
func (fakeStore) GetTx(context.Context, primitives.TxHash) (*iface.Tx, error) { panic("unused") }
func (fakeStore) GetAltBlock(context.Context, primitives.BlockHash) (*iface.Block, error) {
	panic("unused")
}
func (fakeStore) BlockLeader(context.Context, *iface.Block) (primitives.PubKey, error) {
	panic("unused")
}
func (fakeStore) LoadTransactions(context.Context, []primitives.TxHash) ([]*iface.Tx, error) {
	panic("unused")
}
func (fakeStore) L2VoteFor(context.Context, primitives.TxHash) (bool, error) { return false, errNoOpinion }
func (fakeStore) HandleBlockFound(context.Context, *iface.Block) error      { return nil }
func (fakeStore) CreateNextPulseBlockTemplate(context.Context, primitives.Round, bitfield.Bitvector64) (*iface.Block, error) {
	panic("unused")
}
func (fakeStore) BatchedRewardRecord(context.Context, primitives.Height, primitives.Address, uint64) error {
	panic("unused")
}

type noOpinionErr struct{}

func (noOpinionErr) Error() string { return "no local opinion" }

var errNoOpinion = noOpinionErr{}

// quorumFixture builds a base snapshot with numNodes active candidates
// and returns each candidate's pubkey alongside its ed25519 private
// key, so the test can sign messages on behalf of "other" validators.
func quorumFixture(t *testing.T, numNodes int) (*snapshot.StateSnapshot, []primitives.PubKey, map[primitives.PubKey]ed25519.PrivateKey) {
	snap := snapshot.Empty()
	keys := make(map[primitives.PubKey]ed25519.PrivateKey, numNodes)
	pubs := make([]primitives.PubKey, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		var pk primitives.PubKey
		copy(pk[:], pub)
		keys[pk] = priv
		pubs = append(pubs, pk)
		snap.Nodes[pk] = &nodeinfo.NodeInfo{ActiveSinceHeight: 1}
	}
	return snap, pubs, keys
}

func signedMessage(t *testing.T, priv ed25519.PrivateKey, topBlockHash primitives.BlockHash, round primitives.Round, quorumPosition int, msgType iface.MessageType, payload []byte) *iface.PulseMessage {
	pos := []byte{byte(quorumPosition)}
	rnd := []byte{byte(round)}
	digest, err := chaincrypto.Blake2b256(nil, topBlockHash[:], pos, rnd, payload)
	require.NoError(t, err)
	return &iface.PulseMessage{
		Type: msgType, TopBlockHash: topBlockHash, Round: round,
		QuorumPosition: quorumPosition, Signature: ed25519.Sign(priv, digest), Payload: payload,
	}
}

func verifyFunc(pub primitives.PubKey, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// TestPulseLiveness exercises the validator path end to end: given
// enough honest peers responding in kind, tick() must drive the round
// all the way to send_and_wait_for_signed_blocks and submit a block
// whose signatures verify (Testable Property 6).
func TestPulseLiveness(t *testing.T) {
	cfg := params.Get()
	cfg.PulseQuorumNumValidators = 4
	cfg.PulseBlockRequiredSigs = 3

	numCandidates := cfg.PulseQuorumNumValidators + 1 // +1 for the round-0 leader/producer
	base, pubs, keys := quorumFixture(t, numCandidates)
	leader := pubs[0]

	localPub, localPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var localKey primitives.PubKey
	copy(localKey[:], localPub)
	base.Nodes[localKey] = &nodeinfo.NodeInfo{ActiveSinceHeight: 1}
	keys[localKey] = localPriv

	entropy := make([][32]byte, cfg.PulseQuorumNumValidators+1)
	for i := range entropy {
		entropy[i] = [32]byte{byte(i + 1)}
	}

	queue := &fakeQueue{}
	net := &spyNet{}
	clock := &fixedClock{t: 1000}
	sign := func(msg []byte) []byte { return ed25519.Sign(localPriv, msg) }

	ctx := NewContext(cfg, fakeStore{}, net, queue, localKey, sign, verifyFunc, clock.now, GobTemplateCodec{})

	require.NoError(t, ctx.PrepareRound(base, entropy, leader, 0, 1000))
	if ctx.myIndex < 0 {
		t.Skip("local key was not selected as a validator this round; quorum sampling is keyed by entropy and not under test control")
	}

	others := make([]int, 0, len(ctx.result.Validators)-1)
	for i, v := range ctx.result.Validators {
		if v != localKey {
			others = append(others, i)
		}
	}

	tickUntil := func(want Stage) {
		t.Helper()
		for i := 0; i < 10; i++ {
			require.NoError(t, ctx.Tick(context.Background()))
			if ctx.stage == want {
				return
			}
		}
		t.Fatalf("never reached stage %s, stuck at %s", want, ctx.stage)
	}

	// Handshake stage: every other validator's handshake arrives
	// before any tick; buffering lets arrival order not matter.
	for _, pos := range others {
		priv := keys[ctx.result.Validators[pos]]
		queue.Post(signedMessage(t, priv, ctx.topBlockHash, 0, pos, iface.MsgHandshake, nil))
	}

	fullBitset := bitfield.NewBitvector64()
	for i := range ctx.result.Validators {
		fullBitset.SetBitAt(uint64(i), true)
	}
	bitsetPayload := fullBitset.Bytes()
	for _, pos := range others {
		priv := keys[ctx.result.Validators[pos]]
		queue.Post(signedMessage(t, priv, ctx.topBlockHash, 0, pos, iface.MsgHandshakeBitset, bitsetPayload))
	}
	tickUntil(StageWaitTemplate)
	assert.Equal(t, fullBitset.Bytes(), ctx.agreedBitset.Bytes())

	template := &iface.Block{
		Height: base.Height + 1,
		Pulse:  &iface.PulseHeader{Round: 0, Producer: leader, ValidatorBitset: fullBitset},
	}
	payload, err := GobTemplateCodec{}.Encode(template)
	require.NoError(t, err)
	queue.Post(signedMessage(t, keys[leader], ctx.topBlockHash, 0, -1, iface.MsgBlockTemplate, payload))

	preimages := make(map[int][32]byte)
	for _, pos := range others {
		var v [32]byte
		v[0] = byte(pos + 1)
		preimages[pos] = v
		digest, err := chaincrypto.Blake2b256(nil, v[:])
		require.NoError(t, err)
		priv := keys[ctx.result.Validators[pos]]
		queue.Post(signedMessage(t, priv, ctx.topBlockHash, 0, pos, iface.MsgRandomValueHash, digest[:]))
	}
	tickUntil(StageSendWaitRandom)
	require.NotNil(t, ctx.template)

	for _, pos := range others {
		priv := keys[ctx.result.Validators[pos]]
		v := preimages[pos]
		queue.Post(signedMessage(t, priv, ctx.topBlockHash, 0, pos, iface.MsgRandomValue, v[:]))
	}
	tickUntil(StageSendWaitSigned)
	require.NotEqual(t, [32]byte{}, ctx.template.Pulse.RandomValue)

	finalHash, err := ctx.finalBlockHash()
	require.NoError(t, err)
	for _, pos := range others {
		priv := keys[ctx.result.Validators[pos]]
		sig := ed25519.Sign(priv, finalHash[:])
		queue.Post(&iface.PulseMessage{Type: iface.MsgSignedBlock, TopBlockHash: ctx.topBlockHash, Round: 0, QuorumPosition: pos, Signature: sig})
	}
	for i := 0; i < 10 && ctx.ProducedBlock() == nil; i++ {
		require.NoError(t, ctx.Tick(context.Background()))
	}

	require.NotNil(t, ctx.ProducedBlock())
	block := ctx.ProducedBlock()
	require.True(t, len(block.Pulse.Signatures) >= cfg.PulseBlockRequiredSigs)
	for _, sig := range block.Pulse.Signatures {
		pub := ctx.result.Validators[sig.VoterIndex]
		assert.True(t, ed25519.Verify(ed25519.PublicKey(pub[:]), finalHash[:], sig.Signature))
	}
}

// TestPulseLiveness_TimeoutAdvancesRound verifies a round that never
// gathers enough handshake-bitset supporters ends with NeedsNewRound
// rather than hanging indefinitely (spec §4.6 "Bitset stage").
func TestPulseLiveness_TimeoutAdvancesRound(t *testing.T) {
	cfg := params.Get()
	cfg.PulseQuorumNumValidators = 4
	cfg.PulseBlockRequiredSigs = 3
	cfg.PulseStageTimeout = 0 // deadlines already elapsed

	base, pubs, keys := quorumFixture(t, cfg.PulseQuorumNumValidators+1)
	leader := pubs[0]

	localPub, localPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var localKey primitives.PubKey
	copy(localKey[:], localPub)
	base.Nodes[localKey] = &nodeinfo.NodeInfo{ActiveSinceHeight: 1}
	keys[localKey] = localPriv

	entropy := make([][32]byte, cfg.PulseQuorumNumValidators+1)
	for i := range entropy {
		entropy[i] = [32]byte{byte(i + 1)}
	}

	queue := &fakeQueue{}
	net := &spyNet{}
	clock := &fixedClock{t: 1000}
	sign := func(msg []byte) []byte { return ed25519.Sign(localPriv, msg) }

	ctx := NewContext(cfg, fakeStore{}, net, queue, localKey, sign, verifyFunc, clock.now, GobTemplateCodec{})
	require.NoError(t, ctx.PrepareRound(base, entropy, leader, 0, 1000))
	if ctx.myIndex < 0 {
		t.Skip("local key was not selected as a validator this round")
	}

	require.NoError(t, ctx.Tick(context.Background())) // handshake stage times out immediately
	require.NoError(t, ctx.Tick(context.Background())) // send_bitset: instantaneous, always advances
	require.NoError(t, ctx.Tick(context.Background())) // wait_bitsets: nobody else supported, times out
	assert.True(t, ctx.NeedsNewRound())
	assert.Equal(t, primitives.Round(1), ctx.NextRound())
}
