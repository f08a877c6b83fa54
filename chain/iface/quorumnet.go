package iface

import (
	"context"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// MessageType enumerates the wire message types carried over
// QuorumNet, per spec §6.
type MessageType int

const (
	MsgHandshake MessageType = iota
	MsgHandshakeBitset
	MsgBlockTemplate
	MsgRandomValueHash
	MsgRandomValue
	MsgSignedBlock
)

// PulseMessage is a signed Pulse wire message. The signature domain is
// blake2b(top_block_hash ‖ quorum_position ‖ round ‖ payload),
// computed by the sender before handing the message to QuorumNet.
type PulseMessage struct {
	Type          MessageType
	TopBlockHash  primitives.BlockHash
	Round         primitives.Round
	QuorumPosition int
	Signature     []byte
	Payload       []byte
}

// Quorum is the minimal quorum view QuorumNet needs to know who to
// relay a message to.
type Quorum struct {
	Validators []primitives.PubKey
	Workers    []primitives.PubKey
}

// QuorumNet is the P2P/transport collaborator described in spec §6.
// It delivers signed messages to quorum members and hands inbound
// messages back to the Pulse thread's queue (never invoked directly
// from a network callback, per spec §5).
type QuorumNet interface {
	// RelayPulseMessage delivers msg to every member of quorum.
	// isProducer indicates whether the local node is the Pulse
	// producer for this round, which affects relay fan-out in some
	// transports (producer broadcasts, validators relay-and-forward).
	RelayPulseMessage(ctx context.Context, msg *PulseMessage, quorum Quorum, isProducer bool) error
}

// InboundQueue is the channel-like sink QuorumNet posts inbound
// messages onto; chain/pulse drains it once per tick, never from the
// network goroutine directly (spec §5 ordering guarantee).
type InboundQueue interface {
	Post(msg *PulseMessage)
	Drain() []*PulseMessage
}
