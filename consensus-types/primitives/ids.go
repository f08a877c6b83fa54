package primitives

import (
	"encoding/hex"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// PubKey is a primary (Ed25519) service-node public key, the key under
// which a node's registration, proofs, and quorum slots are indexed.
type PubKey [32]byte

func (p PubKey) String() string   { return hex.EncodeToString(p[:]) }
func (p PubKey) IsZero() bool     { return p == PubKey{} }
func (p PubKey) Bytes() []byte    { return p[:] }

// X25519PubKey is the node's derived X25519 key, used for encrypted
// transport and mapped back to a PubKey via StateSnapshot.x25519Map.
type X25519PubKey [32]byte

func (p X25519PubKey) String() string { return hex.EncodeToString(p[:]) }

// BLSPubKey is the node's BLS12-381 public key, present from the
// Ethereum-transition hard fork onward.
type BLSPubKey [96]byte

func (p BLSPubKey) String() string { return hex.EncodeToString(p[:]) }
func (p BLSPubKey) IsZero() bool   { return p == BLSPubKey{} }

// KeyImage is a one-time tag that uniquely identifies a spent (or, in
// this context, locked) output. Spec invariant 5: a key image may
// appear in at most one node's locked contributions across a snapshot.
type KeyImage [32]byte

func (k KeyImage) String() string { return hex.EncodeToString(k[:]) }

// BlockHash identifies a block.
type BlockHash [32]byte

func (h BlockHash) String() string { return hex.EncodeToString(h[:]) }

// TxHash identifies a transaction.
type TxHash [32]byte

func (h TxHash) String() string { return hex.EncodeToString(h[:]) }

// Address is a native-chain account address (pre-HF20 operator
// address form). Post-HF20 operators are addressed by Ethereum
// address instead; both forms are carried on NodeInfo depending on
// registration era.
type Address [32]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// EthAddress is the post-HF20 Ethereum-chain operator/contributor
// address form.
type EthAddress = ethcommon.Address
