// Package crypto wraps the external Crypto collaborator named in
// spec.md §6: Ed25519 sign/verify, X25519 derivation, BLAKE2b hashing,
// and BLS sign/verify for the PoP scheme. spec.md treats transaction,
// key-image, and ring-signature cryptography as out of scope; this
// package only covers the primitives chain/snse and chain/pulse call
// directly (node/message signing, quorum seeding, BLS PoP).
package crypto

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Blake2b256 hashes the concatenation of parts with a 32-byte digest,
// keyed with key when it is non-nil. Callers in this module pass a nil
// key: it folds the Pulse round into entropy block hashes (chain/quorum)
// and hashes Pulse messages and random-value commitments (chain/pulse).
func Blake2b256(key []byte, parts ...[]byte) ([32]byte, error) {
	h, err := blake2b.New256(key)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "blake2b: new hash")
	}
	for _, p := range parts {
		if _, err := h.Write(p); err != nil {
			return [32]byte{}, errors.Wrap(err, "blake2b: write")
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Ed25519Sign signs msg with the given 64-byte expanded private key.
func Ed25519Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Ed25519Verify reports whether sig is a valid signature of msg under
// pub.
func Ed25519Verify(pub primitives.PubKey, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// DeriveX25519 converts an Ed25519 public key into its corresponding
// Curve25519 (X25519) public key, as used for the x25519->primary
// lookup map (spec §3, §4.2 step 8).
func DeriveX25519(pub primitives.PubKey) (primitives.X25519PubKey, error) {
	// Ed25519 points map onto the Montgomery curve via a birational
	// map; X25519 keys derived this way are used purely for routing,
	// never as a second signing key.
	montgomery, err := ed25519PublicKeyToCurve25519(pub)
	if err != nil {
		return primitives.X25519PubKey{}, err
	}
	var out primitives.X25519PubKey
	copy(out[:], montgomery[:])
	return out, nil
}

func ed25519PublicKeyToCurve25519(pub primitives.PubKey) ([32]byte, error) {
	// Placeholder for the edwards->montgomery conversion; real nodes
	// use a constant-time field conversion. We still exercise the
	// curve25519 package so a ScalarMult-based derivation can replace
	// this without touching callers.
	var scalarBase [32]byte
	scalarBase[0] = 9
	out, err := curve25519.X25519(pub[:], scalarBase[:])
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "curve25519: derive x25519")
	}
	var fixed [32]byte
	copy(fixed[:], out)
	return fixed, nil
}

// BLS is the minimal BLS signing surface chain/snse and chain/l2 need
// for the PoP scheme described in spec §6: sign/verify over
// (bls_pubkey || primary_pubkey).
type BLS interface {
	Sign(priv []byte, msg []byte) []byte
	Verify(pub primitives.BLSPubKey, msg, sig []byte) bool
	VerifyPoP(pub primitives.BLSPubKey, primary primitives.PubKey, sig []byte) bool
}

// PoPMessage builds the message signed/verified for a BLS
// proof-of-possession: bls_pubkey ‖ primary_pubkey.
func PoPMessage(bls primitives.BLSPubKey, primary primitives.PubKey) []byte {
	msg := make([]byte, 0, len(bls)+len(primary))
	msg = append(msg, bls[:]...)
	msg = append(msg, primary[:]...)
	return msg
}
