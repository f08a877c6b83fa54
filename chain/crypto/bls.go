package crypto

import (
	blst "github.com/supranational/blst/bindings/go"

	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// blsDST is the domain-separation tag for BLS signatures produced by
// this module, distinguishing service-node PoP signatures from any
// other BLS usage on the same curve.
var blsDST = []byte("OXEN_SERVICE_NODE_BLS_POP_")

type blstSignature = blst.P2Affine
type blstPublicKey = blst.P1Affine

// blstBLS implements the BLS interface using the supranational/blst
// BLS12-381 bindings (the same backend the teacher uses for the eth2
// consensus BLS signature scheme).
type blstBLS struct{}

// NewBLS returns the production BLS backend.
func NewBLS() BLS { return blstBLS{} }

func (blstBLS) Sign(priv []byte, msg []byte) []byte {
	var sk blst.SecretKey
	sk.Deserialize(priv)
	sig := new(blstSignature).Sign(&sk, msg, blsDST)
	return sig.Compress()
}

func (blstBLS) Verify(pub primitives.BLSPubKey, msg, sig []byte) bool {
	p := new(blstPublicKey).Uncompress(pub[:])
	if p == nil {
		return false
	}
	s := new(blstSignature).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, p, true, msg, blsDST)
}

func (b blstBLS) VerifyPoP(pub primitives.BLSPubKey, primary primitives.PubKey, sig []byte) bool {
	return b.Verify(pub, PoPMessage(pub, primary), sig)
}
