package snse

import (
	"encoding/binary"

	"github.com/syssiproject/oxen-core-sub000/chain/nodeinfo"
	"github.com/syssiproject/oxen-core-sub000/config/params"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// UptimeProof is the wire shape handle_uptime_proof validates (spec
// §4.5): a service node's self-reported liveness, network identity,
// and reachability, signed by its primary Ed25519 key.
type UptimeProof struct {
	PubKey        primitives.PubKey
	PubkeyEd25519 primitives.PubKey // HF21+: must equal PubKey
	PubkeyX25519  primitives.X25519PubKey
	PubkeyBLS     primitives.BLSPubKey // sent only during the HF20 transition window
	PoPBLS        []byte

	Signature     []byte
	TimestampUnix int64

	VersionMajor, VersionMinor, VersionPatch int
	QuorumnetPort int

	PublicIP               string
	StorageServerReachable bool
	LokinetReachable       bool
}

// uptimeProofMessage builds the canonical byte sequence signed over,
// the "proof_hash" of the source: every field except the signature
// itself, concatenated in a fixed order so signer and verifier always
// agree on the message.
func uptimeProofMessage(p *UptimeProof) []byte {
	var buf []byte
	buf = append(buf, p.PubKey[:]...)
	buf = append(buf, p.PubkeyEd25519[:]...)
	buf = append(buf, p.PubkeyX25519[:]...)
	buf = append(buf, p.PubkeyBLS[:]...)

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(p.TimestampUnix))
	buf = append(buf, ts[:]...)

	var ver [12]byte
	binary.LittleEndian.PutUint32(ver[0:4], uint32(p.VersionMajor))
	binary.LittleEndian.PutUint32(ver[4:8], uint32(p.VersionMinor))
	binary.LittleEndian.PutUint32(ver[8:12], uint32(p.VersionPatch))
	buf = append(buf, ver[:]...)

	buf = append(buf, []byte(p.PublicIP)...)
	return buf
}

// validateUptimeProof checks signature, version floor, timestamp
// window, and (HF21+) the pubkey/pubkey_ed25519 equality rule, but
// does not touch snapshot state or rate limiting — that is the
// caller's job once it holds the registry lock (spec §4.5).
func validateUptimeProof(cfg *params.Config, hf primitives.HFVersion, now int64, p *UptimeProof, verify SigVerifier) error {
	deviation := now - p.TimestampUnix
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > int64(cfg.UptimeProofTolerance.Seconds()) {
		return errRejected("timestamp is too far from now")
	}

	floor := cfg.MinUptimeProofVersion
	if versionLess(p.VersionMajor, p.VersionMinor, p.VersionPatch, floor[0], floor[1], floor[2]) {
		return errRejected("oxend version below the network's minimum")
	}

	if hf.AtLeast(params.HF21EthBLS) && p.PubKey != p.PubkeyEd25519 {
		return errRejected("pubkey != pubkey_ed25519 is not allowed from HF21")
	}

	if p.QuorumnetPort == 0 {
		return errRejected("invalid quorumnet port")
	}

	if !verify(p.PubkeyEd25519, uptimeProofMessage(p), p.Signature) {
		return errRejected("signature validation failed")
	}

	return nil
}

func versionLess(major, minor, patch, fMajor, fMinor, fPatch int) bool {
	if major != fMajor {
		return major < fMajor
	}
	if minor != fMinor {
		return minor < fMinor
	}
	return patch < fPatch
}

type rejectedProofError struct{ reason string }

func (e *rejectedProofError) Error() string { return e.reason }
func errRejected(reason string) error       { return &rejectedProofError{reason: reason} }

// HandleUptimeProof applies spec §4.5's handle_uptime_proof: validates
// the proof, rate-limits to once per UPTIME_PROOF_FREQUENCY/2, and
// (on acceptance) updates the node's ProofInfo in place. accepted is
// false for any rejection reason (not a registered node, stale
// timestamp, bad signature, too-frequent resubmission); those are not
// consensus errors; the proof is simply dropped, per the source
// (handle_uptime_proof returns bool, never throws).
func (d *Driver) HandleUptimeProof(p *UptimeProof, now int64, myPubKey primitives.PubKey) (accepted bool, myConfirmation bool, newX25519 *primitives.X25519PubKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hf := d.currentHF
	if err := validateUptimeProof(d.cfg, hf, now, p, d.ed25519Verify); err != nil {
		return false, false, nil
	}

	node, ok := d.current.Nodes[p.PubKey]
	if !ok {
		return false, false, nil
	}

	if last, ok := d.proofCache.LastAccepted(p.PubKey); ok {
		minGap := int64(d.cfg.UptimeProofFrequency.Seconds() / 2)
		if now-last <= minGap {
			return false, false, nil
		}
	}

	updated := node.Clone()
	if updated.Proof == nil {
		updated.Proof = &nodeinfo.ProofInfo{}
	}
	if updated.Proof.PublicIP != p.PublicIP {
		updated.LastIPChangeHeight = d.current.Height
	}
	updated.Proof.PublicIP = p.PublicIP
	updated.Proof.TimestampUnix = p.TimestampUnix
	updated.Proof.PubkeyEd25519 = p.PubkeyEd25519
	updated.Proof.PubkeyX25519 = p.PubkeyX25519
	updated.Proof.PubkeyBLS = p.PubkeyBLS
	updated.Proof.VersionMajor = p.VersionMajor
	updated.Proof.VersionMinor = p.VersionMinor
	updated.Proof.VersionPatch = p.VersionPatch
	d.current.X25519Map.Set(p.PubkeyX25519, p.PubKey)
	d.current.PutNode(p.PubKey, updated)

	d.proofCache.RecordAccepted(p.PubKey, now)

	return true, p.PubKey == myPubKey, &p.PubkeyX25519
}

// set_peer_reachable (spec §4.5): updates a node's storage-server or
// lokinet reachability window, used by obligations testing to decide
// whether a failing-reachability node should be penalized.
func (d *Driver) SetPeerReachable(transport Transport, pub primitives.PubKey, reachable bool, now int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	node, ok := d.current.Nodes[pub]
	if !ok || node.Proof == nil {
		return
	}
	updated := node.Clone()
	switch transport {
	case TransportStorageServer:
		updated.Proof.StorageServerReachable = reachable
		if reachable {
			updated.Proof.StorageServerLastReachable = now
		} else if updated.Proof.StorageServerFirstUnreachable == 0 {
			updated.Proof.StorageServerFirstUnreachable = now
		}
	case TransportLokinet:
		updated.Proof.LokinetReachable = reachable
		if reachable {
			updated.Proof.LokinetLastReachable = now
		} else if updated.Proof.LokinetFirstUnreachable == 0 {
			updated.Proof.LokinetFirstUnreachable = now
		}
	}
	d.current.PutNode(pub, updated)
}

// Transport identifies which reachability channel set_peer_reachable
// updates.
type Transport int

const (
	TransportStorageServer Transport = iota
	TransportLokinet
)
