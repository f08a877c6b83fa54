// Package l2 decodes the Ethereum contract log events that seed
// PendingL2Event voting (spec §3, §4.2.1): NewServiceNode,
// RemovalRequest, and Removal. Vote accumulation and confirmed-event
// application live in chain/snapshot, which is where they're actually
// exercised against registry state; this package only turns a raw
// go-ethereum types.Log into the payload chain/snapshot expects.
package l2

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/syssiproject/oxen-core-sub000/chain/snapshot"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// contractABI is kept minimal: only the three events this package
// needs to decode. A full generated binding (the way teacher's
// contracts/deposit package wraps abigen output) isn't warranted for
// three read-only event shapes.
const contractABI = `[
	{"anonymous":false,"name":"NewServiceNode","type":"event","inputs":[
		{"name":"primaryPubkey","type":"bytes32"},
		{"name":"blsPubkey","type":"bytes"},
		{"name":"operator","type":"address"},
		{"name":"contributorAddresses","type":"bytes32[]"},
		{"name":"contributorAmounts","type":"uint256[]"}
	]},
	{"anonymous":false,"name":"RemovalRequest","type":"event","inputs":[
		{"name":"blsPubkey","type":"bytes"}
	]},
	{"anonymous":false,"name":"Removal","type":"event","inputs":[
		{"name":"blsPubkey","type":"bytes"},
		{"name":"returnedAmount","type":"uint256"}
	]}
]`

// Decoder unpacks service-node lifecycle events out of Ethereum logs.
// It holds no state of its own; parsing the ABI once at construction
// avoids re-parsing the JSON on every log.
type Decoder struct {
	abi abi.ABI
}

func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse l2 contract abi")
	}
	return &Decoder{abi: parsed}, nil
}

// EventName returns the decoded event name for log, or "" if it
// doesn't match any of the three events this package understands. The
// caller is expected to have already filtered logs by contract
// address; this only distinguishes event shape by topic0.
func (d *Decoder) EventName(log types.Log) string {
	if len(log.Topics) == 0 {
		return ""
	}
	for _, name := range []string{"NewServiceNode", "RemovalRequest", "Removal"} {
		if log.Topics[0] == d.abi.Events[name].ID {
			return name
		}
	}
	return ""
}

type rawNewServiceNode struct {
	PrimaryPubkey        [32]byte
	BlsPubkey            []byte
	Operator             ethcommon.Address
	ContributorAddresses [][32]byte
	ContributorAmounts   []*big.Int
}

// DecodeNewServiceNode unpacks a NewServiceNode log into the payload
// shape chain/snapshot.PendingL2Event carries (spec §4.2.1).
func (d *Decoder) DecodeNewServiceNode(log types.Log) (snapshot.L2EventPayload, error) {
	var raw rawNewServiceNode
	if err := d.abi.UnpackIntoInterface(&raw, "NewServiceNode", log.Data); err != nil {
		return snapshot.L2EventPayload{}, errors.Wrap(err, "unpack NewServiceNode log")
	}
	if len(raw.BlsPubkey) != len(primitives.BLSPubKey{}) {
		return snapshot.L2EventPayload{}, errors.New("NewServiceNode: bls pubkey wrong length")
	}
	if len(raw.ContributorAddresses) != len(raw.ContributorAmounts) {
		return snapshot.L2EventPayload{}, errors.New("NewServiceNode: contributor address/amount length mismatch")
	}

	payload := snapshot.L2EventPayload{
		PrimaryPubKey:   primitives.PubKey(raw.PrimaryPubkey),
		OperatorAddress: raw.Operator,
	}
	copy(payload.BLSPubKey[:], raw.BlsPubkey)

	payload.Contributors = make([]snapshot.PendingContribution, len(raw.ContributorAddresses))
	for i, addr := range raw.ContributorAddresses {
		payload.Contributors[i] = snapshot.PendingContribution{
			Address: primitives.Address(addr),
			Amount:  primitives.Amount(raw.ContributorAmounts[i].Uint64()),
		}
	}
	return payload, nil
}

type rawBlsOnly struct {
	BlsPubkey []byte
}

// DecodeRemovalRequest unpacks a RemovalRequest log (spec §4.2.1:
// "map bls_pubkey → primary pubkey; set requested_unlock_height").
func (d *Decoder) DecodeRemovalRequest(log types.Log) (snapshot.L2EventPayload, error) {
	var raw rawBlsOnly
	if err := d.abi.UnpackIntoInterface(&raw, "RemovalRequest", log.Data); err != nil {
		return snapshot.L2EventPayload{}, errors.Wrap(err, "unpack RemovalRequest log")
	}
	if len(raw.BlsPubkey) != len(primitives.BLSPubKey{}) {
		return snapshot.L2EventPayload{}, errors.New("RemovalRequest: bls pubkey wrong length")
	}
	var payload snapshot.L2EventPayload
	copy(payload.BLSPubKey[:], raw.BlsPubkey)
	return payload, nil
}

type rawRemoval struct {
	BlsPubkey      []byte
	ReturnedAmount *big.Int
}

// DecodeRemoval unpacks a Removal log, carrying the amount returned to
// the departing operator/contributors.
func (d *Decoder) DecodeRemoval(log types.Log) (snapshot.L2EventPayload, error) {
	var raw rawRemoval
	if err := d.abi.UnpackIntoInterface(&raw, "Removal", log.Data); err != nil {
		return snapshot.L2EventPayload{}, errors.Wrap(err, "unpack Removal log")
	}
	if len(raw.BlsPubkey) != len(primitives.BLSPubKey{}) {
		return snapshot.L2EventPayload{}, errors.New("Removal: bls pubkey wrong length")
	}
	var payload snapshot.L2EventPayload
	copy(payload.BLSPubKey[:], raw.BlsPubkey)
	payload.ReturnedAmount = primitives.Amount(raw.ReturnedAmount.Uint64())
	return payload, nil
}
