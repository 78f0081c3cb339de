package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// OpType is the one byte tag that starts every operation pubdata record
type OpType byte

const (
	// OpTypeDeposit represents an L1->group token deposit
	OpTypeDeposit OpType = 0x01
	// OpTypeFullExit represents a forced L1 exit of the full account
	// balance for one token
	OpTypeFullExit OpType = 0x06
	// OpTypeChangeGroup represents a rollup-internal transfer of value
	// from the source group to another group through the shared pending
	// balance ledger
	OpTypeChangeGroup OpType = 0x0c
	// OpTypeFullChangeGroup is the L1-priority-request variant of
	// ChangeGroup: enqueued and authenticated like a FullExit, but the
	// value stays claimable inside the destination group
	OpTypeFullChangeGroup OpType = 0x0d
)

const (
	// AmountBytesLen is the pubdata width of token amounts
	AmountBytesLen = 16
	// PubdataHashLen is the length of the truncated digest stored per
	// priority request
	PubdataHashLen = 20
)

// String returns the operation type name used in logs and in the history DB
func (ot OpType) String() string {
	switch ot {
	case OpTypeDeposit:
		return "Deposit"
	case OpTypeFullExit:
		return "FullExit"
	case OpTypeChangeGroup:
		return "ChangeGroup"
	case OpTypeFullChangeGroup:
		return "FullChangeGroup"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(ot))
	}
}

// IsPriority returns true for the operation types that originate as L1
// priority requests and must be matched against the queue on commit
func (ot OpType) IsPriority() bool {
	return ot == OpTypeDeposit || ot == OpTypeFullExit || ot == OpTypeFullChangeGroup
}

// recordLen returns the fixed pubdata length of the operation type, 0 for an
// unknown tag
func (ot OpType) recordLen() int {
	switch ot {
	case OpTypeDeposit:
		return DepositBytesLen
	case OpTypeFullExit:
		return FullExitBytesLen
	case OpTypeChangeGroup:
		return ChangeGroupBytesLen
	case OpTypeFullChangeGroup:
		return FullChangeGroupBytesLen
	default:
		return 0
	}
}

// Operation is one decoded pubdata record.  LedgerEffect returns the
// (owner, token) pending balance entry credited on execution together with
// the credited amount.
type Operation interface {
	Type() OpType
	LedgerEffect() (ethCommon.Address, TokenID, *big.Int)
	Bytes() ([]byte, error)
}

// PriorityOperationRecord is implemented by the operations that are enqueued
// as L1 priority requests.  CanonicalBytes re-encodes the record with the
// fields unknown at request time zeroed, so that hashing it reproduces the
// digest stored at enqueue.
type PriorityOperationRecord interface {
	Operation
	CanonicalBytes() ([]byte, error)
}

// DecodeOperation decodes a single operation record.  The record length must
// match the type's fixed layout exactly.
func DecodeOperation(b []byte) (Operation, error) {
	if len(b) == 0 {
		return nil, Wrap(ErrMalformedPubdata)
	}
	switch OpType(b[0]) {
	case OpTypeDeposit:
		return DepositFromBytes(b)
	case OpTypeFullExit:
		return FullExitFromBytes(b)
	case OpTypeChangeGroup:
		return ChangeGroupFromBytes(b)
	case OpTypeFullChangeGroup:
		return FullChangeGroupFromBytes(b)
	default:
		return nil, Wrap(ErrMalformedPubdata)
	}
}

// DecodeOperations splits a block's pubdata into its type-tagged fixed-width
// records and decodes each of them.  Any leftover bytes that do not form a
// whole record make the whole pubdata malformed.
func DecodeOperations(pubdata []byte) ([]Operation, error) {
	var ops []Operation
	for off := 0; off < len(pubdata); {
		n := OpType(pubdata[off]).recordLen()
		if n == 0 || off+n > len(pubdata) {
			return nil, Wrap(ErrMalformedPubdata)
		}
		op, err := DecodeOperation(pubdata[off : off+n])
		if err != nil {
			return nil, Wrap(err)
		}
		ops = append(ops, op)
		off += n
	}
	return ops, nil
}

// PubdataHash returns the truncated collision-resistant digest of canonical
// pubdata: the low 20 bytes of its Keccak256 hash.  This is what the priority
// queue stores instead of the full pubdata.
func PubdataHash(pubdata []byte) Hash20 {
	var h Hash20
	full := ethCrypto.Keccak256(pubdata)
	copy(h[:], full[32-PubdataHashLen:])
	return h
}

// CheckPriorityQueueMatch is the sole authenticity gate linking an
// L1-originated request to its later appearance inside rollup pubdata: the
// hash of the canonicalized record must equal the stored request digest.
func CheckPriorityQueueMatch(op PriorityOperationRecord, storedHash Hash20) (bool, error) {
	b, err := op.CanonicalBytes()
	if err != nil {
		return false, Wrap(err)
	}
	return PubdataHash(b) == storedHash, nil
}

// AmountBytes returns the 16 byte big-endian representation of a, failing
// with ErrAmountOverflow when a does not fit
func AmountBytes(a *big.Int) ([AmountBytesLen]byte, error) {
	return amountBytes(a)
}

// amountBytes returns the 16 byte big-endian representation of a
func amountBytes(a *big.Int) ([AmountBytesLen]byte, error) {
	var b [AmountBytesLen]byte
	if a == nil {
		return b, nil
	}
	if a.Sign() < 0 || len(a.Bytes()) > AmountBytesLen {
		return b, Wrap(ErrAmountOverflow)
	}
	a.FillBytes(b[:])
	return b, nil
}

// amountFromBytes returns the *big.Int encoded in 16 big-endian bytes
func amountFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func putUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func putUint16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}
