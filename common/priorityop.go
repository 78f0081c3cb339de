package common

import (
	"encoding/binary"
	"fmt"
)

// RequestIDBytesLen is the width of a serialized priority request id
const RequestIDBytesLen = 8

// priorityOperationBytesLen is the serialized PriorityOperation length in
// the state DB: opType 1 | pubdataHash 20 | expirationBlock 8
const priorityOperationBytesLen = 29

// PriorityOperation is one pending L1-originated request.  Only the
// truncated digest of its canonical pubdata is stored ("commit now, reveal
// and verify later"); the full pubdata reappears inside a committed block
// and is matched by hash.  Requests are never deleted, only the group's
// window pointers advance past them.
type PriorityOperation struct {
	GroupID GroupID `json:"groupId" meddler:"group_id"`
	// RequestID is strictly increasing per group, starting at the group's
	// FirstPriorityRequestID at genesis
	RequestID uint64 `json:"requestId" meddler:"request_id"`
	OpType    OpType `json:"opType" meddler:"op_type"`
	// PubdataHash is the truncated digest of the canonical pubdata
	PubdataHash Hash20 `json:"pubdataHash" meddler:"pubdata_hash"`
	// ExpirationBlock is the absolute Ethereum block height after which
	// the request, if still uncommitted, triggers exodus mode
	ExpirationBlock int64 `json:"expirationBlock" meddler:"expiration_block"`
}

// Bytes returns the fixed-width serialization of the PriorityOperation used
// as state DB value.  GroupID and RequestID are part of the key.
func (po *PriorityOperation) Bytes() []byte {
	var b [priorityOperationBytesLen]byte
	b[0] = byte(po.OpType)
	copy(b[1:21], po.PubdataHash[:])
	binary.BigEndian.PutUint64(b[21:29], uint64(po.ExpirationBlock))
	return b[:]
}

// PriorityOperationFromBytes returns a PriorityOperation from its state DB
// serialization.  The caller fills GroupID and RequestID from the key.
func PriorityOperationFromBytes(b []byte) (*PriorityOperation, error) {
	if len(b) != priorityOperationBytesLen {
		return nil, Wrap(fmt.Errorf(
			"can not parse PriorityOperation, bytes len %d, expected %d",
			len(b), priorityOperationBytesLen))
	}
	po := PriorityOperation{
		OpType:          OpType(b[0]),
		ExpirationBlock: int64(binary.BigEndian.Uint64(b[21:29])),
	}
	copy(po.PubdataHash[:], b[1:21])
	return &po, nil
}
