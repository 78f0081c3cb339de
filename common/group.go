package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// GroupState is the lifecycle state of a group.  The only transition is
// Active -> Exodus and it is irreversible.
type GroupState string

const (
	// GroupStateActive is the normal processing state
	GroupStateActive GroupState = "Active"
	// GroupStateExodus is the terminal emergency state entered when an
	// open priority request expires unserviced
	GroupStateExodus GroupState = "Exodus"
)

// GroupID is the 16 bit identifier of a rollup partition
type GroupID uint16

// GroupIDBytesLen is the pubdata width of a GroupID
const GroupIDBytesLen = 2

// groupBytesLen is the length of the serialized Group record in the state DB
const groupBytesLen = 70

// Bytes returns a byte array of length 2 representing the GroupID
func (g GroupID) Bytes() []byte {
	var b [GroupIDBytesLen]byte
	binary.BigEndian.PutUint16(b[:], uint16(g))
	return b[:]
}

// BigInt returns a *big.Int representing the GroupID
func (g GroupID) BigInt() *big.Int {
	return big.NewInt(int64(g))
}

// String returns the decimal representation of the GroupID
func (g GroupID) String() string {
	return fmt.Sprintf("%d", uint16(g))
}

// GroupIDFromBytes returns GroupID from a []byte
func GroupIDFromBytes(b []byte) (GroupID, error) {
	if len(b) != GroupIDBytesLen {
		return 0, Wrap(fmt.Errorf("can not parse GroupID, bytes len %d, expected %d",
			len(b), GroupIDBytesLen))
	}
	return GroupID(binary.BigEndian.Uint16(b)), nil
}

// Group is the per-partition state record.  GroupID, ValidatorAddr and
// VerifierIdx are fixed at creation; the counters are monotonic and hold
// TotalBlocksExecuted <= TotalBlocksProven <= TotalBlocksCommitted.
type Group struct {
	GroupID GroupID `json:"groupId" meddler:"group_id"`
	// ValidatorAddr is the only address allowed to advance this group's
	// block pipeline
	ValidatorAddr ethCommon.Address `json:"validatorAddr" meddler:"validator_addr"`
	// VerifierIdx selects the verifier this group is bound to
	VerifierIdx          uint16     `json:"verifierIdx" meddler:"verifier_idx"`
	State                GroupState `json:"state" meddler:"state"`
	TotalBlocksCommitted BlockNum   `json:"totalBlocksCommitted" meddler:"total_blocks_committed"`
	TotalBlocksProven    BlockNum   `json:"totalBlocksProven" meddler:"total_blocks_proven"`
	TotalBlocksExecuted  BlockNum   `json:"totalBlocksExecuted" meddler:"total_blocks_executed"`
	// FirstPriorityRequestID is the id of the oldest request still inside
	// the open window
	FirstPriorityRequestID         uint64 `json:"firstPriorityRequestId" meddler:"first_priority_request_id"`
	TotalOpenPriorityRequests      uint64 `json:"totalOpenPriorityRequests" meddler:"total_open_priority_requests"`
	TotalCommittedPriorityRequests uint64 `json:"totalCommittedPriorityRequests" meddler:"total_committed_priority_requests"`
	// Permissioned enables the deposit whitelist for this group
	Permissioned bool `json:"permissioned" meddler:"permissioned"`
	// EthBlockNum is the Ethereum block in which the group was registered
	EthBlockNum int64 `json:"ethereumBlockNum" meddler:"eth_block_num"`
}

// Exodus returns true once the group has latched into exodus mode
func (g *Group) Exodus() bool {
	return g.State == GroupStateExodus
}

// NextPriorityRequestID returns the id that the next enqueued request will
// take
func (g *Group) NextPriorityRequestID() uint64 {
	return g.FirstPriorityRequestID + g.TotalOpenPriorityRequests
}

// Bytes returns the fixed-width serialization of the Group used as state DB
// value
func (g *Group) Bytes() []byte {
	var b [groupBytesLen]byte
	binary.BigEndian.PutUint16(b[0:2], uint16(g.GroupID))
	copy(b[2:22], g.ValidatorAddr.Bytes())
	binary.BigEndian.PutUint16(b[22:24], g.VerifierIdx)
	if g.State == GroupStateExodus {
		b[24] = 1
	}
	if g.Permissioned {
		b[25] = 1
	}
	binary.BigEndian.PutUint32(b[26:30], uint32(g.TotalBlocksCommitted))
	binary.BigEndian.PutUint32(b[30:34], uint32(g.TotalBlocksProven))
	binary.BigEndian.PutUint32(b[34:38], uint32(g.TotalBlocksExecuted))
	binary.BigEndian.PutUint64(b[38:46], g.FirstPriorityRequestID)
	binary.BigEndian.PutUint64(b[46:54], g.TotalOpenPriorityRequests)
	binary.BigEndian.PutUint64(b[54:62], g.TotalCommittedPriorityRequests)
	binary.BigEndian.PutUint64(b[62:70], uint64(g.EthBlockNum))
	return b[:]
}

// GroupFromBytes returns a Group from its fixed-width serialization
func GroupFromBytes(b []byte) (*Group, error) {
	if len(b) != groupBytesLen {
		return nil, Wrap(fmt.Errorf("can not parse Group, bytes len %d, expected %d",
			len(b), groupBytesLen))
	}
	g := Group{
		GroupID:                        GroupID(binary.BigEndian.Uint16(b[0:2])),
		ValidatorAddr:                  ethCommon.BytesToAddress(b[2:22]),
		VerifierIdx:                    binary.BigEndian.Uint16(b[22:24]),
		State:                          GroupStateActive,
		TotalBlocksCommitted:           BlockNum(binary.BigEndian.Uint32(b[26:30])),
		TotalBlocksProven:              BlockNum(binary.BigEndian.Uint32(b[30:34])),
		TotalBlocksExecuted:            BlockNum(binary.BigEndian.Uint32(b[34:38])),
		FirstPriorityRequestID:         binary.BigEndian.Uint64(b[38:46]),
		TotalOpenPriorityRequests:      binary.BigEndian.Uint64(b[46:54]),
		TotalCommittedPriorityRequests: binary.BigEndian.Uint64(b[54:62]),
		Permissioned:                   b[25] == 1,
		EthBlockNum:                    int64(binary.BigEndian.Uint64(b[62:70])),
	}
	if b[24] == 1 {
		g.State = GroupStateExodus
	}
	return &g, nil
}
