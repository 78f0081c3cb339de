package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// BlockNum identifies a rollup block inside one group, starting at 1 for the
// first committed block.  Block 0 is the genesis record.
type BlockNum uint32

// BlockNumBytesLen is the width of a serialized BlockNum
const BlockNumBytesLen = 4

// storedBlockInfoBytesLen is the packed StoredBlockInfo length hashed by Hash
const storedBlockInfoBytesLen = 4 + 8 + 32 + 8 + 32 + 32

// Bytes returns a byte array of length 4 representing the BlockNum
func (bn BlockNum) Bytes() []byte {
	var b [BlockNumBytesLen]byte
	binary.BigEndian.PutUint32(b[:], uint32(bn))
	return b[:]
}

// BigInt returns a *big.Int representing the BlockNum
func (bn BlockNum) BigInt() *big.Int {
	return big.NewInt(int64(bn))
}

// BlockNumFromBytes returns BlockNum from a []byte
func BlockNumFromBytes(b []byte) (BlockNum, error) {
	if len(b) != BlockNumBytesLen {
		return 0, Wrap(fmt.Errorf("can not parse BlockNum, bytes len %d, expected %d",
			len(b), BlockNumBytesLen))
	}
	return BlockNum(binary.BigEndian.Uint32(b)), nil
}

// StoredBlockInfo is the record of one committed rollup block.  Only its
// hash is retained in storage; callers referencing a previously committed
// block supply the full record again and authenticity is the hash match.
type StoredBlockInfo struct {
	BlockNum BlockNum `json:"blockNum" meddler:"block_num"`
	// PriorityOperations is the number of priority requests consumed by
	// this block
	PriorityOperations uint64 `json:"priorityOperations" meddler:"priority_operations"`
	// PendingOperationsHash is the rolling hash of the operations whose
	// ledger effects are applied at execution time
	PendingOperationsHash ethCommon.Hash `json:"pendingOperationsHash" meddler:"pending_operations_hash"`
	Timestamp             int64          `json:"timestamp" meddler:"timestamp"`
	// StateRoot is the group state tree root after this block
	StateRoot ethCommon.Hash `json:"stateRoot" meddler:"state_root"`
	// Commitment is the public input consumed by the verifier
	Commitment ethCommon.Hash `json:"commitment" meddler:"commitment"`
}

// Bytes returns the packed fixed-width serialization of the StoredBlockInfo
func (sbi *StoredBlockInfo) Bytes() []byte {
	var b [storedBlockInfoBytesLen]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(sbi.BlockNum))
	binary.BigEndian.PutUint64(b[4:12], sbi.PriorityOperations)
	copy(b[12:44], sbi.PendingOperationsHash.Bytes())
	binary.BigEndian.PutUint64(b[44:52], uint64(sbi.Timestamp))
	copy(b[52:84], sbi.StateRoot.Bytes())
	copy(b[84:116], sbi.Commitment.Bytes())
	return b[:]
}

// Hash returns the Keccak256 hash of the packed StoredBlockInfo.  This is
// the value kept in the per-group stored block hash table.
func (sbi *StoredBlockInfo) Hash() ethCommon.Hash {
	return ethCrypto.Keccak256Hash(sbi.Bytes())
}

// EmptyPendingOperationsHash is the seed of the rolling pending operations
// hash: Keccak256 of the empty input, as used for a block with no operations
// pending execution.
func EmptyPendingOperationsHash() ethCommon.Hash {
	return ethCrypto.Keccak256Hash(nil)
}

// AddToPendingOperationsHash extends the rolling hash with one operation's
// pubdata record
func AddToPendingOperationsHash(h ethCommon.Hash, opPubdata []byte) ethCommon.Hash {
	return ethCrypto.Keccak256Hash(h.Bytes(), opPubdata)
}
