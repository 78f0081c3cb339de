package common

import (
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBytes(t *testing.T) {
	g := &Group{
		GroupID:                        3,
		ValidatorAddr:                  ethCommon.HexToAddress("0x1234567890123456789012345678901234567890"),
		VerifierIdx:                    1,
		State:                          GroupStateActive,
		TotalBlocksCommitted:           10,
		TotalBlocksProven:              8,
		TotalBlocksExecuted:            5,
		FirstPriorityRequestID:         100,
		TotalOpenPriorityRequests:      7,
		TotalCommittedPriorityRequests: 4,
		Permissioned:                   true,
		EthBlockNum:                    123456,
	}
	b := g.Bytes()
	g2, err := GroupFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, g, g2)

	g.State = GroupStateExodus
	g2, err = GroupFromBytes(g.Bytes())
	require.NoError(t, err)
	assert.Equal(t, GroupStateExodus, g2.State)
	assert.True(t, g2.Exodus())

	_, err = GroupFromBytes(b[:10])
	assert.Error(t, err)
}

func TestGroupNextPriorityRequestID(t *testing.T) {
	g := &Group{FirstPriorityRequestID: 100, TotalOpenPriorityRequests: 7}
	assert.Equal(t, uint64(107), g.NextPriorityRequestID())
}

func TestStoredBlockInfoHash(t *testing.T) {
	sbi := &StoredBlockInfo{
		BlockNum:              1,
		PriorityOperations:    2,
		PendingOperationsHash: EmptyPendingOperationsHash(),
		Timestamp:             1700000000,
		StateRoot:             ethCommon.HexToHash("0x01"),
		Commitment:            ethCommon.HexToHash("0x02"),
	}
	h := sbi.Hash()
	assert.Equal(t, h, sbi.Hash())

	// any field change must change the hash
	sbi2 := *sbi
	sbi2.PriorityOperations = 3
	assert.NotEqual(t, h, sbi2.Hash())
}

func TestPendingOperationsHashChain(t *testing.T) {
	h := EmptyPendingOperationsHash()
	h1 := AddToPendingOperationsHash(h, []byte("op1"))
	h2 := AddToPendingOperationsHash(h1, []byte("op2"))
	assert.NotEqual(t, h1, h2)
	// order matters
	h1b := AddToPendingOperationsHash(h, []byte("op2"))
	h2b := AddToPendingOperationsHash(h1b, []byte("op1"))
	assert.NotEqual(t, h2, h2b)
}

func TestPriorityOperationBytes(t *testing.T) {
	po := &PriorityOperation{
		OpType:          OpTypeFullExit,
		PubdataHash:     PubdataHash([]byte("request")),
		ExpirationBlock: 99999,
	}
	po2, err := PriorityOperationFromBytes(po.Bytes())
	require.NoError(t, err)
	assert.Equal(t, po.OpType, po2.OpType)
	assert.Equal(t, po.PubdataHash, po2.PubdataHash)
	assert.Equal(t, po.ExpirationBlock, po2.ExpirationBlock)
}
