package blockprocessor

import (
	"math/big"
	"testing"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database"
	"tokamak-group-rollup/database/historydb"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/priorityqueue"
	"tokamak-group-rollup/test"
	"tokamak-group-rollup/verifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLifecycleAuditTrail runs the deposit lifecycle with the history DB
// attached and checks that every stage leaves its audit row behind.
func TestLifecycleAuditTrail(t *testing.T) {
	db, err := database.InitTestSQLDB()
	if err != nil {
		t.Skip("no test DB available: ", err)
	}
	defer func() { assert.NoError(t, db.Close()) }()
	test.WipeDB(db)
	hdb := historydb.NewHistoryDB(db, db)

	sdb, err := statedb.NewStateDB(statedb.Config{InMemory: true})
	require.NoError(t, err)
	defer sdb.Close()

	gov := governance.New(sdb, hdb)
	require.NoError(t, gov.RegisterToken(&common.Token{
		TokenID: 7, Name: "Tokamak Network Token", Symbol: "TON", Decimals: 18,
	}))
	genesis := common.StoredBlockInfo{
		PendingOperationsHash: common.EmptyPendingOperationsHash(),
	}
	require.NoError(t, gov.CreateGroup(&common.Group{
		GroupID:       3,
		ValidatorAddr: validator,
		State:         common.GroupStateActive,
	}, &genesis, nil))

	queue := priorityqueue.NewQueue(sdb, gov, hdb, 100)
	proc := NewProcessor(sdb, queue, gov, hdb,
		[]verifier.Client{&verifier.MockClient{}})

	// registrations are mirrored
	token, err := hdb.GetToken(7)
	require.NoError(t, err)
	assert.Equal(t, "TON", token.Symbol)
	group, err := hdb.GetGroup(3)
	require.NoError(t, err)
	assert.Equal(t, validator, group.ValidatorAddr)

	dep := &common.Deposit{
		AccountID: 5,
		Owner:     ownerAA,
		TokenID:   7,
		GroupID:   3,
		Amount:    big.NewInt(1000),
	}
	id, err := queue.Enqueue(3, dep, 500)
	require.NoError(t, err)
	requests, err := hdb.GetPriorityRequests(3)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, id, requests[0].RequestID)
	assert.Equal(t, common.OpTypeDeposit, requests[0].OpType)

	pubdata, err := dep.Bytes()
	require.NoError(t, err)
	sbi, err := proc.CommitBlock(validator, 3, 500, genesis, CommitBlockInfo{
		BlockNum: 1,
		Pubdata:  pubdata,
	})
	require.NoError(t, err)

	// the committed block and the group counters are mirrored
	record, err := hdb.GetLastBlockRecord(3)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNum(1), record.BlockNum)
	assert.Equal(t, sbi.Hash(), record.BlockHash)
	group, err = hdb.GetGroup(3)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNum(1), group.TotalBlocksCommitted)
	assert.Equal(t, uint64(1), group.TotalCommittedPriorityRequests)
}
