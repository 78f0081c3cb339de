package historydb

import (
	"math/big"
	"os"
	"testing"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/test"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyDB *HistoryDB

func TestMain(m *testing.M) {
	log.Init("debug", []string{"stdout"})
	db, err := database.InitTestSQLDB()
	if err != nil {
		log.Error("history DB tests skipped, no test DB available: ", err)
		os.Exit(0)
	}
	historyDB = NewHistoryDB(db, db)

	result := m.Run()
	if err := db.Close(); err != nil {
		log.Error("Error closing the history DB", err)
	}
	os.Exit(result)
}

func addTestGroup(t *testing.T, id common.GroupID) *common.Group {
	group := &common.Group{
		GroupID:       id,
		ValidatorAddr: ethCommon.BigToAddress(big.NewInt(0xa1)),
		VerifierIdx:   0,
		State:         common.GroupStateActive,
		EthBlockNum:   100,
	}
	require.NoError(t, historyDB.AddGroup(group))
	return group
}

func TestGroups(t *testing.T) {
	test.WipeDB(historyDB.DB())
	group := addTestGroup(t, 1)
	addTestGroup(t, 2)

	got, err := historyDB.GetGroup(1)
	require.NoError(t, err)
	assert.Equal(t, group, got)

	group.State = common.GroupStateExodus
	group.TotalBlocksCommitted = 3
	group.TotalBlocksProven = 2
	group.TotalBlocksExecuted = 1
	group.FirstPriorityRequestID = 5
	require.NoError(t, historyDB.UpdateGroup(group))
	got, err = historyDB.GetGroup(1)
	require.NoError(t, err)
	assert.Equal(t, group, got)

	groups, err := historyDB.GetGroups()
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestPriorityRequests(t *testing.T) {
	test.WipeDB(historyDB.DB())
	addTestGroup(t, 1)

	pos := []common.PriorityOperation{
		{GroupID: 1, RequestID: 0, OpType: common.OpTypeDeposit,
			PubdataHash: common.Hash20{0x01}, ExpirationBlock: 600},
		{GroupID: 1, RequestID: 1, OpType: common.OpTypeFullExit,
			PubdataHash: common.Hash20{0x02}, ExpirationBlock: 700},
	}
	require.NoError(t, historyDB.AddPriorityRequests(pos))

	got, err := historyDB.GetPriorityRequests(1)
	require.NoError(t, err)
	assert.Equal(t, pos, got)
}

func TestBlockRecords(t *testing.T) {
	test.WipeDB(historyDB.DB())
	addTestGroup(t, 1)

	for i := 1; i <= 2; i++ {
		sbi := common.StoredBlockInfo{
			BlockNum:              common.BlockNum(i),
			PriorityOperations:    uint64(i),
			PendingOperationsHash: common.EmptyPendingOperationsHash(),
			Timestamp:             int64(1000 + i),
			StateRoot:             ethCommon.Hash{byte(i)},
			Commitment:            ethCommon.Hash{byte(0x10 + i)},
		}
		require.NoError(t, historyDB.AddBlockRecord(&BlockRecord{
			GroupID:         1,
			StoredBlockInfo: sbi,
			BlockHash:       sbi.Hash(),
		}))
	}

	records, err := historyDB.GetBlockRecords(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, common.BlockNum(1), records[0].BlockNum)

	last, err := historyDB.GetLastBlockRecord(1)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNum(2), last.BlockNum)
	assert.Equal(t, last.StoredBlockInfo.Hash(), last.BlockHash)
}

func TestWithdrawalsAndTokens(t *testing.T) {
	test.WipeDB(historyDB.DB())

	token := &common.Token{
		TokenID: 7, EthBlockNum: 100,
		EthAddr: ethCommon.BigToAddress(big.NewInt(0x70)),
		Name:    "Tokamak Network Token", Symbol: "TON", Decimals: 18,
	}
	require.NoError(t, historyDB.AddToken(token))
	gotToken, err := historyDB.GetToken(7)
	require.NoError(t, err)
	assert.Equal(t, token, gotToken)
	tokens, err := historyDB.GetTokens()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	owner := ethCommon.BigToAddress(big.NewInt(0xaa))
	w := &Withdrawal{
		Owner:       owner,
		TokenID:     7,
		Amount:      big.NewInt(1000),
		EthBlockNum: 123,
	}
	require.NoError(t, historyDB.AddWithdrawal(w))
	assert.NotZero(t, w.ItemID)

	ws, err := historyDB.GetWithdrawals(owner)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, big.NewInt(1000), ws[0].Amount)
}
