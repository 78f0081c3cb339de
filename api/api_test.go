package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"tokamak-group-rollup/blockprocessor"
	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/priorityqueue"
	"tokamak-group-rollup/verifier"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init("debug", []string{"stdout"})
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T) (*API, *statedb.StateDB) {
	sdb, err := statedb.NewStateDB(statedb.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(sdb.Close)

	gov := governance.New(sdb, nil)
	require.NoError(t, gov.RegisterToken(&common.Token{
		TokenID: 7, Name: "Tokamak Network Token", Symbol: "TON", Decimals: 18,
	}))
	require.NoError(t, sdb.CreateGroup(&common.Group{
		GroupID:       3,
		ValidatorAddr: ethCommon.BigToAddress(big.NewInt(0xa1)),
		State:         common.GroupStateActive,
	}, &common.StoredBlockInfo{
		PendingOperationsHash: common.EmptyPendingOperationsHash(),
	}, nil))

	queue := priorityqueue.NewQueue(sdb, gov, nil, 100)
	proc := blockprocessor.NewProcessor(sdb, queue, gov, nil,
		[]verifier.Client{&verifier.MockClient{}})
	return NewAPI(Config{Address: "localhost:0"}, sdb, nil, gov, queue, proc), sdb
}

func doRequest(t *testing.T, router *gin.Engine, method, path string,
	body []byte) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetGroup(t *testing.T) {
	a, _ := newTestAPI(t)
	router := a.Router()

	w := doRequest(t, router, "GET", "/v1/groups/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var group common.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	assert.Equal(t, common.GroupID(3), group.GroupID)

	w = doRequest(t, router, "GET", "/v1/groups/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, "GET", "/v1/groups/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetToken(t *testing.T) {
	a, _ := newTestAPI(t)
	router := a.Router()

	w := doRequest(t, router, "GET", "/v1/tokens/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var token common.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	assert.Equal(t, "TON", token.Symbol)

	w = doRequest(t, router, "GET", "/v1/tokens/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPendingBalanceAndWithdrawal(t *testing.T) {
	a, sdb := newTestAPI(t)
	router := a.Router()
	owner := ethCommon.BigToAddress(big.NewInt(0xaa))

	tx, err := sdb.NewTx()
	require.NoError(t, err)
	require.NoError(t, statedb.CreditPendingBalance(tx, owner, 7, big.NewInt(1000)))
	require.NoError(t, tx.Commit())

	w := doRequest(t, router, "GET", "/v1/balances/"+owner.Hex()+"/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balResp struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balResp))
	assert.Equal(t, "1000", balResp.Balance)

	body, err := json.Marshal(withdrawRequest{
		Owner:   owner.Hex(),
		TokenID: 7,
		Amount:  "1500",
	})
	require.NoError(t, err)
	w = doRequest(t, router, "POST", "/v1/withdrawals", body)
	require.Equal(t, http.StatusOK, w.Code)
	var wResp struct {
		Withdrawn string `json:"withdrawn"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wResp))
	assert.Equal(t, "1000", wResp.Withdrawn)

	bal, err := sdb.GetPendingBalance(owner, 7)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}

func TestGetPriorityRequest(t *testing.T) {
	a, _ := newTestAPI(t)
	router := a.Router()

	_, err := a.queue.Enqueue(3, &common.Deposit{
		Owner:   ethCommon.BigToAddress(big.NewInt(0xaa)),
		TokenID: 7,
		GroupID: 3,
		Amount:  big.NewInt(1000),
	}, 500)
	require.NoError(t, err)

	w := doRequest(t, router, "GET", "/v1/groups/3/requests/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var po common.PriorityOperation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &po))
	assert.Equal(t, common.OpTypeDeposit, po.OpType)

	w = doRequest(t, router, "GET", "/v1/groups/3/requests/5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, "GET", "/v1/groups/3/blocks", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
