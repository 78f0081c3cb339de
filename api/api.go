// Package api serves the read endpoints of the node: group state, priority
// requests, pending balances and the audit trail, plus the withdrawal entry
// point.  State reads go to the contract-level statedb; history reads go to
// the SQL audit trail when one is configured.
package api

import (
	"context"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"tokamak-group-rollup/blockprocessor"
	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/historydb"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/priorityqueue"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config of the API server
type Config struct {
	// Address where the server listens
	Address string
	// Metrics exposes the prometheus metrics endpoint
	Metrics bool
}

// API is the http server of the node
type API struct {
	cfg     Config
	stateDB *statedb.StateDB
	history *historydb.HistoryDB
	gov     *governance.Governance
	queue   *priorityqueue.Queue
	proc    *blockprocessor.Processor
}

// NewAPI creates the API server.  history may be nil, in which case the
// audit trail endpoints answer 501.
func NewAPI(cfg Config, stateDB *statedb.StateDB, history *historydb.HistoryDB,
	gov *governance.Governance, queue *priorityqueue.Queue,
	proc *blockprocessor.Processor) *API {
	return &API{
		cfg:     cfg,
		stateDB: stateDB,
		history: history,
		gov:     gov,
		queue:   queue,
		proc:    proc,
	}
}

func badReq(err error, c *gin.Context) {
	log.Errorw("API bad request", "err", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (a *API) parseGroupID(c *gin.Context) (common.GroupID, bool) {
	id, err := strconv.ParseUint(c.Param("groupID"), 10, 16)
	if err != nil {
		badReq(err, c)
		return 0, false
	}
	return common.GroupID(id), true
}

func (a *API) handleGetGroup(c *gin.Context) {
	groupID, ok := a.parseGroupID(c)
	if !ok {
		return
	}
	group, err := a.stateDB.GetGroup(groupID)
	if err != nil {
		if common.Unwrap(err) == common.ErrGroupNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (a *API) handleGetPriorityRequest(c *gin.Context) {
	groupID, ok := a.parseGroupID(c)
	if !ok {
		return
	}
	requestID, err := strconv.ParseUint(c.Param("requestID"), 10, 64)
	if err != nil {
		badReq(err, c)
		return
	}
	po, err := a.queue.Get(groupID, requestID)
	if err != nil {
		if common.Unwrap(err) == common.ErrPriorityOpNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (a *API) handleGetBlocks(c *gin.Context) {
	if a.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no history DB configured"})
		return
	}
	groupID, ok := a.parseGroupID(c)
	if !ok {
		return
	}
	records, err := a.history.GetBlockRecords(groupID)
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a *API) handleGetPendingBalance(c *gin.Context) {
	owner := ethCommon.HexToAddress(c.Param("owner"))
	tokenID, err := strconv.ParseUint(c.Param("tokenID"), 10, 32)
	if err != nil {
		badReq(err, c)
		return
	}
	balance, err := a.stateDB.GetPendingBalance(owner, common.TokenID(tokenID))
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":   owner.Hex(),
		"tokenId": tokenID,
		"balance": balance.String(),
	})
}

func (a *API) handleGetToken(c *gin.Context) {
	tokenID, err := strconv.ParseUint(c.Param("tokenID"), 10, 32)
	if err != nil {
		badReq(err, c)
		return
	}
	token, err := a.gov.Token(common.TokenID(tokenID))
	if err != nil {
		if common.Unwrap(err) == common.ErrTokenNotRegistered {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, token)
}

type withdrawRequest struct {
	Owner   string `json:"owner" binding:"required"`
	TokenID uint32 `json:"tokenId"`
	Amount  string `json:"amount" binding:"required"`
}

func (a *API) handlePostWithdrawal(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badReq(err, c)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	owner := ethCommon.HexToAddress(req.Owner)
	actual, err := a.proc.WithdrawPendingBalance(owner, common.TokenID(req.TokenID), amount)
	if err != nil {
		badReq(err, c)
		return
	}
	if a.history != nil {
		if err := a.history.AddWithdrawal(&historydb.Withdrawal{
			Owner:   owner,
			TokenID: common.TokenID(req.TokenID),
			Amount:  actual,
		}); err != nil {
			log.Errorw("API withdrawal audit insert failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":     owner.Hex(),
		"tokenId":   req.TokenID,
		"requested": req.Amount,
		"withdrawn": actual.String(),
	})
}

func handleNoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// Router builds the gin engine with all the endpoints mounted
func (a *API) Router() *gin.Engine {
	engine := gin.Default()
	engine.NoRoute(handleNoRoute)
	v1 := engine.Group("/v1")
	v1.GET("/groups/:groupID", a.handleGetGroup)
	v1.GET("/groups/:groupID/requests/:requestID", a.handleGetPriorityRequest)
	v1.GET("/groups/:groupID/blocks", a.handleGetBlocks)
	v1.GET("/balances/:owner/:tokenID", a.handleGetPendingBalance)
	v1.GET("/tokens/:tokenID", a.handleGetToken)
	v1.POST("/withdrawals", a.handlePostWithdrawal)
	if a.cfg.Metrics {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return engine
}

// Run starts the http server of the API.  To stop it, pass a context with
// cancellation.
func (a *API) Run(ctx context.Context) error {
	server := &http.Server{
		Handler:        a.Router(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	listener, err := net.Listen("tcp", a.cfg.Address)
	if err != nil {
		return common.Wrap(err)
	}
	log.Infof("API is ready at %v", a.cfg.Address)
	go func() {
		if err := server.Serve(listener); err != nil &&
			common.Unwrap(err) != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Stopping API...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		return common.Wrap(err)
	}
	log.Info("API stopped")
	return nil
}
