package node

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/config"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init("debug", []string{"stdout"})
	gin.SetMode(gin.TestMode)
}

func newTestNode(t *testing.T) *Node {
	var cfg config.Config
	require.NoError(t, config.LoadConfig("", config.DefaultValues, &cfg))
	cfg.PostgreSQL.PasswordWrite = "secret"
	cfg.Verifiers = []string{"http://localhost:3000"}
	cfg.Debug.APIAddress = "localhost:12346"

	sdb, err := statedb.NewStateDB(statedb.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(sdb.Close)

	return &Node{cfg: &cfg, stateDB: sdb}
}

func TestConfigSnapshot(t *testing.T) {
	n := newTestNode(t)

	snap, err := n.ConfigSnapshot()
	require.NoError(t, err)
	assert.Equal(t, n.cfg, snap)

	// mutating the snapshot must not touch the node's config
	snap.Verifiers[0] = "http://changed"
	snap.Log.Outputs[0] = "changed"
	assert.NotEqual(t, n.cfg.Verifiers[0], snap.Verifiers[0])
	assert.NotEqual(t, n.cfg.Log.Outputs[0], snap.Log.Outputs[0])
}

func TestDebugAPIConfig(t *testing.T) {
	n := newTestNode(t)
	router := n.debugRouter()

	req := httptest.NewRequest(http.MethodGet, "/debug/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	// serving the scrubbed snapshot must leave the node's copy intact
	assert.Equal(t, "secret", n.cfg.PostgreSQL.PasswordWrite)
}

func TestDebugAPIGroup(t *testing.T) {
	n := newTestNode(t)
	router := n.debugRouter()

	group := &common.Group{
		GroupID:       4,
		ValidatorAddr: ethCommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		VerifierIdx:   0,
	}
	require.NoError(t, n.stateDB.CreateGroup(group, &common.StoredBlockInfo{
		PendingOperationsHash: common.EmptyPendingOperationsHash(),
	}, nil))

	req := httptest.NewRequest(http.MethodGet, "/debug/groups/4", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(),
		"0x1111111111111111111111111111111111111111") ||
		strings.Contains(w.Body.String(), "4"))

	req = httptest.NewRequest(http.MethodGet, "/debug/groups/9", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
