// Package node wires the whole rollup node together: the state DB, the
// history DB, the priority queue, the block processor and the API servers.
package node

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tokamak-group-rollup/api"
	"tokamak-group-rollup/blockprocessor"
	"tokamak-group-rollup/common"
	"tokamak-group-rollup/config"
	"tokamak-group-rollup/database"
	"tokamak-group-rollup/database/historydb"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/priorityqueue"
	"tokamak-group-rollup/verifier"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/mitchellh/copystructure"
	"golang.org/x/sync/errgroup"
)

// Node is the top level struct of the rollup node
type Node struct {
	cfg       *config.Config
	stateDB   *statedb.StateDB
	historyDB *historydb.HistoryDB
	gov       *governance.Governance
	queue     *priorityqueue.Queue
	proc      *blockprocessor.Processor
	api       *api.API

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode creates a Node from the configuration
func NewNode(cfg *config.Config) (*Node, error) {
	// Stablish DB connection
	dbWrite, err := database.InitSQLDB(
		cfg.PostgreSQL.PortWrite,
		cfg.PostgreSQL.HostWrite,
		cfg.PostgreSQL.UserWrite,
		cfg.PostgreSQL.PasswordWrite,
		cfg.PostgreSQL.NameWrite,
	)
	if err != nil {
		return nil, common.Wrap(err)
	}
	var dbRead *sqlx.DB
	if cfg.PostgreSQL.HostRead == "" {
		dbRead = dbWrite
	} else if cfg.PostgreSQL.HostRead == cfg.PostgreSQL.HostWrite {
		return nil, common.Wrap(errReadDBHost)
	} else {
		dbRead, err = database.InitSQLDB(
			cfg.PostgreSQL.PortRead,
			cfg.PostgreSQL.HostRead,
			cfg.PostgreSQL.UserRead,
			cfg.PostgreSQL.PasswordRead,
			cfg.PostgreSQL.NameRead,
		)
		if err != nil {
			return nil, common.Wrap(err)
		}
	}
	historyDB := historydb.NewHistoryDB(dbRead, dbWrite)

	stateDB, err := statedb.NewStateDB(statedb.Config{
		Path:     cfg.StateDB.Path,
		InMemory: cfg.StateDB.InMemory,
	})
	if err != nil {
		return nil, common.Wrap(err)
	}

	gov := governance.New(stateDB, historyDB)
	queue := priorityqueue.NewQueue(stateDB, gov, historyDB, cfg.Queue.ExpirationWindow)

	verifiers := make([]verifier.Client, len(cfg.Verifiers))
	for i, url := range cfg.Verifiers {
		verifiers[i] = verifier.NewServerClient(url)
	}
	proc := blockprocessor.NewProcessor(stateDB, queue, gov, historyDB, verifiers)

	apiServer := api.NewAPI(api.Config{
		Address: cfg.API.Address,
		Metrics: cfg.API.Metrics,
	}, stateDB, historyDB, gov, queue, proc)

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:       cfg,
		stateDB:   stateDB,
		historyDB: historyDB,
		gov:       gov,
		queue:     queue,
		proc:      proc,
		api:       apiServer,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// StateDB of the node
func (n *Node) StateDB() *statedb.StateDB { return n.stateDB }

// HistoryDB of the node
func (n *Node) HistoryDB() *historydb.HistoryDB { return n.historyDB }

// Processor of the node
func (n *Node) Processor() *blockprocessor.Processor { return n.proc }

// Queue of the node
func (n *Node) Queue() *priorityqueue.Queue { return n.queue }

// ConfigSnapshot returns a deep copy of the running configuration, so the
// debug API can serve it without sharing the node's copy
func (n *Node) ConfigSnapshot() (*config.Config, error) {
	copied, err := copystructure.Copy(n.cfg)
	if err != nil {
		return nil, common.Wrap(err)
	}
	cfg, ok := copied.(*config.Config)
	if !ok {
		return nil, common.Wrap(errConfigCopy)
	}
	return cfg, nil
}

func (n *Node) debugRouter() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	debug := engine.Group("/debug")
	debug.GET("/config", func(c *gin.Context) {
		cfg, err := n.ConfigSnapshot()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// The DB passwords don't belong in an http response
		cfg.PostgreSQL.PasswordWrite = ""
		cfg.PostgreSQL.PasswordRead = ""
		c.JSON(http.StatusOK, cfg)
	})
	debug.GET("/groups/:groupID", func(c *gin.Context) {
		var uri struct {
			GroupID uint16 `uri:"groupID" binding:"required"`
		}
		if err := c.ShouldBindUri(&uri); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		group, err := n.stateDB.GetGroup(common.GroupID(uri.GroupID))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, group)
	})
	return engine
}

func (n *Node) runDebugAPI(ctx context.Context) error {
	server := &http.Server{
		Addr:           n.cfg.Debug.APIAddress,
		Handler:        n.debugRouter(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Infof("DebugAPI is ready at %v", n.cfg.Debug.APIAddress)
	go func() {
		if err := server.ListenAndServe(); err != nil &&
			common.Unwrap(err) != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()
	<-ctx.Done()
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		return common.Wrap(err)
	}
	log.Info("DebugAPI stopped")
	return nil
}

// Start the node servers.  Start is non blocking; use Stop to shut the node
// down.
func (n *Node) Start() {
	log.Infow("Starting node...")
	group, ctx := errgroup.WithContext(n.ctx)
	group.Go(func() error {
		return n.api.Run(ctx)
	})
	if n.cfg.Debug.APIAddress != "" {
		group.Go(func() error {
			return n.runDebugAPI(ctx)
		})
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := group.Wait(); err != nil {
			log.Errorw("Node server stopped", "err", err)
		}
	}()
}

// Stop the node and wait for the servers to shut down
func (n *Node) Stop() {
	log.Infow("Stopping node...")
	n.cancel()
	n.wg.Wait()
	n.stateDB.Close()
}
