// Package statedb holds the contract-level storage of the rollup: group
// records, stored block hashes, priority requests, the shared pending
// balance ledger and the exodus bookkeeping.  Every mutating call of the
// block processor runs inside a single storage transaction, so a failed call
// leaves no partial mutation visible, mirroring the all-or-nothing semantics
// of the host chain.
package statedb

import (
	"encoding/binary"
	"encoding/json"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-merkletree/db"
	"github.com/iden3/go-merkletree/db/memory"
	"github.com/iden3/go-merkletree/db/pebble"
)

var (
	// PrefixKeyGroup is the key prefix for group records
	PrefixKeyGroup = []byte("g:")
	// PrefixKeyPendingBalance is the key prefix for the shared pending
	// balance ledger.  The key carries no group identity: (owner, token)
	// entries are visible to every group, which is what lets cross-group
	// transfers avoid the L1 round-trip.
	PrefixKeyPendingBalance = []byte("pb:")
	// PrefixKeyPriorityOp is the key prefix for stored priority requests
	PrefixKeyPriorityOp = []byte("po:")
	// PrefixKeyBlockHash is the key prefix for stored block hashes
	PrefixKeyBlockHash = []byte("bh:")
	// PrefixKeyExodus is the key prefix for the performed-exodus set
	PrefixKeyExodus = []byte("ex:")
	// PrefixKeyWhitelist is the key prefix for group deposit whitelists
	PrefixKeyWhitelist = []byte("wl:")
	// PrefixKeyToken is the key prefix for the governance token registry
	PrefixKeyToken = []byte("tk:")
)

// Config of the StateDB
type Config struct {
	// Path where the pebble storage lives.  Ignored when InMemory is set.
	Path string
	// InMemory keeps the whole state in an in-memory storage, used by
	// tests
	InMemory bool
}

// StateDB is the contract-level state store
type StateDB struct {
	cfg Config
	db  db.Storage
}

// NewStateDB initializes a new StateDB
func NewStateDB(cfg Config) (*StateDB, error) {
	var sto db.Storage
	if cfg.InMemory {
		sto = memory.NewMemoryStorage()
	} else {
		var err error
		sto, err = pebble.NewPebbleStorage(cfg.Path, false)
		if err != nil {
			return nil, common.Wrap(err)
		}
		log.Infow("opened state DB", "path", cfg.Path)
	}
	return &StateDB{cfg: cfg, db: sto}, nil
}

// DB returns the underlying storage
func (s *StateDB) DB() db.Storage {
	return s.db
}

// NewTx starts a storage transaction.  All writes of one contract-level call
// go through a single tx and become visible atomically at Commit.
func (s *StateDB) NewTx() (db.Tx, error) {
	tx, err := s.db.NewTx()
	if err != nil {
		return nil, common.Wrap(err)
	}
	return tx, nil
}

// Close closes the underlying storage
func (s *StateDB) Close() {
	s.db.Close()
}

func groupKey(id common.GroupID) []byte {
	return append(append([]byte{}, PrefixKeyGroup...), id.Bytes()...)
}

func priorityOpKey(id common.GroupID, requestID uint64) []byte {
	k := append(append([]byte{}, PrefixKeyPriorityOp...), id.Bytes()...)
	var req [common.RequestIDBytesLen]byte
	binary.BigEndian.PutUint64(req[:], requestID)
	return append(k, req[:]...)
}

func blockHashKey(id common.GroupID, blockNum common.BlockNum) []byte {
	k := append(append([]byte{}, PrefixKeyBlockHash...), id.Bytes()...)
	return append(k, blockNum.Bytes()...)
}

func pendingBalanceKey(owner ethCommon.Address, token common.TokenID) []byte {
	k := append(append([]byte{}, PrefixKeyPendingBalance...), owner.Bytes()...)
	return append(k, token.Bytes()...)
}

func exodusKey(id common.GroupID, accountID common.AccountID, token common.TokenID) []byte {
	k := append(append([]byte{}, PrefixKeyExodus...), id.Bytes()...)
	k = append(k, accountID.Bytes()...)
	return append(k, token.Bytes()...)
}

func tokenKey(id common.TokenID) []byte {
	return append(append([]byte{}, PrefixKeyToken...), id.Bytes()...)
}

func whitelistKey(id common.GroupID, addr ethCommon.Address) []byte {
	k := append(append([]byte{}, PrefixKeyWhitelist...), id.Bytes()...)
	return append(k, addr.Bytes()...)
}

// GetGroup retrieves a group record, returning ErrGroupNotFound when the id
// has never been created
func (s *StateDB) GetGroup(id common.GroupID) (*common.Group, error) {
	b, err := s.db.Get(groupKey(id))
	if err == db.ErrNotFound {
		return nil, common.Wrap(common.ErrGroupNotFound)
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	return common.GroupFromBytes(b)
}

// CreateGroup registers a new group together with its genesis stored block
// hash and optional deposit whitelist.  Fails with ErrGroupAlreadyExists if
// the id is taken.
func (s *StateDB) CreateGroup(g *common.Group, genesis *common.StoredBlockInfo,
	whitelist []ethCommon.Address) error {
	if _, err := s.GetGroup(g.GroupID); err == nil {
		return common.Wrap(common.ErrGroupAlreadyExists)
	} else if common.Unwrap(err) != common.ErrGroupNotFound {
		return common.Wrap(err)
	}
	tx, err := s.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	if err := PutGroup(tx, g); err != nil {
		return common.Wrap(err)
	}
	if err := PutBlockHash(tx, g.GroupID, genesis.BlockNum, genesis.Hash()); err != nil {
		return common.Wrap(err)
	}
	for _, addr := range whitelist {
		if err := AddToWhitelist(tx, g.GroupID, addr); err != nil {
			return common.Wrap(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	log.Infow("group created", "group", g.GroupID, "validator", g.ValidatorAddr.Hex(),
		"permissioned", g.Permissioned)
	return nil
}

// PutGroup stages the group record into the tx
func PutGroup(tx db.Tx, g *common.Group) error {
	return common.Wrap(tx.Put(groupKey(g.GroupID), g.Bytes()))
}

// GetBlockHash retrieves the stored hash for the group's block number.
// A miss is reported as ErrStaleBlockReference: every caller supplies a
// block number it claims was committed.
func (s *StateDB) GetBlockHash(id common.GroupID, blockNum common.BlockNum) (ethCommon.Hash, error) {
	b, err := s.db.Get(blockHashKey(id, blockNum))
	if err == db.ErrNotFound {
		return ethCommon.Hash{}, common.Wrap(common.ErrStaleBlockReference)
	} else if err != nil {
		return ethCommon.Hash{}, common.Wrap(err)
	}
	return ethCommon.BytesToHash(b), nil
}

// PutBlockHash stages a stored block hash.  Hashes are append-only and never
// rewritten once a block number is taken.
func PutBlockHash(tx db.Tx, id common.GroupID, blockNum common.BlockNum,
	hash ethCommon.Hash) error {
	return common.Wrap(tx.Put(blockHashKey(id, blockNum), hash.Bytes()))
}

// GetPriorityOp retrieves a stored priority request.  Entries are never
// deleted, so ids outside the open window still resolve for late audits.
func (s *StateDB) GetPriorityOp(id common.GroupID, requestID uint64) (*common.PriorityOperation, error) {
	b, err := s.db.Get(priorityOpKey(id, requestID))
	if err == db.ErrNotFound {
		return nil, common.Wrap(common.ErrPriorityOpNotFound)
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	po, err := common.PriorityOperationFromBytes(b)
	if err != nil {
		return nil, common.Wrap(err)
	}
	po.GroupID = id
	po.RequestID = requestID
	return po, nil
}

// PutPriorityOp stages a priority request into the tx
func PutPriorityOp(tx db.Tx, po *common.PriorityOperation) error {
	return common.Wrap(tx.Put(priorityOpKey(po.GroupID, po.RequestID), po.Bytes()))
}

// IsWhitelisted returns true if the address is in the group's deposit
// whitelist
func (s *StateDB) IsWhitelisted(id common.GroupID, addr ethCommon.Address) (bool, error) {
	_, err := s.db.Get(whitelistKey(id, addr))
	if err == db.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, common.Wrap(err)
	}
	return true, nil
}

// AddToWhitelist stages a whitelist entry.  The whitelist is fixed at group
// creation.
func AddToWhitelist(tx db.Tx, id common.GroupID, addr ethCommon.Address) error {
	return common.Wrap(tx.Put(whitelistKey(id, addr), []byte{1}))
}

// GetToken retrieves a registered token, returning ErrTokenNotRegistered
// when the id is unknown
func (s *StateDB) GetToken(id common.TokenID) (*common.Token, error) {
	b, err := s.db.Get(tokenKey(id))
	if err == db.ErrNotFound {
		return nil, common.Wrap(common.ErrTokenNotRegistered)
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	var token common.Token
	if err := json.Unmarshal(b, &token); err != nil {
		return nil, common.Wrap(err)
	}
	return &token, nil
}

// PutToken stages a token registry entry into the tx
func PutToken(tx db.Tx, token *common.Token) error {
	b, err := json.Marshal(token)
	if err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(tokenKey(token.TokenID), b))
}

// TokenExists returns true if the token id is registered
func (s *StateDB) TokenExists(id common.TokenID) (bool, error) {
	_, err := s.db.Get(tokenKey(id))
	if err == db.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, common.Wrap(err)
	}
	return true, nil
}

// ExodusPerformed returns true once an exodus proof has been consumed for
// the (account, token) pair in the group
func (s *StateDB) ExodusPerformed(id common.GroupID, accountID common.AccountID,
	token common.TokenID) (bool, error) {
	_, err := s.db.Get(exodusKey(id, accountID, token))
	if err == db.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, common.Wrap(err)
	}
	return true, nil
}

// MarkExodusPerformed stages the write-once performed-exodus flag, failing
// with ErrExodusAlreadyPerformed when the pair was already consumed
func MarkExodusPerformed(tx db.Tx, id common.GroupID, accountID common.AccountID,
	token common.TokenID) error {
	_, err := tx.Get(exodusKey(id, accountID, token))
	if err == nil {
		return common.Wrap(common.ErrExodusAlreadyPerformed)
	} else if err != db.ErrNotFound {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(exodusKey(id, accountID, token), []byte{1}))
}
