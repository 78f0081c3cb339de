// Package historydb persists the audit trail of the rollup: groups, the
// priority requests ever enqueued, the blocks ever committed and the
// withdrawals paid out.  The contract state in statedb stays authoritative;
// this DB is insert-mostly and serves the read API.
package historydb

import (
	"math/big"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// HistoryDB persist the historic of the rollup
type HistoryDB struct {
	dbRead  *sqlx.DB
	dbWrite *sqlx.DB
}

// NewHistoryDB initialize the DB
func NewHistoryDB(dbRead, dbWrite *sqlx.DB) *HistoryDB {
	return &HistoryDB{
		dbRead:  dbRead,
		dbWrite: dbWrite,
	}
}

// DB returns a pointer to the history DB. This method should be used only
// for internal testing purposes.
func (hdb *HistoryDB) DB() *sqlx.DB {
	return hdb.dbWrite
}

// BlockRecord is one committed block of a group together with its retained
// hash
type BlockRecord struct {
	GroupID common.GroupID `meddler:"group_id"`
	common.StoredBlockInfo
	BlockHash ethCommon.Hash `meddler:"block_hash"`
}

// Withdrawal is one pending balance payout
type Withdrawal struct {
	ItemID      int64             `meddler:"item_id,pk"`
	Owner       ethCommon.Address `meddler:"owner"`
	TokenID     common.TokenID    `meddler:"token_id"`
	Amount      *big.Int          `meddler:"amount,bigint"`
	EthBlockNum int64             `meddler:"eth_block_num"`
}

// AddGroup insert a group into the DB
func (hdb *HistoryDB) AddGroup(group *common.Group) error {
	return common.Wrap(meddler.Insert(hdb.dbWrite, "rollup_group", group))
}

// UpdateGroup refreshes the mutable part of a group row: the lifecycle
// counters, the queue window and the state
func (hdb *HistoryDB) UpdateGroup(group *common.Group) error {
	_, err := hdb.dbWrite.Exec(
		`UPDATE rollup_group SET
			state = $2,
			total_blocks_committed = $3,
			total_blocks_proven = $4,
			total_blocks_executed = $5,
			first_priority_request_id = $6,
			total_open_priority_requests = $7,
			total_committed_priority_requests = $8
		WHERE group_id = $1;`,
		group.GroupID, group.State,
		group.TotalBlocksCommitted, group.TotalBlocksProven, group.TotalBlocksExecuted,
		group.FirstPriorityRequestID, group.TotalOpenPriorityRequests,
		group.TotalCommittedPriorityRequests,
	)
	return common.Wrap(err)
}

// GetGroup retrieve a group from the DB, given a group id
func (hdb *HistoryDB) GetGroup(groupID common.GroupID) (*common.Group, error) {
	group := &common.Group{}
	err := meddler.QueryRow(
		hdb.dbRead, group,
		"SELECT * FROM rollup_group WHERE group_id = $1;", groupID,
	)
	return group, common.Wrap(err)
}

// GetGroups retrieve all groups from the DB
func (hdb *HistoryDB) GetGroups() ([]common.Group, error) {
	var groups []*common.Group
	err := meddler.QueryAll(
		hdb.dbRead, &groups,
		"SELECT * FROM rollup_group ORDER BY group_id;",
	)
	return database.SlicePtrsToSlice(groups).([]common.Group), common.Wrap(err)
}

// AddPriorityRequest insert a priority request into the DB
func (hdb *HistoryDB) AddPriorityRequest(po *common.PriorityOperation) error {
	return common.Wrap(meddler.Insert(hdb.dbWrite, "priority_request", po))
}

// AddPriorityRequests inserts priority requests into the DB
func (hdb *HistoryDB) AddPriorityRequests(pos []common.PriorityOperation) error {
	return common.Wrap(database.BulkInsert(
		hdb.dbWrite,
		`INSERT INTO priority_request (
			group_id,
			request_id,
			op_type,
			pubdata_hash,
			expiration_block
		) VALUES %s;`,
		pos,
	))
}

// GetPriorityRequests retrieve all priority requests of a group in request
// id order
func (hdb *HistoryDB) GetPriorityRequests(groupID common.GroupID) ([]common.PriorityOperation, error) {
	var pos []*common.PriorityOperation
	err := meddler.QueryAll(
		hdb.dbRead, &pos,
		"SELECT * FROM priority_request WHERE group_id = $1 ORDER BY request_id;",
		groupID,
	)
	return database.SlicePtrsToSlice(pos).([]common.PriorityOperation), common.Wrap(err)
}

// AddBlockRecord insert a committed block into the DB
func (hdb *HistoryDB) AddBlockRecord(record *BlockRecord) error {
	return common.Wrap(meddler.Insert(hdb.dbWrite, "stored_block", record))
}

// GetBlockRecords retrieve all committed blocks of a group in block order
func (hdb *HistoryDB) GetBlockRecords(groupID common.GroupID) ([]BlockRecord, error) {
	var records []*BlockRecord
	err := meddler.QueryAll(
		hdb.dbRead, &records,
		"SELECT * FROM stored_block WHERE group_id = $1 ORDER BY block_num;",
		groupID,
	)
	return database.SlicePtrsToSlice(records).([]BlockRecord), common.Wrap(err)
}

// GetLastBlockRecord retrieve the block with the highest block number of a
// group
func (hdb *HistoryDB) GetLastBlockRecord(groupID common.GroupID) (*BlockRecord, error) {
	record := &BlockRecord{}
	err := meddler.QueryRow(
		hdb.dbRead, record,
		"SELECT * FROM stored_block WHERE group_id = $1 ORDER BY block_num DESC LIMIT 1;",
		groupID,
	)
	return record, common.Wrap(err)
}

// AddWithdrawal insert a payout into the DB
func (hdb *HistoryDB) AddWithdrawal(w *Withdrawal) error {
	return common.Wrap(meddler.Insert(hdb.dbWrite, "withdrawal", w))
}

// GetWithdrawals retrieve all payouts of an owner
func (hdb *HistoryDB) GetWithdrawals(owner ethCommon.Address) ([]Withdrawal, error) {
	var ws []*Withdrawal
	err := meddler.QueryAll(
		hdb.dbRead, &ws,
		"SELECT * FROM withdrawal WHERE owner = $1 ORDER BY item_id;",
		owner,
	)
	return database.SlicePtrsToSlice(ws).([]Withdrawal), common.Wrap(err)
}

// AddToken insert a token into the DB
func (hdb *HistoryDB) AddToken(token *common.Token) error {
	return common.Wrap(meddler.Insert(hdb.dbWrite, "token", token))
}

// GetToken retrieve a token from the DB, given a token id
func (hdb *HistoryDB) GetToken(tokenID common.TokenID) (*common.Token, error) {
	token := &common.Token{}
	err := meddler.QueryRow(
		hdb.dbRead, token,
		"SELECT * FROM token WHERE token_id = $1;", tokenID,
	)
	return token, common.Wrap(err)
}

// GetTokens retrieve all tokens from the DB
func (hdb *HistoryDB) GetTokens() ([]common.Token, error) {
	var tokens []*common.Token
	err := meddler.QueryAll(
		hdb.dbRead, &tokens,
		"SELECT * FROM token ORDER BY token_id;",
	)
	return database.SlicePtrsToSlice(tokens).([]common.Token), common.Wrap(err)
}
