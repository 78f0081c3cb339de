// Package priorityqueue implements the per-group FIFO of L1-originated
// requests.  Each group keeps a window over its request ids:
// [first, first+committed) are committed, [first+committed, first+open) are
// open and waiting for a block.  Requests are stored once and never deleted;
// executing a block slides the window past them.
package priorityqueue

import (
	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/historydb"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/metric"
)

// DefaultExpirationWindow is the number of Ethereum blocks a request may
// stay uncommitted before it can trip the group into exodus mode, roughly
// three days at a 15 second block period.
const DefaultExpirationWindow = int64(3 * 24 * 3600 / 15)

// Queue manages the priority request queues of all groups over the shared
// contract state
type Queue struct {
	state *statedb.StateDB
	gov   *governance.Governance
	// history receives a copy of every enqueued request; may be nil
	history *historydb.HistoryDB
	// ExpirationWindow in Ethereum blocks, added to the enqueue height
	ExpirationWindow int64
}

// NewQueue creates a Queue.  A non-positive expirationWindow selects the
// default.
func NewQueue(state *statedb.StateDB, gov *governance.Governance,
	history *historydb.HistoryDB, expirationWindow int64) *Queue {
	if expirationWindow <= 0 {
		expirationWindow = DefaultExpirationWindow
	}
	return &Queue{state: state, gov: gov, history: history,
		ExpirationWindow: expirationWindow}
}

// Enqueue appends an L1-originated request to the group's queue and returns
// the assigned request id.  Only the truncated digest of the canonical
// pubdata is retained; the full record must reappear in a committed block.
// Rejected when the group is in exodus mode, when the owner is outside a
// permissioned group's whitelist, or when the token is not registered.
func (q *Queue) Enqueue(groupID common.GroupID, op common.PriorityOperationRecord,
	currentBlock int64) (uint64, error) {
	group, err := q.state.GetGroup(groupID)
	if err != nil {
		return 0, common.Wrap(err)
	}
	if group.Exodus() {
		return 0, common.Wrap(common.ErrExodusActive)
	}
	owner, token, _ := op.LedgerEffect()
	if group.Permissioned {
		ok, err := q.state.IsWhitelisted(groupID, owner)
		if err != nil {
			return 0, common.Wrap(err)
		}
		if !ok {
			return 0, common.Wrap(common.ErrNotWhitelisted)
		}
	}
	registered, err := q.gov.TokenExists(token)
	if err != nil {
		return 0, common.Wrap(err)
	}
	if !registered {
		return 0, common.Wrap(common.ErrTokenNotRegistered)
	}

	canonical, err := op.CanonicalBytes()
	if err != nil {
		return 0, common.Wrap(err)
	}
	po := &common.PriorityOperation{
		GroupID:         groupID,
		RequestID:       group.NextPriorityRequestID(),
		OpType:          op.Type(),
		PubdataHash:     common.PubdataHash(canonical),
		ExpirationBlock: currentBlock + q.ExpirationWindow,
	}
	group.TotalOpenPriorityRequests++

	tx, err := q.state.NewTx()
	if err != nil {
		return 0, common.Wrap(err)
	}
	if err := statedb.PutPriorityOp(tx, po); err != nil {
		return 0, common.Wrap(err)
	}
	if err := statedb.PutGroup(tx, group); err != nil {
		return 0, common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, common.Wrap(err)
	}
	if q.history != nil {
		if err := q.history.AddPriorityRequest(po); err != nil {
			log.Warnw("HistoryDB.AddPriorityRequest", "group", groupID,
				"id", po.RequestID, "err", err)
		}
	}
	metric.EnqueuedRequests.Inc()
	metric.OpenPriorityRequests.WithLabelValues(groupID.String()).
		Set(float64(group.TotalOpenPriorityRequests - group.TotalCommittedPriorityRequests))
	log.Debugw("priority request enqueued", "group", groupID, "id", po.RequestID,
		"opType", po.OpType.String(), "expiration", po.ExpirationBlock)
	return po.RequestID, nil
}

// MarkCommitted moves count requests from open to committed on the in-memory
// group record.  The caller persists the group inside its own tx so that the
// whole commit stays atomic.
func MarkCommitted(group *common.Group, count uint64) error {
	if group.TotalCommittedPriorityRequests+count > group.TotalOpenPriorityRequests {
		return common.Wrap(common.ErrQueueOverrun)
	}
	group.TotalCommittedPriorityRequests += count
	return nil
}

// CheckExpiration reports whether the group's oldest uncommitted request has
// expired at currentBlock.  FIFO order makes the head of the uncommitted
// range the first to expire, so only that one is inspected.
func (q *Queue) CheckExpiration(group *common.Group, currentBlock int64) (bool, error) {
	if group.TotalCommittedPriorityRequests == group.TotalOpenPriorityRequests {
		return false, nil
	}
	head := group.FirstPriorityRequestID + group.TotalCommittedPriorityRequests
	po, err := q.state.GetPriorityOp(group.GroupID, head)
	if err != nil {
		return false, common.Wrap(err)
	}
	return po.ExpirationBlock < currentBlock, nil
}

// Get retrieves a stored request.  Ids the window has moved past still
// resolve, which serves late audits.
func (q *Queue) Get(groupID common.GroupID, requestID uint64) (*common.PriorityOperation, error) {
	return q.state.GetPriorityOp(groupID, requestID)
}
