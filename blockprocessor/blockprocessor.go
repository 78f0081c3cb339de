// Package blockprocessor drives the per-group block lifecycle:
// commit, prove, execute, plus the exodus escape hatch.  Commitment is
// optimistic: pubdata is decoded and checked against the priority queue but
// no value moves until the block is proven and executed.  All mutations of
// one call are staged in a single storage tx, so a failing call leaves no
// partial state behind.
package blockprocessor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/historydb"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/metric"
	"tokamak-group-rollup/priorityqueue"
	"tokamak-group-rollup/verifier"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// CommitBlockInfo is the validator-supplied content of a block to commit
type CommitBlockInfo struct {
	BlockNum   common.BlockNum `json:"blockNum"`
	Pubdata    []byte          `json:"pubdata"`
	Timestamp  int64           `json:"timestamp"`
	StateRoot  ethCommon.Hash  `json:"stateRoot"`
	Commitment ethCommon.Hash  `json:"commitment"`
}

// ExecuteBlockInfo pairs a previously committed block with the pubdata of
// the operations whose ledger effects apply at execution
type ExecuteBlockInfo struct {
	StoredBlock common.StoredBlockInfo `json:"storedBlock"`
	Pubdata     []byte                 `json:"pubdata"`
}

// Processor is the group block state machine over the contract state
type Processor struct {
	state *statedb.StateDB
	queue *priorityqueue.Queue
	gov   *governance.Governance
	// history receives the audit trail of the lifecycle; may be nil
	history *historydb.HistoryDB
	// verifiers indexed by the group's VerifierIdx
	verifiers []verifier.Client
}

// NewProcessor creates a Processor
func NewProcessor(state *statedb.StateDB, queue *priorityqueue.Queue,
	gov *governance.Governance, history *historydb.HistoryDB,
	verifiers []verifier.Client) *Processor {
	return &Processor{state: state, queue: queue, gov: gov, history: history,
		verifiers: verifiers}
}

// auditGroup mirrors the group's lifecycle counters into the history DB.
// The contract state already committed, so a failing mirror only logs.
func (p *Processor) auditGroup(group *common.Group) {
	if p.history == nil {
		return
	}
	if err := p.history.UpdateGroup(group); err != nil {
		log.Warnw("HistoryDB.UpdateGroup", "group", group.GroupID, "err", err)
	}
}

func (p *Processor) verifierFor(group *common.Group) (verifier.Client, error) {
	if int(group.VerifierIdx) >= len(p.verifiers) {
		return nil, common.Wrap(fmt.Errorf("group %d bound to unknown verifier index %d",
			group.GroupID, group.VerifierIdx))
	}
	return p.verifiers[group.VerifierIdx], nil
}

// beginMutation loads the group and runs the guards shared by every
// lifecycle entry point: the expiration check (latching exodus mode when the
// oldest uncommitted request is overdue) and the validator binding.
func (p *Processor) beginMutation(groupID common.GroupID, caller ethCommon.Address,
	currentBlock int64) (*common.Group, error) {
	group, err := p.state.GetGroup(groupID)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if !group.Exodus() {
		expired, err := p.queue.CheckExpiration(group, currentBlock)
		if err != nil {
			return nil, common.Wrap(err)
		}
		if expired {
			if err := p.latchExodus(group); err != nil {
				return nil, common.Wrap(err)
			}
		}
	}
	if group.Exodus() {
		return nil, common.Wrap(common.ErrExodusActive)
	}
	if err := p.gov.RequireValidator(group, caller); err != nil {
		return nil, common.Wrap(err)
	}
	return group, nil
}

func (p *Processor) latchExodus(group *common.Group) error {
	group.State = common.GroupStateExodus
	tx, err := p.state.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	if err := statedb.PutGroup(tx, group); err != nil {
		return common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	p.auditGroup(group)
	metric.ExodusLatches.Inc()
	log.Warnw("group latched into exodus mode", "group", group.GroupID)
	return nil
}

// checkStoredBlock re-hashes the supplied block info and compares it to the
// hash retained for its block number
func (p *Processor) checkStoredBlock(groupID common.GroupID,
	sbi *common.StoredBlockInfo) error {
	stored, err := p.state.GetBlockHash(groupID, sbi.BlockNum)
	if err != nil {
		return common.Wrap(err)
	}
	if stored != sbi.Hash() {
		return common.Wrap(common.ErrStaleBlockReference)
	}
	return nil
}

// CommitBlock commits one block on top of prev.  The pubdata is decoded and
// every L1-originated operation in it is matched, strictly in request id
// order, against the open priority queue by canonical hash.  Value does not
// move yet: the block only records the rolling pending operations hash that
// execution will have to reproduce.
func (p *Processor) CommitBlock(caller ethCommon.Address, groupID common.GroupID,
	currentBlock int64, prev common.StoredBlockInfo,
	newBlock CommitBlockInfo) (*common.StoredBlockInfo, error) {
	group, err := p.beginMutation(groupID, caller, currentBlock)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if prev.BlockNum != common.BlockNum(group.TotalBlocksCommitted) {
		return nil, common.Wrap(common.ErrStaleBlockReference)
	}
	if err := p.checkStoredBlock(groupID, &prev); err != nil {
		return nil, common.Wrap(err)
	}
	if newBlock.BlockNum != common.BlockNum(group.TotalBlocksCommitted)+1 {
		return nil, common.Wrap(common.ErrStaleBlockReference)
	}

	ops, err := common.DecodeOperations(newBlock.Pubdata)
	if err != nil {
		return nil, common.Wrap(err)
	}
	pendingHash := common.EmptyPendingOperationsHash()
	nPriority := uint64(0)
	nextRequestID := group.FirstPriorityRequestID + group.TotalCommittedPriorityRequests
	for _, op := range ops {
		b, err := op.Bytes()
		if err != nil {
			return nil, common.Wrap(err)
		}
		pendingHash = common.AddToPendingOperationsHash(pendingHash, b)
		if !op.Type().IsPriority() {
			continue
		}
		po, err := p.state.GetPriorityOp(groupID, nextRequestID+nPriority)
		if err != nil {
			if common.Unwrap(err) == common.ErrPriorityOpNotFound {
				return nil, common.Wrap(common.ErrPriorityQueueMismatch)
			}
			return nil, common.Wrap(err)
		}
		record, ok := op.(common.PriorityOperationRecord)
		if !ok || po.OpType != op.Type() {
			return nil, common.Wrap(common.ErrPriorityQueueMismatch)
		}
		match, err := common.CheckPriorityQueueMatch(record, po.PubdataHash)
		if err != nil {
			return nil, common.Wrap(err)
		}
		if !match {
			return nil, common.Wrap(common.ErrPriorityQueueMismatch)
		}
		nPriority++
	}
	if err := priorityqueue.MarkCommitted(group, nPriority); err != nil {
		return nil, common.Wrap(err)
	}

	sbi := &common.StoredBlockInfo{
		BlockNum:              newBlock.BlockNum,
		PriorityOperations:    nPriority,
		PendingOperationsHash: pendingHash,
		Timestamp:             newBlock.Timestamp,
		StateRoot:             newBlock.StateRoot,
		Commitment:            newBlock.Commitment,
	}
	group.TotalBlocksCommitted++

	tx, err := p.state.NewTx()
	if err != nil {
		return nil, common.Wrap(err)
	}
	if err := statedb.PutBlockHash(tx, groupID, sbi.BlockNum, sbi.Hash()); err != nil {
		return nil, common.Wrap(err)
	}
	if err := statedb.PutGroup(tx, group); err != nil {
		return nil, common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, common.Wrap(err)
	}
	if p.history != nil {
		if err := p.history.AddBlockRecord(&historydb.BlockRecord{
			GroupID:         groupID,
			StoredBlockInfo: *sbi,
			BlockHash:       sbi.Hash(),
		}); err != nil {
			log.Warnw("HistoryDB.AddBlockRecord", "group", groupID,
				"block", sbi.BlockNum, "err", err)
		}
	}
	p.auditGroup(group)
	metric.BlocksCommitted.Inc()
	metric.OpenPriorityRequests.WithLabelValues(groupID.String()).
		Set(float64(group.TotalOpenPriorityRequests - group.TotalCommittedPriorityRequests))
	log.Infow("block committed", "group", groupID, "block", sbi.BlockNum,
		"ops", len(ops), "priorityOps", nPriority)
	return sbi, nil
}

// ProveBlocks submits a proof over a consecutive range of committed blocks
// to the group's bound verifier.  The supplied block infos must re-hash to
// the stored hashes; acceptance advances the proven counter.
func (p *Processor) ProveBlocks(ctx context.Context, caller ethCommon.Address,
	groupID common.GroupID, currentBlock int64, blocks []common.StoredBlockInfo,
	proof *verifier.Proof) error {
	group, err := p.beginMutation(groupID, caller, currentBlock)
	if err != nil {
		return common.Wrap(err)
	}
	n := uint32(len(blocks))
	if group.TotalBlocksProven+common.BlockNum(n) > group.TotalBlocksCommitted {
		return common.Wrap(common.ErrStaleBlockReference)
	}
	commitments := make([]ethCommon.Hash, len(blocks))
	for i := range blocks {
		if blocks[i].BlockNum != group.TotalBlocksProven+common.BlockNum(i)+1 {
			return common.Wrap(common.ErrStaleBlockReference)
		}
		if err := p.checkStoredBlock(groupID, &blocks[i]); err != nil {
			return common.Wrap(err)
		}
		commitments[i] = blocks[i].Commitment
	}
	vc, err := p.verifierFor(group)
	if err != nil {
		return common.Wrap(err)
	}
	verifyStart := time.Now()
	valid, err := vc.VerifyProof(ctx, commitments, proof)
	metric.MeasureDuration(metric.VerifyProofDuration, verifyStart, groupID.String())
	if err != nil {
		return common.Wrap(err)
	}
	if !valid {
		return common.Wrap(common.ErrInvalidProof)
	}
	group.TotalBlocksProven += common.BlockNum(n)

	tx, err := p.state.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	if err := statedb.PutGroup(tx, group); err != nil {
		return common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	p.auditGroup(group)
	metric.BlocksProven.Add(float64(n))
	log.Infow("blocks proven", "group", groupID, "count", n,
		"totalProven", group.TotalBlocksProven)
	return nil
}

// ExecuteBlocks finalizes proven blocks in order.  For each block the
// pending operations hash is rebuilt from the supplied pubdata and must
// reproduce the committed one; only then do the ledger effects apply.  All
// four operation types credit the shared pending balance of (owner, token):
// exits and deposits alike, since value never leaves the contract until an
// explicit withdrawal.  The priority queue window slides past the consumed
// requests.
func (p *Processor) ExecuteBlocks(caller ethCommon.Address, groupID common.GroupID,
	currentBlock int64, blocks []ExecuteBlockInfo) error {
	group, err := p.beginMutation(groupID, caller, currentBlock)
	if err != nil {
		return common.Wrap(err)
	}
	tx, err := p.state.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	for i := range blocks {
		sbi := &blocks[i].StoredBlock
		if sbi.BlockNum != group.TotalBlocksExecuted+1 ||
			sbi.BlockNum > group.TotalBlocksProven {
			return common.Wrap(common.ErrStaleBlockReference)
		}
		if err := p.checkStoredBlock(groupID, sbi); err != nil {
			return common.Wrap(err)
		}
		ops, err := common.DecodeOperations(blocks[i].Pubdata)
		if err != nil {
			return common.Wrap(err)
		}
		pendingHash := common.EmptyPendingOperationsHash()
		for _, op := range ops {
			b, err := op.Bytes()
			if err != nil {
				return common.Wrap(err)
			}
			pendingHash = common.AddToPendingOperationsHash(pendingHash, b)
		}
		if pendingHash != sbi.PendingOperationsHash {
			return common.Wrap(common.ErrPendingOpsHashMismatch)
		}
		for _, op := range ops {
			owner, token, amount := op.LedgerEffect()
			if err := statedb.CreditPendingBalance(tx, owner, token, amount); err != nil {
				return common.Wrap(err)
			}
		}
		n := sbi.PriorityOperations
		if n > group.TotalCommittedPriorityRequests {
			return common.Wrap(common.ErrQueueOverrun)
		}
		group.FirstPriorityRequestID += n
		group.TotalOpenPriorityRequests -= n
		group.TotalCommittedPriorityRequests -= n
		group.TotalBlocksExecuted++
	}
	if err := statedb.PutGroup(tx, group); err != nil {
		return common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	p.auditGroup(group)
	metric.BlocksExecuted.Add(float64(len(blocks)))
	metric.OpenPriorityRequests.WithLabelValues(groupID.String()).
		Set(float64(group.TotalOpenPriorityRequests - group.TotalCommittedPriorityRequests))
	log.Infow("blocks executed", "group", groupID, "count", len(blocks),
		"totalExecuted", group.TotalBlocksExecuted)
	return nil
}

// WithdrawPendingBalance pays out up to requested from the shared pending
// balance of (owner, token) and returns the amount actually withdrawn.  An
// over-request is capped to the available amount, never rejected.
func (p *Processor) WithdrawPendingBalance(owner ethCommon.Address,
	token common.TokenID, requested *big.Int) (*big.Int, error) {
	tx, err := p.state.NewTx()
	if err != nil {
		return nil, common.Wrap(err)
	}
	actual, err := statedb.WithdrawPendingBalance(tx, owner, token, requested)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, common.Wrap(err)
	}
	metric.Withdrawals.Inc()
	log.Infow("pending balance withdrawn", "owner", owner.Hex(), "token", token,
		"requested", requested.String(), "actual", actual.String())
	return actual, nil
}
