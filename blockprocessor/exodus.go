package blockprocessor

import (
	"context"
	"math/big"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/verifier"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// ActivateExodusMode latches the group into exodus mode.  Anyone may call
// it, but it only succeeds when the oldest uncommitted priority request has
// actually expired; the latch is one-way.
func (p *Processor) ActivateExodusMode(groupID common.GroupID, currentBlock int64) error {
	group, err := p.state.GetGroup(groupID)
	if err != nil {
		return common.Wrap(err)
	}
	if group.Exodus() {
		return common.Wrap(common.ErrExodusActive)
	}
	expired, err := p.queue.CheckExpiration(group, currentBlock)
	if err != nil {
		return common.Wrap(err)
	}
	if !expired {
		return common.Wrap(common.ErrExodusNotActive)
	}
	return p.latchExodus(group)
}

// exodusCommitment binds an exodus claim to the state root the proof is
// checked against
func exodusCommitment(stateRoot ethCommon.Hash, accountID common.AccountID,
	owner ethCommon.Address, token common.TokenID, amount *big.Int) (ethCommon.Hash, error) {
	amountB, err := common.AmountBytes(amount)
	if err != nil {
		return ethCommon.Hash{}, common.Wrap(err)
	}
	return ethCrypto.Keccak256Hash(stateRoot.Bytes(), accountID.Bytes(),
		owner.Bytes(), token.Bytes(), amountB[:]), nil
}

// PerformExodus lets an account holder of a group in exodus mode reclaim its
// last verified balance directly into the shared pending ledger.  The claim
// is proven against the state root of the last executed block, which the
// caller re-supplies in full; each (account, token) pair can be claimed
// exactly once.
func (p *Processor) PerformExodus(ctx context.Context, groupID common.GroupID,
	lastExecuted common.StoredBlockInfo, accountID common.AccountID,
	owner ethCommon.Address, token common.TokenID, amount *big.Int,
	proof *verifier.Proof) error {
	group, err := p.state.GetGroup(groupID)
	if err != nil {
		return common.Wrap(err)
	}
	if !group.Exodus() {
		return common.Wrap(common.ErrExodusNotActive)
	}
	if lastExecuted.BlockNum != group.TotalBlocksExecuted {
		return common.Wrap(common.ErrStaleBlockReference)
	}
	if err := p.checkStoredBlock(groupID, &lastExecuted); err != nil {
		return common.Wrap(err)
	}
	done, err := p.state.ExodusPerformed(groupID, accountID, token)
	if err != nil {
		return common.Wrap(err)
	}
	if done {
		return common.Wrap(common.ErrExodusAlreadyPerformed)
	}
	commitment, err := exodusCommitment(lastExecuted.StateRoot, accountID, owner,
		token, amount)
	if err != nil {
		return common.Wrap(err)
	}
	vc, err := p.verifierFor(group)
	if err != nil {
		return common.Wrap(err)
	}
	valid, err := vc.VerifyProof(ctx, []ethCommon.Hash{commitment}, proof)
	if err != nil {
		return common.Wrap(err)
	}
	if !valid {
		return common.Wrap(common.ErrInvalidProof)
	}

	tx, err := p.state.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	if err := statedb.MarkExodusPerformed(tx, groupID, accountID, token); err != nil {
		return common.Wrap(err)
	}
	if err := statedb.CreditPendingBalance(tx, owner, token, amount); err != nil {
		return common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	log.Infow("exodus performed", "group", groupID, "account", accountID,
		"token", token, "amount", amount.String())
	return nil
}

// CancelOutstandingDeposits refunds the uncommitted deposits of a group in
// exodus mode back to the shared pending ledger.  The caller supplies the
// canonical pubdata of the deposits in request id order; each record must
// hash-match its stored request.  The whole uncommitted range is drained,
// non-deposit requests are skipped without consuming a pubdata record.
func (p *Processor) CancelOutstandingDeposits(groupID common.GroupID,
	depositsPubdata [][]byte) error {
	group, err := p.state.GetGroup(groupID)
	if err != nil {
		return common.Wrap(err)
	}
	if !group.Exodus() {
		return common.Wrap(common.ErrExodusNotActive)
	}
	tx, err := p.state.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	next := 0
	refunded := 0
	firstUncommitted := group.FirstPriorityRequestID + group.TotalCommittedPriorityRequests
	lastOpen := group.FirstPriorityRequestID + group.TotalOpenPriorityRequests
	for id := firstUncommitted; id < lastOpen; id++ {
		po, err := p.state.GetPriorityOp(groupID, id)
		if err != nil {
			return common.Wrap(err)
		}
		if po.OpType != common.OpTypeDeposit {
			continue
		}
		if next >= len(depositsPubdata) {
			return common.Wrap(common.ErrPriorityQueueMismatch)
		}
		pubdata := depositsPubdata[next]
		next++
		if common.PubdataHash(pubdata) != po.PubdataHash {
			return common.Wrap(common.ErrPriorityQueueMismatch)
		}
		deposit, err := common.DepositFromBytes(pubdata)
		if err != nil {
			return common.Wrap(err)
		}
		owner, token, amount := deposit.LedgerEffect()
		if err := statedb.CreditPendingBalance(tx, owner, token, amount); err != nil {
			return common.Wrap(err)
		}
		refunded++
	}
	group.TotalOpenPriorityRequests = group.TotalCommittedPriorityRequests
	if err := statedb.PutGroup(tx, group); err != nil {
		return common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	log.Infow("outstanding deposits cancelled", "group", groupID, "refunded", refunded)
	return nil
}
