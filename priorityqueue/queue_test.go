package priorityqueue

import (
	"math/big"
	"testing"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/governance"
	"tokamak-group-rollup/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init("debug", []string{"stdout"})
}

func newTestQueue(t *testing.T, permissioned bool,
	whitelist []ethCommon.Address) (*Queue, *statedb.StateDB) {
	sdb, err := statedb.NewStateDB(statedb.Config{InMemory: true})
	require.NoError(t, err)
	gov := governance.New(sdb, nil)
	require.NoError(t, gov.RegisterToken(&common.Token{
		TokenID: 1, Name: "Tokamak Network Token", Symbol: "TON", Decimals: 18,
	}))
	group := &common.Group{
		GroupID:       1,
		ValidatorAddr: ethCommon.BigToAddress(big.NewInt(0xa1)),
		State:         common.GroupStateActive,
		Permissioned:  permissioned,
	}
	genesis := &common.StoredBlockInfo{
		PendingOperationsHash: common.EmptyPendingOperationsHash(),
	}
	require.NoError(t, sdb.CreateGroup(group, genesis, whitelist))
	return NewQueue(sdb, gov, nil, 100), sdb
}

func newDeposit(owner ethCommon.Address, token common.TokenID, amount int64) *common.Deposit {
	return &common.Deposit{
		Owner:   owner,
		TokenID: token,
		GroupID: 1,
		Amount:  big.NewInt(amount),
	}
}

func TestEnqueueAssignsSequentialIDs(t *testing.T) {
	q, sdb := newTestQueue(t, false, nil)
	defer sdb.Close()
	owner := ethCommon.BigToAddress(big.NewInt(0xaa))

	for i := 0; i < 3; i++ {
		id, err := q.Enqueue(1, newDeposit(owner, 1, 1000), 500)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id)
	}

	group, err := sdb.GetGroup(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), group.TotalOpenPriorityRequests)
	assert.Equal(t, uint64(0), group.TotalCommittedPriorityRequests)

	// stored request carries the canonical pubdata digest and expiration
	dep := newDeposit(owner, 1, 1000)
	canonical, err := dep.CanonicalBytes()
	require.NoError(t, err)
	po, err := q.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, common.OpTypeDeposit, po.OpType)
	assert.Equal(t, common.PubdataHash(canonical), po.PubdataHash)
	assert.Equal(t, int64(600), po.ExpirationBlock)
}

func TestEnqueueUnregisteredToken(t *testing.T) {
	q, sdb := newTestQueue(t, false, nil)
	defer sdb.Close()
	owner := ethCommon.BigToAddress(big.NewInt(0xaa))

	_, err := q.Enqueue(1, newDeposit(owner, 9, 1000), 500)
	assert.Equal(t, common.ErrTokenNotRegistered, common.Unwrap(err))
}

func TestEnqueueWhitelist(t *testing.T) {
	member := ethCommon.BigToAddress(big.NewInt(0xaa))
	outsider := ethCommon.BigToAddress(big.NewInt(0xbb))
	q, sdb := newTestQueue(t, true, []ethCommon.Address{member})
	defer sdb.Close()

	_, err := q.Enqueue(1, newDeposit(member, 1, 1000), 500)
	require.NoError(t, err)
	_, err = q.Enqueue(1, newDeposit(outsider, 1, 1000), 500)
	assert.Equal(t, common.ErrNotWhitelisted, common.Unwrap(err))
}

func TestEnqueueExodusGroup(t *testing.T) {
	q, sdb := newTestQueue(t, false, nil)
	defer sdb.Close()
	owner := ethCommon.BigToAddress(big.NewInt(0xaa))

	group, err := sdb.GetGroup(1)
	require.NoError(t, err)
	group.State = common.GroupStateExodus
	tx, err := sdb.NewTx()
	require.NoError(t, err)
	require.NoError(t, statedb.PutGroup(tx, group))
	require.NoError(t, tx.Commit())

	_, err = q.Enqueue(1, newDeposit(owner, 1, 1000), 500)
	assert.Equal(t, common.ErrExodusActive, common.Unwrap(err))
}

func TestMarkCommitted(t *testing.T) {
	group := &common.Group{TotalOpenPriorityRequests: 3}

	require.NoError(t, MarkCommitted(group, 2))
	assert.Equal(t, uint64(2), group.TotalCommittedPriorityRequests)

	err := MarkCommitted(group, 2)
	assert.Equal(t, common.ErrQueueOverrun, common.Unwrap(err))
	assert.Equal(t, uint64(2), group.TotalCommittedPriorityRequests)

	require.NoError(t, MarkCommitted(group, 1))
	assert.Equal(t, uint64(3), group.TotalCommittedPriorityRequests)
}

func TestCheckExpiration(t *testing.T) {
	q, sdb := newTestQueue(t, false, nil)
	defer sdb.Close()
	owner := ethCommon.BigToAddress(big.NewInt(0xaa))

	group, err := sdb.GetGroup(1)
	require.NoError(t, err)

	// empty queue never expires
	expired, err := q.CheckExpiration(group, 10000)
	require.NoError(t, err)
	assert.False(t, expired)

	_, err = q.Enqueue(1, newDeposit(owner, 1, 1000), 500)
	require.NoError(t, err)
	group, err = sdb.GetGroup(1)
	require.NoError(t, err)

	// expiration block is 600: alive at 600, expired past it
	expired, err = q.CheckExpiration(group, 600)
	require.NoError(t, err)
	assert.False(t, expired)
	expired, err = q.CheckExpiration(group, 601)
	require.NoError(t, err)
	assert.True(t, expired)

	// a committed head no longer counts against the group
	require.NoError(t, MarkCommitted(group, 1))
	expired, err = q.CheckExpiration(group, 601)
	require.NoError(t, err)
	assert.False(t, expired)
}
