package governance

import (
	"math/big"
	"testing"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init("debug", []string{"stdout"})
}

func TestTokenRegistry(t *testing.T) {
	sdb, err := statedb.NewStateDB(statedb.Config{InMemory: true})
	require.NoError(t, err)
	defer sdb.Close()
	gov := New(sdb, nil)

	exists, err := gov.TokenExists(1)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = gov.Token(1)
	assert.Equal(t, common.ErrTokenNotRegistered, common.Unwrap(err))

	token := &common.Token{
		TokenID:     1,
		EthBlockNum: 1000,
		EthAddr:     ethCommon.BigToAddress(big.NewInt(0x70)),
		Name:        "Tokamak Network Token",
		Symbol:      "TON",
		Decimals:    18,
	}
	require.NoError(t, gov.RegisterToken(token))

	got, err := gov.Token(1)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	err = gov.RegisterToken(token)
	assert.Equal(t, common.ErrTokenAlreadyRegistered, common.Unwrap(err))
}

func TestValidatorBinding(t *testing.T) {
	sdb, err := statedb.NewStateDB(statedb.Config{InMemory: true})
	require.NoError(t, err)
	defer sdb.Close()
	gov := New(sdb, nil)

	validator := ethCommon.BigToAddress(big.NewInt(0xa1))
	group := &common.Group{
		GroupID:       1,
		ValidatorAddr: validator,
		State:         common.GroupStateActive,
	}
	genesis := &common.StoredBlockInfo{
		PendingOperationsHash: common.EmptyPendingOperationsHash(),
	}
	require.NoError(t, sdb.CreateGroup(group, genesis, nil))

	addr, err := gov.Validator(1)
	require.NoError(t, err)
	assert.Equal(t, validator, addr)

	require.NoError(t, gov.RequireValidator(group, validator))
	err = gov.RequireValidator(group, ethCommon.BigToAddress(big.NewInt(0xa2)))
	assert.Equal(t, common.ErrNotValidator, common.Unwrap(err))

	_, err = gov.Validator(9)
	assert.Equal(t, common.ErrGroupNotFound, common.Unwrap(err))
}
