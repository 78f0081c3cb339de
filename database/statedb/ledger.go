package statedb

import (
	"math/big"

	"tokamak-group-rollup/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-merkletree/db"
)

const (
	// pendingBalanceBytesLen is the stored ledger entry: amount 16B +
	// reserve byte
	pendingBalanceBytesLen = common.AmountBytesLen + 1
	// ReserveByteSentinel keeps the storage slot non-empty after a full
	// withdrawal, so re-crediting the slot stays cheap.  Its value never
	// participates in the owed amount.
	ReserveByteSentinel = byte(0x01)
)

var maxPendingBalance = new(big.Int).Sub(
	new(big.Int).Lsh(big.NewInt(1), 8*common.AmountBytesLen), big.NewInt(1))

func pendingBalanceValue(amount *big.Int) ([]byte, error) {
	var b [pendingBalanceBytesLen]byte
	if amount.Sign() < 0 || amount.Cmp(maxPendingBalance) > 0 {
		return nil, common.Wrap(common.ErrAmountOverflow)
	}
	amount.FillBytes(b[:common.AmountBytesLen])
	b[common.AmountBytesLen] = ReserveByteSentinel
	return b[:], nil
}

func pendingBalanceFromValue(b []byte) (*big.Int, byte) {
	return new(big.Int).SetBytes(b[:common.AmountBytesLen]), b[common.AmountBytesLen]
}

// GetPendingBalance returns the withdrawable amount owed to (owner, token).
// A missing entry reads as zero.
func (s *StateDB) GetPendingBalance(owner ethCommon.Address, token common.TokenID) (*big.Int, error) {
	b, err := s.db.Get(pendingBalanceKey(owner, token))
	if err == db.ErrNotFound {
		return big.NewInt(0), nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	amount, _ := pendingBalanceFromValue(b)
	return amount, nil
}

// GetReserveByte returns the reserve byte of the (owner, token) slot and
// whether the slot exists at all.  Exposed for the ledger invariant checks.
func (s *StateDB) GetReserveByte(owner ethCommon.Address, token common.TokenID) (byte, bool, error) {
	b, err := s.db.Get(pendingBalanceKey(owner, token))
	if err == db.ErrNotFound {
		return 0, false, nil
	} else if err != nil {
		return 0, false, common.Wrap(err)
	}
	_, reserve := pendingBalanceFromValue(b)
	return reserve, true, nil
}

// CreditPendingBalance stages a checked add to the (owner, token) entry.
// The reserve byte is set on first touch and preserved afterwards.
func CreditPendingBalance(tx db.Tx, owner ethCommon.Address, token common.TokenID,
	amount *big.Int) error {
	current := big.NewInt(0)
	b, err := tx.Get(pendingBalanceKey(owner, token))
	if err == nil {
		current, _ = pendingBalanceFromValue(b)
	} else if err != db.ErrNotFound {
		return common.Wrap(err)
	}
	v, err := pendingBalanceValue(new(big.Int).Add(current, amount))
	if err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(pendingBalanceKey(owner, token), v))
}

// WithdrawPendingBalance stages the withdrawal of up to requested from the
// (owner, token) entry and returns the actual amount withdrawn: a request
// beyond the available amount is capped, not failed.  The slot keeps its
// reserve byte even when drained to zero.
func WithdrawPendingBalance(tx db.Tx, owner ethCommon.Address, token common.TokenID,
	requested *big.Int) (*big.Int, error) {
	b, err := tx.Get(pendingBalanceKey(owner, token))
	if err == db.ErrNotFound {
		return big.NewInt(0), nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	available, _ := pendingBalanceFromValue(b)
	actual := requested
	if available.Cmp(requested) < 0 {
		actual = available
	}
	v, err := pendingBalanceValue(new(big.Int).Sub(available, actual))
	if err != nil {
		return nil, common.Wrap(err)
	}
	if err := tx.Put(pendingBalanceKey(owner, token), v); err != nil {
		return nil, common.Wrap(err)
	}
	return new(big.Int).Set(actual), nil
}
