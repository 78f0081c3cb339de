package common

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// DepositBytesLen is the fixed pubdata length of a Deposit record:
// opType 1 | accountId 4 | owner 20 | tokenId 4 | groupId 2 | amount 16
const DepositBytesLen = 47

// Deposit is an L1->group token deposit.  It enters through the priority
// queue and credits the shared pending balance ledger when the block that
// includes it is executed.
type Deposit struct {
	// AccountID is assigned by the group state transition, so it is not
	// part of the original L1 request and is zeroed in the canonical form
	AccountID AccountID         `json:"accountId"`
	Owner     ethCommon.Address `json:"owner"`
	TokenID   TokenID           `json:"tokenId"`
	GroupID   GroupID           `json:"groupId"`
	Amount    *big.Int          `json:"amount"`
}

// Type returns the operation type tag
func (d *Deposit) Type() OpType {
	return OpTypeDeposit
}

// LedgerEffect returns the pending balance credit applied at execution
func (d *Deposit) LedgerEffect() (ethCommon.Address, TokenID, *big.Int) {
	return d.Owner, d.TokenID, d.Amount
}

// Bytes encodes the Deposit into its canonical pubdata layout
func (d *Deposit) Bytes() ([]byte, error) {
	var b [DepositBytesLen]byte
	b[0] = byte(OpTypeDeposit)
	putUint32(b[1:5], uint32(d.AccountID))
	copy(b[5:25], d.Owner.Bytes())
	putUint32(b[25:29], uint32(d.TokenID))
	putUint16(b[29:31], uint16(d.GroupID))
	amount, err := amountBytes(d.Amount)
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[31:47], amount[:])
	return b[:], nil
}

// CanonicalBytes encodes the Deposit with the AccountID zeroed, matching the
// request-identity form hashed at enqueue time
func (d *Deposit) CanonicalBytes() ([]byte, error) {
	c := *d
	c.AccountID = 0
	return c.Bytes()
}

// DepositFromBytes decodes a Deposit record, enforcing the exact record
// length
func DepositFromBytes(b []byte) (*Deposit, error) {
	if len(b) != DepositBytesLen || b[0] != byte(OpTypeDeposit) {
		return nil, Wrap(ErrMalformedPubdata)
	}
	accountID, _ := AccountIDFromBytes(b[1:5])
	tokenID, _ := TokenIDFromBytes(b[25:29])
	groupID, _ := GroupIDFromBytes(b[29:31])
	return &Deposit{
		AccountID: accountID,
		Owner:     ethCommon.BytesToAddress(b[5:25]),
		TokenID:   tokenID,
		GroupID:   groupID,
		Amount:    amountFromBytes(b[31:47]),
	}, nil
}
