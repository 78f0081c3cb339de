package common

import (
	"encoding/binary"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// ChangeGroupBytesLen is the fixed pubdata length of a ChangeGroup record:
// opType 1 | accountId 4 | owner 20 | tokenId 4 | destGroupId 2 | amount 16 | fee 2
const ChangeGroupBytesLen = 49

// ChangeGroup is a rollup-internal transfer of value from the source group
// to DestGroupID through the shared pending balance ledger: the source
// group's state transition already debited the account tree, so executing
// the record only credits the ledger entry for (owner, token).  No state of
// the destination group is touched synchronously.
//
// The opType, accountId and fee fields are present in pubdata for
// circuit-side consistency only; the decoder skips over them without
// validation.
type ChangeGroup struct {
	AccountID   AccountID         `json:"accountId"`
	Owner       ethCommon.Address `json:"owner"`
	TokenID     TokenID           `json:"tokenId"`
	DestGroupID GroupID           `json:"destGroupId"`
	Amount      *big.Int          `json:"amount"`
	Fee         uint16            `json:"fee"`
}

// Type returns the operation type tag
func (cg *ChangeGroup) Type() OpType {
	return OpTypeChangeGroup
}

// LedgerEffect returns the pending balance credit applied at execution
func (cg *ChangeGroup) LedgerEffect() (ethCommon.Address, TokenID, *big.Int) {
	return cg.Owner, cg.TokenID, cg.Amount
}

// Bytes encodes the ChangeGroup into its canonical pubdata layout
func (cg *ChangeGroup) Bytes() ([]byte, error) {
	var b [ChangeGroupBytesLen]byte
	b[0] = byte(OpTypeChangeGroup)
	putUint32(b[1:5], uint32(cg.AccountID))
	copy(b[5:25], cg.Owner.Bytes())
	putUint32(b[25:29], uint32(cg.TokenID))
	putUint16(b[29:31], uint16(cg.DestGroupID))
	amount, err := amountBytes(cg.Amount)
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[31:47], amount[:])
	putUint16(b[47:49], cg.Fee)
	return b[:], nil
}

// ChangeGroupFromBytes decodes a ChangeGroup record, enforcing the exact
// record length.  The ignored fields are read back as-is, never validated.
func ChangeGroupFromBytes(b []byte) (*ChangeGroup, error) {
	if len(b) != ChangeGroupBytesLen {
		return nil, Wrap(ErrMalformedPubdata)
	}
	// offset 0 is the opType, skipped
	accountID, _ := AccountIDFromBytes(b[1:5])
	tokenID, _ := TokenIDFromBytes(b[25:29])
	destGroupID, _ := GroupIDFromBytes(b[29:31])
	return &ChangeGroup{
		AccountID:   accountID,
		Owner:       ethCommon.BytesToAddress(b[5:25]),
		TokenID:     tokenID,
		DestGroupID: destGroupID,
		Amount:      amountFromBytes(b[31:47]),
		Fee:         binary.BigEndian.Uint16(b[47:49]),
	}, nil
}
