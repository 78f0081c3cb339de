package common

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// FullExitBytesLen is the fixed pubdata length of a FullExit record:
// opType 1 | accountId 4 | owner 20 | tokenId 4 | groupId 2 | amount 16 | nft 60
const FullExitBytesLen = 107

// FullExit is a forced L1 exit of the full account balance for one token.
// The request identifies the account; the amount and NFT metadata are only
// known once the group state applies the exit, so both are zeroed in the
// canonical form.
type FullExit struct {
	AccountID AccountID         `json:"accountId"`
	Owner     ethCommon.Address `json:"owner"`
	TokenID   TokenID           `json:"tokenId"`
	GroupID   GroupID           `json:"groupId"`
	Amount    *big.Int          `json:"amount"`
	NFT       NFTData           `json:"nft"`
}

// Type returns the operation type tag
func (fe *FullExit) Type() OpType {
	return OpTypeFullExit
}

// LedgerEffect returns the pending balance credit applied at execution
func (fe *FullExit) LedgerEffect() (ethCommon.Address, TokenID, *big.Int) {
	return fe.Owner, fe.TokenID, fe.Amount
}

// Bytes encodes the FullExit into its canonical pubdata layout
func (fe *FullExit) Bytes() ([]byte, error) {
	var b [FullExitBytesLen]byte
	b[0] = byte(OpTypeFullExit)
	putUint32(b[1:5], uint32(fe.AccountID))
	copy(b[5:25], fe.Owner.Bytes())
	putUint32(b[25:29], uint32(fe.TokenID))
	putUint16(b[29:31], uint16(fe.GroupID))
	amount, err := amountBytes(fe.Amount)
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[31:47], amount[:])
	copy(b[47:107], fe.NFT.Bytes())
	return b[:], nil
}

// CanonicalBytes encodes the FullExit with the execution-time fields (amount
// and NFT metadata) zeroed, so only the request identity is hashed
func (fe *FullExit) CanonicalBytes() ([]byte, error) {
	c := *fe
	c.Amount = big.NewInt(0)
	c.NFT = NFTData{}
	return c.Bytes()
}

// FullExitFromBytes decodes a FullExit record, enforcing the exact record
// length
func FullExitFromBytes(b []byte) (*FullExit, error) {
	if len(b) != FullExitBytesLen || b[0] != byte(OpTypeFullExit) {
		return nil, Wrap(ErrMalformedPubdata)
	}
	accountID, _ := AccountIDFromBytes(b[1:5])
	tokenID, _ := TokenIDFromBytes(b[25:29])
	groupID, _ := GroupIDFromBytes(b[29:31])
	nft, err := NFTDataFromBytes(b[47:107])
	if err != nil {
		return nil, Wrap(err)
	}
	return &FullExit{
		AccountID: accountID,
		Owner:     ethCommon.BytesToAddress(b[5:25]),
		TokenID:   tokenID,
		GroupID:   groupID,
		Amount:    amountFromBytes(b[31:47]),
		NFT:       nft,
	}, nil
}
