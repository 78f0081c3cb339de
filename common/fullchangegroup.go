package common

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// FullChangeGroupBytesLen is the fixed pubdata length of a FullChangeGroup
// record:
// opType 1 | accountId 4 | owner 20 | tokenId 4 | groupId 2 | destGroupId 2 |
// amount 16 | nft 60
const FullChangeGroupBytesLen = 109

// FullChangeGroup is the L1-priority-request variant of ChangeGroup.  It is
// enqueued and authenticated like a FullExit, but instead of crediting the
// ledger for final L1 withdrawal, its inclusion makes the value claimable as
// a deposit-equivalent inside DestGroupID.  Value only ever returns to the
// shared contract-level ledger, never to L1.
type FullChangeGroup struct {
	AccountID   AccountID         `json:"accountId"`
	Owner       ethCommon.Address `json:"owner"`
	TokenID     TokenID           `json:"tokenId"`
	GroupID     GroupID           `json:"groupId"`
	DestGroupID GroupID           `json:"destGroupId"`
	Amount      *big.Int          `json:"amount"`
	NFT         NFTData           `json:"nft"`
}

// Type returns the operation type tag
func (fcg *FullChangeGroup) Type() OpType {
	return OpTypeFullChangeGroup
}

// LedgerEffect returns the pending balance credit applied at execution
func (fcg *FullChangeGroup) LedgerEffect() (ethCommon.Address, TokenID, *big.Int) {
	return fcg.Owner, fcg.TokenID, fcg.Amount
}

// Bytes encodes the FullChangeGroup into its canonical pubdata layout
func (fcg *FullChangeGroup) Bytes() ([]byte, error) {
	var b [FullChangeGroupBytesLen]byte
	b[0] = byte(OpTypeFullChangeGroup)
	putUint32(b[1:5], uint32(fcg.AccountID))
	copy(b[5:25], fcg.Owner.Bytes())
	putUint32(b[25:29], uint32(fcg.TokenID))
	putUint16(b[29:31], uint16(fcg.GroupID))
	putUint16(b[31:33], uint16(fcg.DestGroupID))
	amount, err := amountBytes(fcg.Amount)
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[33:49], amount[:])
	copy(b[49:109], fcg.NFT.Bytes())
	return b[:], nil
}

// CanonicalBytes encodes the FullChangeGroup with the execution-time fields
// (amount and NFT metadata) zeroed, so only the request identity is hashed
func (fcg *FullChangeGroup) CanonicalBytes() ([]byte, error) {
	c := *fcg
	c.Amount = big.NewInt(0)
	c.NFT = NFTData{}
	return c.Bytes()
}

// FullChangeGroupFromBytes decodes a FullChangeGroup record, enforcing the
// exact record length
func FullChangeGroupFromBytes(b []byte) (*FullChangeGroup, error) {
	if len(b) != FullChangeGroupBytesLen || b[0] != byte(OpTypeFullChangeGroup) {
		return nil, Wrap(ErrMalformedPubdata)
	}
	accountID, _ := AccountIDFromBytes(b[1:5])
	tokenID, _ := TokenIDFromBytes(b[25:29])
	groupID, _ := GroupIDFromBytes(b[29:31])
	destGroupID, _ := GroupIDFromBytes(b[31:33])
	nft, err := NFTDataFromBytes(b[49:109])
	if err != nil {
		return nil, Wrap(err)
	}
	return &FullChangeGroup{
		AccountID:   accountID,
		Owner:       ethCommon.BytesToAddress(b[5:25]),
		TokenID:     tokenID,
		GroupID:     groupID,
		DestGroupID: destGroupID,
		Amount:      amountFromBytes(b[33:49]),
		NFT:         nft,
	}, nil
}
