package common

import (
	"encoding/binary"
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// NFTDataBytesLen is the pubdata width of the NFT metadata block carried by
// FullExit and FullChangeGroup records
const NFTDataBytesLen = 60

// NFTData is the NFT metadata block of a full-exit style operation.  It is
// only known after execution inside the group state, so it is zeroed in the
// canonical form matched against the priority queue.
type NFTData struct {
	CreatorAccountID AccountID         `json:"creatorAccountId"`
	CreatorAddress   ethCommon.Address `json:"creatorAddress"`
	SerialID         uint32            `json:"serialId"`
	ContentHash      ethCommon.Hash    `json:"contentHash"`
}

// Bytes returns the 60 byte serialization of the NFTData
func (n *NFTData) Bytes() []byte {
	var b [NFTDataBytesLen]byte
	putUint32(b[0:4], uint32(n.CreatorAccountID))
	copy(b[4:24], n.CreatorAddress.Bytes())
	putUint32(b[24:28], n.SerialID)
	copy(b[28:60], n.ContentHash.Bytes())
	return b[:]
}

// NFTDataFromBytes returns NFTData from a []byte
func NFTDataFromBytes(b []byte) (NFTData, error) {
	if len(b) != NFTDataBytesLen {
		return NFTData{}, Wrap(fmt.Errorf("can not parse NFTData, bytes len %d, expected %d",
			len(b), NFTDataBytesLen))
	}
	var n NFTData
	id, _ := AccountIDFromBytes(b[0:4])
	n.CreatorAccountID = id
	n.CreatorAddress = ethCommon.BytesToAddress(b[4:24])
	n.SerialID = binary.BigEndian.Uint32(b[24:28])
	n.ContentHash = ethCommon.BytesToHash(b[28:60])
	return n, nil
}
