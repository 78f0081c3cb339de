package common

import (
	"encoding/binary"
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Token is a struct that represents an Ethereum token registered in the
// rollup's governance token registry
type Token struct {
	TokenID TokenID `json:"id" meddler:"token_id"`
	// EthBlockNum indicates the Ethereum block number in which this token was registered
	EthBlockNum int64             `json:"ethereumBlockNum" meddler:"eth_block_num"`
	EthAddr     ethCommon.Address `json:"ethereumAddress" meddler:"eth_addr"`
	Name        string            `json:"name" meddler:"name"`
	Symbol      string            `json:"symbol" meddler:"symbol"`
	Decimals    uint64            `json:"decimals" meddler:"decimals"`
}

// TokenID is the unique identifier of the token, as set in the governance
// registry
type TokenID uint32

// TokenIDBytesLen is the pubdata width of a TokenID
const TokenIDBytesLen = 4

// Bytes returns a byte array of length 4 representing the TokenID
func (t TokenID) Bytes() []byte {
	var tokenIDBytes [TokenIDBytesLen]byte
	binary.BigEndian.PutUint32(tokenIDBytes[:], uint32(t))
	return tokenIDBytes[:]
}

// TokenIDFromBytes returns TokenID from a []byte
func TokenIDFromBytes(b []byte) (TokenID, error) {
	if len(b) != TokenIDBytesLen {
		return 0, Wrap(fmt.Errorf("can not parse TokenID, bytes len %d, expected %d",
			len(b), TokenIDBytesLen))
	}
	return TokenID(binary.BigEndian.Uint32(b)), nil
}
