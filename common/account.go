package common

import (
	"encoding/binary"
	"fmt"
)

// AccountID is the 32 bit identifier of an account inside a group's state
// tree.  It is part of pubdata but carries no meaning at the contract level
// beyond the exodus bookkeeping.
type AccountID uint32

// AccountIDBytesLen is the pubdata width of an AccountID
const AccountIDBytesLen = 4

// Bytes returns a byte array of length 4 representing the AccountID
func (a AccountID) Bytes() []byte {
	var b [AccountIDBytesLen]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return b[:]
}

// AccountIDFromBytes returns AccountID from a []byte
func AccountIDFromBytes(b []byte) (AccountID, error) {
	if len(b) != AccountIDBytesLen {
		return 0, Wrap(fmt.Errorf("can not parse AccountID, bytes len %d, expected %d",
			len(b), AccountIDBytesLen))
	}
	return AccountID(binary.BigEndian.Uint32(b)), nil
}
