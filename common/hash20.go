package common

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Hash20 is a Keccak256 digest truncated to its low 20 bytes.  It is stored
// per priority request instead of the full pubdata.
type Hash20 [PubdataHashLen]byte

// EmptyHash20 is used to check if a Hash20 is 0
var EmptyHash20 = Hash20{}

// Scan implements Scanner for database/sql.
func (h *Hash20) Scan(src interface{}) error {
	srcB, ok := src.([]byte)
	if !ok {
		return Wrap(fmt.Errorf("can't scan %T into Hash20", src))
	}
	if len(srcB) != PubdataHashLen {
		return Wrap(fmt.Errorf("can't scan []byte of len %d into Hash20, need %d",
			len(srcB), PubdataHashLen))
	}
	copy(h[:], srcB)
	return nil
}

// Value implements valuer for database/sql.
func (h Hash20) Value() (driver.Value, error) {
	return h[:], nil
}

// String returns a string hexadecimal representation of the Hash20
func (h Hash20) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// NewHash20FromString returns a Hash20 from its hexadecimal representation
func NewHash20FromString(s string) (Hash20, error) {
	h := Hash20{}
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Hash20{}, Wrap(err)
	}
	if len(decoded) != PubdataHashLen {
		return h, Wrap(errors.New("invalid Hash20 string length"))
	}
	copy(h[:], decoded)
	return h, nil
}

// MarshalText marshals a Hash20
func (h Hash20) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText unmarshalls a Hash20
func (h *Hash20) UnmarshalText(data []byte) error {
	v, err := NewHash20FromString(string(data))
	if err != nil {
		return Wrap(err)
	}
	*h = v
	return nil
}
