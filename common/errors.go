package common

import (
	"errors"

	"github.com/hermeznetwork/tracerr"
)

// ErrMalformedPubdata is used when an operation record can not be decoded
// from pubdata due to a length or offset mismatch
var ErrMalformedPubdata = errors.New("malformed operation pubdata")

// ErrPriorityQueueMismatch is used when the canonical hash of an L1-originated
// operation found in committed pubdata does not match the stored priority
// request at the expected request id
var ErrPriorityQueueMismatch = errors.New("operation does not match the priority request")

// ErrQueueOverrun is used when a block commits more priority requests than are
// currently open in the group's queue
var ErrQueueOverrun = errors.New("committing more priority requests than open")

// ErrStaleBlockReference is used when a supplied StoredBlockInfo does not
// re-hash to the block hash retained in storage
var ErrStaleBlockReference = errors.New("block info hash does not match stored block hash")

// ErrPendingOpsHashMismatch is used when the pending operations hash rebuilt
// from the supplied pubdata at execution time does not match the committed one
var ErrPendingOpsHashMismatch = errors.New("pending operations hash mismatch")

// ErrExodusActive is used when a normal-path mutation is attempted on a group
// that has latched into exodus mode
var ErrExodusActive = errors.New("group is in exodus mode")

// ErrExodusNotActive is used when an exodus-only operation is attempted on a
// group that is still active
var ErrExodusNotActive = errors.New("group is not in exodus mode")

// ErrExodusAlreadyPerformed is used when an exodus proof is presented twice
// for the same (account, token) pair
var ErrExodusAlreadyPerformed = errors.New("exodus already performed for account and token")

// ErrInvalidProof is used when the verifier rejects a proof over committed
// blocks
var ErrInvalidProof = errors.New("verifier rejected the proof")

// ErrAmountOverflow is used when an amount does not fit the 128 bit pubdata
// representation or a pending balance credit would exceed it
var ErrAmountOverflow = errors.New("amount overflow, max value: 2**128-1")

// ErrNotValidator is used when a block lifecycle call does not come from the
// validator bound to the group
var ErrNotValidator = errors.New("caller is not the group validator")

// ErrGroupNotFound is used when the referenced group id has not been created
var ErrGroupNotFound = errors.New("group not found")

// ErrGroupAlreadyExists is used when creating a group with an id already taken
var ErrGroupAlreadyExists = errors.New("group already exists")

// ErrTokenNotRegistered is used when enqueueing a request for a token unknown
// to governance
var ErrTokenNotRegistered = errors.New("token not registered")

// ErrTokenAlreadyRegistered is used when registering a token id already taken
var ErrTokenAlreadyRegistered = errors.New("token already registered")

// ErrNotWhitelisted is used when a deposit for a permissioned group comes
// from an address outside the group whitelist
var ErrNotWhitelisted = errors.New("address not in group whitelist")

// ErrPriorityOpNotFound is used when the referenced priority request id has
// no stored entry
var ErrPriorityOpNotFound = errors.New("priority request not found")

// ErrDone is used when a function returns earlier due to a cancelled context
var ErrDone = errors.New("done")

// Wrap annotates an error with the call stack.  All error returns in the repo
// go through Wrap so that the origin of a failure can be traced.
func Wrap(err error) error {
	return tracerr.Wrap(err)
}

// Unwrap returns the error annotated by Wrap, for comparison against the
// package error variables
func Unwrap(err error) error {
	return tracerr.Unwrap(err)
}
