// Package common holds small, dependency-free building blocks shared across
// the chain, consensus, gossip and node packages — the same role the
// teacher's common package plays for babble's hashgraph.
package common

import "fmt"

// StoreErrType enumerates the categories of error a chain.Store can return.
type StoreErrType uint32

const (
	// KeyNotFound means a hash was not present in the block index.
	KeyNotFound StoreErrType = iota
	// DuplicateKey means a block with the same hash was already indexed.
	DuplicateKey
	// OrphanKey means a block's parent is not yet known.
	OrphanKey
	// SafetyViolation means two distinct hashes were about to be finalised
	// at the same height. This is the only fatal StoreErr.
	SafetyViolation
)

// StoreErr is a typed error returned by chain.Store operations.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr builds a StoreErr identifying which kind of data (dataType),
// which failure (errType) and which key were involved.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error implements the error interface.
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "not found"
	case DuplicateKey:
		m = "duplicate"
	case OrphanKey:
		m = "orphan, parent unknown"
	case SafetyViolation:
		m = "safety violation"
	}
	return fmt.Sprintf("%s %s: %s", e.dataType, e.key, m)
}

// IsStoreErr reports whether err is a StoreErr of the given type.
func IsStoreErr(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
