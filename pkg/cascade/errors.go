package cascade

import (
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
)

// TransportError wraps a failed network call or an answer that does not
// fit the request. It is never turned into an empty result.
type TransportError struct {
	Op    string
	Basis string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cascade: %s %s: transport: %v", e.Op, e.Basis, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StoreError wraps a failed read or write of a local store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cascade: %s: store: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvariantError reports metadata the cascade cannot reconcile, such as an
// entry whose status is Live while every one of its headers is deleted.
// It means the metadata store and the cascade disagree on the data model.
type InvariantError struct {
	Entry  holohash.EntryHash
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cascade: invariant violated for %s: %s", e.Entry, e.Reason)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
