package services

import (
	"errors"
	"fmt"
)

// Access verdicts and operation failures. Handlers discriminate with
// errors.Is, so every rejection path stays a distinct kind instead of a
// string match.
var (
	// ErrInvalidInput rejects malformed or contradictory creation parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound covers both a missing record and a revoked one: a revoked
	// link must be indistinguishable from one that never existed.
	ErrNotFound = errors.New("share not found")
	// ErrGone marks an expired share. Unlike ErrNotFound it tells a
	// legitimate link holder the share once worked.
	ErrGone = errors.New("share expired")
	// ErrExhausted means the download quota is spent. Download path only.
	ErrExhausted = errors.New("download limit reached")
	ErrPasswordRequired = errors.New("password required")
	ErrPasswordInvalid  = errors.New("incorrect password")
	// ErrForbidden rejects a lifecycle operation by a non-owner.
	ErrForbidden = errors.New("not the owner of this share")
)

// StorageError wraps a failure of the blob backend or the record store.
// I/O failures must never be interpreted as NotFound.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
