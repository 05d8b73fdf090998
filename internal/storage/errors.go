package storage

import (
	"fmt"
)

// StorageError classifies failures at the storage seam (spec §7). NotFound
// is deliberately absent here: a missing key is a result (found == false
// with a nil error), not
// an error, matching the teacher's resumableError split in
// memcached/errors.go between protocol-level outcomes and real failures.
type StorageError struct {
	Kind ErrKind
	Msg  string
	Err  error
}

// ErrKind enumerates StorageError variants.
type ErrKind uint8

const (
	ErrInvalidKey ErrKind = iota
	ErrCorruption
	ErrBackend
	ErrTimeout
)

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("storage: %s", e.Msg)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	other, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newStorageErr(kind ErrKind, msg string, cause error) *StorageError {
	return &StorageError{Kind: kind, Msg: msg, Err: cause}
}

// wrapBackendErr maps a raw engine error into the StorageError taxonomy,
// mirroring the teacher's wrapMemcachedResp status-to-sentinel mapping.
func wrapBackendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return newStorageErr(ErrBackend, fmt.Sprintf("%s failed", op), err)
}

// ErrInvalidKeyKind / ErrCorruptionKind are usable with errors.Is.
var (
	ErrInvalidKeyKind = &StorageError{Kind: ErrInvalidKey}
	ErrCorruptionKind = &StorageError{Kind: ErrCorruption}
	ErrBackendKind    = &StorageError{Kind: ErrBackend}
	ErrTimeoutKind    = &StorageError{Kind: ErrTimeout}
)
