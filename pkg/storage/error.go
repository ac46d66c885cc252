package storage

import (
	"errors"
	"strconv"
)

var (
	// ErrNotFound matches any NotFoundError via errors.Is.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate matches any DuplicateError via errors.Is.
	ErrDuplicate = errors.New("duplicate checksum")
)

// NotFoundError is returned when a document doesn't exist in the store.
type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	if e.ID == 0 {
		return ErrNotFound.Error()
	}
	return ErrNotFound.Error() + ": " + strconv.FormatInt(e.ID, 10)
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateError is returned when a write would give two documents the same
// checksum.
type DuplicateError struct {
	Checksum string
}

func (e DuplicateError) Error() string {
	if e.Checksum == "" {
		return ErrDuplicate.Error()
	}
	return ErrDuplicate.Error() + ": " + e.Checksum
}

func (e DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}
