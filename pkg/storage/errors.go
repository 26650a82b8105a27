package storage

import "errors"

// ErrNotFound is returned when a wallet, transaction or batch does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a record with the same key, or a wallet for the
// same owner and currency, already exists.
var ErrAlreadyExists = errors.New("already exists")

// ErrVersionConflict is returned when an optimistic version check fails because the
// record was modified concurrently. Callers re-read and retry.
var ErrVersionConflict = errors.New("version conflict")

// ErrTransitionRejected is returned when a transaction is not in the status a
// conditional status change expects.
var ErrTransitionRejected = errors.New("transaction status transition rejected")

// ErrDuplicatePosting is returned when a commit carries an idempotency key that has
// already been committed. Nothing from the rejected commit is applied.
var ErrDuplicatePosting = errors.New("posting already applied")
