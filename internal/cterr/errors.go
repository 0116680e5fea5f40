// Package cterr defines the engine-wide error taxonomy.
//
// Every public boundary in Cottontail DB returns one of these sentinel
// values (wrapped with additional context via fmt.Errorf's %w) rather
// than a bespoke error type per package. Callers use errors.Is against
// the sentinels below to recover the error kind described in the
// error-handling design.
package cterr

import "errors"

// Database errors: corruption, invalid files, naming conflicts.
var (
	ErrCorruptHeader    = errors.New("cottontail: corrupt file header")
	ErrCorruptChecksum  = errors.New("cottontail: checksum mismatch")
	ErrInvalidFile      = errors.New("cottontail: invalid file")
	ErrAlreadyExists    = errors.New("cottontail: already exists")
	ErrDoesNotExist     = errors.New("cottontail: does not exist")
	ErrEntityCorrupt    = errors.New("cottontail: entity is corrupt")
)

// Transaction errors: lifecycle and locking violations.
var (
	ErrClosedDBO      = errors.New("cottontail: database object is closed")
	ErrClosedTx       = errors.New("cottontail: transaction is closed")
	ErrTxInError      = errors.New("cottontail: transaction is in error state")
	ErrReadOnly       = errors.New("cottontail: read-only transaction")
	ErrWriteLockDenied = errors.New("cottontail: failed to acquire write lock")
	ErrInvalidTupleID = errors.New("cottontail: invalid tuple id")
	ErrUnknownColumn  = errors.New("cottontail: unknown column")
)

// Query errors: planner/execution-facing failures.
var (
	ErrUnsupportedPredicate = errors.New("cottontail: unsupported predicate")
	ErrColumnNotFound       = errors.New("cottontail: column does not exist")
	ErrIndexLookupFailed    = errors.New("cottontail: index lookup failed")
)

// Validation errors: value-level constraint violations.
var (
	ErrNullNotAllowed    = errors.New("cottontail: null value not allowed")
	ErrTypeMismatch      = errors.New("cottontail: type mismatch")
	ErrVectorSizeMismatch = errors.New("cottontail: vector size mismatch")
	ErrIndexUpdateFailed = errors.New("cottontail: index update failed")
	ErrDuplicateKey      = errors.New("cottontail: duplicate key for unique index")
)

// Storage errors: page-store and I/O failures.
var (
	ErrStorage          = errors.New("cottontail: storage failure")
	ErrLockTimeout      = errors.New("cottontail: file lock acquisition timed out")
	ErrPageOutOfBounds  = errors.New("cottontail: page id out of bounds")
	ErrBufferPoolFull   = errors.New("cottontail: buffer pool exhausted")
)
