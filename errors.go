package memscope

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// InitError is the error returned when a process-wide allocator or IPC subsystem
// could not be brought up. Failures of this kind are fatal and are never retried.
var InitError error = errors.New("allocator subsystem could not be initialized")

// AttachError is the error returned when a named or keyed allocator instance could
// not be opened or mapped. This is an expected condition for monitoring tools (the
// target allocator may simply not be running) and so is surfaced as its own
// sentinel rather than a generic failure.
var AttachError error = errors.New("could not attach to allocator instance")

// TransactionError is the error returned when the bracketed consistent read on a
// heap region could not be started or ended.
var TransactionError error = errors.New("usage read transaction failed")

// SnapshotError is the error returned when an allocator's bookkeeping is
// internally inconsistent or corrupt. A query that hits this never produces a
// partial report.
var SnapshotError error = errors.New("allocator bookkeeping snapshot is corrupt")
