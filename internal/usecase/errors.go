package usecase

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionFailed means the database is not in a state the
	// identity-preserving upsert can operate on.
	ErrPreconditionFailed = errors.New("pre-condition failed")

	// ErrBackupRequired means the file backup is mandatory and could not be
	// taken.
	ErrBackupRequired = errors.New("backup required but unavailable")

	// ErrTooManyRecordErrors means per-record skips crossed the configured
	// ceiling and the run aborted rather than commit a partial dataset.
	ErrTooManyRecordErrors = errors.New("too many record errors")

	// ErrHealthCritical means post-run validation found damage beyond the
	// auto-repair threshold and the transaction was rolled back.
	ErrHealthCritical = errors.New("post-import health critical")
)
