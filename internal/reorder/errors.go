package reorder

import (
	"errors"

	"github.com/chxlky/boardsync/internal/store"
)

var (
	// ErrNotFound is returned when a referenced card does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidMove rejects malformed batches before anything is read.
	ErrInvalidMove      = errors.New("invalid move")
	ErrCrossProjectMove = errors.New("moves span more than one project")
	ErrForbidden        = errors.New("forbidden")
	ErrVersionConflict  = errors.New("version conflict")
	// ErrReorderFailed wraps any failure of the transactional apply.
	ErrReorderFailed = errors.New("reorder failed")
)
