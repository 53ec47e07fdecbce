package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Parse-time errors abort the whole upload. Apply-time errors are recorded
// per row and never abort the batch.
var (
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrMalformedInput      = errors.New("malformed input")
	ErrUnresolvableColumns = errors.New("unresolvable columns")

	ErrApplyInFlight     = errors.New("an apply is already running for this owner")
	ErrSessionNotFound   = errors.New("no import session in progress")
	ErrInvalidTransition = errors.New("invalid import session transition")
	ErrRowNotFound       = errors.New("staged row not found")
	ErrDuplicateTarget   = errors.New("row targets a product already written in this apply")
	ErrProductNotFound   = errors.New("product not found")
	ErrInventoryNotFound = errors.New("inventory record not found")
	ErrInvalidQuantity   = errors.New("quantity must be a non-negative integer")
	ErrProfileNotFound   = errors.New("template profile not found")
)

// RowApplyError wraps a data-access failure for a single staged row.
type RowApplyError struct {
	RowID       uuid.UUID
	ProductName string
	Op          string
	Err         error
}

func (e *RowApplyError) Error() string {
	return fmt.Sprintf("row %s (%q): %s: %v", e.RowID, e.ProductName, e.Op, e.Err)
}

func (e *RowApplyError) Unwrap() error { return e.Err }
