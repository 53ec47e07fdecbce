package core

// apply.go commits the selected rows of an import session. The batch is not
// transactional: every row is written independently and a failing row is
// counted and logged without stopping the rest. A row's own writes share a
// transaction when the store offers one.

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
)

// ImportedDescription is the description given to products created by import.
const ImportedDescription = "Imported from stock report"

// BulkApplier writes staged rows through a Store.
type BulkApplier struct {
	store       Store
	defaultUnit string
	now         func() time.Time
}

// NewBulkApplier creates an applier. defaultUnit is used for new inventory
// records whose row carried no unit.
func NewBulkApplier(store Store, defaultUnit string) *BulkApplier {
	return &BulkApplier{store: store, defaultUnit: defaultUnit, now: time.Now}
}

// Apply writes every selected row of s. New products are created first,
// then matched stock levels are updated. Rows flagged as duplicate targets
// that were re-selected fail with ErrDuplicateTarget.
func (a *BulkApplier) Apply(ctx context.Context, s *ImportSession, actor string, reason AuditReason) ApplyOutcome {
	start := time.Now()
	out := ApplyOutcome{Warnings: s.Warnings()}

	created := make(map[string]bool)
	for _, row := range s.Unmatched() {
		if !row.Selected {
			continue
		}
		key := MatchKey(row.Row.ProductName)
		if created[key] {
			out.add(a.fail(ctx, s, row, "create product", ErrDuplicateTarget))
			continue
		}
		created[key] = true
		out.add(a.createProduct(ctx, s, row))
	}

	written := make(map[string]bool)
	for _, row := range s.Matched() {
		if !row.Selected {
			continue
		}
		if written[row.ProductID] {
			out.add(a.fail(ctx, s, row, "update stock", ErrDuplicateTarget))
			continue
		}
		written[row.ProductID] = true
		out.add(a.updateStock(ctx, s, row, actor, reason))
	}

	slog.Info("bulk apply completed",
		"owner_id", s.OwnerID,
		"session_id", s.ID,
		"reason", reason,
		"created", out.CreatedCount,
		"updated", out.UpdatedCount,
		"errors", out.ErrorCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (a *BulkApplier) createProduct(ctx context.Context, s *ImportSession, row *StagedRow) RowResult {
	category := row.Row.Category
	if category == "" {
		category = s.DefaultCategory()
	}

	err := a.inRowTx(ctx, func(st Store) error {
		productID, err := st.CreateProduct(ctx, s.OwnerID, NewProduct{
			Name:        row.Row.ProductName,
			Category:    category,
			Description: ImportedDescription,
		})
		if err != nil {
			return errors.Wrap(err, "create product")
		}
		if _, err := st.CreateInventory(ctx, productID, row.Row.Quantity, a.unitFor(row)); err != nil {
			return errors.Wrap(err, "create inventory")
		}
		return nil
	})
	if err != nil {
		return a.fail(ctx, s, row, "create product", err)
	}

	return RowResult{RowID: row.ID, ProductName: row.Row.ProductName, Action: ActionCreated}
}

func (a *BulkApplier) updateStock(ctx context.Context, s *ImportSession, row *StagedRow, actor string, reason AuditReason) RowResult {
	if row.Inventory == nil {
		if _, err := a.store.CreateInventory(ctx, row.ProductID, row.Row.Quantity, a.unitFor(row)); err != nil {
			return a.fail(ctx, s, row, "create inventory", err)
		}
		return RowResult{RowID: row.ID, ProductName: row.Row.ProductName, Action: ActionUpdated}
	}

	if err := a.writeStock(ctx, row.ProductID, *row.Inventory, row.Row.Quantity, actor, reason); err != nil {
		return a.fail(ctx, s, row, "update stock", err)
	}

	return RowResult{RowID: row.ID, ProductName: row.Row.ProductName, Action: ActionUpdated}
}

// writeStock sets an inventory quantity and appends its audit entry. The
// previous quantity comes from inv, the snapshot the caller observed. When the
// store supports it both writes share one transaction.
func (a *BulkApplier) writeStock(ctx context.Context, productID string, inv InventoryRecord, quantity int, actor string, reason AuditReason) error {
	write := func(st Store) error {
		if err := st.UpdateInventory(ctx, inv.ID, quantity); err != nil {
			return errors.Wrap(err, "update inventory")
		}
		audit := &AuditLogger{sink: st, now: a.now}
		_, err := audit.Record(ctx, productID, inv.Quantity, quantity, actor, reason)
		return err
	}

	return a.inRowTx(ctx, write)
}

// inRowTx runs fn in a row transaction when the store supports one.
func (a *BulkApplier) inRowTx(ctx context.Context, fn func(Store) error) error {
	if tx, ok := a.store.(RowTransactor); ok {
		return tx.InRowTx(ctx, fn)
	}
	return fn(a.store)
}

func (a *BulkApplier) unitFor(row *StagedRow) string {
	if row.Row.Unit != "" {
		return row.Row.Unit
	}
	return a.defaultUnit
}

func (a *BulkApplier) fail(ctx context.Context, s *ImportSession, row *StagedRow, op string, err error) RowResult {
	rowErr := &RowApplyError{RowID: row.ID, ProductName: row.Row.ProductName, Op: op, Err: err}
	slog.WarnContext(ctx, "row apply failed",
		"owner_id", s.OwnerID,
		"session_id", s.ID,
		"row_id", row.ID,
		"line", row.Row.Line,
		"product", row.Row.ProductName,
		"op", op,
		"error", err.Error(),
	)
	return RowResult{RowID: row.ID, ProductName: row.Row.ProductName, Action: ActionFailed, Err: rowErr}
}
