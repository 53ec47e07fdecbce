package core

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageFromStore(t *testing.T, store *memStore, rows []ParsedStockRow) *ImportSession {
	t.Helper()
	catalog, err := store.ListProducts(context.Background(), "owner-1")
	require.NoError(t, err)
	return NewImportSession("owner-1", "stock.csv", ColumnRoleMap{}, MatchRows(rows, catalog), nil, DefaultCategory)
}

func TestBulkApplier_CreatesAndUpdates(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "Steel Rod", "Raw", &InventoryRecord{Quantity: 100, Unit: "pcs"})
	store.seed("owner-1", "Copper Wire", "Electrical", nil)

	sess := stageFromStore(t, store, []ParsedStockRow{
		{ProductName: "steel rod", Quantity: 500},
		{ProductName: "Copper Wire", Quantity: 30},
		{ProductName: "Brass Fitting", Quantity: 12, Unit: "box", Category: "Plumbing"},
		{ProductName: "Zinc Plate", Quantity: 7},
	})

	out := NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	assert.Equal(t, 2, out.CreatedCount)
	assert.Equal(t, 2, out.UpdatedCount)
	assert.Equal(t, 0, out.ErrorCount)
	assert.Equal(t, 4, out.Total())

	qty, ok := store.quantity("Steel Rod")
	require.True(t, ok)
	assert.Equal(t, 500, qty)

	// Matched without inventory gets a record, no audit.
	copper, ok := store.product("Copper Wire")
	require.True(t, ok)
	require.NotNil(t, copper.Inventory)
	assert.Equal(t, 30, copper.Inventory.Quantity)
	assert.Equal(t, DefaultUnit, copper.Inventory.Unit)

	brass, ok := store.product("Brass Fitting")
	require.True(t, ok)
	assert.Equal(t, "Plumbing", brass.Category)
	assert.Equal(t, "box", brass.Inventory.Unit)

	zinc, ok := store.product("Zinc Plate")
	require.True(t, ok)
	assert.Equal(t, DefaultCategory, zinc.Category)
	assert.Equal(t, DefaultUnit, zinc.Inventory.Unit)

	require.Len(t, store.audit, 1)
	entry := store.audit[0]
	assert.Equal(t, 100, entry.PreviousQuantity)
	assert.Equal(t, 500, entry.NewQuantity)
	assert.Equal(t, "alice", entry.UpdatedBy)
	assert.Equal(t, ReasonBulkImport, entry.Reason)
}

func TestBulkApplier_SkipsDeselected(t *testing.T) {
	store := newMemStore()
	sess := stageFromStore(t, store, []ParsedStockRow{{ProductName: "A", Quantity: 1}, {ProductName: "B", Quantity: 2}})
	_, err := sess.ToggleRow(sess.Unmatched()[0].ID)
	require.NoError(t, err)

	out := NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	assert.Equal(t, 1, out.CreatedCount)
	_, ok := store.product("A")
	assert.False(t, ok)
}

func TestBulkApplier_UsesSessionDefaultCategory(t *testing.T) {
	store := newMemStore()
	sess := stageFromStore(t, store, []ParsedStockRow{{ProductName: "A", Quantity: 1}})
	sess.SetDefaultCategory("Spares")

	NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	a, ok := store.product("A")
	require.True(t, ok)
	assert.Equal(t, "Spares", a.Category)
}

// One failing row must not stop the rest of the batch.
func TestBulkApplier_PartialFailure(t *testing.T) {
	store := newMemStore()
	store.failNames["Bravo"] = errors.New("connection reset by peer")

	sess := stageFromStore(t, store, []ParsedStockRow{
		{ProductName: "Alpha", Quantity: 1},
		{ProductName: "Bravo", Quantity: 2},
		{ProductName: "Charlie", Quantity: 3},
	})

	out := NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	assert.Equal(t, 2, out.CreatedCount)
	assert.Equal(t, 0, out.UpdatedCount)
	assert.Equal(t, 1, out.ErrorCount)

	_, ok := store.product("Charlie")
	assert.True(t, ok, "row after the failure must still be applied")

	catalog, err := store.ListProducts(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, catalog, 2)

	var failed []RowResult
	for _, r := range out.Results {
		if r.Action == ActionFailed {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "Bravo", failed[0].ProductName)

	var rowErr *RowApplyError
	require.True(t, errors.As(failed[0].Err, &rowErr))
	assert.Equal(t, "create product", rowErr.Op)
}

// A new product whose inventory record cannot be written is not left in the
// catalog.
func TestBulkApplier_CreateRollsBackProductWithoutInventory(t *testing.T) {
	mem := newMemStore()
	mem.failInv = errors.New("inventory table locked")
	sess := stageFromStore(t, mem, []ParsedStockRow{{ProductName: "Alpha", Quantity: 4}})

	out := NewBulkApplier(txMemStore{mem}, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	assert.Equal(t, 0, out.CreatedCount)
	assert.Equal(t, 1, out.ErrorCount)

	catalog, err := mem.ListProducts(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, catalog)

	var rowErr *RowApplyError
	require.True(t, errors.As(out.Results[0].Err, &rowErr))
	assert.Contains(t, rowErr.Error(), "inventory table locked")
}

func TestBulkApplier_AuditFailureCountsAsError(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "A", "", &InventoryRecord{Quantity: 1})
	store.failAudit = errors.New("audit table unavailable")

	sess := stageFromStore(t, store, []ParsedStockRow{{ProductName: "A", Quantity: 5}})
	out := NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	assert.Equal(t, 0, out.UpdatedCount)
	assert.Equal(t, 1, out.ErrorCount)
}

// Applying the same value twice leaves the stock unchanged and the second
// audit entry records previous == new.
func TestBulkApplier_IdempotentReapply(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "A", "", &InventoryRecord{Quantity: 10})
	applier := NewBulkApplier(store, DefaultUnit)
	rows := []ParsedStockRow{{ProductName: "A", Quantity: 25}}

	applier.Apply(context.Background(), stageFromStore(t, store, rows), "alice", ReasonBulkImport)
	out := applier.Apply(context.Background(), stageFromStore(t, store, rows), "alice", ReasonBulkImport)

	assert.Equal(t, 1, out.UpdatedCount)
	qty, _ := store.quantity("A")
	assert.Equal(t, 25, qty)

	require.Len(t, store.audit, 2)
	assert.Equal(t, 10, store.audit[0].PreviousQuantity)
	assert.Equal(t, 25, store.audit[1].PreviousQuantity)
	assert.Equal(t, 25, store.audit[1].NewQuantity)
}

func TestBulkApplier_ReselectedDuplicateFails(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "A", "", &InventoryRecord{Quantity: 1})

	sess := stageFromStore(t, store, []ParsedStockRow{
		{ProductName: "A", Quantity: 5},
		{ProductName: "a", Quantity: 9},
	})
	dup := sess.Matched()[1]
	require.True(t, dup.DuplicateTarget)
	_, err := sess.ToggleRow(dup.ID)
	require.NoError(t, err)

	out := NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)

	assert.Equal(t, 1, out.UpdatedCount)
	assert.Equal(t, 1, out.ErrorCount)
	qty, _ := store.quantity("A")
	assert.Equal(t, 5, qty, "first row wins")

	last := out.Results[len(out.Results)-1]
	assert.True(t, errors.Is(last.Err, ErrDuplicateTarget))
}

func TestBulkApplier_CarriesWarnings(t *testing.T) {
	store := newMemStore()
	warnings := []RowParseWarning{{Line: 3, Column: "Qty", Value: "x", Message: "not a number, using 0"}}
	sess := NewImportSession("owner-1", "f.csv", ColumnRoleMap{}, MatchRows([]ParsedStockRow{{ProductName: "A"}}, nil), warnings, DefaultCategory)

	out := NewBulkApplier(store, DefaultUnit).Apply(context.Background(), sess, "alice", ReasonBulkImport)
	assert.Equal(t, warnings, out.Warnings)
}
