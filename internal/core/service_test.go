package core

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/stockrecon/internal/lock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store Store) *Service {
	return NewService(store, lock.NewLocalLocker(), NewApplyLimiter(2, time.Second), Options{})
}

// blockingStore stalls UpdateInventory until release is closed.
type blockingStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) UpdateInventory(ctx context.Context, id string, qty int) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.memStore.UpdateInventory(ctx, id, qty)
}

// =============================================================================
// End-to-end scenarios
// =============================================================================

func TestService_ClosingStockScenario(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "Steel Rods", "Metals", nil)
	svc := newTestService(store)

	csv := []byte("Product Name,Closing Stock\nSteel Rods,500\nNew Alloy,75")
	view, err := svc.StartImport(context.Background(), "owner-1", "closing.csv", csv)
	require.NoError(t, err)

	require.Len(t, view.Matched, 1)
	assert.Equal(t, "Steel Rods", view.Matched[0].Row.ProductName)
	assert.Equal(t, 500, view.Matched[0].Row.Quantity)
	require.Len(t, view.Unmatched, 1)
	assert.Equal(t, "New Alloy", view.Unmatched[0].Row.ProductName)
	assert.Equal(t, 75, view.Unmatched[0].Row.Quantity)

	out, err := svc.Apply(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.CreatedCount)
	assert.Equal(t, 1, out.UpdatedCount)
	assert.Equal(t, 0, out.ErrorCount)

	qty, ok := store.quantity("Steel Rods")
	require.True(t, ok)
	assert.Equal(t, 500, qty)

	alloy, ok := store.product("New Alloy")
	require.True(t, ok)
	assert.Equal(t, 75, alloy.Inventory.Quantity)

	catalog, _ := store.ListProducts(context.Background(), "owner-1")
	assert.Len(t, catalog, 2)
}

func TestService_ShortHeaderScenario(t *testing.T) {
	svc := newTestService(newMemStore())

	view, err := svc.StartImport(context.Background(), "owner-1", "s.csv", []byte("Item,Qty,Group\nBolt,7,Hardware\n"))
	require.NoError(t, err)

	assert.Equal(t, map[Role]string{
		RoleName:     "Item",
		RoleQuantity: "Qty",
		RoleCategory: "Group",
	}, view.Columns)
	_, hasUnit := view.Columns[RoleUnit]
	assert.False(t, hasUnit)

	require.Len(t, view.Unmatched, 1)
	assert.Equal(t, "", view.Unmatched[0].Row.Unit)
	assert.Equal(t, "Hardware", view.Unmatched[0].Row.Category)
}

func TestService_CaseInsensitiveMatch(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "Steel Rods", "", &InventoryRecord{Quantity: 1})
	svc := newTestService(store)

	view, err := svc.StartImport(context.Background(), "owner-1", "s.csv", []byte("Product,Qty\n  steel rods ,9\n"))
	require.NoError(t, err)
	assert.Len(t, view.Matched, 1)
	assert.Empty(t, view.Unmatched)
}

func TestService_OwnersAreIsolated(t *testing.T) {
	store := newMemStore()
	store.seed("owner-2", "Steel Rods", "", nil)
	svc := newTestService(store)

	view, err := svc.StartImport(context.Background(), "owner-1", "s.csv", []byte("Product,Qty\nSteel Rods,9\n"))
	require.NoError(t, err)
	assert.Empty(t, view.Matched)

	_, err = svc.Session("owner-2")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

// =============================================================================
// Parse failures
// =============================================================================

func TestService_StartImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    string
		wantErr error
	}{
		{"unsupported", "stock.pdf", "x", ErrUnsupportedFormat},
		{"single row", "stock.csv", "Product,Qty\n", ErrMalformedInput},
		{"no quantity column", "stock.csv", "Product,Price\nA,1\n", ErrUnresolvableColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(store)

			_, err := svc.StartImport(context.Background(), "owner-1", tt.file, []byte(tt.data))
			assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)

			_, err = svc.Session("owner-1")
			assert.True(t, errors.Is(err, ErrSessionNotFound))
			assert.Empty(t, store.calls, "parse failures must not write")
		})
	}
}

func TestService_FileTooLarge(t *testing.T) {
	svc := NewService(newMemStore(), lock.NewLocalLocker(), NewApplyLimiter(1, time.Second), Options{MaxFileSize: 10})

	_, err := svc.StartImport(context.Background(), "owner-1", "s.csv", []byte("Product,Qty\nA,1\n"))
	require.Error(t, err)
	assert.Equal(t, "IMP004", MapError(err).Code)
}

// =============================================================================
// Session lifecycle
// =============================================================================

func TestService_Lifecycle(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Apply(ctx, "owner-1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	view, err := svc.StartImport(ctx, "owner-1", "s.csv", []byte("Product,Qty\nA,1\nB,2\n"))
	require.NoError(t, err)
	assert.Equal(t, StateParsed, view.State)

	view, err = svc.ToggleRow("owner-1", view.Unmatched[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StateReviewing, view.State)
	assert.Equal(t, 1, view.SelectedCount)

	view, err = svc.SetDefaultCategory("owner-1", "Spares")
	require.NoError(t, err)
	assert.Equal(t, "Spares", view.DefaultCategory)

	out, err := svc.Apply(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.CreatedCount)

	b, ok := store.product("B")
	require.True(t, ok)
	assert.Equal(t, "Spares", b.Category)

	_, err = svc.Session("owner-1")
	assert.True(t, errors.Is(err, ErrSessionNotFound), "apply discards the session")
}

func TestService_NewUploadReplacesSession(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	first, err := svc.StartImport(ctx, "owner-1", "a.csv", []byte("Product,Qty\nA,1\n"))
	require.NoError(t, err)
	_, err = svc.ToggleRow("owner-1", first.Unmatched[0].ID)
	require.NoError(t, err)

	second, err := svc.StartImport(ctx, "owner-1", "b.csv", []byte("Product,Qty\nB,1\n"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StateParsed, second.State)

	_, err = svc.ToggleRow("owner-1", first.Unmatched[0].ID)
	assert.True(t, errors.Is(err, ErrRowNotFound), "rows of the replaced session are gone")
}

func TestService_Reset(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.StartImport(context.Background(), "owner-1", "a.csv", []byte("Product,Qty\nA,1\n"))
	require.NoError(t, err)

	require.NoError(t, svc.Reset("owner-1"))
	_, err = svc.Session("owner-1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	require.NoError(t, svc.Reset("owner-1"), "reset without a session is a no-op")
}

func TestService_ToggleRowAt(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.StartImport(context.Background(), "owner-1", "a.csv", []byte("Product,Qty\nA,1\nB,2\n"))
	require.NoError(t, err)

	view, err := svc.ToggleRowAt("owner-1", PartitionUnmatched, 1)
	require.NoError(t, err)
	assert.True(t, view.Unmatched[0].Selected)
	assert.False(t, view.Unmatched[1].Selected)
}

func TestService_RejectsWorkDuringApply(t *testing.T) {
	mem := newMemStore()
	mem.seed("owner-1", "A", "", &InventoryRecord{Quantity: 1})
	store := &blockingStore{memStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.StartImport(ctx, "owner-1", "a.csv", []byte("Product,Qty\nA,5\n"))
	require.NoError(t, err)

	done := make(chan ApplyOutcome)
	go func() {
		out, _ := svc.Apply(ctx, "owner-1")
		done <- out
	}()
	<-store.entered

	view, err := svc.Session("owner-1")
	require.NoError(t, err)
	assert.Equal(t, StateApplying, view.State)

	_, err = svc.StartImport(ctx, "owner-1", "b.csv", []byte("Product,Qty\nB,1\n"))
	assert.True(t, errors.Is(err, ErrApplyInFlight))

	_, err = svc.Apply(ctx, "owner-1")
	assert.True(t, errors.Is(err, ErrApplyInFlight))

	assert.True(t, errors.Is(svc.Reset("owner-1"), ErrApplyInFlight))

	_, err = svc.Sync(ctx, "owner-1", "erp", []SyncItem{{Name: "A", Quantity: 3}})
	assert.True(t, errors.Is(err, ErrApplyInFlight))

	// Other owners are unaffected.
	_, err = svc.StartImport(ctx, "owner-2", "c.csv", []byte("Product,Qty\nC,1\n"))
	assert.NoError(t, err)

	close(store.release)
	out := <-done
	assert.Equal(t, 1, out.UpdatedCount)

	_, err = svc.StartImport(ctx, "owner-1", "b.csv", []byte("Product,Qty\nB,1\n"))
	assert.NoError(t, err)
}

func TestService_ApplyIgnoresClientCancel(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.StartImport(context.Background(), "owner-1", "a.csv", []byte("Product,Qty\nA,1\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(ContextWithActor(context.Background(), "bob"))
	cancel()

	// The lock and limiter are acquired before the cancelled context is
	// consulted, so the apply either fails fast or runs to completion.
	out, err := svc.Apply(ctx, "owner-1")
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
		view, verr := svc.Session("owner-1")
		require.NoError(t, verr)
		assert.Equal(t, StateParsed, view.State, "failed acquire restores the state")
		return
	}
	assert.Equal(t, 1, out.CreatedCount)
}

// =============================================================================
// Sync and manual adjustment
// =============================================================================

func TestService_Sync(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "Steel Rods", "", &InventoryRecord{Quantity: 10})
	svc := newTestService(store)
	ctx := ContextWithActor(context.Background(), "sync:erp")

	out, err := svc.Sync(ctx, "owner-1", "erp", []SyncItem{
		{Name: "steel rods", Quantity: 40},
		{Name: "New Alloy", Quantity: 5, Unit: "kg"},
		{Name: "Broken", Quantity: -1},
		{Name: "Overflow", Quantity: MaxQuantity + 2},
		{Name: "STEEL RODS", Quantity: 99},
		{Name: "  ", Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.CreatedCount)
	assert.Equal(t, 1, out.UpdatedCount)
	assert.Equal(t, 0, out.ErrorCount)
	assert.Len(t, out.Warnings, 3, "negative, out-of-range and duplicate items are reported")
	_, ok := store.product("Overflow")
	assert.False(t, ok)

	qty, _ := store.quantity("Steel Rods")
	assert.Equal(t, 40, qty)

	require.Len(t, store.audit, 1)
	assert.Equal(t, ReasonAPISync, store.audit[0].Reason)
	assert.Equal(t, "sync:erp", store.audit[0].UpdatedBy)

	_, err = svc.Session("owner-1")
	assert.True(t, errors.Is(err, ErrSessionNotFound), "sync does not create a session")
}

func TestService_AdjustStock(t *testing.T) {
	store := newMemStore()
	withInv := store.seed("owner-1", "A", "", &InventoryRecord{Quantity: 3, Unit: "pcs"})
	withoutInv := store.seed("owner-1", "B", "", nil)
	svc := newTestService(store)
	ctx := ContextWithActor(context.Background(), "carol")

	entry, err := svc.AdjustStock(ctx, "owner-1", withInv, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, entry.Inventory.Quantity)
	require.Len(t, store.audit, 1)
	assert.Equal(t, ReasonManualUpdate, store.audit[0].Reason)
	assert.Equal(t, 3, store.audit[0].PreviousQuantity)
	assert.Equal(t, "carol", store.audit[0].UpdatedBy)

	entry, err = svc.AdjustStock(ctx, "owner-1", withoutInv, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultUnit, entry.Inventory.Unit)

	_, err = svc.AdjustStock(ctx, "owner-1", withInv, -1)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))

	_, err = svc.AdjustStock(ctx, "owner-1", withInv, MaxQuantity+1)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Len(t, store.audit, 1, "rejected adjustment is not audited")

	_, err = svc.AdjustStock(ctx, "owner-2", withInv, 1)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	entries, err := svc.ProductAudit(ctx, "owner-1", withInv, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// Exports and sweeping
// =============================================================================

func TestService_ExportStock(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "Steel Rods", "Metals", &InventoryRecord{Quantity: 12, Unit: "pcs"})
	store.seed("owner-1", "=HYPERLINK()", "", nil)
	svc := newTestService(store)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportStock(context.Background(), "owner-1", ExportCSV, &buf))

	assert.Equal(t,
		"Product Name,Current Stock,Unit,Category\n"+
			"Steel Rods,12,pcs,Metals\n"+
			"'=HYPERLINK(),0,units,\n",
		buf.String())
}

func TestService_SweepSessions(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.StartImport(context.Background(), "owner-1", "a.csv", []byte("Product,Qty\nA,1\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, svc.SweepSessions(time.Hour))
	_, err = svc.Session("owner-1")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.SweepSessions(-time.Second))
	_, err = svc.Session("owner-1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestService_SweepDropsIdleOwners(t *testing.T) {
	svc := newTestService(newMemStore())
	ownerCount := func() int {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.owners)
	}

	for _, owner := range []string{"owner-1", "owner-2", "owner-3"} {
		_, err := svc.Session(owner)
		require.True(t, errors.Is(err, ErrSessionNotFound))
	}
	_, err := svc.StartImport(context.Background(), "owner-4", "a.csv", []byte("Product,Qty\nA,1\n"))
	require.NoError(t, err)
	require.Equal(t, 4, ownerCount())

	assert.Equal(t, 0, svc.SweepSessions(time.Hour))
	assert.Equal(t, 1, ownerCount(), "only the owner with a staged session is kept")

	_, err = svc.Session("owner-4")
	require.NoError(t, err)

	// A dropped owner starts over cleanly.
	_, err = svc.StartImport(context.Background(), "owner-1", "b.csv", []byte("Product,Qty\nB,2\n"))
	require.NoError(t, err)
	view, err := svc.Session("owner-1")
	require.NoError(t, err)
	assert.Equal(t, StateParsed, view.State)
}

func TestService_PreviewDoesNotStage(t *testing.T) {
	store := newMemStore()
	store.seed("owner-1", "Steel Rods", "Metals", &InventoryRecord{Quantity: 1, Unit: "pcs"})
	svc := newTestService(store)

	view, err := svc.Preview(context.Background(), "owner-1", "s.csv", []byte("Product,Qty\nsteel rods,5\nBolt,2\n"))
	require.NoError(t, err)
	assert.Equal(t, StateParsed, view.State)
	assert.Len(t, view.Matched, 1)
	assert.Len(t, view.Unmatched, 1)

	_, err = svc.Session("owner-1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
