package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/cockroachdb/errors"
)

// fakeStore is an in-memory core.Store for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	owners   map[string]string
	products []core.CatalogEntry
	audit    []core.AuditEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{owners: make(map[string]string)}
}

func (f *fakeStore) seed(ownerID, name string, qty int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("prod-%d", f.nextID)
	f.products = append(f.products, core.CatalogEntry{
		ID:        id,
		Name:      name,
		Category:  "Metals",
		Inventory: &core.InventoryRecord{ID: "inv-" + id, Quantity: qty, Unit: "pcs"},
	})
	f.owners[id] = ownerID
	return id
}

func (f *fakeStore) quantity(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.products {
		if p.Name == name && p.Inventory != nil {
			return p.Inventory.Quantity
		}
	}
	return -1
}

func (f *fakeStore) ListProducts(_ context.Context, ownerID string) ([]core.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []core.CatalogEntry
	for _, p := range f.products {
		if f.owners[p.ID] == ownerID {
			cp := p
			if p.Inventory != nil {
				inv := *p.Inventory
				cp.Inventory = &inv
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProduct(ctx context.Context, ownerID, productID string) (core.CatalogEntry, error) {
	catalog, _ := f.ListProducts(ctx, ownerID)
	for _, p := range catalog {
		if p.ID == productID {
			return p, nil
		}
	}
	return core.CatalogEntry{}, errors.Wrapf(core.ErrProductNotFound, "%s", productID)
}

func (f *fakeStore) CreateProduct(_ context.Context, ownerID string, p core.NewProduct) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("prod-%d", f.nextID)
	f.products = append(f.products, core.CatalogEntry{ID: id, Name: p.Name, Category: p.Category})
	f.owners[id] = ownerID
	return id, nil
}

func (f *fakeStore) CreateInventory(_ context.Context, productID string, quantity int, unit string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.products {
		if f.products[i].ID == productID {
			f.products[i].Inventory = &core.InventoryRecord{ID: "inv-" + productID, Quantity: quantity, Unit: unit}
			return "inv-" + productID, nil
		}
	}
	return "", errors.Wrapf(core.ErrProductNotFound, "%s", productID)
}

func (f *fakeStore) UpdateInventory(_ context.Context, inventoryID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.products {
		if inv := f.products[i].Inventory; inv != nil && inv.ID == inventoryID {
			inv.Quantity = quantity
			return nil
		}
	}
	return errors.Wrapf(core.ErrInventoryNotFound, "%s", inventoryID)
}

func (f *fakeStore) AppendAudit(_ context.Context, entry core.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.audit = append(f.audit, entry)
	return nil
}

func (f *fakeStore) ListAudit(_ context.Context, productID string, limit int) ([]core.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []core.AuditEntry
	for i := len(f.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if f.audit[i].ProductID == productID {
			out = append(out, f.audit[i])
		}
	}
	return out, nil
}
