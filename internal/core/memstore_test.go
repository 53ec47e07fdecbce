package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
)

// memStore is an in-memory Store for tests. Products keep insertion order.
type memStore struct {
	mu        sync.Mutex
	nextID    int
	owners    map[string]string // product id -> owner id
	products  []CatalogEntry
	audit     []AuditEntry
	failNames map[string]error // CreateProduct fails for these names
	failInv   error
	failAudit error
	calls     []string
}

func newMemStore() *memStore {
	return &memStore{
		owners:    make(map[string]string),
		failNames: make(map[string]error),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// seed adds a product with optional inventory and returns its id.
func (m *memStore) seed(ownerID, name, category string, inv *InventoryRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id("prod")
	if inv != nil && inv.ID == "" {
		inv.ID = m.id("inv")
	}
	m.products = append(m.products, CatalogEntry{ID: id, Name: name, Category: category, Inventory: inv})
	m.owners[id] = ownerID
	return id
}

func (m *memStore) ListProducts(_ context.Context, ownerID string) ([]CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CatalogEntry
	for _, p := range m.products {
		if m.owners[p.ID] != ownerID {
			continue
		}
		cp := p
		if p.Inventory != nil {
			inv := *p.Inventory
			cp.Inventory = &inv
		}
		out = append(out, cp)
	}
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, ownerID, productID string) (CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.ID == productID && m.owners[p.ID] == ownerID {
			cp := p
			if p.Inventory != nil {
				inv := *p.Inventory
				cp.Inventory = &inv
			}
			return cp, nil
		}
	}
	return CatalogEntry{}, errors.Wrapf(ErrProductNotFound, "%s", productID)
}

func (m *memStore) CreateProduct(_ context.Context, ownerID string, p NewProduct) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "create_product:"+p.Name)
	if err, ok := m.failNames[p.Name]; ok {
		return "", err
	}
	id := m.id("prod")
	m.products = append(m.products, CatalogEntry{ID: id, Name: p.Name, Category: p.Category})
	m.owners[id] = ownerID
	return id, nil
}

func (m *memStore) CreateInventory(_ context.Context, productID string, quantity int, unit string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "create_inventory:"+productID)
	if m.failInv != nil {
		return "", m.failInv
	}
	for i := range m.products {
		if m.products[i].ID == productID {
			id := m.id("inv")
			m.products[i].Inventory = &InventoryRecord{ID: id, Quantity: quantity, Unit: unit}
			return id, nil
		}
	}
	return "", errors.Wrapf(ErrProductNotFound, "%s", productID)
}

func (m *memStore) UpdateInventory(_ context.Context, inventoryID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "update_inventory:"+inventoryID)
	for i := range m.products {
		if inv := m.products[i].Inventory; inv != nil && inv.ID == inventoryID {
			inv.Quantity = quantity
			return nil
		}
	}
	return errors.Wrapf(ErrInventoryNotFound, "%s", inventoryID)
}

func (m *memStore) AppendAudit(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAudit != nil {
		return m.failAudit
	}
	m.audit = append(m.audit, entry)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, productID string, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []AuditEntry
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audit[i].ProductID == productID {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}

func (m *memStore) quantity(name string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.Name == name && p.Inventory != nil {
			return p.Inventory.Quantity, true
		}
	}
	return 0, false
}

func (m *memStore) product(name string) (CatalogEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.Name == name {
			return p, true
		}
	}
	return CatalogEntry{}, false
}

// txMemStore adds row transactions to memStore. When fn fails the catalog
// and audit log are restored to their state before the call.
type txMemStore struct {
	*memStore
}

func (tx txMemStore) InRowTx(_ context.Context, fn func(Store) error) error {
	tx.mu.Lock()
	products := make([]CatalogEntry, len(tx.products))
	for i, p := range tx.products {
		products[i] = p
		if p.Inventory != nil {
			inv := *p.Inventory
			products[i].Inventory = &inv
		}
	}
	owners := make(map[string]string, len(tx.owners))
	for k, v := range tx.owners {
		owners[k] = v
	}
	auditLen := len(tx.audit)
	tx.mu.Unlock()

	if err := fn(tx.memStore); err != nil {
		tx.mu.Lock()
		tx.products = products
		tx.owners = owners
		tx.audit = tx.audit[:auditLen]
		tx.mu.Unlock()
		return err
	}
	return nil
}
