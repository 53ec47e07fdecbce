package core

import "context"

// Store is the data-access boundary for catalog, inventory and audit data.
// Each call is independent; a failure in one never rolls back another.
type Store interface {
	AuditSink

	// ListProducts returns the owner's catalog in a stable order with any
	// inventory record attached.
	ListProducts(ctx context.Context, ownerID string) ([]CatalogEntry, error)
	GetProduct(ctx context.Context, ownerID, productID string) (CatalogEntry, error)
	CreateProduct(ctx context.Context, ownerID string, p NewProduct) (string, error)
	CreateInventory(ctx context.Context, productID string, quantity int, unit string) (string, error)
	UpdateInventory(ctx context.Context, inventoryID string, quantity int) error
	ListAudit(ctx context.Context, productID string, limit int) ([]AuditEntry, error)
}

// RowTransactor is implemented by stores that can run one row's writes
// atomically. The bulk applier uses it so a new product and its inventory
// record, or a matched row's update and its audit entry, commit together.
type RowTransactor interface {
	InRowTx(ctx context.Context, fn func(Store) error) error
}
