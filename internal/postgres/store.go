package postgres

import (
	"context"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	_ core.Store         = (*Store)(nil)
	_ core.RowTransactor = (*Store)(nil)
)

// Store implements core.Store on PostgreSQL.
type Store struct {
	db DBTX
}

// NewStore creates a Store over db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const listProductsSQL = `
SELECT p.id::text, p.name, p.category,
       i.id::text, i.quantity, i.unit, i.low_stock_threshold
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
WHERE p.owner_id = $1
ORDER BY p.created_at, p.id`

// ListProducts returns the owner's catalog oldest first.
func (s *Store) ListProducts(ctx context.Context, ownerID string) ([]core.CatalogEntry, error) {
	rows, err := s.db.Query(ctx, listProductsSQL, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	var catalog []core.CatalogEntry
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}
	return catalog, nil
}

const getProductSQL = `
SELECT p.id::text, p.name, p.category,
       i.id::text, i.quantity, i.unit, i.low_stock_threshold
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
WHERE p.owner_id = $1 AND p.id = $2::uuid`

// GetProduct returns one of the owner's products.
func (s *Store) GetProduct(ctx context.Context, ownerID, productID string) (core.CatalogEntry, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return core.CatalogEntry{}, errors.Wrapf(core.ErrProductNotFound, "%q", productID)
	}

	entry, err := scanCatalogEntry(s.db.QueryRow(ctx, getProductSQL, ownerID, productID))
	if err != nil {
		return core.CatalogEntry{}, errors.Wrapf(translate(err, core.ErrProductNotFound), "get product %s", productID)
	}
	return entry, nil
}

func scanCatalogEntry(row pgx.Row) (core.CatalogEntry, error) {
	var (
		entry     core.CatalogEntry
		category  pgtype.Text
		invID     pgtype.Text
		quantity  pgtype.Int4
		unit      pgtype.Text
		threshold pgtype.Int4
	)
	if err := row.Scan(&entry.ID, &entry.Name, &category, &invID, &quantity, &unit, &threshold); err != nil {
		return core.CatalogEntry{}, errors.Wrap(err, "scan product")
	}

	entry.Category = fromPgText(category)
	if invID.Valid {
		entry.Inventory = &core.InventoryRecord{
			ID:                invID.String,
			Quantity:          fromPgInt4(quantity),
			Unit:              fromPgText(unit),
			LowStockThreshold: fromPgInt4(threshold),
		}
	}
	return entry, nil
}

const createProductSQL = `
INSERT INTO products (id, owner_id, name, category, description)
VALUES ($1::uuid, $2, $3, $4, $5)`

// CreateProduct inserts a catalog entry and returns its id.
func (s *Store) CreateProduct(ctx context.Context, ownerID string, p core.NewProduct) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, createProductSQL, id, ownerID, p.Name, toPgText(p.Category), toPgText(p.Description))
	if err != nil {
		return "", errors.Wrapf(translate(err, core.ErrProductNotFound), "insert product %q", p.Name)
	}
	return id, nil
}

const createInventorySQL = `
INSERT INTO inventory (id, product_id, quantity, unit)
VALUES ($1::uuid, $2::uuid, $3, $4)`

// CreateInventory inserts the inventory record for a product.
func (s *Store) CreateInventory(ctx context.Context, productID string, quantity int, unit string) (string, error) {
	qty, err := toQuantity(quantity)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.Exec(ctx, createInventorySQL, id, productID, qty, unit)
	if err != nil {
		return "", errors.Wrapf(translate(err, core.ErrProductNotFound), "insert inventory for product %s", productID)
	}
	return id, nil
}

const updateInventorySQL = `
UPDATE inventory SET quantity = $2, updated_at = now()
WHERE id = $1::uuid`

// UpdateInventory sets the quantity of an inventory record.
func (s *Store) UpdateInventory(ctx context.Context, inventoryID string, quantity int) error {
	qty, err := toQuantity(quantity)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, updateInventorySQL, inventoryID, qty)
	if err != nil {
		return errors.Wrapf(translate(err, core.ErrInventoryNotFound), "update inventory %s", inventoryID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(core.ErrInventoryNotFound, "update inventory %s", inventoryID)
	}
	return nil
}

const appendAuditSQL = `
INSERT INTO inventory_audit_log
    (id, product_id, previous_quantity, new_quantity, updated_by, reason, ip_address, user_agent, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)`

// AppendAudit inserts one audit entry.
func (s *Store) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	prev, err := toQuantity(e.PreviousQuantity)
	if err != nil {
		return errors.Wrap(err, "previous quantity")
	}
	next, err := toQuantity(e.NewQuantity)
	if err != nil {
		return errors.Wrap(err, "new quantity")
	}
	_, err = s.db.Exec(ctx, appendAuditSQL,
		e.ID.String(),
		e.ProductID,
		prev,
		next,
		e.UpdatedBy,
		string(e.Reason),
		toPgText(e.IPAddress),
		toPgText(e.UserAgent),
		e.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(translate(err, core.ErrProductNotFound), "insert audit for product %s", e.ProductID)
	}
	return nil
}

const listAuditSQL = `
SELECT id::text, product_id::text, previous_quantity, new_quantity, updated_by, reason,
       ip_address, user_agent, created_at
FROM inventory_audit_log
WHERE product_id = $1::uuid
ORDER BY created_at DESC, id
LIMIT $2`

// ListAudit returns the newest audit entries for a product.
func (s *Store) ListAudit(ctx context.Context, productID string, limit int) ([]core.AuditEntry, error) {
	rows, err := s.db.Query(ctx, listAuditSQL, productID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query audit log")
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var (
			e          core.AuditEntry
			id         string
			reason     string
			prev, next int32
			ip, agent  pgtype.Text
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &e.ProductID, &prev, &next, &e.UpdatedBy, &reason, &ip, &agent, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan audit entry")
		}
		e.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrapf(err, "audit id %q", id)
		}
		e.PreviousQuantity = int(prev)
		e.NewQuantity = int(next)
		e.Reason = core.AuditReason(reason)
		e.IPAddress = fromPgText(ip)
		e.UserAgent = fromPgText(agent)
		e.CreatedAt = createdAt.Time
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate audit log")
	}
	return entries, nil
}

// InRowTx runs fn against a transaction-scoped Store when the handle can
// begin transactions, and against s otherwise.
func (s *Store) InRowTx(ctx context.Context, fn func(core.Store) error) error {
	b, ok := s.db.(Beginner)
	if !ok {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, b, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}
