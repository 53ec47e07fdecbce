package core

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// SyncItem is one stock level pushed by an external system.
type SyncItem struct {
	Name     string `json:"product_name" validate:"required,max=255"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit" validate:"max=50"`
	Category string `json:"category" validate:"max=100"`
}

// Sync applies a pushed batch of stock levels without a review step. Items
// with a negative or out-of-range quantity are dropped with a warning. It runs
// the same matching and apply fold as an upload and records audit entries
// with ReasonAPISync. It does not touch the owner's interactive session.
func (s *Service) Sync(ctx context.Context, ownerID, source string, items []SyncItem) (ApplyOutcome, error) {
	rows := make([]ParsedStockRow, 0, len(items))
	var warnings []RowParseWarning
	for i, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		if item.Quantity < 0 {
			warnings = append(warnings, RowParseWarning{
				Line:    i + 1,
				Column:  "quantity",
				Value:   strconv.Itoa(item.Quantity),
				Message: "negative quantity, item dropped",
			})
			continue
		}
		if item.Quantity > MaxQuantity {
			warnings = append(warnings, RowParseWarning{
				Line:    i + 1,
				Column:  "quantity",
				Value:   strconv.Itoa(item.Quantity),
				Message: "quantity out of range, item dropped",
			})
			continue
		}
		rows = append(rows, ParsedStockRow{
			Line:        i + 1,
			ProductName: name,
			Quantity:    item.Quantity,
			Unit:        strings.TrimSpace(item.Unit),
			Category:    strings.TrimSpace(item.Category),
		})
	}

	release, err := s.acquire(ctx, ownerID)
	if err != nil {
		return ApplyOutcome{}, err
	}
	defer release()

	catalog, err := s.store.ListProducts(ctx, ownerID)
	if err != nil {
		return ApplyOutcome{}, errors.Wrap(err, "load catalog")
	}

	sess := NewImportSession(ownerID, source, ColumnRoleMap{}, MatchRows(rows, catalog), warnings, s.opts.DefaultCategory)
	for _, row := range append(sess.Matched(), sess.Unmatched()...) {
		if row.DuplicateTarget {
			sess.warnings = append(sess.warnings, RowParseWarning{
				Line:    row.Row.Line,
				Column:  "name",
				Value:   row.Row.ProductName,
				Message: "duplicate product in payload, item skipped",
			})
		}
	}

	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ApplyTimeout)
	defer cancel()

	outcome := s.applier.Apply(applyCtx, sess, ActorFromContext(ctx), ReasonAPISync)
	slog.InfoContext(ctx, "stock sync applied",
		"owner_id", ownerID,
		"source", source,
		"items", len(items),
		"created", outcome.CreatedCount,
		"updated", outcome.UpdatedCount,
		"errors", outcome.ErrorCount,
	)
	return outcome, nil
}

// AdjustStock sets one product's quantity by hand and records a
// manual_update audit entry. Products without inventory get a new record.
func (s *Service) AdjustStock(ctx context.Context, ownerID, productID string, quantity int) (CatalogEntry, error) {
	if quantity < 0 || quantity > MaxQuantity {
		return CatalogEntry{}, errors.Wrapf(ErrInvalidQuantity, "got %d", quantity)
	}

	release, err := s.acquire(ctx, ownerID)
	if err != nil {
		return CatalogEntry{}, err
	}
	defer release()

	entry, err := s.store.GetProduct(ctx, ownerID, productID)
	if err != nil {
		return CatalogEntry{}, err
	}

	if entry.Inventory == nil {
		unit := s.opts.DefaultUnit
		invID, err := s.store.CreateInventory(ctx, productID, quantity, unit)
		if err != nil {
			return CatalogEntry{}, errors.Wrap(err, "create inventory")
		}
		entry.Inventory = &InventoryRecord{ID: invID, Quantity: quantity, Unit: unit}
		return entry, nil
	}

	err = s.applier.writeStock(ctx, productID, *entry.Inventory, quantity, ActorFromContext(ctx), ReasonManualUpdate)
	if err != nil {
		return CatalogEntry{}, err
	}

	slog.InfoContext(ctx, "stock adjusted",
		"owner_id", ownerID,
		"product_id", productID,
		"previous", entry.Inventory.Quantity,
		"quantity", quantity,
	)
	entry.Inventory.Quantity = quantity
	return entry, nil
}
