package core

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// DefaultAuditLimit caps ProductAudit when the caller passes no limit.
const DefaultAuditLimit = 100

// CurrentStock returns the owner's catalog with inventory attached.
func (s *Service) CurrentStock(ctx context.Context, ownerID string) ([]CatalogEntry, error) {
	catalog, err := s.store.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	return catalog, nil
}

// ExportStock writes the owner's current stock in format.
func (s *Service) ExportStock(ctx context.Context, ownerID string, format ExportFormat, w io.Writer) error {
	catalog, err := s.CurrentStock(ctx, ownerID)
	if err != nil {
		return err
	}
	return WriteExport(w, format, "Stock", StockHeaders, StockRows(catalog, s.opts.DefaultUnit))
}

// ExportTemplate writes a registered template profile in format.
func ExportTemplate(w io.Writer, profileKey string, format ExportFormat) error {
	p, ok := GetProfile(profileKey)
	if !ok {
		return errors.Wrapf(ErrProfileNotFound, "%q", profileKey)
	}
	return WriteExport(w, format, p.Label, p.Headers, p.SampleRows)
}

// ProductAudit returns the newest audit entries for one of the owner's products.
func (s *Service) ProductAudit(ctx context.Context, ownerID, productID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if _, err := s.store.GetProduct(ctx, ownerID, productID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAudit(ctx, productID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list audit")
	}
	return entries, nil
}
