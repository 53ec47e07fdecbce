package core

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// AuditReason records why a stock level changed.
type AuditReason string

const (
	ReasonManualUpdate AuditReason = "manual_update"
	ReasonBulkImport   AuditReason = "bulk_import"
	ReasonAPISync      AuditReason = "api_sync"
)

// AuditEntry is one stock change. Entries are append-only.
type AuditEntry struct {
	ID               uuid.UUID   `json:"id"`
	ProductID        string      `json:"product_id"`
	PreviousQuantity int         `json:"previous_quantity"`
	NewQuantity      int         `json:"new_quantity"`
	UpdatedBy        string      `json:"updated_by"`
	Reason           AuditReason `json:"reason"`
	IPAddress        string      `json:"ip_address,omitempty"`
	UserAgent        string      `json:"user_agent,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// AuditSink persists audit entries.
type AuditSink interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// AuditLogger builds audit entries and hands them to a sink. Request
// metadata (IP, user agent) is taken from the context when present.
type AuditLogger struct {
	sink AuditSink
	now  func() time.Time
}

// NewAuditLogger creates an AuditLogger writing to sink.
func NewAuditLogger(sink AuditSink) *AuditLogger {
	return &AuditLogger{sink: sink, now: time.Now}
}

// Record appends one entry. The previous quantity is the value observed when
// the catalog snapshot was taken, so repeated applies of the same value
// produce entries with equal previous and new quantities.
func (a *AuditLogger) Record(ctx context.Context, productID string, previous, next int, actor string, reason AuditReason) (AuditEntry, error) {
	entry := AuditEntry{
		ID:               uuid.New(),
		ProductID:        productID,
		PreviousQuantity: previous,
		NewQuantity:      next,
		UpdatedBy:        actor,
		Reason:           reason,
		IPAddress:        GetIPAddressFromContext(ctx),
		UserAgent:        GetUserAgentFromContext(ctx),
		CreatedAt:        a.now().UTC(),
	}
	if err := a.sink.AppendAudit(ctx, entry); err != nil {
		return AuditEntry{}, errors.Wrapf(err, "append audit for product %s", productID)
	}
	return entry, nil
}
