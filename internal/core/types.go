package core

import (
	"time"

	"github.com/google/uuid"
)

// Role is a semantic column role recognized in an uploaded stock report.
type Role string

const (
	RoleName     Role = "name"
	RoleQuantity Role = "quantity"
	RoleUnit     Role = "unit"
	RoleCategory Role = "category"
)

// roleOrder is the fixed order in which roles claim header columns.
var roleOrder = []Role{RoleName, RoleQuantity, RoleUnit, RoleCategory}

// Partition identifies which half of a staged import a row belongs to.
type Partition string

const (
	PartitionMatched   Partition = "matched"
	PartitionUnmatched Partition = "unmatched"
)

// Sheet is the decoded first worksheet (or delimited file) of an upload.
type Sheet struct {
	Headers []string
	Rows    []RawRow
}

// RawRow is one decoded data row. Values are aligned with the sheet headers
// and padded with empty strings when the source row is short.
type RawRow struct {
	Line   int // 1-based line or sheet row number in the source file
	Values []string
}

// Value returns the cell at column idx, or "" when out of range.
func (r RawRow) Value(idx int) string {
	if idx < 0 || idx >= len(r.Values) {
		return ""
	}
	return r.Values[idx]
}

// ColumnRef points at a single header column.
type ColumnRef struct {
	Label string
	Index int
}

// ColumnRoleMap binds roles to header columns. It is built once per upload
// by ResolveColumns and never changes afterwards.
type ColumnRoleMap struct {
	refs map[Role]ColumnRef
}

// Column returns the column bound to role, if any.
func (m ColumnRoleMap) Column(role Role) (ColumnRef, bool) {
	ref, ok := m.refs[role]
	return ref, ok
}

// Labels returns role to header label for every resolved role.
func (m ColumnRoleMap) Labels() map[Role]string {
	out := make(map[Role]string, len(m.refs))
	for role, ref := range m.refs {
		out[role] = ref.Label
	}
	return out
}

// ParsedStockRow is a normalized row ready for matching.
// Unit and Category are empty when the sheet carried no value for them.
type ParsedStockRow struct {
	Line        int    `json:"line"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
	Category    string `json:"category,omitempty"`
}

// RowParseWarning describes a lossy or dropped conversion during normalization.
type RowParseWarning struct {
	Line    int    `json:"line"`
	Column  string `json:"column"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// InventoryRecord is the stock level attached to a catalog entry.
type InventoryRecord struct {
	ID                string `json:"id"`
	Quantity          int    `json:"quantity"`
	Unit              string `json:"unit"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// CatalogEntry is one product from the owner's catalog, with its inventory
// record when one exists.
type CatalogEntry struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Category  string           `json:"category"`
	Inventory *InventoryRecord `json:"inventory,omitempty"`
}

// NewProduct holds the fields needed to create a catalog entry.
type NewProduct struct {
	Name        string
	Category    string
	Description string
}

// MatchResult pairs a parsed row with the catalog entry it matched, if any.
type MatchResult struct {
	Row   ParsedStockRow
	Entry *CatalogEntry
}

// MatchSet is the output of matching: matched rows and new products.
type MatchSet struct {
	Matched   []MatchResult
	Unmatched []MatchResult
}

// StagedRow is a row held in an import session awaiting review.
type StagedRow struct {
	ID        uuid.UUID      `json:"id"`
	Partition Partition      `json:"partition"`
	Row       ParsedStockRow `json:"row"`

	// ProductID and Inventory are set for matched rows. Inventory is the
	// snapshot taken when the catalog was read, used as the audit baseline.
	ProductID string           `json:"product_id,omitempty"`
	Inventory *InventoryRecord `json:"inventory,omitempty"`

	Selected        bool `json:"selected"`
	DuplicateTarget bool `json:"duplicate_target,omitempty"`
}

// SessionState is the lifecycle state of an owner's import.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateParsed    SessionState = "parsed"
	StateReviewing SessionState = "reviewing"
	StateApplying  SessionState = "applying"
)

// SessionView is a read-only copy of an import session for callers outside
// the package.
type SessionView struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         string            `json:"owner_id"`
	FileName        string            `json:"file_name"`
	State           SessionState      `json:"state"`
	CreatedAt       time.Time         `json:"created_at"`
	Columns         map[Role]string   `json:"columns"`
	DefaultCategory string            `json:"default_category"`
	Matched         []StagedRow       `json:"matched"`
	Unmatched       []StagedRow       `json:"unmatched"`
	Warnings        []RowParseWarning `json:"warnings,omitempty"`
	SelectedCount   int               `json:"selected_count"`
}

// RowAction is what the bulk applier did with a row.
type RowAction string

const (
	ActionCreated RowAction = "created"
	ActionUpdated RowAction = "updated"
	ActionFailed  RowAction = "failed"
)

// RowResult is the outcome of applying one staged row.
type RowResult struct {
	RowID       uuid.UUID `json:"row_id"`
	ProductName string    `json:"product_name"`
	Action      RowAction `json:"action"`
	Err         error     `json:"-"`
}

// ApplyOutcome summarizes a bulk apply. Per-row failure reasons stay in the
// logs; callers only see counts.
type ApplyOutcome struct {
	CreatedCount int               `json:"created_count"`
	UpdatedCount int               `json:"updated_count"`
	ErrorCount   int               `json:"error_count"`
	Warnings     []RowParseWarning `json:"warnings,omitempty"`
	Results      []RowResult       `json:"-"`
}

func (o *ApplyOutcome) add(r RowResult) {
	switch r.Action {
	case ActionCreated:
		o.CreatedCount++
	case ActionUpdated:
		o.UpdatedCount++
	default:
		o.ErrorCount++
	}
	o.Results = append(o.Results, r)
}

// Total returns the number of rows the apply attempted.
func (o ApplyOutcome) Total() int {
	return o.CreatedCount + o.UpdatedCount + o.ErrorCount
}
