package core

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ImportSession holds the staged rows of one upload while the owner reviews
// them. Rows live in a single arena in input order; the matched and unmatched
// views are derived from it. An ImportSession is not safe for concurrent use;
// Service serializes access per owner.
type ImportSession struct {
	ID        uuid.UUID
	OwnerID   string
	FileName  string
	CreatedAt time.Time

	columns         ColumnRoleMap
	rows            []*StagedRow
	byID            map[uuid.UUID]*StagedRow
	defaultCategory string
	warnings        []RowParseWarning
}

// NewImportSession stages a match set. Every row starts selected, except
// matched rows that target a product already claimed by an earlier row in
// the same upload; those are flagged DuplicateTarget and start deselected.
func NewImportSession(ownerID, fileName string, cols ColumnRoleMap, set MatchSet, warnings []RowParseWarning, defaultCategory string) *ImportSession {
	s := &ImportSession{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		FileName:        fileName,
		CreatedAt:       time.Now(),
		columns:         cols,
		byID:            make(map[uuid.UUID]*StagedRow, len(set.Matched)+len(set.Unmatched)),
		defaultCategory: defaultCategory,
		warnings:        warnings,
	}

	claimed := make(map[string]bool, len(set.Matched))
	for _, m := range set.Matched {
		row := &StagedRow{
			ID:        uuid.New(),
			Partition: PartitionMatched,
			Row:       m.Row,
			ProductID: m.Entry.ID,
			Selected:  true,
		}
		if m.Entry.Inventory != nil {
			inv := *m.Entry.Inventory
			row.Inventory = &inv
		}
		if claimed[m.Entry.ID] {
			row.DuplicateTarget = true
			row.Selected = false
		}
		claimed[m.Entry.ID] = true
		s.push(row)
	}

	// Two new rows with the same name would create two products.
	newNames := make(map[string]bool, len(set.Unmatched))
	for _, m := range set.Unmatched {
		row := &StagedRow{
			ID:        uuid.New(),
			Partition: PartitionUnmatched,
			Row:       m.Row,
			Selected:  true,
		}
		key := MatchKey(m.Row.ProductName)
		if newNames[key] {
			row.DuplicateTarget = true
			row.Selected = false
		}
		newNames[key] = true
		s.push(row)
	}

	return s
}

func (s *ImportSession) push(row *StagedRow) {
	s.rows = append(s.rows, row)
	s.byID[row.ID] = row
}

// Columns returns the column binding used to parse the upload.
func (s *ImportSession) Columns() ColumnRoleMap { return s.columns }

// Warnings returns the normalization warnings raised while parsing.
func (s *ImportSession) Warnings() []RowParseWarning { return s.warnings }

// DefaultCategory is applied to new products whose row has no category.
func (s *ImportSession) DefaultCategory() string { return s.defaultCategory }

// SetDefaultCategory replaces the default category for new products.
func (s *ImportSession) SetDefaultCategory(category string) {
	s.defaultCategory = category
}

// ToggleRow flips the selection of the row with the given id.
func (s *ImportSession) ToggleRow(id uuid.UUID) (bool, error) {
	row, ok := s.byID[id]
	if !ok {
		return false, errors.Wrapf(ErrRowNotFound, "row %s", id)
	}
	row.Selected = !row.Selected
	return row.Selected, nil
}

// ToggleRowAt flips the selection of the index-th row within a partition.
func (s *ImportSession) ToggleRowAt(partition Partition, index int) (bool, error) {
	rows := s.partition(partition)
	if index < 0 || index >= len(rows) {
		return false, errors.Wrapf(ErrRowNotFound, "%s row %d", partition, index)
	}
	rows[index].Selected = !rows[index].Selected
	return rows[index].Selected, nil
}

// Matched returns the matched rows in input order.
func (s *ImportSession) Matched() []*StagedRow { return s.partition(PartitionMatched) }

// Unmatched returns the new-product rows in input order.
func (s *ImportSession) Unmatched() []*StagedRow { return s.partition(PartitionUnmatched) }

func (s *ImportSession) partition(p Partition) []*StagedRow {
	var out []*StagedRow
	for _, row := range s.rows {
		if row.Partition == p {
			out = append(out, row)
		}
	}
	return out
}

// SelectedCount returns how many rows an apply would attempt.
func (s *ImportSession) SelectedCount() int {
	n := 0
	for _, row := range s.rows {
		if row.Selected {
			n++
		}
	}
	return n
}

// View copies the session for callers outside the package.
func (s *ImportSession) View(state SessionState) SessionView {
	v := SessionView{
		ID:              s.ID,
		OwnerID:         s.OwnerID,
		FileName:        s.FileName,
		State:           state,
		CreatedAt:       s.CreatedAt,
		Columns:         s.columns.Labels(),
		DefaultCategory: s.defaultCategory,
		Warnings:        append([]RowParseWarning(nil), s.warnings...),
		SelectedCount:   s.SelectedCount(),
	}
	for _, row := range s.rows {
		cp := *row
		if row.Inventory != nil {
			inv := *row.Inventory
			cp.Inventory = &inv
		}
		if row.Partition == PartitionMatched {
			v.Matched = append(v.Matched, cp)
		} else {
			v.Unmatched = append(v.Unmatched, cp)
		}
	}
	return v
}
