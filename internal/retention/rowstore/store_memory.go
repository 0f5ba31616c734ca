package rowstore

import (
	"context"
	"sync"
	"time"
)

// Row is one in-memory table row. Columns maps column name to value; a nil
// pointer models SQL NULL (already scrubbed).
type Row struct {
	TenantID  string
	Timestamp time.Time
	Columns   map[string]*string
}

// InMemoryStore implements Store over in-memory tables for tests and
// development. Semantics mirror the Postgres store: strict cutoff
// comparison, tenant scoping, scrub skips NULLs.
type InMemoryStore struct {
	mu     sync.Mutex
	tables map[string][]*Row
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tables: make(map[string][]*Row)}
}

// Insert seeds a row; test helper, not part of the Store interface.
func (s *InMemoryStore) Insert(table string, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := row
	if row.Columns != nil {
		copied.Columns = make(map[string]*string, len(row.Columns))
		for name, value := range row.Columns {
			if value == nil {
				copied.Columns[name] = nil
				continue
			}
			v := *value
			copied.Columns[name] = &v
		}
	}
	s.tables[table] = append(s.tables[table], &copied)
}

// CountRows returns the remaining rows in a table for a tenant.
func (s *InMemoryStore) CountRows(table, tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	for _, row := range s.tables[table] {
		if row.TenantID == tenantID {
			count++
		}
	}
	return count
}

// ColumnValue returns the column value of the i-th row for a tenant; nil
// models NULL.
func (s *InMemoryStore) ColumnValue(table, tenantID, column string, i int) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seen int
	for _, row := range s.tables[table] {
		if row.TenantID != tenantID {
			continue
		}
		if seen == i {
			return row.Columns[column]
		}
		seen++
	}
	return nil
}

func (s *InMemoryStore) DeleteWhere(_ context.Context, tenantID, table, _ string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*Row
	var deleted int64
	for _, row := range s.tables[table] {
		if row.TenantID == tenantID && row.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return deleted, nil
}

func (s *InMemoryStore) ScrubColumnWhere(_ context.Context, tenantID, table, _ string, cutoff time.Time, column string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scrubbed int64
	for _, row := range s.tables[table] {
		if row.TenantID != tenantID || !row.Timestamp.Before(cutoff) {
			continue
		}
		if row.Columns == nil || row.Columns[column] == nil {
			continue
		}
		row.Columns[column] = nil
		scrubbed++
	}
	return scrubbed, nil
}
