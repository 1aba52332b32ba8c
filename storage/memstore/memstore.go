package memstore

import (
	"sync"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/storage"
)

// Store is a storage.Backend holding every table's rows as a plain slice
// behind a mutex. It exists for tests; it has no durability, no indexes and
// no real transaction isolation.
type Store struct {
	mu     sync.Mutex
	tables map[string][]expr.Row
}

var _ storage.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string][]expr.Row)}
}

// Seed replaces a table's contents, for test fixture setup.
func (s *Store) Seed(table string, rows []expr.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := make([]expr.Row, len(rows))
	for i, r := range rows {
		cloned[i] = r.Clone()
	}
	s.tables[table] = cloned
}

// Snapshot returns a deep copy of a table's current rows, for assertions.
func (s *Store) Snapshot(table string) []expr.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[table]
	out := make([]expr.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Prepare parses sql (package sqlgen's dialect) into an executable plan.
func (s *Store) Prepare(sql string) (storage.Statement, error) {
	plan, err := parseStatement(sql)
	if err != nil {
		return nil, err
	}
	return &preparedPlan{store: s, plan: plan}, nil
}

// Transaction snapshots every table, runs fn against s, and restores the
// snapshot if fn returns an error. This mirrors the commit-or-rollback
// contract of a real transactional backend without needing one.
func (s *Store) Transaction(fn func(storage.Backend) error) error {
	s.mu.Lock()
	snapshot := make(map[string][]expr.Row, len(s.tables))
	for name, rows := range s.tables {
		cloned := make([]expr.Row, len(rows))
		for i, r := range rows {
			cloned[i] = r.Clone()
		}
		snapshot[name] = cloned
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.tables = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) rowsOf(table string) []expr.Row {
	return s.tables[table]
}

func (s *Store) setRowsOf(table string, rows []expr.Row) {
	s.tables[table] = rows
}

func rowMatches(row expr.Row, cols []string, idx []int, params []expr.Value) bool {
	for i, c := range cols {
		v, ok := row[c]
		if !ok || !valueEqual(v, params[idx[i]]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b expr.Value) bool {
	eq, err := expr.Compare(a, b)
	if err == nil {
		return eq == 0
	}
	return a == b
}
