package memstore

import (
	"sort"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/storage"
)

type preparedPlan struct {
	store *Store
	plan  interface{}
}

var _ storage.Statement = (*preparedPlan)(nil)

func (p *preparedPlan) Get(params []expr.Value) (expr.Row, bool, error) {
	rows, err := p.All(params)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (p *preparedPlan) All(params []expr.Value) ([]expr.Row, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	switch plan := p.plan.(type) {
	case *selectPlan:
		return execSelect(p.store, plan, params)
	case *countPlan:
		return execCount(p.store, plan, params)
	default:
		return nil, nil
	}
}

func (p *preparedPlan) Run(params []expr.Value) (storage.RunResult, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	switch plan := p.plan.(type) {
	case *insertPlan:
		return execInsert(p.store, plan, params)
	case *updatePlan:
		return execUpdate(p.store, plan, params)
	case *deletePlan:
		return execDelete(p.store, plan, params)
	default:
		return storage.RunResult{}, nil
	}
}

func execSelect(s *Store, plan *selectPlan, params []expr.Value) ([]expr.Row, error) {
	var out []expr.Row
	for _, row := range s.rowsOf(plan.Table) {
		if plan.Where != nil {
			ok, err := expr.EvalBool(plan.Where, row, params)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, row.Clone())
	}
	if len(plan.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range plan.OrderBy {
				c, err := expr.Compare(out[i][o.Column], out[j][o.Column])
				if err != nil || c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if plan.HasLim && len(params) > 0 {
		if limit, ok := params[len(params)-1].(int); ok && limit >= 0 && limit < len(out) {
			out = out[:limit]
		}
	}
	return out, nil
}

func execCount(s *Store, plan *countPlan, params []expr.Value) ([]expr.Row, error) {
	n := 0
	for _, row := range s.rowsOf(plan.Table) {
		if plan.Where != nil {
			ok, err := expr.EvalBool(plan.Where, row, params)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		n++
	}
	return []expr.Row{{"count": n}}, nil
}

func execInsert(s *Store, plan *insertPlan, params []expr.Value) (storage.RunResult, error) {
	row := expr.Row{}
	for i, c := range plan.Cols {
		row[c] = params[plan.ValIdx[i]]
	}
	if plan.OnConflict != nil {
		rows := s.rowsOf(plan.Table)
		conflictIdx := identityIdx(plan.OnConflict.Columns, plan.Cols, plan.ValIdx)
		for i, existing := range rows {
			if rowMatches(existing, plan.OnConflict.Columns, conflictIdx, params) {
				for j, c := range plan.OnConflict.SetCols {
					existing[c] = params[plan.OnConflict.SetIdx[j]]
				}
				rows[i] = existing
				s.setRowsOf(plan.Table, rows)
				return storage.RunResult{RowsAffected: 1}, nil
			}
		}
	}
	s.setRowsOf(plan.Table, append(s.rowsOf(plan.Table), row))
	return storage.RunResult{RowsAffected: 1}, nil
}

// identityIdx resolves the conflict columns' param indices by looking them
// up among the insert's own column/value pairs, since ON CONFLICT always
// names columns that are also part of the inserted row.
func identityIdx(conflictCols, insertCols []string, valIdx []int) []int {
	idx := make([]int, len(conflictCols))
	for i, cc := range conflictCols {
		for j, ic := range insertCols {
			if ic == cc {
				idx[i] = valIdx[j]
				break
			}
		}
	}
	return idx
}

func execUpdate(s *Store, plan *updatePlan, params []expr.Value) (storage.RunResult, error) {
	rows := s.rowsOf(plan.Table)
	for i, row := range rows {
		if rowMatches(row, plan.WhereCols, plan.WhereIdx, params) {
			for j, c := range plan.SetCols {
				row[c] = params[plan.SetIdx[j]]
			}
			rows[i] = row
			s.setRowsOf(plan.Table, rows)
			return storage.RunResult{RowsAffected: 1}, nil
		}
	}
	return storage.RunResult{RowsAffected: 0}, nil
}

func execDelete(s *Store, plan *deletePlan, params []expr.Value) (storage.RunResult, error) {
	rows := s.rowsOf(plan.Table)
	for i, row := range rows {
		if rowMatches(row, plan.WhereCols, plan.WhereIdx, params) {
			s.setRowsOf(plan.Table, append(rows[:i], rows[i+1:]...))
			return storage.RunResult{RowsAffected: 1}, nil
		}
	}
	return storage.RunResult{RowsAffected: 0}, nil
}
