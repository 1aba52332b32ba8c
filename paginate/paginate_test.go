package paginate_test

import (
	"sort"
	"testing"

	"github.com/bglgwyng/rx-table/expr"
	. "github.com/bglgwyng/rx-table/paginate"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/schema"
	"github.com/bglgwyng/rx-table/sqlgen"
	"github.com/bglgwyng/rx-table/storage/memstore"
	"github.com/bglgwyng/rx-table/tuplecmp"
)

func itemsSchema(t *testing.T) *schema.Table {
	tbl, err := schema.New("items", []schema.Column{
		{Name: "id", Kind: schema.KindNumber},
		{Name: "name", Kind: schema.KindString},
	}, []string{"id"})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return tbl
}

func TestPlanRejectsOrderingThatOmitsPrimaryKey(t *testing.T) {
	tbl := itemsSchema(t)
	_, err := Plan(tbl, []rtmodel.Order{{Column: "name"}}, nil)
	if err == nil {
		t.Fatalf("want PaginationMisordered when orderBy omits the primary key")
	}
}

func TestPlanRejectsMixedDirections(t *testing.T) {
	tbl := itemsSchema(t)
	_, err := Plan(tbl, []rtmodel.Order{{Column: "name"}, {Column: "id", Desc: true}}, nil)
	if err == nil {
		t.Fatalf("want PaginationMisordered when directions disagree")
	}
}

func TestPlanBuildsSevenQueries(t *testing.T) {
	tbl := itemsSchema(t)
	bundle, err := Plan(tbl, []rtmodel.Order{{Column: "id"}}, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if bundle.LoadFirst.SQL != "SELECT * FROM (items) ORDER BY id ASC LIMIT ?" {
		t.Fatalf("LoadFirst: got %q", bundle.LoadFirst.SQL)
	}
	if bundle.LoadLast.SQL != "SELECT * FROM (items) ORDER BY id DESC LIMIT ?" {
		t.Fatalf("LoadLast: got %q", bundle.LoadLast.SQL)
	}
	wantNext := "SELECT * FROM (items) WHERE ((id) > (?)) ORDER BY id ASC LIMIT ?"
	if bundle.LoadNext.SQL != wantNext {
		t.Fatalf("LoadNext: got %q want %q", bundle.LoadNext.SQL, wantNext)
	}
	wantCountAfter := "SELECT COUNT(*) AS count FROM (items) WHERE ((id) > (?))"
	if bundle.CountAfter.SQL != wantCountAfter {
		t.Fatalf("CountAfter: got %q want %q", bundle.CountAfter.SQL, wantCountAfter)
	}
}

func TestPlanWithFilterAndsItIntoSeekPredicates(t *testing.T) {
	tbl := itemsSchema(t)
	filter := expr.BinOp{Op: expr.OpGt, L: expr.Column{Name: "id"}, R: expr.Constant{Value: 0}}
	bundle, err := Plan(tbl, []rtmodel.Order{{Column: "id"}}, filter)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := "SELECT * FROM (items) WHERE ((id > ?) AND ((id) > (?))) ORDER BY id ASC LIMIT ?"
	if bundle.LoadNext.SQL != want {
		t.Fatalf("LoadNext with filter: got %q want %q", bundle.LoadNext.SQL, want)
	}
}

func TestLoadNextExtractReadsCursorAndLimitFromCtx(t *testing.T) {
	tbl := itemsSchema(t)
	bundle, err := Plan(tbl, []rtmodel.Order{{Column: "id"}}, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	params := bundle.LoadNext.Extract(&Ctx{Cursor: rtmodel.Cursor{"id": 7}, Limit: 20})
	if len(params) != 2 || params[0] != 7 || params[1] != 20 {
		t.Fatalf("Extract: got %v", params)
	}
}

// TestLoadFirstAndLoadLastResultsAreSortedByOrderBy runs the compiled
// LoadFirst/LoadLast queries against a memstore seeded out of order and
// checks, via tuplecmp.ByTuple, that what comes back is actually sorted the
// way orderBy demands — not just that the SQL text looks right.
func TestLoadFirstAndLoadLastResultsAreSortedByOrderBy(t *testing.T) {
	tbl := itemsSchema(t)
	bundle, err := Plan(tbl, []rtmodel.Order{{Column: "id"}}, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	store := memstore.New()
	store.Seed("items", []expr.Row{
		{"id": 3, "name": "c"},
		{"id": 1, "name": "a"},
		{"id": 5, "name": "e"},
		{"id": 2, "name": "b"},
		{"id": 4, "name": "d"},
	})

	assertSortedByID := func(compiled *sqlgen.Compiled, desc bool) {
		stmt, err := store.Prepare(compiled.SQL)
		if err != nil {
			t.Fatalf("Prepare %q: %v", compiled.SQL, err)
		}
		params := compiled.Extract(&Ctx{Limit: 10})
		rows, err := stmt.All(params)
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		tuples := make([][]expr.Value, len(rows))
		for i, r := range rows {
			tuples[i] = []expr.Value{r["id"]}
		}
		by := tuplecmp.ByTuple{Tuples: tuples, Desc: []bool{desc}}
		if !sort.IsSorted(by) {
			t.Fatalf("rows not sorted by id (desc=%v): %v", desc, rows)
		}
	}

	assertSortedByID(bundle.LoadFirst, false)
	assertSortedByID(bundle.LoadLast, true)
}
