package storage_test

import (
	"sort"
	"testing"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/schema"
	. "github.com/bglgwyng/rx-table/storage"
	"github.com/bglgwyng/rx-table/storage/memstore"
)

func itemsSchema(t *testing.T) *schema.Table {
	tbl, err := schema.New("items", []schema.Column{
		{Name: "id", Kind: schema.KindNumber},
		{Name: "name", Kind: schema.KindString},
		{Name: "price", Kind: schema.KindNumber},
	}, []string{"id"})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return tbl
}

func newAdapter(t *testing.T) (*Adapter, *memstore.Store) {
	store := memstore.New()
	tbl := itemsSchema(t)
	a, err := New(store, tbl)
	if err != nil {
		t.Fatalf("New adapter: %v", err)
	}
	return a, store
}

func TestInsertFindUniqueUpdateDelete(t *testing.T) {
	a, _ := newAdapter(t)

	if err := a.Insert(rtmodel.Row{"id": 1, "name": "widget", "price": 10}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	row, ok, err := a.FindUnique(rtmodel.PrimaryKeyRecord{"id": 1})
	if err != nil || !ok {
		t.Fatalf("FindUnique: ok=%v err=%v", ok, err)
	}
	if row["name"] != "widget" {
		t.Fatalf("FindUnique: got %v", row)
	}

	if err := a.Update(rtmodel.PrimaryKeyRecord{"id": 1}, rtmodel.Row{"price": 12}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	row, _, _ = a.FindUnique(rtmodel.PrimaryKeyRecord{"id": 1})
	if row["price"] != 12 {
		t.Fatalf("Update: want price 12 got %v", row["price"])
	}
	if row["name"] != "widget" {
		t.Fatalf("Update must not touch other columns: got %v", row)
	}

	if err := a.Delete(rtmodel.PrimaryKeyRecord{"id": 1}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err = a.FindUnique(rtmodel.PrimaryKeyRecord{"id": 1})
	if err != nil {
		t.Fatalf("FindUnique after delete: %v", err)
	}
	if ok {
		t.Fatalf("want row gone after delete")
	}
}

func TestEmptyUpdateIsNoOp(t *testing.T) {
	a, store := newAdapter(t)
	if err := a.Insert(rtmodel.Row{"id": 1, "name": "widget", "price": 10}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	before := store.Snapshot("items")
	if err := a.Update(rtmodel.PrimaryKeyRecord{"id": 1}, rtmodel.Row{}); err != nil {
		t.Fatalf("Update with empty partial: %v", err)
	}
	after := store.Snapshot("items")
	if len(before) != len(after) || before[0]["price"] != after[0]["price"] {
		t.Fatalf("empty update must not change storage: before %v after %v", before, after)
	}
}

func TestUpsertInsertsThenUpdatesOnConflict(t *testing.T) {
	a, store := newAdapter(t)
	if err := a.Upsert(rtmodel.Row{"id": 1, "name": "widget", "price": 10}); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if err := a.Upsert(rtmodel.Row{"id": 1, "name": "widget", "price": 99}); err != nil {
		t.Fatalf("Upsert conflict: %v", err)
	}
	rows := store.Snapshot("items")
	if len(rows) != 1 {
		t.Fatalf("want exactly one row after upsert-on-conflict, got %d", len(rows))
	}
	if rows[0]["price"] != 99 {
		t.Fatalf("want price updated to 99, got %v", rows[0]["price"])
	}
}

func seedItems(t *testing.T, a *Adapter) {
	for i := 1; i <= 5; i++ {
		if err := a.Insert(rtmodel.Row{"id": i, "name": string(rune('a' + i - 1)), "price": i * 10}); err != nil {
			t.Fatalf("seed Insert(%d): %v", i, err)
		}
	}
}

func TestFindManyForwardPagination(t *testing.T) {
	a, _ := newAdapter(t)
	seedItems(t, a)

	page, err := a.FindMany(rtmodel.ForwardPageInit{First: 2, OrderBy: []rtmodel.Order{{Column: "id"}}})
	if err != nil {
		t.Fatalf("FindMany first page: %v", err)
	}
	if len(page.Rows) != 2 || page.Rows[0]["id"] != 1 || page.Rows[1]["id"] != 2 {
		t.Fatalf("first page: got %v", page.Rows)
	}
	if page.RowCount != 5 {
		t.Fatalf("RowCount: want 5 got %d", page.RowCount)
	}
	if page.ItemBeforeCount != 0 {
		t.Fatalf("ItemBeforeCount on first page: want 0 got %d", page.ItemBeforeCount)
	}
	if page.ItemAfterCount != 3 {
		t.Fatalf("ItemAfterCount on first page: want 3 got %d", page.ItemAfterCount)
	}

	next, err := a.FindMany(rtmodel.ForwardPageInit{First: 2, After: page.EndCursor, OrderBy: []rtmodel.Order{{Column: "id"}}})
	if err != nil {
		t.Fatalf("FindMany next page: %v", err)
	}
	if len(next.Rows) != 2 || next.Rows[0]["id"] != 3 || next.Rows[1]["id"] != 4 {
		t.Fatalf("next page: got %v", next.Rows)
	}
	if next.ItemBeforeCount != 2 {
		t.Fatalf("ItemBeforeCount on second page: want 2 got %d", next.ItemBeforeCount)
	}
}

func TestFindManySeekPastEndCollapsesToRowCount(t *testing.T) {
	a, _ := newAdapter(t)
	seedItems(t, a)

	page, err := a.FindMany(rtmodel.ForwardPageInit{First: 5, OrderBy: []rtmodel.Order{{Column: "id"}}})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	past, err := a.FindMany(rtmodel.ForwardPageInit{First: 2, After: page.EndCursor, OrderBy: []rtmodel.Order{{Column: "id"}}})
	if err != nil {
		t.Fatalf("FindMany past end: %v", err)
	}
	if len(past.Rows) != 0 {
		t.Fatalf("want no rows past the end, got %v", past.Rows)
	}
	if past.RowCount != 5 {
		t.Fatalf("RowCount past end: want 5 got %d", past.RowCount)
	}
	if past.ItemBeforeCount != past.RowCount {
		t.Fatalf("ItemBeforeCount on empty past-end window must collapse to RowCount: got %d want %d",
			past.ItemBeforeCount, past.RowCount)
	}
}

func TestFindManyBackwardPagination(t *testing.T) {
	a, _ := newAdapter(t)
	seedItems(t, a)

	page, err := a.FindMany(rtmodel.BackwardPageInit{Last: 2, OrderBy: []rtmodel.Order{{Column: "id"}}})
	if err != nil {
		t.Fatalf("FindMany last page: %v", err)
	}
	if len(page.Rows) != 2 || page.Rows[0]["id"] != 4 || page.Rows[1]["id"] != 5 {
		t.Fatalf("last page: want rows 4,5 in ascending order, got %v", page.Rows)
	}
}

func TestFindManyWithFilter(t *testing.T) {
	a, _ := newAdapter(t)
	seedItems(t, a)

	filter := expr.BinOp{Op: expr.OpGt, L: expr.Column{Name: "price"}, R: expr.Constant{Value: 20}}
	page, err := a.FindMany(rtmodel.ForwardPageInit{First: 10, OrderBy: []rtmodel.Order{{Column: "id"}}, Filter: filter})
	if err != nil {
		t.Fatalf("FindMany filtered: %v", err)
	}
	ids := make([]int, len(page.Rows))
	for i, r := range page.Rows {
		ids[i] = r["id"].(int)
	}
	sort.Ints(ids)
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 4 || ids[2] != 5 {
		t.Fatalf("filtered ids: got %v", ids)
	}
	if page.RowCount != 3 {
		t.Fatalf("filtered RowCount: want 3 got %d", page.RowCount)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	a, store := newAdapter(t)
	if err := a.Insert(rtmodel.Row{"id": 1, "name": "widget", "price": 10}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := store.Transaction(func(b Backend) error {
		scoped, err := New(b, itemsSchema(t))
		if err != nil {
			return err
		}
		if err := scoped.Insert(rtmodel.Row{"id": 2, "name": "gadget", "price": 20}); err != nil {
			return err
		}
		return errFixture
	})
	if err != errFixture {
		t.Fatalf("Transaction: want errFixture got %v", err)
	}
	rows := store.Snapshot("items")
	if len(rows) != 1 {
		t.Fatalf("rollback: want 1 row left, got %d", len(rows))
	}
}

var errFixture = fixtureErr{}

type fixtureErr struct{}

func (fixtureErr) Error() string { return "fixture error" }
