package rxtable_test

import (
	"testing"

	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/schema"
	. "github.com/bglgwyng/rx-table/rxtable"
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

func newTable(t *testing.T) *Table {
	tbl, err := New(memstore.New(), itemsSchema(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func TestFindUniqueTracksInsertUpdateDelete(t *testing.T) {
	tbl := newTable(t)
	if err := tbl.Insert(rtmodel.Row{"id": 1, "name": "widget", "price": 10}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	dyn, err := tbl.FindUnique(rtmodel.PrimaryKeyRecord{"id": 1})
	if err != nil {
		t.Fatalf("FindUnique: %v", err)
	}
	var events []rtmodel.EventKind
	_, err = dyn.Subscribe(func(ev rtmodel.TableEvent) { events = append(events, ev.Kind) })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := tbl.Update(rtmodel.PrimaryKeyRecord{"id": 1}, rtmodel.Row{"price": 20}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	row, err := dyn.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if row["price"] != 20 || row["name"] != "widget" {
		t.Fatalf("want merged row after update, got %v", row)
	}

	if err := tbl.Delete(rtmodel.PrimaryKeyRecord{"id": 1}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	row, err = dyn.Read()
	if err != nil {
		t.Fatalf("Read after delete: %v", err)
	}
	if row != nil {
		t.Fatalf("want nil snapshot after delete, got %v", row)
	}

	if len(events) != 2 || events[0] != rtmodel.EventUpdate || events[1] != rtmodel.EventDelete {
		t.Fatalf("want [Update, Delete] delivered, got %v", events)
	}
}

func TestFindUniqueOfUnrelatedKeyDoesNotFire(t *testing.T) {
	tbl := newTable(t)
	if err := tbl.Insert(rtmodel.Row{"id": 1, "name": "a", "price": 1}); err != nil {
		t.Fatalf("Insert 1: %v", err)
	}
	if err := tbl.Insert(rtmodel.Row{"id": 2, "name": "b", "price": 2}); err != nil {
		t.Fatalf("Insert 2: %v", err)
	}

	dyn, err := tbl.FindUnique(rtmodel.PrimaryKeyRecord{"id": 1})
	if err != nil {
		t.Fatalf("FindUnique: %v", err)
	}
	fired := false
	if _, err := dyn.Subscribe(func(rtmodel.TableEvent) { fired = true }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := tbl.Update(rtmodel.PrimaryKeyRecord{"id": 2}, rtmodel.Row{"price": 99}); err != nil {
		t.Fatalf("Update id 2: %v", err)
	}
	if fired {
		t.Fatalf("a mutation to a different key must not notify this key's Dynamic")
	}
}

func TestFindManyTracksInsertAndDeletePassingFilter(t *testing.T) {
	tbl := newTable(t)
	for i := 1; i <= 3; i++ {
		if err := tbl.Insert(rtmodel.Row{"id": i, "name": "n", "price": i * 10}); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
	}

	dyn, err := tbl.FindMany(rtmodel.ForwardPageInit{First: 10, OrderBy: []rtmodel.Order{{Column: "id"}}})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	var deltas []rtmodel.PageDelta
	if _, err := dyn.Subscribe(func(d rtmodel.PageDelta) { deltas = append(deltas, d) }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := tbl.Insert(rtmodel.Row{"id": 4, "name": "n", "price": 40}); err != nil {
		t.Fatalf("Insert id 4: %v", err)
	}
	if len(deltas) != 1 || deltas[0].Op != rtmodel.DeltaAdd || deltas[0].Row["id"] != 4 {
		t.Fatalf("want one DeltaAdd for id 4, got %v", deltas)
	}

	if err := tbl.Delete(rtmodel.PrimaryKeyRecord{"id": 2}); err != nil {
		t.Fatalf("Delete id 2: %v", err)
	}
	if len(deltas) != 2 || deltas[1].Op != rtmodel.DeltaRemove || deltas[1].Key["id"] != 2 {
		t.Fatalf("want a DeltaRemove for id 2, got %v", deltas)
	}
}

func TestMutateManyPublishesOneBatchOnCommit(t *testing.T) {
	tbl := newTable(t)
	var batches int
	tbl.OnBatch(func(Batch) { batches++ })

	err := tbl.MutateMany([]Mutation{
		{Kind: rtmodel.EventInsert, Row: rtmodel.Row{"id": 1, "name": "a", "price": 1}},
		{Kind: rtmodel.EventInsert, Row: rtmodel.Row{"id": 2, "name": "b", "price": 2}},
	})
	if err != nil {
		t.Fatalf("MutateMany: %v", err)
	}
	if batches != 1 {
		t.Fatalf("want exactly one batch for the whole transaction, got %d", batches)
	}

	dyn, err := tbl.FindUnique(rtmodel.PrimaryKeyRecord{"id": 2})
	if err != nil {
		t.Fatalf("FindUnique: %v", err)
	}
	snap, err := dyn.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if snap["name"] != "b" {
		t.Fatalf("want row 2 visible after MutateMany commit, got %v", snap)
	}
}
