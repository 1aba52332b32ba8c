package schema_test

import (
	"testing"

	. "github.com/bglgwyng/rx-table/schema"
)

func itemsSchema(t *testing.T) *Table {
	tbl, err := New("items", []Column{
		{Name: "id", Kind: KindNumber},
		{Name: "name", Kind: KindString},
		{Name: "price", Kind: KindNumber},
	}, []string{"id"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func TestNewRejectsUnknownPrimaryKeyColumn(t *testing.T) {
	_, err := New("items", []Column{{Name: "id", Kind: KindNumber}}, []string{"missing"})
	if err == nil {
		t.Fatalf("want error for primary key referencing unknown column")
	}
}

func TestColumnNamesAndNonKeyColumnNames(t *testing.T) {
	tbl := itemsSchema(t)
	got := tbl.ColumnNames()
	want := []string{"id", "name", "price"}
	for i, c := range want {
		if got[i] != c {
			t.Fatalf("ColumnNames: want %v got %v", want, got)
		}
	}
	nonKey := tbl.NonKeyColumnNames()
	if len(nonKey) != 2 || nonKey[0] != "name" || nonKey[1] != "price" {
		t.Fatalf("NonKeyColumnNames: got %v", nonKey)
	}
}

func TestIsPrimaryKeyAndColumn(t *testing.T) {
	tbl := itemsSchema(t)
	if !tbl.IsPrimaryKey("id") {
		t.Fatalf("want id to be primary key")
	}
	if tbl.IsPrimaryKey("name") {
		t.Fatalf("want name not to be primary key")
	}
	if _, ok := tbl.Column("price"); !ok {
		t.Fatalf("want price column to exist")
	}
	if _, ok := tbl.Column("nope"); ok {
		t.Fatalf("want nope column to not exist")
	}
}
