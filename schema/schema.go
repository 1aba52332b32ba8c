// Package schema declares the immutable table configuration consumed by
// every other layer: table name, columns and their scalar kinds, and the
// ordered primary key.
package schema

import "github.com/bglgwyng/rx-table/rterr"

// Kind is the scalar type of a column.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column describes one column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Table is the immutable schema of one table: its name, its columns in
// declaration order, and its ordered primary key.
//
// Invariant: every entry of PrimaryKey names a column present in Columns.
// Order within PrimaryKey and Columns is significant — it drives lexicographic
// cursor order and the column order emitted by the SQL compiler.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string

	byName map[string]Column
}

// New validates and returns a Table schema, or an error if the primary key
// references an unknown column.
func New(name string, columns []Column, primaryKey []string) (*Table, error) {
	t := &Table{
		Name:       name,
		Columns:    columns,
		PrimaryKey: primaryKey,
		byName:     make(map[string]Column, len(columns)),
	}
	for _, c := range columns {
		t.byName[c.Name] = c
	}
	for _, pk := range primaryKey {
		if _, ok := t.byName[pk]; !ok {
			return nil, rterr.NewSchemaViolation(name, pk)
		}
	}
	return t, nil
}

// Column returns the column declaration for name and whether it exists.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// ColumnNames returns the declared column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// NonKeyColumnNames returns the column names that are not part of the
// primary key, in declaration order.
func (t *Table) NonKeyColumnNames() []string {
	pk := make(map[string]struct{}, len(t.PrimaryKey))
	for _, k := range t.PrimaryKey {
		pk[k] = struct{}{}
	}
	var out []string
	for _, c := range t.Columns {
		if _, ok := pk[c.Name]; !ok {
			out = append(out, c.Name)
		}
	}
	return out
}

// IsPrimaryKey reports whether name is one of the primary key columns.
func (t *Table) IsPrimaryKey(name string) bool {
	for _, k := range t.PrimaryKey {
		if k == name {
			return true
		}
	}
	return false
}
