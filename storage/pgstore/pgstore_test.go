package pgstore

import "testing"

func TestRewritePlaceholdersNumbersInOrder(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM (items)", "SELECT * FROM (items)"},
		{"SELECT * FROM (items) WHERE (id = ?)", "SELECT * FROM (items) WHERE (id = $1)"},
		{
			"SELECT * FROM (items) WHERE ((id > ?) AND ((id) > (?))) ORDER BY id ASC LIMIT ?",
			"SELECT * FROM (items) WHERE ((id > $1) AND ((id) > ($2))) ORDER BY id ASC LIMIT $3",
		},
		{
			"INSERT INTO items (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = ?",
			"INSERT INTO items (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = $3",
		},
	}
	for _, test := range tests {
		got := rewritePlaceholders(test.sql)
		if got != test.want {
			t.Errorf("rewritePlaceholders(%q) = %q, want %q", test.sql, got, test.want)
		}
	}
}
