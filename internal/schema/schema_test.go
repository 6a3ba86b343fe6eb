package schema

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T, stmts ...string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.sqlite")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func TestLoad(t *testing.T) {
	db := openTestDB(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, full_name VARCHAR(80), bio TEXT, age INTEGER)`,
		`CREATE TABLE messages (id INTEGER, lang TEXT, body CLOB, user_id INTEGER REFERENCES users(id), PRIMARY KEY (lang, id))`,
		`CREATE INDEX messages_user ON messages(user_id)`,
		`CREATE VIEW adults AS SELECT * FROM users WHERE age >= 18`,
	)
	s, err := Load(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tables) != 2 || len(s.Indexes) != 1 || len(s.Views) != 1 {
		t.Fatalf("unexpected schema: %d tables, %d indexes, %d views", len(s.Tables), len(s.Indexes), len(s.Views))
	}
	users := s.Tables["users"]
	if got, want := users.TextColumns(), []string{"full_name", "bio"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("text columns: got %v want %v", got, want)
	}
	msgs := s.Tables["messages"]
	if got, want := msgs.PrimaryKeys, []string{"lang", "id"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("primary keys: got %v want %v", got, want)
	}
	if len(msgs.ForeignKeys) != 1 || msgs.ForeignKeys[0].Table != "users" {
		t.Fatalf("foreign keys: %+v", msgs.ForeignKeys)
	}
	if got, want := TableOrder(s), []string{"users", "messages"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order: got %v want %v", got, want)
	}
	if _, ok := users.Column("FULL_NAME"); !ok {
		t.Fatal("column lookup should ignore case")
	}
}

func TestIncluded(t *testing.T) {
	cases := []struct {
		include, exclude []string
		name             string
		want             bool
	}{
		{nil, nil, "users", true},
		{[]string{"user*"}, nil, "users", true},
		{[]string{"user*"}, nil, "orders", false},
		{nil, []string{"tmp_*"}, "tmp_cache", false},
		{[]string{"*"}, []string{"users"}, "users", false},
	}
	for _, c := range cases {
		if got := Included(c.include, c.exclude, c.name); got != c.want {
			t.Errorf("Included(%v, %v, %s) = %t, want %t", c.include, c.exclude, c.name, got, c.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("got %s", got)
	}
}
