// Package schema reads the tables, columns and keys of a SQLite database.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"sort"
	"strings"
)

type Schema struct {
	Tables  map[string]*Table
	Views   []SQLItem
	Indexes []SQLItem
}

type SQLItem struct {
	Name  string
	Table string
	SQL   string
}

type Table struct {
	Name         string
	SQL          string
	Columns      []Column
	PrimaryKeys  []string
	ForeignKeys  []ForeignKey
	WithoutRowID bool
}

type Column struct {
	Name    string
	Type    string
	NotNull bool
	PK      bool
}

type ForeignKey struct {
	Table string
	From  string
	To    string
}

// IsText reports whether the column has TEXT affinity under SQLite's type
// name rules. Columns declared without a type hold anything, text included.
func (c Column) IsText() bool {
	t := strings.ToUpper(c.Type)
	if t == "" {
		return true
	}
	return strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT")
}

// Column returns the named column. Lookup is case-insensitive like SQLite's.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// TextColumns lists the text columns that are not part of the primary key.
func (t *Table) TextColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.PK || !c.IsText() {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

func Load(ctx context.Context, db *sql.DB) (*Schema, error) {
	s := &Schema{Tables: map[string]*Table{}}
	rows, err := db.QueryContext(ctx, `SELECT name, type, tbl_name, sql FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite_master: %w", err)
	}
	var tables []*Table
	for rows.Next() {
		var name, typ, tblName string
		var sqlText sql.NullString
		if err := rows.Scan(&name, &typ, &tblName, &sqlText); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sqlite_master: %w", err)
		}
		if !sqlText.Valid {
			continue
		}
		switch typ {
		case "table":
			tables = append(tables, &Table{
				Name:         name,
				SQL:          sqlText.String,
				WithoutRowID: strings.Contains(strings.ToUpper(sqlText.String), "WITHOUT ROWID"),
			})
		case "index":
			s.Indexes = append(s.Indexes, SQLItem{Name: name, Table: tblName, SQL: sqlText.String})
		case "view":
			s.Views = append(s.Views, SQLItem{Name: name, Table: tblName, SQL: sqlText.String})
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate sqlite_master: %w", err)
	}
	for _, tbl := range tables {
		if err := loadTableInfo(ctx, db, tbl); err != nil {
			return nil, err
		}
		if err := loadForeignKeys(ctx, db, tbl); err != nil {
			return nil, err
		}
		s.Tables[tbl.Name] = tbl
	}
	return s, nil
}

func loadTableInfo(ctx context.Context, db *sql.DB, tbl *Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(tbl.Name)))
	if err != nil {
		return fmt.Errorf("table_info %s: %w", tbl.Name, err)
	}
	defer rows.Close()
	pkPos := map[string]int{}
	for rows.Next() {
		var cid, notnull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan table_info %s: %w", tbl.Name, err)
		}
		tbl.Columns = append(tbl.Columns, Column{Name: name, Type: colType, NotNull: notnull == 1, PK: pk > 0})
		if pk > 0 {
			pkPos[name] = pk
			tbl.PrimaryKeys = append(tbl.PrimaryKeys, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate table_info %s: %w", tbl.Name, err)
	}
	sort.SliceStable(tbl.PrimaryKeys, func(i, j int) bool {
		return pkPos[tbl.PrimaryKeys[i]] < pkPos[tbl.PrimaryKeys[j]]
	})
	return nil
}

func loadForeignKeys(ctx context.Context, db *sql.DB, tbl *Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", QuoteIdent(tbl.Name)))
	if err != nil {
		return fmt.Errorf("foreign_key_list %s: %w", tbl.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, seq int
		var fk ForeignKey
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &fk.Table, &fk.From, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("scan foreign_key_list %s: %w", tbl.Name, err)
		}
		fk.To = to.String
		tbl.ForeignKeys = append(tbl.ForeignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign_key_list %s: %w", tbl.Name, err)
	}
	return nil
}

func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// MatchAny reports whether name matches one of the glob patterns.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Included applies include and exclude glob lists to a table name. An empty
// include list includes everything.
func Included(include, exclude []string, name string) bool {
	if len(include) > 0 && !MatchAny(include, name) {
		return false
	}
	return !MatchAny(exclude, name)
}

// TableOrder sorts tables so that referenced tables come before the tables
// that reference them. Ties and cycles fall back to name order.
func TableOrder(s *Schema) []string {
	dependents := map[string][]string{}
	indeg := map[string]int{}
	for name := range s.Tables {
		indeg[name] = 0
	}
	for name, tbl := range s.Tables {
		for _, fk := range tbl.ForeignKeys {
			if _, ok := s.Tables[fk.Table]; !ok || fk.Table == name {
				continue
			}
			dependents[fk.Table] = append(dependents[fk.Table], name)
			indeg[name]++
		}
	}
	var queue []string
	for name, deg := range indeg {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)
	order := make([]string, 0, len(s.Tables))
	placed := map[string]bool{}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		placed[n] = true
		for _, dep := range dependents[n] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}
	if len(order) < len(s.Tables) {
		var rest []string
		for name := range s.Tables {
			if !placed[name] {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		order = append(order, rest...)
	}
	return order
}
