package lockstore

import (
	"context"
	"fmt"
	"strings"
)

// schema holds the per-backend statements used to create and inspect the
// lock table.
type schema struct {
	create  string
	columns string
	unique  string
	// textType and timeType report whether a declared column type can hold
	// the holder/name strings and the held_since timestamp.
	textType func(string) bool
	timeType func(string) bool
}

var sqliteSchema = schema{
	create: `CREATE TABLE IF NOT EXISTS testbenches (
	name VARCHAR(255) NOT NULL UNIQUE,
	locked_by CHAR(255),
	locked_since TIMESTAMP)`,
	columns: `SELECT name, type FROM pragma_table_info('testbenches')`,
	unique: `SELECT COUNT(*) FROM pragma_index_list('testbenches') AS il
	JOIN pragma_index_info(il.name) AS ii
	WHERE il."unique" = 1 AND lower(ii.name) = 'name'`,
	// SQLite type affinity: anything mentioning CHAR, CLOB or TEXT stores text.
	textType: func(t string) bool {
		return strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT")
	},
	timeType: func(t string) bool {
		return strings.Contains(t, "TIME") || strings.Contains(t, "DATE") || strings.Contains(t, "TEXT")
	},
}

var postgresSchema = schema{
	create: `CREATE TABLE IF NOT EXISTS testbenches (
	name VARCHAR(255) NOT NULL UNIQUE,
	locked_by VARCHAR(255),
	locked_since TIMESTAMPTZ)`,
	columns: `SELECT column_name, data_type FROM information_schema.columns
	WHERE table_schema = current_schema() AND table_name = 'testbenches'`,
	unique: `SELECT COUNT(*) FROM pg_index AS i
	JOIN pg_attribute AS a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
	WHERE i.indrelid = 'testbenches'::regclass AND i.indisunique AND i.indnatts = 1 AND a.attname = 'name'`,
	textType: func(t string) bool {
		return t == "TEXT" || t == "CHARACTER VARYING" || t == "CHARACTER"
	},
	timeType: func(t string) bool {
		return strings.HasPrefix(t, "TIMESTAMP")
	},
}

// migrate creates the lock table if needed and checks that an existing one
// is usable.
func (s *Store) migrate(ctx context.Context) error {
	sc := s.driver.schema
	if _, err := s.db.ExecContext(ctx, sc.create); err != nil {
		return &MalformedError{Location: s.location, Reason: "cannot create lock table", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, sc.columns)
	if err != nil {
		return &MalformedError{Location: s.location, Reason: "cannot inspect lock table", Err: err}
	}
	defer rows.Close()
	types := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return &MalformedError{Location: s.location, Reason: "cannot inspect lock table", Err: err}
		}
		types[strings.ToLower(name)] = strings.ToUpper(typ)
	}
	if err := rows.Err(); err != nil {
		return &MalformedError{Location: s.location, Reason: "cannot inspect lock table", Err: err}
	}

	checks := []struct {
		column string
		ok     func(string) bool
	}{
		{colName, sc.textType},
		{colHolder, sc.textType},
		{colSince, sc.timeType},
	}
	for _, c := range checks {
		typ, found := types[c.column]
		if !found {
			return &MalformedError{Location: s.location, Reason: fmt.Sprintf("missing column %q", c.column)}
		}
		if !c.ok(typ) {
			return &MalformedError{Location: s.location, Reason: fmt.Sprintf("column %q has incompatible type %q", c.column, typ)}
		}
	}

	var unique int
	if err := s.db.QueryRowContext(ctx, sc.unique).Scan(&unique); err != nil {
		return &MalformedError{Location: s.location, Reason: "cannot inspect lock table indexes", Err: err}
	}
	if unique == 0 {
		return &MalformedError{Location: s.location, Reason: fmt.Sprintf("column %q is not unique", colName)}
	}
	return nil
}
