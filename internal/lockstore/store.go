// Package lockstore is the durable source of truth for testbench locks.
//
// Each testbench address has exactly one row in the testbenches table,
// holding the lock holder (empty when free) and the time the current state
// began. The table is shared by every client; the store performs no
// compare-and-swap, so the last writer wins.
//
// Two backends are supported behind database/sql: a SQLite file (usually on
// a network share) through modernc.org/sqlite, and PostgreSQL through the
// pgx stdlib driver. Queries are built with goqu for the matching dialect.
package lockstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres" // register the postgres dialect
	goqusqlite "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx driver
	"go.opentelemetry.io/otel/attribute"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/logging"
)

const (
	table     = "testbenches"
	colName   = "name"
	colHolder = "locked_by"
	colSince  = "locked_since"
)

// driver ties a database/sql driver to its goqu dialect and schema checks.
type driver struct {
	name    string
	sqlName string
	dialect goqu.DialectWrapper
	schema  schema
}

// sqliteDialect is goqu's sqlite3 dialect with the insert-ignore clause
// completed; v8 renders it without INTO.
const sqliteDialect = "taco-sqlite3"

func registerSQLiteDialect() goqu.DialectWrapper {
	opts := goqusqlite.DialectOptions()
	opts.InsertIgnoreClause = []byte("INSERT OR IGNORE INTO")
	goqu.RegisterDialect(sqliteDialect, opts)
	return goqu.Dialect(sqliteDialect)
}

var (
	sqliteDriver = driver{
		name:    "sqlite",
		sqlName: "sqlite",
		dialect: registerSQLiteDialect(),
		schema:  sqliteSchema,
	}
	postgresDriver = driver{
		name:    "postgres",
		sqlName: "pgx",
		dialect: goqu.Dialect("postgres"),
		schema:  postgresSchema,
	}
)

// Store is a handle to a bound lock table.
type Store struct {
	db       *sql.DB
	driver   driver
	location string
	clock    clock.Clock
	logger   *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for held_since timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger for store events.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent("lockstore") }
}

// Open binds the lock table at location, creating it if absent.
//
// A location with a postgres:// or postgresql:// scheme is a PostgreSQL
// connection string; anything else is a SQLite file path, created if it
// does not exist. An existing table with incompatible columns, or a file
// that is not a database, yields a *MalformedError.
func Open(ctx context.Context, location string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("lockstore: empty store location")
	}
	drv, dsn, display, err := resolve(location)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(drv.sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("lockstore: open %q: %w", display, err)
	}
	if drv.name == sqliteDriver.name {
		// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
		// between connections of the same process.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:       db,
		driver:   drv,
		location: display,
		clock:    clock.Real(),
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if notADatabase(err) {
			return nil, &MalformedError{Location: display, Reason: "not a database", Err: err}
		}
		return nil, fmt.Errorf("lockstore: connect to %q: %w", display, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("lock store bound", "location", display, "driver", drv.name)
	return s, nil
}

// resolve picks the driver for location and returns the DSN to open and a
// printable form of the location with credentials removed.
func resolve(location string) (driver, string, string, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		return postgresDriver, location, u.Redacted(), nil
	}

	path, err := filepath.Abs(location)
	if err != nil {
		return driver{}, "", "", fmt.Errorf("lockstore: resolve %q: %w", location, err)
	}
	u := url.URL{
		Scheme: "file",
		Opaque: filepath.ToSlash(path),
		RawQuery: url.Values{
			"_pragma":      {"busy_timeout(5000)"},
			"_time_format": {"sqlite"},
		}.Encode(),
	}
	return sqliteDriver, u.String(), path, nil
}

// notADatabase reports whether err is SQLite rejecting the file itself.
func notADatabase(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlitelib.SQLITE_NOTADB, sqlitelib.SQLITE_CORRUPT:
		return true
	}
	return false
}

// Location returns the bound location, with any password redacted.
func (s *Store) Location() string { return s.location }

// Driver returns "sqlite" or "postgres".
func (s *Store) Driver() string { return s.driver.name }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// EnsureResource creates a free lock record for address if none exists. An
// existing record is left untouched.
func (s *Store) EnsureResource(ctx context.Context, address string) (err error) {
	ctx, done := s.observe(ctx, "ensure_resource", attribute.String("taco.address", address))
	defer done(&err)

	query, args, err := ensureQuery(s.driver.dialect, address, s.clock.Now())
	if err != nil {
		return fmt.Errorf("lockstore: build ensure query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		// Conflicts are absorbed by the statement, so any failure here means
		// the table does not accept our rows.
		return &MalformedError{Location: s.location, Reason: "cannot insert lock record", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("lock record created", "address", address)
	}
	return nil
}

// ensureQuery builds the insert that creates a free record for address and
// does nothing if one exists.
func ensureQuery(d goqu.DialectWrapper, address string, now time.Time) (string, []any, error) {
	return d.Insert(table).
		Rows(goqu.Record{colName: address, colHolder: "", colSince: now}).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
}

// GetLock reads the record for address.
func (s *Store) GetLock(ctx context.Context, address string) (rec Record, err error) {
	ctx, done := s.observe(ctx, "get_lock", attribute.String("taco.address", address))
	defer done(&err)

	query, args, err := s.driver.dialect.From(table).
		Select(colHolder, colSince).
		Where(goqu.C(colName).Eq(address)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return Record{}, fmt.Errorf("lockstore: build get query: %w", err)
	}

	var (
		holder sql.NullString
		since  heldSince
	)
	switch err := s.db.QueryRowContext(ctx, query, args...).Scan(&holder, &since); {
	case errors.Is(err, sql.ErrNoRows):
		return Record{}, &NotFoundError{Addresses: []string{address}, Location: s.location}
	case err != nil:
		return Record{}, fmt.Errorf("lockstore: get lock %q: %w", address, err)
	}
	return Record{Holder: holder.String, HeldSince: since.t}, nil
}

// GetLocks reads the records for addresses in a single round trip. With no
// addresses, every record in the store is returned.
//
// If any requested address is missing, the result is nil and the
// *NotFoundError lists all of the missing addresses.
func (s *Store) GetLocks(ctx context.Context, addresses []string) (recs map[string]Record, err error) {
	want := slices.Compact(slices.Sorted(slices.Values(addresses)))
	ctx, done := s.observe(ctx, "get_locks", attribute.Int("taco.addresses", len(want)))
	defer done(&err)

	ds := s.driver.dialect.From(table).
		Select(colName, colHolder, colSince).
		Order(goqu.C(colName).Asc())
	if len(want) > 0 {
		ds = ds.Where(goqu.C(colName).In(want))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("lockstore: build batch query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lockstore: get locks: %w", err)
	}
	defer rows.Close()

	recs = make(map[string]Record, len(want))
	for rows.Next() {
		var (
			name   string
			holder sql.NullString
			since  heldSince
		)
		if err := rows.Scan(&name, &holder, &since); err != nil {
			return nil, fmt.Errorf("lockstore: scan lock record: %w", err)
		}
		recs[name] = Record{Holder: holder.String, HeldSince: since.t}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lockstore: get locks: %w", err)
	}

	var missing []string
	for _, a := range want {
		if _, ok := recs[a]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Addresses: missing, Location: s.location}
	}
	return recs, nil
}

// SetLock overwrites the holder of address and stamps it with the current
// time. It never creates a record.
func (s *Store) SetLock(ctx context.Context, address, holder string) (err error) {
	ctx, done := s.observe(ctx, "set_lock",
		attribute.String("taco.address", address),
		attribute.Bool("taco.release", holder == ""),
	)
	defer done(&err)

	query, args, err := s.driver.dialect.Update(table).
		Set(goqu.Record{colHolder: holder, colSince: s.clock.Now()}).
		Where(goqu.C(colName).Eq(address)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("lockstore: build set query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("lockstore: set lock %q: %w", address, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lockstore: set lock %q: %w", address, err)
	}
	if n == 0 {
		return &NotFoundError{Addresses: []string{address}, Location: s.location}
	}
	return nil
}

// Addresses lists every address that has a lock record.
func (s *Store) Addresses(ctx context.Context) (out []string, err error) {
	ctx, done := s.observe(ctx, "addresses")
	defer done(&err)

	query, args, err := s.driver.dialect.From(table).
		Select(colName).
		Order(goqu.C(colName).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("lockstore: build addresses query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lockstore: list addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("lockstore: scan address: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
