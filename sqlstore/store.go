package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jacentio/ordinal/order"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - ordered_items with (domain, position) index
const currentSchemaVersion = 1

// timeLayout is fixed width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ order.Backend = (*Store)(nil)

// Store is an order.Backend on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens a SQLite database at the given path and applies
// pragmas and migrations. It is safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// dsn attaches the pragmas to every connection the pool opens and makes
// BEGIN take the write lock immediately.
func dsn(path string) string {
	return path + "?" + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
	}, "&")
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Update reads the domain inside a write transaction, plans a mutation with
// fn and applies it before committing. Any error rolls the whole mutation back.
func (s *Store) Update(ctx context.Context, domain order.Domain, fn func([]order.Item) (order.Mutation, error)) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", domain, busy(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	items, err := queryItems(ctx, tx, domain)
	if err != nil {
		return err
	}

	m, err := fn(items)
	if err != nil {
		return err
	}
	if m.Empty() {
		return tx.Commit()
	}

	if err := s.apply(ctx, tx, domain, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", domain, busy(err))
	}
	return nil
}

// apply writes a mutation. Position updates check the position they were
// planned from and fail with ErrConcurrentModification on mismatch.
func (s *Store) apply(ctx context.Context, tx *sql.Tx, domain order.Domain, m order.Mutation) error {
	now := s.now().UTC().Format(timeLayout)

	if m.Create != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ordered_items (domain, id, position, version, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
		`,
			domain.Key(),
			m.Create.ID,
			m.Create.Position,
			m.Create.CreatedAt.UTC().Format(timeLayout),
			now,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", m.Create.ID, err)
		}
	}

	if m.Delete != "" {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM ordered_items WHERE domain = ? AND id = ?
		`, domain.Key(), m.Delete)
		if err != nil {
			return fmt.Errorf("delete %s: %w", m.Delete, err)
		}
		if err := expectOneRow(res, m.Delete); err != nil {
			return err
		}
	}

	for _, c := range m.Changes {
		res, err := tx.ExecContext(ctx, `
			UPDATE ordered_items
			SET position = ?, version = version + 1, updated_at = ?
			WHERE domain = ? AND id = ? AND position = ?
		`, c.To, now, domain.Key(), c.ID, c.From)
		if err != nil {
			return fmt.Errorf("update position of %s: %w", c.ID, err)
		}
		if err := expectOneRow(res, c.ID); err != nil {
			return err
		}
	}

	return nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", order.ErrConcurrentModification, id)
	}
	return nil
}

// Items returns the items of the domain in read order.
func (s *Store) Items(ctx context.Context, domain order.Domain) ([]order.Item, error) {
	return queryItems(ctx, s.db, domain)
}

// Domains returns every domain that holds at least one item.
func (s *Store) Domains(ctx context.Context) ([]order.Domain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT domain FROM ordered_items ORDER BY domain
	`)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	var domains []order.Domain
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		d, err := order.ParseDomain(key)
		if err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryItems(ctx context.Context, q queryer, domain order.Domain) ([]order.Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, position, version, created_at
		FROM ordered_items
		WHERE domain = ?
		ORDER BY position ASC, created_at ASC, id ASC
	`, domain.Key())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", domain, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			item      = order.Item{Domain: domain}
			createdAt string
		)
		if err := rows.Scan(&item.ID, &item.Position, &item.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// IsBusy reports whether err is SQLite refusing a lock after the busy timeout.
func IsBusy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// SQLITE_BUSY and SQLITE_LOCKED, ignoring extended codes.
		code := coded.Code() & 0xff
		return code == 5 || code == 6
	}
	return false
}

// busy reports a lock timeout as ErrConcurrentModification so callers can
// retry it like any other lost race.
func busy(err error) error {
	if IsBusy(err) {
		return fmt.Errorf("%w: %v", order.ErrConcurrentModification, err)
	}
	return err
}
