package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/hostscan/hostscan/pkg/record"
	"github.com/hostscan/hostscan/pkg/schema"
)

// SQLiteSink writes records into <warehouse>/<namespace>/<dataset>.db, table
// <table>. The truncate and all inserts share one transaction, so readers see
// either the previous content or the complete new one.
type SQLiteSink struct {
	ref  TableRef
	path string

	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	cols      []schema.Column
	written   int
	committed bool
}

// NewSQLiteSink returns a sink for ref below warehouseDir.
func NewSQLiteSink(ref TableRef, warehouseDir string) *SQLiteSink {
	return &SQLiteSink{
		ref:  ref,
		path: DatabasePath(warehouseDir, ref),
	}
}

// DatabasePath is the database file of ref.
func DatabasePath(warehouseDir string, ref TableRef) string {
	return filepath.Join(warehouseDir, ref.Namespace, ref.Dataset+".db")
}

// Path returns the database file.
func (s *SQLiteSink) Path() string { return s.path }

// Open creates the table if needed, checks its columns and truncates it.
func (s *SQLiteSink) Open(ctx context.Context, table schema.Table) error {
	if s.db != nil {
		return errors.New("sqlite sink already open")
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create warehouse directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	// One connection keeps the transaction and pragmas on the same handle.
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("configure %s: %w", s.path, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx

	s.cols = table.Columns()
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}

	quoted := schema.QuoteIdent(s.ref.Table)
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoted); err != nil {
		return fmt.Errorf("truncate %s: %w", s.ref, err)
	}

	names := make([]string, len(s.cols))
	for i, c := range s.cols {
		names[i] = schema.QuoteIdent(c.Name)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoted, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	s.stmt = stmt

	log.Debug().Str("component", "sink").Str("path", s.path).Str("table", s.ref.String()).Msg("sqlite sink opened")
	return nil
}

func (s *SQLiteSink) ensureTable(ctx context.Context, table schema.Table) error {
	existing, err := s.existingColumns(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if _, err := s.tx.ExecContext(ctx, table.SQLiteDDL(s.ref.Table)); err != nil {
			return fmt.Errorf("create table %s: %w", s.ref, err)
		}
		return nil
	}

	want := make([]string, len(s.cols))
	for i, c := range s.cols {
		want[i] = c.Name + " " + c.SQLType
	}
	if !slices.Equal(want, existing) {
		return &SchemaMismatchError{Table: s.ref.String(), Want: want, Got: existing}
	}
	return nil
}

// existingColumns returns "name TYPE" for every column of the table, empty if
// the table does not exist.
func (s *SQLiteSink) existingColumns(ctx context.Context) ([]string, error) {
	rows, err := s.tx.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", s.ref.Table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", s.ref, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("inspect table %s: %w", s.ref, err)
		}
		cols = append(cols, name+" "+strings.ToUpper(typ))
	}
	return cols, rows.Err()
}

// Write inserts one record.
func (s *SQLiteSink) Write(ctx context.Context, rec record.Record) error {
	if s.stmt == nil {
		return errors.New("sqlite sink is not open")
	}
	vals, err := rowValues(rec, s.cols)
	if err != nil {
		return err
	}
	if _, err := s.stmt.ExecContext(ctx, vals...); err != nil {
		return fmt.Errorf("insert into %s: %w", s.ref, err)
	}
	s.written++
	return nil
}

// Commit commits the transaction.
func (s *SQLiteSink) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("sqlite sink is not open")
	}
	if s.committed {
		return nil
	}
	if s.stmt != nil {
		_ = s.stmt.Close()
		s.stmt = nil
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", s.ref, err)
	}
	s.committed = true
	log.Debug().Str("component", "sink").Str("table", s.ref.String()).Int("rows", s.written).Msg("sqlite sink committed")
	return nil
}

// Close rolls back uncommitted work and closes the database.
func (s *SQLiteSink) Close() error {
	var errs []error
	if s.stmt != nil {
		errs = append(errs, s.stmt.Close())
		s.stmt = nil
	}
	if s.tx != nil && !s.committed {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
	}
	s.tx = nil
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
