package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/ports"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	seenTable = "seen_labels"
	runsTable = "monitor_runs"
	runRowID  = 1

	insertChunk = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS seen_labels (
		ttb_id  TEXT PRIMARY KEY,
		seen_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS monitor_runs (
		id       INTEGER PRIMARY KEY,
		last_run TEXT NOT NULL
	)`,
}

// SQLStore keeps seen-label state in SQLite or Postgres. Ids are only ever
// added; the state never shrinks.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
	logger  *slog.Logger
}

var _ ports.SeenStore = (*SQLStore)(nil)

// OpenSQLStore connects with driver (DriverSQLite or DriverPostgres) and
// creates the tables when missing.
func OpenSQLStore(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported state driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	store := NewSQLStore(db, driver, logger)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wires an open database.
func NewSQLStore(db *sql.DB, driver string, logger *slog.Logger) *SQLStore {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLStore{db: db, builder: builder, now: time.Now, logger: logger}
}

// Migrate creates the state tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Load returns the stored state, or an empty one on any error.
func (s *SQLStore) Load(ctx context.Context) domain.SeenLabels {
	state, err := s.load(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("cannot read state, starting empty", "error", err)
		}
		return emptyState()
	}
	return state
}

func (s *SQLStore) load(ctx context.Context) (domain.SeenLabels, error) {
	state := emptyState()

	query, args, err := s.builder.
		Select("last_run").
		From(runsTable).
		Where(sq.Eq{"id": runRowID}).
		ToSql()
	if err != nil {
		return state, fmt.Errorf("build last run query: %w", err)
	}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&state.LastRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return state, fmt.Errorf("query last run: %w", err)
	}

	query, args, err = s.builder.
		Select("ttb_id").
		From(seenTable).
		OrderBy("seen_at", "ttb_id").
		ToSql()
	if err != nil {
		return state, fmt.Errorf("build ids query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return state, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return emptyState(), fmt.Errorf("scan id: %w", err)
		}
		state.TTBIDs = append(state.TTBIDs, id)
	}
	if err := rows.Err(); err != nil {
		return emptyState(), fmt.Errorf("rows iteration: %w", err)
	}

	return state, nil
}

// Save stamps the current time onto state, inserts unknown ids and records the
// run time in one transaction.
func (s *SQLStore) Save(ctx context.Context, state *domain.SeenLabels) error {
	state.Touch(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(state.TTBIDs); start += insertChunk {
		end := min(start+insertChunk, len(state.TTBIDs))

		insert := s.builder.Insert(seenTable).Columns("ttb_id", "seen_at")
		for _, id := range state.TTBIDs[start:end] {
			insert = insert.Values(id, state.LastRun)
		}
		query, args, err := insert.Suffix("ON CONFLICT (ttb_id) DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("build insert ids: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert ids: %w", err)
		}
	}

	query, args, err := s.builder.
		Insert(runsTable).
		Columns("id", "last_run").
		Values(runRowID, state.LastRun).
		Suffix("ON CONFLICT (id) DO UPDATE SET last_run = EXCLUDED.last_run").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
