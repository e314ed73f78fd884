package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/haasonsaas/agentcore/internal/history"
)

// Dialect selects the SQL flavor and the database/sql driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLConfig holds configuration for a database-backed store.
type SQLConfig struct {
	Driver          Dialect       `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// DefaultSQLConfig returns default configuration for a local SQLite file.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		Driver:          DialectSQLite,
		DSN:             "agentcore.db",
		MaxOpenConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// SQLStore implements Store over database/sql. Each session is one row
// holding the JSON-encoded snapshot.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens the database, verifies the connection and creates the
// snapshot table if needed.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case DialectSQLite, DialectPostgres:
	case "":
		cfg.Driver = DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported session store driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("dsn is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	db, err := sql.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewSQLStore(db, cfg.Driver)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database. Call Migrate before first use on an
// empty database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// DB exposes the underlying database connection.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the snapshot table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id TEXT PRIMARY KEY,
			last_seq BIGINT NOT NULL,
			messages INTEGER NOT NULL,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create session_snapshots: %w", err)
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, sessionID string, snap history.Snapshot) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO session_snapshots (session_id, last_seq, messages, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			last_seq = excluded.last_seq,
			messages = excluded.messages,
			data = excluded.data,
			updated_at = excluded.updated_at
	`), sessionID, snap.LastSeq, len(snap.Messages), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, sessionID string) (history.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT data FROM session_snapshots WHERE session_id = ?
	`), sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var snap history.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return history.Snapshot{}, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return snap, nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM session_snapshots WHERE session_id = ?
	`), sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
