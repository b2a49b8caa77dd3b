package persistent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// Database drivers, blank-imported for side-effect registration.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLConfig configures SQLStore's connection.
type SQLConfig struct {
	// Driver is one of "sqlite", "postgres", "mysql".
	Driver string
	// DSN is the driver-specific data source name / connection string.
	DSN string

	MaxConns int
	MaxIdle  int
}

// SetDefaults fills unset fields with the store's defaults.
func (c *SQLConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = 5
	}
}

// Validate checks that the configuration names a supported dialect.
func (c *SQLConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres", "mysql":
		return nil
	default:
		return fmt.Errorf("persistent: unsupported driver %q (supported: sqlite, postgres, mysql)", c.Driver)
	}
}

// SQLStore implements Store over database/sql, supporting SQLite,
// PostgreSQL, and MySQL via the same schema and a per-dialect placeholder
// switch.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createRecordsTableSQLite = `
CREATE TABLE IF NOT EXISTS persistent_records (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255),
    session_id VARCHAR(255),
    content TEXT NOT NULL,
    importance REAL NOT NULL,
    tags TEXT,
    source_entry_ids TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_session_id ON persistent_records(session_id);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON persistent_records(created_at);
`

const createRecordsTablePostgres = `
CREATE TABLE IF NOT EXISTS persistent_records (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255),
    session_id VARCHAR(255),
    content TEXT NOT NULL,
    importance DOUBLE PRECISION NOT NULL,
    tags TEXT,
    source_entry_ids TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_session_id ON persistent_records(session_id);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON persistent_records(created_at);
`

const createRecordsTableMySQL = `
CREATE TABLE IF NOT EXISTS persistent_records (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255),
    session_id VARCHAR(255),
    content TEXT NOT NULL,
    importance DOUBLE NOT NULL,
    tags TEXT,
    source_entry_ids TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX idx_records_session_id ON persistent_records(session_id);
CREATE INDEX idx_records_created_at ON persistent_records(created_at);
`

// NewSQLStore opens a connection per cfg and initializes the schema.
func NewSQLStore(cfg SQLConfig) (*SQLStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driverName := cfg.Driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("persistent: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistent: ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: cfg.Driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStoreFromDB wraps an already-open *sql.DB (e.g. shared across
// services), initializing the schema for dialect.
func NewSQLStoreFromDB(db *sql.DB, dialect string) (*SQLStore, error) {
	cfg := SQLConfig{Driver: dialect}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &SQLStore{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	var schema string
	switch s.dialect {
	case "postgres":
		schema = createRecordsTablePostgres
	case "mysql":
		schema = createRecordsTableMySQL
	default:
		schema = createRecordsTableSQLite
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("persistent: init schema: %w", err)
	}
	return nil
}

// placeholder returns the n-th (1-indexed) bind placeholder for the
// store's dialect.
func (s *SQLStore) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Save inserts record, assigning an id if one wasn't supplied.
func (s *SQLStore) Save(ctx context.Context, record *Record) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return "", fmt.Errorf("persistent: marshal tags: %w", err)
	}
	sourceIDs, err := json.Marshal(record.SourceEntryIDs)
	if err != nil {
		return "", fmt.Errorf("persistent: marshal source_entry_ids: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO persistent_records (id, user_id, session_id, content, importance, tags, source_entry_ids, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8))

	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.SessionID, record.Content,
		record.Importance, string(tags), string(sourceIDs), record.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("persistent: save record: %w", err)
	}
	return record.ID, nil
}

// Search returns records whose content contains query as a substring,
// most recent first.
func (s *SQLStore) Search(ctx context.Context, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	like := "%" + strings.ReplaceAll(query, "%", "\\%") + "%"
	sqlQuery := fmt.Sprintf(`
SELECT id, user_id, session_id, content, importance, tags, source_entry_ids, created_at
FROM persistent_records
WHERE content LIKE %s
ORDER BY created_at DESC
LIMIT %s
`, s.placeholder(1), s.placeholder(2))

	rows, err := s.db.QueryContext(ctx, sqlQuery, like, limit)
	if err != nil {
		return nil, fmt.Errorf("persistent: search: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		var r Record
		var userID, sessionID, tags, sourceIDs sql.NullString
		if err := rows.Scan(&r.ID, &userID, &sessionID, &r.Content, &r.Importance, &tags, &sourceIDs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("persistent: scan record: %w", err)
		}
		r.UserID = userID.String
		r.SessionID = sessionID.String
		if tags.Valid && tags.String != "" {
			_ = json.Unmarshal([]byte(tags.String), &r.Tags)
		}
		if sourceIDs.Valid && sourceIDs.String != "" {
			_ = json.Unmarshal([]byte(sourceIDs.String), &r.SourceEntryIDs)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persistent: iterate records: %w", err)
	}
	return out, nil
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
