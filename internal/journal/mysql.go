package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig describes the journal database connection.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLRecorder persists transfer entries in a MySQL table.
type MySQLRecorder struct {
	db *sql.DB
}

// NewMySQLRecorder opens the database, applies pool limits and brings the
// schema up to date through the embedded migrations.
func NewMySQLRecorder(ctx context.Context, cfg MySQLConfig) (*MySQLRecorder, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("journal mysql dsn cannot be empty")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to journal database: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLRecorder{db: db}, nil
}

// Record inserts one transfer entry.
func (r *MySQLRecorder) Record(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfers (id, run_id, round, from_agent, to_agent, amount_raw, decimals, signature, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RunID, entry.Round, entry.FromAgent, entry.ToAgent,
		entry.AmountRaw, entry.Decimals, entry.Signature, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer entry: %w", err)
	}
	return nil
}

// ListLatest returns up to limit entries, newest first.
func (r *MySQLRecorder) ListLatest(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, round, from_agent, to_agent, amount_raw, decimals, signature, created_at
         FROM transfers ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfer entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Round, &entry.FromAgent,
			&entry.ToAgent, &entry.AmountRaw, &entry.Decimals, &entry.Signature, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer entries: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (r *MySQLRecorder) Close() error {
	return r.db.Close()
}
