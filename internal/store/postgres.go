package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/closure-watch/internal/scan"
)

const (
	createSnapshotsTable = `CREATE TABLE IF NOT EXISTS scan_snapshots (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	scanned_at TIMESTAMPTZ NOT NULL
)`
	upsertSnapshot = `INSERT INTO scan_snapshots (key, payload, scanned_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, scanned_at = EXCLUDED.scanned_at`
	selectSnapshot = `SELECT payload FROM scan_snapshots WHERE key = $1`
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres keeps the latest scan in a single upserted row.
type Postgres struct {
	db dbtx
}

// NewPostgres wraps a pgx pool or connection.
func NewPostgres(db dbtx) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the snapshot table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("store: create scan_snapshots: %w", err)
	}
	return nil
}

// SaveLatest overwrites the stored snapshot.
func (p *Postgres) SaveLatest(ctx context.Context, result scan.Result) error {
	raw, err := encode(result)
	if err != nil {
		return err
	}
	if _, err := p.db.Exec(ctx, upsertSnapshot, LatestKey, raw, result.Timestamp); err != nil {
		return fmt.Errorf("store: upsert snapshot: %w", err)
	}
	return nil
}

// Latest loads the stored snapshot. The boolean is false when no scan has been saved yet.
func (p *Postgres) Latest(ctx context.Context) (scan.Result, bool, error) {
	var raw []byte
	if err := p.db.QueryRow(ctx, selectSnapshot, LatestKey).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scan.Result{}, false, nil
		}
		return scan.Result{}, false, fmt.Errorf("store: select snapshot: %w", err)
	}
	result, err := decode(raw)
	if err != nil {
		return scan.Result{}, false, err
	}
	return result, true, nil
}
