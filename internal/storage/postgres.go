/**
 * PostgreSQL archive for extraction runs
 *
 * Optional. Keeps every run and its records queryable after the JSON
 * document has been handed off. One row per run, one row per record.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/adverant/nexus/frame-ocr/internal/pipeline"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS frameocr_runs (
		id              UUID PRIMARY KEY,
		source          TEXT NOT NULL,
		output_path     TEXT NOT NULL,
		frame_rate      DOUBLE PRECISION NOT NULL,
		frame_interval  INTEGER NOT NULL,
		frames_decoded  INTEGER NOT NULL,
		record_count    INTEGER NOT NULL,
		has_ingame_time BOOLEAN NOT NULL,
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS frameocr_records (
		run_id        UUID NOT NULL REFERENCES frameocr_runs(id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		frame_index   INTEGER NOT NULL,
		timestamp_sec NUMERIC(12,2) NOT NULL,
		text          TEXT NOT NULL,
		ingame_time   TEXT,
		PRIMARY KEY (run_id, seq)
	);
`

// PostgresClient handles archive database operations
type PostgresClient struct {
	db *sql.DB
}

// ArchiveTx is an uncommitted archive of one run.
type ArchiveTx struct {
	tx    *sql.Tx
	runID string
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A run holds at most one archive transaction at a time.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the archive tables if they do not exist
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// BeginArchive inserts seq inside a transaction and returns it uncommitted.
func (p *PostgresClient) BeginArchive(ctx context.Context, seq *pipeline.ResultSequence, outputPath string) (ArchiveTransaction, error) {
	if seq.RunID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := insertRun(ctx, tx, seq, outputPath); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := copyRecords(ctx, tx, seq); err != nil {
		tx.Rollback()
		return nil, err
	}

	return &ArchiveTx{tx: tx, runID: seq.RunID}, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, seq *pipeline.ResultSequence, outputPath string) error {
	query := `
		INSERT INTO frameocr_runs (
			id, source, output_path, frame_rate, frame_interval,
			frames_decoded, record_count, has_ingame_time, started_at, finished_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.ExecContext(ctx, query,
		seq.RunID,
		sanitizeText(seq.Source),
		sanitizeText(outputPath),
		seq.FrameRate,
		seq.FrameInterval,
		seq.FramesDecoded,
		len(seq.Records),
		seq.HasIngameTime,
		seq.StartedAt,
		seq.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func copyRecords(ctx context.Context, tx *sql.Tx, seq *pipeline.ResultSequence) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("frameocr_records",
		"run_id", "seq", "frame_index", "timestamp_sec", "text", "ingame_time"))
	if err != nil {
		return fmt.Errorf("failed to prepare record copy: %w", err)
	}
	defer stmt.Close()

	for i, rec := range seq.Records {
		var ingame interface{}
		if rec.IngameTime != nil {
			ingame = sanitizeText(*rec.IngameTime)
		}
		if _, err := stmt.ExecContext(ctx,
			seq.RunID,
			i,
			rec.FrameIndex,
			sanitizeTimestamp(rec.Timestamp),
			sanitizeText(rec.Text),
			ingame,
		); err != nil {
			return fmt.Errorf("failed to copy record %d: %w", i, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush record copy: %w", err)
	}
	return nil
}

// Commit makes the archive visible.
func (a *ArchiveTx) Commit() error {
	if err := a.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive for run %s: %w", a.runID, err)
	}
	return nil
}

// Rollback discards the archive.
func (a *ArchiveTx) Rollback() error {
	return a.tx.Rollback()
}

// DeleteRun removes an archived run and its records.
func (p *PostgresClient) DeleteRun(ctx context.Context, runID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM frameocr_runs WHERE id = $1::uuid`, runID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}

// sanitizeText drops NUL bytes, which PostgreSQL TEXT rejects.
func sanitizeText(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// sanitizeTimestamp pins the value to the NUMERIC(12,2) column's precision.
func sanitizeTimestamp(ts float64) float64 {
	if ts < 0 || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return 0
	}
	return math.Round(ts*100) / 100
}
