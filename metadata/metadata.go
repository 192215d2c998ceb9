// Package metadata reads the read-only VodMetadata auxiliary entity
// (spec.md §3): title/URL/channel/capture time captured by the Ingestor at
// discovery time. The pipeline enriches upload descriptions from it but
// never writes to it.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no metadata row exists for a VodId.
var ErrNotFound = errors.New("metadata: not found")

// VodMetadata is captured once, at ingestion, and never mutated by the
// pipeline.
type VodMetadata struct {
	VodID         string
	Title         string
	Url           string
	Channel       string
	CapturedAtUtc time.Time
	DurationSecs  float64
}

// Store is the read-only boundary VideoUploader consults to enrich upload
// titles and descriptions.
type Store interface {
	Get(ctx context.Context, vodID string) (VodMetadata, error)
}

// PostgresStore reads from the vod_metadata table populated by the
// Ingestor/operator, following the Job Store's one-query-per-call idiom.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, vodID string) (VodMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		select "vod_id", "title", "url", "channel", "captured_at_utc", "duration_secs"
		from "vod_metadata"
		where "vod_id" = $1
	`, vodID)

	var m VodMetadata
	err := row.Scan(&m.VodID, &m.Title, &m.Url, &m.Channel, &m.CapturedAtUtc, &m.DurationSecs)
	if errors.Is(err, sql.ErrNoRows) {
		return VodMetadata{}, ErrNotFound
	}
	if err != nil {
		return VodMetadata{}, fmt.Errorf("getting metadata for vod %s: %w", vodID, err)
	}
	return m, nil
}
