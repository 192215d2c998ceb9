package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned by Store lookups when no row matches.
var ErrNotFound = errors.New("job: not found")

// Store is the persistence boundary the dispatcher and workers operate
// against. Every method opens and closes its own short-lived connection or
// transaction; nothing here holds a session open across a stage's work.
type Store interface {
	// NextEligible returns the highest-priority non-failed job across every
	// non-terminal stage, or ErrNotFound if none exists. Lease fields are
	// not consulted.
	NextEligible(ctx context.Context) (*Job, error)
	Get(ctx context.Context, vodID string) (*Job, error)
	Insert(ctx context.Context, j *Job) error
	SetStage(ctx context.Context, vodID string, stage Stage) error
	SetDescription(ctx context.Context, vodID string, description string) error
	SetArtifact(ctx context.Context, vodID string, field string, value string) error
	Heartbeat(ctx context.Context, vodID string, leasedBy string) error
	// IncrementFailCount records a failure and returns the new
	// FailCount so the caller can compare it against the permanent-failure
	// threshold.
	IncrementFailCount(ctx context.Context, vodID string, reason string) (int, error)
	MarkFailed(ctx context.Context, vodID string, reason string) error
	ClearLease(ctx context.Context, vodID string) error
	// ResetFailure clears Failed and FailReason so a permanently failed job
	// is eligible for selection again, per spec.md §6's operator surface.
	// When resetFailCount is true it also zeroes FailCount.
	ResetFailure(ctx context.Context, vodID string, resetFailCount bool) error
}

// PostgresStore implements Store on top of a single *sql.DB, following the
// teacher's one-Exec-per-write idiom (see sendDBMetrics): no transaction
// spans more than a single statement's round trip unless stated otherwise.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const jobColumns = `
	"vod_id",
	"stage",
	"description",
	"vod_file_path",
	"chat_text_file_path",
	"chat_video_file_path",
	"final_video_file_path",
	"uploaded_video_id",
	"leased_by",
	"leased_at_utc",
	"failed",
	"fail_reason",
	"fail_count"
`

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var j Job
	var leasedBy, failReason sql.NullString
	var leasedAtUtc pq.NullTime
	err := row.Scan(
		&j.VodID,
		&j.Stage,
		&j.Description,
		&j.VodFilePath,
		&j.ChatTextFilePath,
		&j.ChatVideoFilePath,
		&j.FinalVideoFilePath,
		&j.UploadedVideoID,
		&leasedBy,
		&leasedAtUtc,
		&j.Failed,
		&failReason,
		&j.FailCount,
	)
	if err != nil {
		return nil, err
	}
	j.LeasedBy = leasedBy.String
	j.FailReason = failReason.String
	j.LeasedAtUtc = leasedAtUtc.Time
	return &j, nil
}

// NextEligible picks the unfailed, non-terminal job with the highest stage
// priority, breaking ties on vod_id ascending. Eligibility and ordering are
// expressed via a CASE over Stage rather than an integer column so the
// Stage enum stays the single source of truth for priority.
func (s *PostgresStore) NextEligible(ctx context.Context) (*Job, error) {
	stages := EligibleStages()
	caseExpr := `case "stage" `
	args := make([]interface{}, 0, len(stages)+1)
	for i, st := range stages {
		args = append(args, string(st))
		caseExpr += fmt.Sprintf("when $%d then %d ", i+1, i)
	}
	caseExpr += "else -1 end"

	query := fmt.Sprintf(`
		select %s
		from "jobs"
		where "failed" = false and (%s) >= 0
		order by (%s) desc, "vod_id" asc
		limit 1
	`, jobColumns, caseExpr, caseExpr)

	row := s.db.QueryRowContext(ctx, query, args...)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next eligible job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) Get(ctx context.Context, vodID string) (*Job, error) {
	query := fmt.Sprintf(`select %s from "jobs" where "vod_id" = $1`, jobColumns)
	row := s.db.QueryRowContext(ctx, query, vodID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", vodID, err)
	}
	return j, nil
}

func (s *PostgresStore) Insert(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx, `
		insert into "jobs"(
			"vod_id", "stage", "description",
			"vod_file_path", "chat_text_file_path", "chat_video_file_path",
			"final_video_file_path", "uploaded_video_id",
			"leased_by", "leased_at_utc",
			"failed", "fail_reason", "fail_count"
		) values ($1, $2, $3, $4, $5, $6, $7, $8, '', null, false, '', 0)
	`,
		j.VodID, string(j.Stage), j.Description,
		j.VodFilePath, j.ChatTextFilePath, j.ChatVideoFilePath,
		j.FinalVideoFilePath, j.UploadedVideoID,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", j.VodID, err)
	}
	return nil
}

func (s *PostgresStore) SetStage(ctx context.Context, vodID string, stage Stage) error {
	_, err := s.db.ExecContext(ctx, `update "jobs" set "stage" = $1 where "vod_id" = $2`, string(stage), vodID)
	if err != nil {
		return fmt.Errorf("setting stage for job %s: %w", vodID, err)
	}
	return nil
}

func (s *PostgresStore) SetDescription(ctx context.Context, vodID string, description string) error {
	_, err := s.db.ExecContext(ctx, `update "jobs" set "description" = $1 where "vod_id" = $2`, description, vodID)
	if err != nil {
		return fmt.Errorf("setting description for job %s: %w", vodID, err)
	}
	return nil
}

// artifactColumns whitelists the columns SetArtifact may write, so a typo'd
// field name fails loudly instead of silently no-oping.
var artifactColumns = map[string]string{
	"VodFilePath":        "vod_file_path",
	"ChatTextFilePath":   "chat_text_file_path",
	"ChatVideoFilePath":  "chat_video_file_path",
	"FinalVideoFilePath": "final_video_file_path",
	"UploadedVideoID":    "uploaded_video_id",
}

func (s *PostgresStore) SetArtifact(ctx context.Context, vodID string, field string, value string) error {
	column, ok := artifactColumns[field]
	if !ok {
		return fmt.Errorf("setting artifact for job %s: unknown field %q", vodID, field)
	}
	query := fmt.Sprintf(`update "jobs" set %q = $1 where "vod_id" = $2`, column)
	_, err := s.db.ExecContext(ctx, query, value, vodID)
	if err != nil {
		return fmt.Errorf("setting artifact %s for job %s: %w", field, vodID, err)
	}
	return nil
}

func (s *PostgresStore) Heartbeat(ctx context.Context, vodID string, leasedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		update "jobs" set "leased_by" = $1, "leased_at_utc" = now() where "vod_id" = $2
	`, leasedBy, vodID)
	if err != nil {
		return fmt.Errorf("heartbeating job %s: %w", vodID, err)
	}
	return nil
}

// IncrementFailCount bumps FailCount by one, records the reason, and
// returns the new count. It does not touch the Failed flag: spec.md §4.6
// leaves that to the caller once the count crosses the threshold.
func (s *PostgresStore) IncrementFailCount(ctx context.Context, vodID string, reason string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		update "jobs"
		set "fail_reason" = $1, "fail_count" = "fail_count" + 1, "leased_by" = ''
		where "vod_id" = $2
		returning "fail_count"
	`, reason, vodID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("incrementing fail count for job %s: %w", vodID, err)
	}
	return count, nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, vodID string, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		update "jobs" set "fail_reason" = $1, "failed" = true, "leased_by" = '' where "vod_id" = $2
	`, reason, vodID)
	if err != nil {
		return fmt.Errorf("marking job %s failed: %w", vodID, err)
	}
	return nil
}

func (s *PostgresStore) ClearLease(ctx context.Context, vodID string) error {
	_, err := s.db.ExecContext(ctx, `update "jobs" set "leased_by" = '' where "vod_id" = $1`, vodID)
	if err != nil {
		return fmt.Errorf("clearing lease for job %s: %w", vodID, err)
	}
	return nil
}

func (s *PostgresStore) ResetFailure(ctx context.Context, vodID string, resetFailCount bool) error {
	query := `update "jobs" set "failed" = false, "fail_reason" = '' where "vod_id" = $1`
	if resetFailCount {
		query = `update "jobs" set "failed" = false, "fail_reason" = '', "fail_count" = 0 where "vod_id" = $1`
	}
	_, err := s.db.ExecContext(ctx, query, vodID)
	if err != nil {
		return fmt.Errorf("resetting failure for job %s: %w", vodID, err)
	}
	return nil
}
