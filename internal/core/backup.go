package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/backupvault/internal/exporter"
	"github.com/edvin/backupvault/internal/metrics"
	"github.com/edvin/backupvault/internal/model"
	"github.com/edvin/backupvault/internal/platform"
	"github.com/edvin/backupvault/internal/storage"
)

// Dispatcher schedules asynchronous processing of a pending job. Dispatch
// must not wait for processing to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Exporters resolves the exporter for a workspace type.
type Exporters interface {
	For(workspaceType string) (exporter.Exporter, error)
}

// Uploader seals content and stores it with the provider of conn.
type Uploader interface {
	Upload(ctx context.Context, conn model.StorageConnection, name string, content any) (storage.Location, error)
}

// Outcome is the result of running the export and upload for a job. Exactly
// one of Location or FailureReason is set.
type Outcome struct {
	Location      string               `json:"location,omitempty"`
	SizeBytes     int64                `json:"size_bytes,omitempty"`
	Metadata      model.BackupMetadata `json:"metadata"`
	FailureReason string               `json:"failure_reason,omitempty"`
}

// BackupService owns the backup job lifecycle:
// pending -> in_progress -> completed | failed.
type BackupService struct {
	db         DB
	conns      *ConnectionService
	usage      *UsageService
	exporters  Exporters
	uploader   Uploader
	dispatcher Dispatcher
	now        func() time.Time
	logger     zerolog.Logger
}

func NewBackupService(db DB, conns *ConnectionService, usage *UsageService, exporters Exporters, uploader Uploader, dispatcher Dispatcher, now func() time.Time, logger zerolog.Logger) *BackupService {
	if now == nil {
		now = time.Now
	}
	return &BackupService{
		db:         db,
		conns:      conns,
		usage:      usage,
		exporters:  exporters,
		uploader:   uploader,
		dispatcher: dispatcher,
		now:        now,
		logger:     logger.With().Str("component", "backup-service").Logger(),
	}
}

const backupColumns = `id, user_id, workspace_connection_id, storage_connection_id, backup_config_id, backup_type, status,
	backup_started_at, backup_completed_at, file_path, file_size_bytes, error_message, metadata, created_at, updated_at`

func scanBackup(row pgx.Row) (*model.BackupJob, error) {
	var b model.BackupJob
	err := row.Scan(&b.ID, &b.UserID, &b.WorkspaceConnectionID, &b.StorageConnectionID, &b.BackupConfigID,
		&b.Kind, &b.Status, &b.StartedAt, &b.CompletedAt, &b.FilePath, &b.FileSizeBytes,
		&b.ErrorMessage, &b.Metadata, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create validates ownership and quota, records a pending job and hands it
// to the dispatcher. It returns as soon as the job is queued.
func (s *BackupService) Create(ctx context.Context, userID, workspaceConnectionID, configID, kind string) (string, error) {
	if kind == "" {
		kind = model.BackupKindManual
	}
	if kind != model.BackupKindManual && kind != model.BackupKindAutomatic {
		return "", fmt.Errorf("backup type %q: %w", kind, ErrInvalidInput)
	}
	for _, id := range []string{userID, workspaceConnectionID, configID} {
		if !platform.IsID(id) {
			return "", fmt.Errorf("malformed id %q: %w", id, ErrInvalidInput)
		}
	}

	ws, err := s.conns.WorkspaceForOwner(ctx, userID, workspaceConnectionID)
	if err != nil {
		return "", err
	}
	cfg, err := s.conns.ConfigForOwner(ctx, userID, configID)
	if err != nil {
		return "", err
	}
	if cfg.WorkspaceConnectionID != ws.ID {
		return "", fmt.Errorf("backup config %s does not belong to workspace %s: %w", cfg.ID, ws.ID, ErrInvalidInput)
	}
	if _, err := s.conns.StorageForOwner(ctx, userID, cfg.StorageConnectionID); err != nil {
		return "", err
	}

	created := s.clock(nil)
	allowed, err := s.usage.TryConsume(ctx, userID, model.ActionBackup, created)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !allowed {
		metrics.QuotaRejectionsTotal.Inc()
		return "", ErrQuotaExceeded
	}

	id := platform.NewID()
	_, err = s.db.Exec(ctx,
		`INSERT INTO backups (id, user_id, workspace_connection_id, storage_connection_id, backup_config_id, backup_type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		id, userID, ws.ID, cfg.StorageConnectionID, cfg.ID, kind, model.StatusPending, created,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert backup: %w", ErrInternal, err)
	}

	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("backup_id", id).Msg("dispatch failed")
		if ferr := s.Fail(context.WithoutCancel(ctx), id, ReasonInternal); ferr != nil {
			s.logger.Error().Err(ferr).Str("backup_id", id).Msg("failed to record dispatch failure")
		}
		return "", fmt.Errorf("%w: dispatch backup %s", ErrInternal, id)
	}

	s.logger.Info().Str("backup_id", id).Str("user_id", userID).Str("workspace_type", ws.WorkspaceType).Msg("backup queued")
	return id, nil
}

// Process runs a pending job to a terminal state. Every failure, including a
// panic, is recorded on the job before Process returns.
func (s *BackupService) Process(ctx context.Context, jobID string) (err error) {
	job, err := s.Start(ctx, jobID)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("backup_id", jobID).Interface("panic", r).Msg("backup pipeline panicked")
			if ferr := s.Fail(context.WithoutCancel(ctx), jobID, ReasonInternal); ferr != nil {
				s.logger.Error().Err(ferr).Str("backup_id", jobID).Msg("failed to record panic")
			}
			err = fmt.Errorf("%w: backup %s panicked", ErrInternal, jobID)
		}
	}()

	outcome := s.Execute(ctx, job)
	if outcome.FailureReason != "" {
		return s.Fail(context.WithoutCancel(ctx), jobID, outcome.FailureReason)
	}
	if err := s.Complete(context.WithoutCancel(ctx), jobID, outcome); err != nil {
		s.logger.Error().Err(err).Str("backup_id", jobID).Msg("failed to record completion")
		if ferr := s.Fail(context.WithoutCancel(ctx), jobID, ReasonInternal); ferr != nil {
			s.logger.Error().Err(ferr).Str("backup_id", jobID).Msg("failed to record completion failure")
		}
		return err
	}
	return nil
}

// Start moves a job from pending to in_progress. It returns ErrNotPending
// when another run already claimed the job.
func (s *BackupService) Start(ctx context.Context, jobID string) (*model.BackupJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(job.Status, model.StatusInProgress) {
		return nil, fmt.Errorf("backup %s is %s: %w", jobID, job.Status, ErrNotPending)
	}

	started := s.clock(&job.CreatedAt)
	job, err = scanBackup(s.db.QueryRow(ctx,
		`UPDATE backups SET status = $3, backup_started_at = $4, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING `+backupColumns,
		jobID, model.StatusPending, model.StatusInProgress, started,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("backup %s: %w", jobID, ErrNotPending)
	}
	if err != nil {
		return nil, fmt.Errorf("set backup %s in progress: %w", jobID, err)
	}

	s.logger.Info().Str("backup_id", jobID).Msg("backup started")
	return job, nil
}

// Execute exports the job's workspace and uploads the artifact. Failures are
// reported in Outcome.FailureReason rather than as an error.
func (s *BackupService) Execute(ctx context.Context, job *model.BackupJob) Outcome {
	outcome, err := s.execute(ctx, job)
	if err != nil {
		reason := FailureReason(err)
		s.logger.Warn().Str("backup_id", job.ID).Str("reason", reason).Msg("backup pipeline failed")
		return Outcome{Metadata: outcome.Metadata, FailureReason: reason}
	}
	return outcome
}

func (s *BackupService) execute(ctx context.Context, job *model.BackupJob) (Outcome, error) {
	ws, err := s.conns.Workspace(ctx, job.WorkspaceConnectionID)
	if err != nil {
		return Outcome{}, err
	}
	meta := model.BackupMetadata{WorkspaceName: ws.WorkspaceName, WorkspaceType: ws.WorkspaceType}

	st, err := s.conns.Storage(ctx, job.StorageConnectionID)
	if err != nil {
		return Outcome{Metadata: meta}, err
	}

	exp, err := s.exporters.For(ws.WorkspaceType)
	if err != nil {
		return Outcome{Metadata: meta}, err
	}
	bundle, err := exp.Export(ctx, *ws)
	if err != nil {
		return Outcome{Metadata: meta}, err
	}

	name := ArtifactName(ws.WorkspaceType, ws.WorkspaceID, s.now())
	loc, err := s.uploader.Upload(ctx, *st, name, bundle)
	if err != nil {
		return Outcome{Metadata: meta}, err
	}

	return Outcome{Location: loc.Path, SizeBytes: loc.Size, Metadata: meta}, nil
}

// Complete records a successful outcome on an in_progress job.
func (s *BackupService) Complete(ctx context.Context, jobID string, outcome Outcome) error {
	if outcome.Location == "" || outcome.FailureReason != "" {
		return fmt.Errorf("complete backup %s: outcome has no artifact: %w", jobID, ErrInvalidInput)
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !model.CanTransition(job.Status, model.StatusCompleted) {
		return fmt.Errorf("backup %s is %s: cannot complete", jobID, job.Status)
	}

	completed := s.clock(job.StartedAt)
	meta := outcome.Metadata
	tag, err := s.db.Exec(ctx,
		`UPDATE backups SET status = $3, backup_completed_at = $4, file_path = $5, file_size_bytes = $6,
		 metadata = $7, error_message = NULL, updated_at = $4
		 WHERE id = $1 AND status = $2`,
		jobID, model.StatusInProgress, model.StatusCompleted, completed, outcome.Location, outcome.SizeBytes, &meta,
	)
	if err != nil {
		return fmt.Errorf("set backup %s completed: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup %s changed state concurrently: cannot complete", jobID)
	}

	s.observe(job, meta.WorkspaceType, model.StatusCompleted, completed)
	s.logger.Info().Str("backup_id", jobID).Int64("size_bytes", outcome.SizeBytes).Msg("backup completed")
	return nil
}

// Fail records reason on a job. A job that is still pending is started
// first so the recorded history never skips a state. Failing a terminal job
// is a no-op.
func (s *BackupService) Fail(ctx context.Context, jobID, reason string) error {
	if reason == "" {
		reason = ReasonInternal
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if model.IsTerminal(job.Status) {
		return nil
	}
	if job.Status == model.StatusPending {
		if job, err = s.Start(ctx, jobID); err != nil {
			return err
		}
	}

	failed := s.clock(job.StartedAt)
	var workspaceType string
	err = s.db.QueryRow(ctx,
		`UPDATE backups SET status = $3, backup_completed_at = $4, error_message = $5,
		 file_path = NULL, file_size_bytes = NULL, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING COALESCE((SELECT workspace_type FROM workspace_connections WHERE id = backups.workspace_connection_id), 'unknown')`,
		jobID, model.StatusInProgress, model.StatusFailed, failed, reason,
	).Scan(&workspaceType)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("backup %s changed state concurrently: cannot fail", jobID)
	}
	if err != nil {
		return fmt.Errorf("set backup %s failed: %w", jobID, err)
	}

	s.observe(job, workspaceType, model.StatusFailed, failed)
	s.logger.Warn().Str("backup_id", jobID).Str("reason", reason).Msg("backup failed")
	return nil
}

// Get returns a job by id.
func (s *BackupService) Get(ctx context.Context, id string) (*model.BackupJob, error) {
	b, err := scanBackup(s.db.QueryRow(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// GetForOwner returns a job only if userID owns it.
func (s *BackupService) GetForOwner(ctx context.Context, userID, id string) (*model.BackupJob, error) {
	if !platform.IsID(id) {
		return nil, fmt.Errorf("backup %q: %w", id, ErrNotFound)
	}
	b, err := scanBackup(s.db.QueryRow(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// ListByOwner returns the newest jobs first. cursor is the id of the last
// job of the previous page.
func (s *BackupService) ListByOwner(ctx context.Context, userID string, limit int, cursor string) ([]model.BackupJob, bool, error) {
	query := `SELECT ` + backupColumns + ` FROM backups WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND (created_at, id) < (SELECT created_at, id FROM backups WHERE id = $%d AND user_id = $1)`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY created_at DESC, id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list backups for %s: %w", userID, err)
	}
	defer rows.Close()

	var backups []model.BackupJob
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate backups: %w", err)
	}

	hasMore := len(backups) > limit
	if hasMore {
		backups = backups[:limit]
	}
	return backups, hasMore, nil
}

// ListStale returns jobs that have been in_progress for longer than
// olderThan. Such jobs were usually interrupted by a restart; they are
// reported, not repaired.
func (s *BackupService) ListStale(ctx context.Context, olderThan time.Duration) ([]model.BackupJob, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+backupColumns+` FROM backups
		 WHERE status = $1 AND backup_started_at < $2
		 ORDER BY backup_started_at`,
		model.StatusInProgress, s.now().Add(-olderThan),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale backups: %w", err)
	}
	defer rows.Close()

	var backups []model.BackupJob
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale backups: %w", err)
	}
	return backups, nil
}

// ArtifactName builds "{type}_{workspace id}_{timestamp}.encrypted.json".
// The uploader sanitizes it before use.
func ArtifactName(workspaceType, workspaceID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.encrypted.json", workspaceType, workspaceID, at.UTC().Format("2006-01-02T15:04:05.000Z"))
}

// clock returns the current time at database precision, forced strictly
// after prev.
func (s *BackupService) clock(prev *time.Time) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if prev != nil && !t.After(*prev) {
		t = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return t
}

func (s *BackupService) observe(job *model.BackupJob, workspaceType, status string, at time.Time) {
	metrics.BackupJobsTotal.WithLabelValues(workspaceType, status).Inc()
	if job.StartedAt != nil {
		metrics.BackupDuration.WithLabelValues(workspaceType, status).Observe(at.Sub(*job.StartedAt).Seconds())
	}
}
