package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupvault/internal/model"
)

// ConnectionService reads workspace connections, storage connections and
// backup configs. Connections are managed elsewhere; this service never
// writes them.
type ConnectionService struct {
	db DB
}

func NewConnectionService(db DB) *ConnectionService {
	return &ConnectionService{db: db}
}

const workspaceColumns = `id, user_id, workspace_type, workspace_id, workspace_name, access_token, created_at`

func scanWorkspace(row pgx.Row) (*model.WorkspaceConnection, error) {
	var c model.WorkspaceConnection
	err := row.Scan(&c.ID, &c.UserID, &c.WorkspaceType, &c.WorkspaceID, &c.WorkspaceName, &c.AccessToken, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Workspace returns a workspace connection by id.
func (s *ConnectionService) Workspace(ctx context.Context, id string) (*model.WorkspaceConnection, error) {
	c, err := scanWorkspace(s.db.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspace_connections WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get workspace connection %s: %w", id, err)
	}
	return c, nil
}

// WorkspaceForOwner returns the connection only if userID owns it. A missing
// row and a foreign row are indistinguishable to the caller.
func (s *ConnectionService) WorkspaceForOwner(ctx context.Context, userID, id string) (*model.WorkspaceConnection, error) {
	c, err := scanWorkspace(s.db.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspace_connections WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workspace connection %s: %w", id, ErrAccessDenied)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace connection %s: %w", id, err)
	}
	return c, nil
}

const storageColumns = `id, user_id, storage_provider, access_token, folder_path, created_at`

func scanStorage(row pgx.Row) (*model.StorageConnection, error) {
	var c model.StorageConnection
	err := row.Scan(&c.ID, &c.UserID, &c.StorageProvider, &c.AccessToken, &c.FolderPath, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Storage returns a storage connection by id.
func (s *ConnectionService) Storage(ctx context.Context, id string) (*model.StorageConnection, error) {
	c, err := scanStorage(s.db.QueryRow(ctx,
		`SELECT `+storageColumns+` FROM storage_connections WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get storage connection %s: %w", id, err)
	}
	return c, nil
}

// StorageForOwner returns the storage connection only if userID owns it.
func (s *ConnectionService) StorageForOwner(ctx context.Context, userID, id string) (*model.StorageConnection, error) {
	c, err := scanStorage(s.db.QueryRow(ctx,
		`SELECT `+storageColumns+` FROM storage_connections WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("storage connection %s: %w", id, ErrAccessDenied)
	}
	if err != nil {
		return nil, fmt.Errorf("get storage connection %s: %w", id, err)
	}
	return c, nil
}

// ConfigForOwner returns the backup config only if userID owns it.
func (s *ConnectionService) ConfigForOwner(ctx context.Context, userID, id string) (*model.BackupConfig, error) {
	var c model.BackupConfig
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, workspace_connection_id, storage_connection_id, schedule, created_at
		 FROM backup_configs WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.WorkspaceConnectionID, &c.StorageConnectionID, &c.Schedule, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("backup config %s: %w", id, ErrAccessDenied)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup config %s: %w", id, err)
	}
	return &c, nil
}
