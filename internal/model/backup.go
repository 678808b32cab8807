package model

import "time"

// BackupJob is one export-and-upload run for a workspace connection.
type BackupJob struct {
	ID                    string          `json:"id"`
	UserID                string          `json:"user_id"`
	WorkspaceConnectionID string          `json:"workspace_connection_id"`
	StorageConnectionID   string          `json:"storage_connection_id"`
	BackupConfigID        string          `json:"backup_config_id"`
	Kind                  string          `json:"backup_type"`
	Status                string          `json:"status"`
	StartedAt             *time.Time      `json:"backup_started_at,omitempty"`
	CompletedAt           *time.Time      `json:"backup_completed_at,omitempty"`
	FilePath              *string         `json:"file_path,omitempty"`
	FileSizeBytes         *int64          `json:"file_size_bytes,omitempty"`
	ErrorMessage          *string         `json:"error_message,omitempty"`
	Metadata              *BackupMetadata `json:"metadata,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// BackupMetadata is snapshotted when a job completes so history views do not
// depend on the connection still existing.
type BackupMetadata struct {
	WorkspaceName string `json:"workspace_name"`
	WorkspaceType string `json:"workspace_type"`
}

const (
	BackupKindManual    = "manual"
	BackupKindAutomatic = "automatic"
)
