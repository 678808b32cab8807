package model

import "time"

// WorkspaceConnection links a user to a Notion workspace or Trello board.
// AccessToken is stored encrypted.
type WorkspaceConnection struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	WorkspaceType string    `json:"workspace_type"`
	WorkspaceID   string    `json:"workspace_id"`
	WorkspaceName string    `json:"workspace_name"`
	AccessToken   string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// StorageConnection links a user to a cloud storage account.
// AccessToken is stored encrypted.
type StorageConnection struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	StorageProvider string    `json:"storage_provider"`
	AccessToken     string    `json:"-"`
	FolderPath      string    `json:"folder_path"`
	CreatedAt       time.Time `json:"created_at"`
}

// BackupConfig pairs a workspace connection with a storage connection.
type BackupConfig struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	WorkspaceConnectionID string    `json:"workspace_connection_id"`
	StorageConnectionID   string    `json:"storage_connection_id"`
	Schedule              string    `json:"schedule"`
	CreatedAt             time.Time `json:"created_at"`
}

const (
	WorkspaceTypeNotion = "notion"
	WorkspaceTypeTrello = "trello"
)

const (
	StorageProviderDropbox     = "dropbox"
	StorageProviderGoogleDrive = "google_drive"
	StorageProviderOneDrive    = "onedrive"
	StorageProviderBackblaze   = "backblaze"
)
