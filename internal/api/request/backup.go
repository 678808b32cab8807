package request

// CreateBackup triggers a manual backup. Both ids are checked for shape
// before anything is looked up.
type CreateBackup struct {
	WorkspaceConnectionID string `json:"workspace_connection_id" validate:"required,uuid4"`
	BackupConfigID        string `json:"backup_config_id" validate:"required,uuid4"`
}

// MollieWebhook is the payment notification. Mollie sends only the payment id.
type MollieWebhook struct {
	ID string `json:"id" validate:"required,max=64,printascii,excludesall=/ "`
}
