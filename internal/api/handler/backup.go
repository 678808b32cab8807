package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/backupvault/internal/api/middleware"
	"github.com/edvin/backupvault/internal/api/request"
	"github.com/edvin/backupvault/internal/api/response"
	"github.com/edvin/backupvault/internal/model"
)

// BackupService is the part of core.BackupService the handlers use.
type BackupService interface {
	Create(ctx context.Context, userID, workspaceConnectionID, configID, kind string) (string, error)
	GetForOwner(ctx context.Context, userID, id string) (*model.BackupJob, error)
	ListByOwner(ctx context.Context, userID string, limit int, cursor string) ([]model.BackupJob, bool, error)
}

type Backup struct {
	svc BackupService
}

func NewBackup(svc BackupService) *Backup {
	return &Backup{svc: svc}
}

type createBackupResponse struct {
	BackupID string `json:"backup_id"`
}

// Create queues a manual backup and returns its id. The job runs after the
// response is written.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r.Context())
	if userID == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "invalid request")
		return
	}

	id, err := h.svc.Create(r.Context(), userID, req.WorkspaceConnectionID, req.BackupConfigID, model.BackupKindManual)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, createBackupResponse{BackupID: id})
}

func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r.Context())
	if userID == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing session")
		return
	}

	pg := request.ParsePagination(r)

	backups, hasMore, err := h.svc.ListByOwner(r.Context(), userID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	if backups == nil {
		backups = []model.BackupJob{}
	}

	var nextCursor string
	if hasMore && len(backups) > 0 {
		nextCursor = backups[len(backups)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, backups, nextCursor, hasMore)
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r.Context())
	if userID == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing session")
		return
	}

	backup, err := h.svc.GetForOwner(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, backup)
}
