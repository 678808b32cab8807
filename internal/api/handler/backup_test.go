package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/backupvault/internal/core"
	"github.com/edvin/backupvault/internal/model"
)

func createBody() map[string]any {
	return map[string]any{
		"workspace_connection_id": testWSID,
		"backup_config_id":        testConfigID,
	}
}

// --- Create ---

func TestBackupCreate_Success(t *testing.T) {
	svc := new(mockBackupService)
	svc.On("Create", mock.Anything, testUserID, testWSID, testConfigID, model.BackupKindManual).
		Return(testBackupID, nil)
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, withUser(newRequest(http.MethodPost, "/backups", createBody()), testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, testBackupID, body["backup_id"])
	svc.AssertExpectations(t)
}

func TestBackupCreate_Unauthenticated(t *testing.T) {
	svc := new(mockBackupService)
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/backups", createBody()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Create")
}

func TestBackupCreate_InvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", "{bad json"},
		{"empty", ""},
		{"missing ids", "{}"},
		{"malformed id", `{"workspace_connection_id":"../../etc","backup_config_id":"` + testConfigID + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBackupService)
			h := NewBackup(svc)

			rec := httptest.NewRecorder()
			h.Create(rec, withUser(newRequestRaw(http.MethodPost, "/backups", tt.body), testUserID))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid request", decodeErrorResponse(rec)["error"])
			svc.AssertNotCalled(t, "Create")
		})
	}
}

func TestBackupCreate_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"foreign workspace", fmt.Errorf("workspace connection %s: %w", testWSID, core.ErrAccessDenied), http.StatusForbidden},
		{"quota", core.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"config mismatch", fmt.Errorf("mismatch: %w", core.ErrInvalidInput), http.StatusBadRequest},
		{"dispatch", fmt.Errorf("%w: dispatch backup x", core.ErrInternal), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBackupService)
			svc.On("Create", mock.Anything, testUserID, testWSID, testConfigID, model.BackupKindManual).Return("", tt.err)
			h := NewBackup(svc)

			rec := httptest.NewRecorder()
			h.Create(rec, withUser(newRequest(http.MethodPost, "/backups", createBody()), testUserID))

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), testWSID)
		})
	}
}

// --- List ---

func TestBackupList_PaginatesWithCursor(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	jobs := []model.BackupJob{
		{ID: "b2", UserID: testUserID, Status: model.StatusCompleted, CreatedAt: now},
		{ID: "b1", UserID: testUserID, Status: model.StatusFailed, CreatedAt: now.Add(-time.Hour)},
	}
	svc := new(mockBackupService)
	svc.On("ListByOwner", mock.Anything, testUserID, 2, testBackupID).Return(jobs, true, nil)
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	h.List(rec, withUser(newRequest(http.MethodGet, "/backups?limit=2&cursor="+testBackupID, nil), testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items      []model.BackupJob `json:"items"`
		NextCursor string            `json:"next_cursor"`
		HasMore    bool              `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
	assert.Equal(t, "b1", body.NextCursor)
	assert.True(t, body.HasMore)
}

func TestBackupList_EmptyIsArray(t *testing.T) {
	svc := new(mockBackupService)
	svc.On("ListByOwner", mock.Anything, testUserID, 20, "").Return(nil, false, nil)
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	h.List(rec, withUser(newRequest(http.MethodGet, "/backups", nil), testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"has_more":false}`, rec.Body.String())
}

func TestBackupList_Error(t *testing.T) {
	svc := new(mockBackupService)
	svc.On("ListByOwner", mock.Anything, testUserID, 20, "").Return(nil, false, fmt.Errorf("list backups: connection reset"))
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	h.List(rec, withUser(newRequest(http.MethodGet, "/backups", nil), testUserID))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeErrorResponse(rec)["error"])
}

// --- Get ---

func TestBackupGet_Success(t *testing.T) {
	path := "BackupVault/notion_ws_2026-10-18T09_00_00.000Z.encrypted.json"
	size := int64(4096)
	job := &model.BackupJob{ID: testBackupID, UserID: testUserID, Status: model.StatusCompleted, FilePath: &path, FileSizeBytes: &size}

	svc := new(mockBackupService)
	svc.On("GetForOwner", mock.Anything, testUserID, testBackupID).Return(job, nil)
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/backups/"+testBackupID, nil), "id", testBackupID)
	h.Get(rec, withUser(r, testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.BackupJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, testBackupID, got.ID)
	assert.Equal(t, path, *got.FilePath)
	assert.Equal(t, size, *got.FileSizeBytes)
}

func TestBackupGet_OtherOwnerIsNotFound(t *testing.T) {
	svc := new(mockBackupService)
	svc.On("GetForOwner", mock.Anything, testUserID, testBackupID).
		Return(nil, fmt.Errorf("backup %s: %w", testBackupID, core.ErrNotFound))
	h := NewBackup(svc)

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/backups/"+testBackupID, nil), "id", testBackupID)
	h.Get(rec, withUser(r, testUserID))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
