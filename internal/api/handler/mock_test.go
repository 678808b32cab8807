package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/backupvault/internal/model"
)

type mockBackupService struct {
	mock.Mock
}

func (m *mockBackupService) Create(ctx context.Context, userID, workspaceConnectionID, configID, kind string) (string, error) {
	args := m.Called(ctx, userID, workspaceConnectionID, configID, kind)
	return args.String(0), args.Error(1)
}

func (m *mockBackupService) GetForOwner(ctx context.Context, userID, id string) (*model.BackupJob, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupJob), args.Error(1)
}

func (m *mockBackupService) ListByOwner(ctx context.Context, userID string, limit int, cursor string) ([]model.BackupJob, bool, error) {
	args := m.Called(ctx, userID, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.BackupJob), args.Bool(1), args.Error(2)
}

type mockPlanService struct {
	mock.Mock
}

func (m *mockPlanService) ApplyPayment(ctx context.Context, paymentID string) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}
