package core

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/backupvault/internal/model"
)

// ---------- Mock DB ----------

// mockDB implements the DB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// sqlContaining matches a statement by a distinctive fragment.
func sqlContaining(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

func errRow(err error) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error { return err }}
}

func backupRow(b model.BackupJob) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = b.ID
		*(dest[1].(*string)) = b.UserID
		*(dest[2].(*string)) = b.WorkspaceConnectionID
		*(dest[3].(*string)) = b.StorageConnectionID
		*(dest[4].(*string)) = b.BackupConfigID
		*(dest[5].(*string)) = b.Kind
		*(dest[6].(*string)) = b.Status
		*(dest[7].(**time.Time)) = b.StartedAt
		*(dest[8].(**time.Time)) = b.CompletedAt
		*(dest[9].(**string)) = b.FilePath
		*(dest[10].(**int64)) = b.FileSizeBytes
		*(dest[11].(**string)) = b.ErrorMessage
		*(dest[12].(**model.BackupMetadata)) = b.Metadata
		*(dest[13].(*time.Time)) = b.CreatedAt
		*(dest[14].(*time.Time)) = b.UpdatedAt
		return nil
	}}
}

func workspaceRow(c model.WorkspaceConnection) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = c.ID
		*(dest[1].(*string)) = c.UserID
		*(dest[2].(*string)) = c.WorkspaceType
		*(dest[3].(*string)) = c.WorkspaceID
		*(dest[4].(*string)) = c.WorkspaceName
		*(dest[5].(*string)) = c.AccessToken
		*(dest[6].(*time.Time)) = c.CreatedAt
		return nil
	}}
}

func storageRow(c model.StorageConnection) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = c.ID
		*(dest[1].(*string)) = c.UserID
		*(dest[2].(*string)) = c.StorageProvider
		*(dest[3].(*string)) = c.AccessToken
		*(dest[4].(*string)) = c.FolderPath
		*(dest[5].(*time.Time)) = c.CreatedAt
		return nil
	}}
}

func configRow(c model.BackupConfig) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = c.ID
		*(dest[1].(*string)) = c.UserID
		*(dest[2].(*string)) = c.WorkspaceConnectionID
		*(dest[3].(*string)) = c.StorageConnectionID
		*(dest[4].(*string)) = c.Schedule
		*(dest[5].(*time.Time)) = c.CreatedAt
		return nil
	}}
}

func planRow(plan, status string) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = plan
		*(dest[1].(*string)) = status
		return nil
	}}
}

func stringRow(v string) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = v
		return nil
	}}
}

func intRow(n int) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int)) = n
		return nil
	}}
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows for testing.
// It iterates through a list of scan functions, one per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }
