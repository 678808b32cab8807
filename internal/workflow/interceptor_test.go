package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

func TestTypedError_TagsUntypedErrors(t *testing.T) {
	cause := errors.New("complete backup b1: connection reset")

	err := typedError("CompleteBackup", cause)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CompleteBackupError", appErr.Type())
	assert.False(t, appErr.NonRetryable())
}

func TestTypedError_KeepsExistingType(t *testing.T) {
	orig := temporal.NewNonRetryableApplicationError("backup b1 is not pending", "BackupNotPending", nil)

	err := typedError("StartBackup", orig)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "BackupNotPending", appErr.Type())
	assert.True(t, appErr.NonRetryable())
}
