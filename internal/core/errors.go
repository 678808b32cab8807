package core

import (
	"errors"

	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/exporter"
	"github.com/edvin/backupvault/internal/storage"
)

var (
	ErrAccessDenied  = errors.New("access denied")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("daily backup limit reached")
	ErrNotFound      = errors.New("not found")
	ErrInternal      = errors.New("internal error")
	// ErrNotPending is returned when a job was already picked up.
	ErrNotPending = errors.New("backup is not pending")

	ErrExportFailed     = exporter.ErrExportFailed
	ErrUploadFailed     = storage.ErrUploadFailed
	ErrDecryptionFailed = crypto.ErrDecryptionFailed
	ErrNotImplemented   = storage.ErrNotImplemented
)

// User-facing failure reasons written to failed jobs.
const (
	ReasonReauthorize         = "connection needs to be re-authorized"
	ReasonExportFailed        = "workspace export failed"
	ReasonUploadFailed        = "storage upload failed"
	ReasonProviderUnsupported = "storage provider not supported yet"
	ReasonUnknownWorkspace    = "unsupported workspace type"
	ReasonUnknownProvider     = "unsupported storage provider"
	ReasonInternal            = "internal error"
)

// FailureReason maps a pipeline error to a fixed user-facing message. The
// error text itself is never exposed.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ReasonInternal
	case errors.Is(err, ErrDecryptionFailed):
		return ReasonReauthorize
	case errors.Is(err, exporter.ErrUnsupportedType):
		return ReasonUnknownWorkspace
	case errors.Is(err, storage.ErrUnsupportedProvider):
		return ReasonUnknownProvider
	case errors.Is(err, ErrNotImplemented):
		return ReasonProviderUnsupported
	case errors.Is(err, ErrExportFailed):
		return withCategory(ReasonExportFailed, exporter.CategoryOf(err))
	case errors.Is(err, ErrUploadFailed):
		return withCategory(ReasonUploadFailed, storage.CategoryOf(err))
	default:
		return ReasonInternal
	}
}

func withCategory(reason, category string) string {
	if category == "" {
		return reason
	}
	return reason + ": " + category
}
