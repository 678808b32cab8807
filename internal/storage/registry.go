package storage

import (
	"time"

	"github.com/edvin/backupvault/internal/model"
)

// Options configures the providers built by NewProviders.
type Options struct {
	DropboxContentURL string
	GoogleUploadURL   string
	GraphAPIURL       string
	// BackblazeEndpoint left empty makes the Backblaze provider return
	// ErrNotImplemented.
	BackblazeEndpoint string
	BackblazeRegion   string
	Timeout           time.Duration
}

// NewProviders returns one provider per supported storage provider kind.
func NewProviders(opts Options) map[string]Provider {
	return map[string]Provider{
		model.StorageProviderDropbox:     NewDropbox(opts.DropboxContentURL, opts.Timeout),
		model.StorageProviderGoogleDrive: NewGoogleDrive(opts.GoogleUploadURL, opts.Timeout),
		model.StorageProviderOneDrive:    NewOneDrive(opts.GraphAPIURL, opts.Timeout),
		model.StorageProviderBackblaze:   NewBackblaze(opts.BackblazeEndpoint, opts.BackblazeRegion, opts.Timeout),
	}
}
