package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edvin/backupvault/internal/model"
)

var (
	ErrExportFailed    = errors.New("workspace export failed")
	ErrUnsupportedType = errors.New("unsupported workspace type")
)

// Object is an upstream API object kept verbatim. Numbers are decoded as
// json.Number so re-encoding reproduces them exactly.
type Object = map[string]any

// Bundle is a complete point-in-time snapshot of one workspace. Encoding a
// Bundle with encoding/json is canonical: struct fields keep their order and
// object keys are sorted.
type Bundle interface {
	WorkspaceType() string
}

// NotionBundle is the snapshot of a Notion workspace.
type NotionBundle struct {
	Timestamp string   `json:"timestamp"`
	Pages     []Object `json:"pages"`
	Databases []Object `json:"databases"`
}

func (NotionBundle) WorkspaceType() string { return model.WorkspaceTypeNotion }

// TrelloBundle is the snapshot of a Trello board.
type TrelloBundle struct {
	Timestamp string   `json:"timestamp"`
	Board     Object   `json:"board"`
	Cards     []Object `json:"cards"`
}

func (TrelloBundle) WorkspaceType() string { return model.WorkspaceTypeTrello }

// Exporter pulls a full snapshot of a workspace. Implementations either
// return a complete Bundle or an error; partial bundles are never returned.
type Exporter interface {
	Export(ctx context.Context, conn model.WorkspaceConnection) (Bundle, error)
}

// Options configures the exporters built by NewRegistry.
type Options struct {
	NotionBaseURL string
	TrelloBaseURL string
	TrelloAPIKey  string
	// Timeout bounds every single upstream request.
	Timeout time.Duration
	// Concurrency bounds parallel sub-resource fetches within one export.
	Concurrency int
	// Key decrypts stored access tokens.
	Key []byte
	Now func() time.Time
}

// Registry maps a workspace type to its exporter.
type Registry map[string]Exporter

func NewRegistry(opts Options) Registry {
	return Registry{
		model.WorkspaceTypeNotion: NewNotion(opts),
		model.WorkspaceTypeTrello: NewTrello(opts),
	}
}

// For returns the exporter for a workspace type.
func (r Registry) For(workspaceType string) (Exporter, error) {
	e, ok := r[workspaceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, workspaceType)
	}
	return e, nil
}

const isoMillis = "2006-01-02T15:04:05.000Z"

func timestamp(now func() time.Time) string {
	return now().UTC().Format(isoMillis)
}

func decodeObject(raw []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj Object
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func withField(obj Object, key string, value any) Object {
	out := make(Object, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	out[key] = value
	return out
}
