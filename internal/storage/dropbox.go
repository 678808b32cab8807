package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Dropbox uploads through the content API's files/upload endpoint.
type Dropbox struct {
	baseURL string
	client  *http.Client
}

func NewDropbox(baseURL string, timeout time.Duration) *Dropbox {
	return &Dropbox{baseURL: baseURL, client: newHTTPClient(timeout)}
}

func (d *Dropbox) Put(ctx context.Context, credential, folder, name string, data []byte) (string, error) {
	path := "/" + objectPath(folder, name)
	arg, err := json.Marshal(map[string]any{
		"path":       path,
		"mode":       "add",
		"autorename": true,
		"mute":       false,
	})
	if err != nil {
		return "", &Error{Provider: "dropbox", Category: CategoryUpstreamError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/files/upload", bytes.NewReader(data))
	if err != nil {
		return "", &Error{Provider: "dropbox", Category: CategoryUpstreamError}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", string(arg))

	body, err := send(d.client, "dropbox", req)
	if err != nil {
		return "", err
	}
	// autorename may have picked a different name.
	if stored := gjson.GetBytes(body, "path_display").String(); stored != "" {
		return stored, nil
	}
	return path, nil
}
