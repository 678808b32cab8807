package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// oneDriveSimpleLimit is the largest payload Graph accepts in a single PUT.
	oneDriveSimpleLimit = 4 << 20
	// oneDriveChunkSize must be a multiple of 320 KiB.
	oneDriveChunkSize = 32 * 320 << 10
)

// OneDrive uploads through Microsoft Graph. Payloads over 4 MiB go through
// an upload session.
type OneDrive struct {
	baseURL   string
	client    *http.Client
	chunkSize int
}

func NewOneDrive(baseURL string, timeout time.Duration) *OneDrive {
	return &OneDrive{baseURL: baseURL, client: newHTTPClient(timeout), chunkSize: oneDriveChunkSize}
}

// Put returns the Graph item id. conflictBehavior=rename means the stored
// name can differ from the requested one, so the id is the only stable
// address.
func (o *OneDrive) Put(ctx context.Context, credential, folder, name string, data []byte) (string, error) {
	path := objectPath(folder, name)
	item := o.baseURL + "/me/drive/root:/" + path + ":"

	var resp []byte
	if len(data) <= oneDriveSimpleLimit {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, item+"/content?@microsoft.graph.conflictBehavior=rename", bytes.NewReader(data))
		if err != nil {
			return "", &Error{Provider: "onedrive", Category: CategoryUpstreamError}
		}
		req.Header.Set("Authorization", "Bearer "+credential)
		req.Header.Set("Content-Type", "application/octet-stream")
		if resp, err = send(o.client, "onedrive", req); err != nil {
			return "", err
		}
	} else {
		uploadURL, err := o.createSession(ctx, credential, item)
		if err != nil {
			return "", err
		}
		if resp, err = o.putChunks(ctx, uploadURL, data); err != nil {
			return "", err
		}
	}

	id := gjson.GetBytes(resp, "id").String()
	if id == "" {
		return "", &Error{Provider: "onedrive", Category: CategoryUpstreamError}
	}
	return id, nil
}

func (o *OneDrive) createSession(ctx context.Context, credential, item string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"item": map[string]string{"@microsoft.graph.conflictBehavior": "rename"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, item+"/createUploadSession", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: "onedrive", Category: CategoryUpstreamError}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := send(o.client, "onedrive", req)
	if err != nil {
		return "", err
	}
	uploadURL := gjson.GetBytes(resp, "uploadUrl").String()
	if uploadURL == "" {
		return "", &Error{Provider: "onedrive", Category: CategoryUpstreamError}
	}
	return uploadURL, nil
}

// putChunks sends data in order and returns the final response, which holds
// the created item. The upload URL is pre-authorized and must not carry the
// bearer token.
func (o *OneDrive) putChunks(ctx context.Context, uploadURL string, data []byte) ([]byte, error) {
	var resp []byte
	total := len(data)
	for start := 0; start < total; start += o.chunkSize {
		end := min(start+o.chunkSize, total)

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data[start:end]))
		if err != nil {
			return nil, &Error{Provider: "onedrive", Category: CategoryUpstreamError}
		}
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, total))
		req.ContentLength = int64(end - start)

		if resp, err = send(o.client, "onedrive", req); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
