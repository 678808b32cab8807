package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/tidwall/gjson"
)

// GoogleDrive uploads with a single multipart request. The folder, when
// set, is the id of the parent folder.
type GoogleDrive struct {
	baseURL string
	client  *http.Client
}

func NewGoogleDrive(baseURL string, timeout time.Duration) *GoogleDrive {
	return &GoogleDrive{baseURL: baseURL, client: newHTTPClient(timeout)}
}

func (g *GoogleDrive) Put(ctx context.Context, credential, folder, name string, data []byte) (string, error) {
	meta := map[string]any{
		"name":          name,
		"mimeType":      "application/octet-stream",
		"appProperties": map[string]string{"namespace": Namespace},
	}
	if folder != "" {
		meta["parents"] = []string{folder}
	}

	body, contentType, err := multipartBody(meta, data)
	if err != nil {
		return "", &Error{Provider: "google_drive", Category: CategoryUpstreamError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/files?uploadType=multipart&fields=id,name", body)
	if err != nil {
		return "", &Error{Provider: "google_drive", Category: CategoryUpstreamError}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", contentType)

	resp, err := send(g.client, "google_drive", req)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(resp, "id").String()
	if id == "" {
		return "", &Error{Provider: "google_drive", Category: CategoryUpstreamError}
	}
	return id, nil
}

func multipartBody(meta map[string]any, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}
	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, "", err
	}

	part, err = w.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/octet-stream"}})
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, "multipart/related; boundary=" + w.Boundary(), nil
}
