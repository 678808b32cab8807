package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/model"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func fixedNow() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

func encryptedToken(t *testing.T, token string) string {
	t.Helper()
	enc, err := crypto.Encrypt([]byte(token), testKey)
	require.NoError(t, err)
	return enc
}

func testOptions(url string) Options {
	return Options{
		NotionBaseURL: url,
		TrelloBaseURL: url,
		TrelloAPIKey:  "trello-key",
		Timeout:       2 * time.Second,
		Concurrency:   4,
		Key:           testKey,
		Now:           fixedNow,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// ---------- Registry ----------

func TestRegistry_For(t *testing.T) {
	reg := NewRegistry(testOptions("http://unused"))

	e, err := reg.For(model.WorkspaceTypeNotion)
	require.NoError(t, err)
	assert.IsType(t, &Notion{}, e)

	e, err = reg.For(model.WorkspaceTypeTrello)
	require.NoError(t, err)
	assert.IsType(t, &Trello{}, e)

	_, err = reg.For("asana")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

// ---------- Notion ----------

func notionServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-notion", r.Header.Get("Authorization"))
		assert.Equal(t, notionVersion, r.Header.Get("Notion-Version"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/search":
			var body struct {
				Filter struct {
					Value string `json:"value"`
				} `json:"filter"`
				StartCursor string `json:"start_cursor"`
				PageSize    int    `json:"page_size"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, notionPageSize, body.PageSize)

			switch {
			case body.Filter.Value == "page" && body.StartCursor == "":
				writeJSON(w, 200, `{"results":[{"object":"page","id":"p1","views":1}],"has_more":true,"next_cursor":"c2"}`)
			case body.Filter.Value == "page" && body.StartCursor == "c2":
				writeJSON(w, 200, `{"results":[{"object":"page","id":"p2","views":2.50}],"has_more":false,"next_cursor":null}`)
			case body.Filter.Value == "database":
				writeJSON(w, 200, `{"results":[{"object":"database","id":"d1"}],"has_more":false,"next_cursor":null}`)
			default:
				t.Errorf("unexpected search %+v", body)
				writeJSON(w, 400, `{}`)
			}
		case r.Method == http.MethodGet && r.URL.Path == "/blocks/p1/children":
			writeJSON(w, 200, `{"results":[{"id":"b1","type":"toggle","has_children":true}],"has_more":false}`)
		case r.Method == http.MethodGet && r.URL.Path == "/blocks/b1/children":
			writeJSON(w, 200, `{"results":[{"id":"b2","type":"paragraph","has_children":false}],"has_more":false}`)
		case r.Method == http.MethodGet && r.URL.Path == "/blocks/p2/children":
			writeJSON(w, 200, `{"results":[],"has_more":false}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			writeJSON(w, 404, `{}`)
		}
	}))
}

func TestNotion_Export(t *testing.T) {
	srv := notionServer(t)
	defer srv.Close()

	conn := model.WorkspaceConnection{WorkspaceType: model.WorkspaceTypeNotion, WorkspaceID: "ws-1", AccessToken: encryptedToken(t, "secret-notion")}
	b, err := NewNotion(testOptions(srv.URL)).Export(context.Background(), conn)
	require.NoError(t, err)

	bundle, ok := b.(NotionBundle)
	require.True(t, ok)
	assert.Equal(t, "2026-10-18T12:00:00.000Z", bundle.Timestamp)
	require.Len(t, bundle.Pages, 2)
	require.Len(t, bundle.Databases, 1)

	assert.Equal(t, "p1", bundle.Pages[0]["id"])
	assert.Equal(t, json.Number("1"), bundle.Pages[0]["views"])
	content := bundle.Pages[0]["content"].([]Object)
	require.Len(t, content, 1)
	children := content[0]["children"].([]Object)
	require.Len(t, children, 1)
	assert.Equal(t, "b2", children[0]["id"])

	assert.Equal(t, "p2", bundle.Pages[1]["id"])
	assert.Empty(t, bundle.Pages[1]["content"])
	assert.Equal(t, "d1", bundle.Databases[0]["id"])
}

func TestNotion_BundleSerializationIsCanonical(t *testing.T) {
	srv := notionServer(t)
	defer srv.Close()

	conn := model.WorkspaceConnection{WorkspaceType: model.WorkspaceTypeNotion, AccessToken: encryptedToken(t, "secret-notion")}
	b, err := NewNotion(testOptions(srv.URL)).Export(context.Background(), conn)
	require.NoError(t, err)

	first, err := json.Marshal(b)
	require.NoError(t, err)
	second, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"views":2.50`)

	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var back NotionBundle
	require.NoError(t, dec.Decode(&back))
	again, err := json.Marshal(back)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestNotion_Export_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, `{"object":"error","code":"unauthorized","message":"API token is invalid: secret-notion"}`)
	}))
	defer srv.Close()

	conn := model.WorkspaceConnection{AccessToken: encryptedToken(t, "secret-notion")}
	_, err := NewNotion(testOptions(srv.URL)).Export(context.Background(), conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Equal(t, CategoryUnauthorized, CategoryOf(err))
	assert.NotContains(t, err.Error(), "secret-notion")
	assert.NotContains(t, err.Error(), "API token is invalid")
}

func TestNotion_Export_FailsOnBlockError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			writeJSON(w, 200, `{"results":[{"id":"p1"}],"has_more":false}`)
			return
		}
		writeJSON(w, 429, `{"object":"error","code":"rate_limited"}`)
	}))
	defer srv.Close()

	conn := model.WorkspaceConnection{AccessToken: encryptedToken(t, "secret-notion")}
	b, err := NewNotion(testOptions(srv.URL)).Export(context.Background(), conn)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Equal(t, CategoryRateLimited, CategoryOf(err))
}

// nestedBlockServer serves one page whose every block has exactly one child,
// down to levels blocks. It counts block requests.
func nestedBlockServer(t *testing.T, levels int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			writeJSON(w, 200, `{"results":[{"id":"b0"}],"has_more":false}`)
			return
		}
		requests.Add(1)
		var n int
		_, err := fmt.Sscanf(r.URL.Path, "/blocks/b%d/children", &n)
		require.NoError(t, err)
		hasChildren := n+2 <= levels
		writeJSON(w, 200, fmt.Sprintf(`{"results":[{"id":"b%d","type":"toggle","has_children":%t}],"has_more":false}`, n+1, hasChildren))
	}))
}

func TestNotion_Export_FailsWhenTreeTooDeep(t *testing.T) {
	var requests atomic.Int32
	srv := nestedBlockServer(t, maxBlockDepth+1, &requests)
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.Concurrency = 1
	conn := model.WorkspaceConnection{AccessToken: encryptedToken(t, "secret-notion")}
	b, err := NewNotion(opts).Export(context.Background(), conn)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Equal(t, CategoryTooDeep, CategoryOf(err))
	assert.Equal(t, int32(maxBlockDepth), requests.Load())
}

func TestNotion_Export_TreeAtDepthLimit(t *testing.T) {
	var requests atomic.Int32
	srv := nestedBlockServer(t, maxBlockDepth, &requests)
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.Concurrency = 1
	conn := model.WorkspaceConnection{AccessToken: encryptedToken(t, "secret-notion")}
	b, err := NewNotion(opts).Export(context.Background(), conn)
	require.NoError(t, err)

	bundle := b.(NotionBundle)
	require.Len(t, bundle.Pages, 1)
	level := bundle.Pages[0]["content"].([]Object)
	depth := 0
	for len(level) > 0 {
		depth++
		children, _ := level[0]["children"].([]Object)
		level = children
	}
	assert.Equal(t, maxBlockDepth, depth)
}

func TestNotion_Export_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.Timeout = 20 * time.Millisecond
	conn := model.WorkspaceConnection{AccessToken: encryptedToken(t, "secret-notion")}
	_, err := NewNotion(opts).Export(context.Background(), conn)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Equal(t, CategoryTimeout, CategoryOf(err))
}

func TestNotion_Export_UndecryptableToken(t *testing.T) {
	conn := model.WorkspaceConnection{AccessToken: "not-a-token"}
	_, err := NewNotion(testOptions("http://unused")).Export(context.Background(), conn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, crypto.ErrDecryptionFailed))
	assert.False(t, errors.Is(err, ErrExportFailed))
}

// ---------- Trello ----------

func TestTrello_Export(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trello-key", r.URL.Query().Get("key"))
		assert.Equal(t, "secret-trello", r.URL.Query().Get("token"))

		switch r.URL.Path {
		case "/boards/board-1":
			assert.Equal(t, "all", r.URL.Query().Get("lists"))
			assert.Equal(t, "all", r.URL.Query().Get("members"))
			writeJSON(w, 200, `{"id":"board-1","name":"Roadmap","lists":[{"id":"l1"}]}`)
		case "/boards/board-1/cards":
			assert.Equal(t, "true", r.URL.Query().Get("attachments"))
			assert.Equal(t, "all", r.URL.Query().Get("checklists"))
			writeJSON(w, 200, `[{"id":"c1","name":"First"},{"id":"c2","name":"Second"}]`)
		case "/cards/c1/attachments":
			writeJSON(w, 200, `[{"id":"a1","url":"https://example.com/a1.png"}]`)
		case "/cards/c2/attachments":
			writeJSON(w, 200, `[]`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			writeJSON(w, 404, `{}`)
		}
	}))
	defer srv.Close()

	conn := model.WorkspaceConnection{WorkspaceType: model.WorkspaceTypeTrello, WorkspaceID: "board-1", AccessToken: encryptedToken(t, "secret-trello")}
	b, err := NewTrello(testOptions(srv.URL)).Export(context.Background(), conn)
	require.NoError(t, err)

	bundle, ok := b.(TrelloBundle)
	require.True(t, ok)
	assert.Equal(t, model.WorkspaceTypeTrello, bundle.WorkspaceType())
	assert.Equal(t, "Roadmap", bundle.Board["name"])
	require.Len(t, bundle.Cards, 2)
	assert.Equal(t, "c1", bundle.Cards[0]["id"])
	assert.Len(t, bundle.Cards[0]["attachments"], 1)
	assert.Len(t, bundle.Cards[1]["attachments"], 0)
}

func TestTrello_Export_BoardNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "board not found", http.StatusNotFound)
	}))
	defer srv.Close()

	conn := model.WorkspaceConnection{WorkspaceID: "missing", AccessToken: encryptedToken(t, "secret-trello")}
	_, err := NewTrello(testOptions(srv.URL)).Export(context.Background(), conn)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Equal(t, CategoryNotFound, CategoryOf(err))
	assert.NotContains(t, err.Error(), "secret-trello")
}

func TestTrello_Export_AttachmentFailureFailsWholeExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boards/b":
			writeJSON(w, 200, `{"id":"b"}`)
		case "/boards/b/cards":
			writeJSON(w, 200, `[{"id":"c1"}]`)
		default:
			writeJSON(w, 502, `bad gateway`)
		}
	}))
	defer srv.Close()

	conn := model.WorkspaceConnection{WorkspaceID: "b", AccessToken: encryptedToken(t, "secret-trello")}
	b, err := NewTrello(testOptions(srv.URL)).Export(context.Background(), conn)
	assert.Nil(t, b)
	assert.Equal(t, CategoryUpstreamError, CategoryOf(err))
}

func TestStatusCategory(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{401, ``, CategoryUnauthorized},
		{403, ``, CategoryUnauthorized},
		{400, `{"code":"restricted_resource"}`, CategoryUnauthorized},
		{404, ``, CategoryNotFound},
		{400, `{"code":"object_not_found"}`, CategoryNotFound},
		{429, ``, CategoryRateLimited},
		{504, ``, CategoryTimeout},
		{500, `oops`, CategoryUpstreamError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusCategory(tc.status, []byte(tc.body)), "status %d body %q", tc.status, tc.body)
	}
}
