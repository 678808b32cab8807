package exporter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/model"
)

const (
	notionVersion  = "2022-06-28"
	notionPageSize = 100
	// maxBlockDepth bounds recursion into nested child blocks. A deeper tree
	// fails the export.
	maxBlockDepth = 16
)

// Notion exports every page (with its block tree) and every database
// visible to an integration token.
type Notion struct {
	client      *apiClient
	key         []byte
	concurrency int
	now         func() time.Time
}

func NewNotion(opts Options) *Notion {
	return &Notion{
		client:      newAPIClient("notion", opts.NotionBaseURL, opts.Timeout),
		key:         opts.Key,
		concurrency: max(opts.Concurrency, 1),
		now:         nowOrDefault(opts.Now),
	}
}

func (n *Notion) Export(ctx context.Context, conn model.WorkspaceConnection) (Bundle, error) {
	token, err := crypto.DecryptString(conn.AccessToken, n.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt notion token: %w", err)
	}
	ts := timestamp(n.now)

	rawPages, err := n.search(ctx, token, "page")
	if err != nil {
		return nil, err
	}
	databases, err := n.search(ctx, token, "database")
	if err != nil {
		return nil, err
	}

	pages := make([]Object, len(rawPages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for i, page := range rawPages {
		g.Go(func() error {
			id, _ := page["id"].(string)
			blocks, err := n.blockTree(gctx, token, id, 0)
			if err != nil {
				return err
			}
			pages[i] = withField(page, "content", blocks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NotionBundle{Timestamp: ts, Pages: pages, Databases: databases}, nil
}

func (n *Notion) header(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Notion-Version", notionVersion)
	return h
}

// search lists every object of the given kind, following next_cursor until
// has_more is false.
func (n *Notion) search(ctx context.Context, token, kind string) ([]Object, error) {
	out := make([]Object, 0)
	cursor := ""
	for {
		body := map[string]any{
			"filter":    map[string]string{"property": "object", "value": kind},
			"page_size": notionPageSize,
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		data, err := n.client.do(ctx, http.MethodPost, "/search", nil, n.header(token), body)
		if err != nil {
			return nil, err
		}
		results, err := n.client.decodeList([]byte(gjson.GetBytes(data, "results").Raw))
		if err != nil {
			return nil, err
		}
		out = append(out, results...)

		next, more := nextCursor(data)
		if !more {
			return out, nil
		}
		cursor = next
	}
}

// blockTree fetches the children of a block or page, descending into blocks
// that report has_children.
func (n *Notion) blockTree(ctx context.Context, token, id string, depth int) ([]Object, error) {
	if id == "" {
		return make([]Object, 0), nil
	}

	out := make([]Object, 0)
	cursor := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(notionPageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}

		path := "/blocks/" + url.PathEscape(id) + "/children"
		data, err := n.client.do(ctx, http.MethodGet, path, q, n.header(token), nil)
		if err != nil {
			return nil, err
		}
		blocks, err := n.client.decodeList([]byte(gjson.GetBytes(data, "results").Raw))
		if err != nil {
			return nil, err
		}

		for _, block := range blocks {
			hasChildren, _ := block["has_children"].(bool)
			childID, _ := block["id"].(string)
			if hasChildren {
				if depth+1 >= maxBlockDepth {
					return nil, &Error{Source: "notion", Category: CategoryTooDeep}
				}
				children, err := n.blockTree(ctx, token, childID, depth+1)
				if err != nil {
					return nil, err
				}
				block = withField(block, "children", children)
			}
			out = append(out, block)
		}

		next, more := nextCursor(data)
		if !more {
			return out, nil
		}
		cursor = next
	}
}

func nextCursor(data []byte) (string, bool) {
	res := gjson.GetManyBytes(data, "has_more", "next_cursor")
	next := res[1].String()
	return next, res[0].Bool() && next != ""
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
