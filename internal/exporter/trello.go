package exporter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/backupvault/internal/crypto"
	"github.com/edvin/backupvault/internal/model"
)

// Trello exports a board with its lists, members and every card including
// checklists and attachments.
type Trello struct {
	client      *apiClient
	apiKey      string
	key         []byte
	concurrency int
	now         func() time.Time
}

func NewTrello(opts Options) *Trello {
	return &Trello{
		client:      newAPIClient("trello", opts.TrelloBaseURL, opts.Timeout),
		apiKey:      opts.TrelloAPIKey,
		key:         opts.Key,
		concurrency: max(opts.Concurrency, 1),
		now:         nowOrDefault(opts.Now),
	}
}

func (t *Trello) Export(ctx context.Context, conn model.WorkspaceConnection) (Bundle, error) {
	token, err := crypto.DecryptString(conn.AccessToken, t.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt trello token: %w", err)
	}
	ts := timestamp(t.now)
	boardPath := "/boards/" + url.PathEscape(conn.WorkspaceID)

	q := t.auth(token)
	q.Set("fields", "all")
	q.Set("lists", "all")
	q.Set("cards", "all")
	q.Set("members", "all")
	data, err := t.client.do(ctx, http.MethodGet, boardPath, q, nil, nil)
	if err != nil {
		return nil, err
	}
	board, err := decodeObject(data)
	if err != nil {
		return nil, &Error{Source: "trello", Category: CategoryUpstreamError}
	}

	q = t.auth(token)
	q.Set("attachments", "true")
	q.Set("checklists", "all")
	data, err = t.client.do(ctx, http.MethodGet, boardPath+"/cards", q, nil, nil)
	if err != nil {
		return nil, err
	}
	rawCards, err := t.client.decodeList(data)
	if err != nil {
		return nil, err
	}

	cards := make([]Object, len(rawCards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, card := range rawCards {
		g.Go(func() error {
			id, _ := card["id"].(string)
			attachments, err := t.attachments(gctx, token, id)
			if err != nil {
				return err
			}
			cards[i] = withField(card, "attachments", attachments)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return TrelloBundle{Timestamp: ts, Board: board, Cards: cards}, nil
}

func (t *Trello) attachments(ctx context.Context, token, cardID string) ([]Object, error) {
	if cardID == "" {
		return make([]Object, 0), nil
	}
	data, err := t.client.do(ctx, http.MethodGet, "/cards/"+url.PathEscape(cardID)+"/attachments", t.auth(token), nil, nil)
	if err != nil {
		return nil, err
	}
	return t.client.decodeList(data)
}

func (t *Trello) auth(token string) url.Values {
	q := url.Values{}
	q.Set("key", t.apiKey)
	q.Set("token", token)
	return q
}
