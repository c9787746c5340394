package pocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"pocketkit/internal/logger"
)

const (
	// DefaultBaseURL is Pocket's v3 API root.
	DefaultBaseURL = "https://getpocket.com/v3"
	// DefaultPageSize is the page size ListAll requests.
	DefaultPageSize = 5000
)

// Client is a Pocket v3 API client. It holds immutable credentials and a
// reusable *http.Client and is safe for concurrent use.
type Client struct {
	BaseURL     *url.URL
	ConsumerKey string
	AccessToken string
	HTTPClient  *http.Client

	logger   *logger.Logger
	now      func() time.Time
	pageSize uint32
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport. Timeouts are the http.Client's concern;
// the Client adds none of its own. A nil hc selects http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			hc = http.DefaultClient
		}
		c.HTTPClient = hc
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock sets the time source used to stamp actions built by the
// convenience wrappers.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithPageSize sets the count ListAll requests per page.
func WithPageSize(n uint32) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a new Pocket API client.
func NewClient(baseURL, consumerKey, accessToken string, opts ...Option) (*Client, error) {
	parsedURL, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if consumerKey == "" {
		return nil, fmt.Errorf("consumer key is required")
	}

	c := &Client{
		BaseURL:     parsedURL,
		ConsumerKey: consumerKey,
		AccessToken: accessToken,
		HTTPClient:  http.DefaultClient,
		logger:      logger.Discard(),
		now:         time.Now,
		pageSize:    DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type authFields struct {
	ConsumerKey string `json:"consumer_key"`
	AccessToken string `json:"access_token"`
}

type getRequest struct {
	authFields
	Query
}

type sendRequest struct {
	authFields
	Actions []Action `json:"actions"`
}

func (c *Client) auth() authFields {
	return authFields{ConsumerKey: c.ConsumerKey, AccessToken: c.AccessToken}
}

// doRequest POSTs body as JSON to path and returns the raw response body.
// Connection failures and non-2xx answers are *TransportError.
func (c *Client) doRequest(ctx context.Context, op, path string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	reqURL := c.BaseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			XError:     resp.Header.Get("X-Error"),
			XErrorCode: resp.Header.Get("X-Error-Code"),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return data, nil
}

// GetPage issues one get request and returns the classified page.
func (c *Client) GetPage(ctx context.Context, q Query) (Page, error) {
	body, err := c.doRequest(ctx, "pocket.get", "/get", getRequest{authFields: c.auth(), Query: q})
	if err != nil {
		return Page{}, err
	}
	return DecodePage(body)
}

// Get fetches a single page for q. A page past the end is an empty list.
func (c *Client) Get(ctx context.Context, q Query) (ReadingList, error) {
	page, err := c.GetPage(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reading list: %w", err)
	}
	return page.List, nil
}

// ListAll fetches every item, archived or not, with complete detail. Pages
// are requested one after another until Pocket answers with an empty list.
// Any failure discards the pages fetched so far.
func (c *Client) ListAll(ctx context.Context) (ReadingList, error) {
	list, _, err := c.listPages(ctx, "pocket.list_all", 0)
	return list, err
}

// Changes fetches the entries added, modified or removed since the given
// server time. Removed items come back as deleted entries. The returned
// cursor is the "since" of the first page, to be passed to the next call.
// A zero since lists everything like ListAll.
func (c *Client) Changes(ctx context.Context, since int64) (ReadingList, int64, error) {
	return c.listPages(ctx, "pocket.changes", since)
}

func (c *Client) listPages(ctx context.Context, op string, since int64) (ReadingList, int64, error) {
	log := c.logger.With("op", op, "page_size", c.pageSize, "since", since)
	acc := ReadingList{}
	var cursor int64

	for n := uint32(0); ; n++ {
		q := listAllQuery(n, c.pageSize)
		if since > 0 {
			q.Since = Ptr(since)
		}
		log.Debug("requesting page", "page", n, "offset", *q.Offset)

		page, err := c.GetPage(ctx, q)
		if err != nil {
			log.Warn("listing failed", "page", n, "err", err)
			return nil, 0, fmt.Errorf("failed to list page %d: %w", n, err)
		}
		if n == 0 {
			cursor = page.Since
		}
		if page.Kind == PageNoMore {
			log.Debug("listing done", "pages", n, "entries", len(acc))
			return acc, cursor, nil
		}
		acc.Merge(page.List)
		log.Debug("accumulated page", "page", n, "entries", len(page.List), "total", len(acc))
	}
}

// Modify submits actions as one batch and returns one outcome per action in
// the order given. An empty batch returns an empty response without a
// request.
func (c *Client) Modify(ctx context.Context, actions []Action) (ModifyResponse, error) {
	if len(actions) == 0 {
		return ModifyResponse{}, nil
	}
	log := c.logger.With("op", "pocket.send", "batch", uuid.NewString(), "actions", len(actions))

	body, err := c.doRequest(ctx, "pocket.send", "/send", sendRequest{authFields: c.auth(), Actions: actions})
	if err != nil {
		log.Warn("batch failed", "err", err)
		return nil, fmt.Errorf("failed to send actions: %w", err)
	}

	resp, err := DecodeModify(body, len(actions), log.Warn)
	if err != nil {
		return nil, err
	}
	if failed := resp.Failed(); len(failed) > 0 {
		log.Info("batch partially rejected", "failed", len(failed))
	} else {
		log.Debug("batch applied")
	}
	return resp, nil
}

func (c *Client) modifyIDs(ctx context.Context, ids []ItemID, build func(ItemID, time.Time) Action) (ModifyResponse, error) {
	now := c.now()
	actions := make([]Action, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, build(id, now))
	}
	return c.Modify(ctx, actions)
}

// Archive marks the items as read.
func (c *Client) Archive(ctx context.Context, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyIDs(ctx, ids, Archive)
}

// Readd moves archived items back to the unread list.
func (c *Client) Readd(ctx context.Context, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyIDs(ctx, ids, Readd)
}

func (c *Client) Favorite(ctx context.Context, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyIDs(ctx, ids, Favorite)
}

func (c *Client) Unfavorite(ctx context.Context, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyIDs(ctx, ids, Unfavorite)
}

func (c *Client) Delete(ctx context.Context, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyIDs(ctx, ids, Delete)
}

// AddURLs saves each URL as a new item.
func (c *Client) AddURLs(ctx context.Context, urls ...string) (ModifyResponse, error) {
	now := c.now()
	actions := make([]Action, 0, len(urls))
	for _, u := range urls {
		actions = append(actions, Add(u, now))
	}
	return c.Modify(ctx, actions)
}

func (c *Client) modifyTags(ctx context.Context, ids []ItemID, tags []string, build func(ItemID, []string, time.Time) Action) (ModifyResponse, error) {
	now := c.now()
	actions := make([]Action, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, build(id, tags, now))
	}
	return c.Modify(ctx, actions)
}

func (c *Client) AddTags(ctx context.Context, tags []string, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyTags(ctx, ids, tags, TagsAdd)
}

func (c *Client) ReplaceTags(ctx context.Context, tags []string, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyTags(ctx, ids, tags, TagsReplace)
}

func (c *Client) RemoveTags(ctx context.Context, tags []string, ids ...ItemID) (ModifyResponse, error) {
	return c.modifyTags(ctx, ids, tags, TagsRemove)
}
