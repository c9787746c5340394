// Package pockettest provides an in-memory Pocket API for tests. It speaks the
// same JSON as the real service, including its quirks: an empty page is sent
// as "list": [], removed items come back as {item_id, status: "2"} and send
// answers with twin action_results/action_errors arrays.
package pockettest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pocketkit/internal/logger"
	"pocketkit/internal/pocket"
)

const (
	DefaultConsumerKey  = "1234-abcd1234abcd1234abcd1234"
	DefaultAccessToken  = "5678defg-5678-defg-5678-defg56"
	DefaultRequestToken = "dcba4321-dcba-4321-dcba-4321dc"
	DefaultUsername     = "pocketuser"
)

// Server is a fake Pocket API backed by an in-memory reading list.
type Server struct {
	*httptest.Server

	ConsumerKey  string
	AccessToken  string
	RequestToken string
	Username     string

	logger *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	items    map[pocket.ItemID]*pocket.Item
	deleted  map[pocket.ItemID]uint64
	nextID   int
	requests map[string]int
	failures []failure
}

type failure struct {
	status     int
	xError     string
	xErrorCode string
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the time source used for timestamps the server assigns.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithCredentials sets the consumer key and access token the server accepts.
func WithCredentials(consumerKey, accessToken string) Option {
	return func(s *Server) {
		s.ConsumerKey = consumerKey
		s.AccessToken = accessToken
	}
}

// NewServer starts a fake Pocket API. Close it when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		ConsumerKey:  DefaultConsumerKey,
		AccessToken:  DefaultAccessToken,
		RequestToken: DefaultRequestToken,
		Username:     DefaultUsername,
		logger:       logger.Discard(),
		now:          time.Now,
		items:        make(map[pocket.ItemID]*pocket.Item),
		deleted:      make(map[pocket.ItemID]uint64),
		nextID:       1000,
		requests:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/get", s.handleGet)
	mux.HandleFunc("/send", s.handleSend)
	mux.HandleFunc("/oauth/request", s.handleOAuthRequest)
	mux.HandleFunc("/oauth/authorize", s.handleOAuthAuthorize)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("not found", "path", r.URL.Path, "method", r.Method)
		http.Error(w, "404 Not Found", http.StatusNotFound)
	})

	s.Server = httptest.NewServer(loggingMiddleware(s.logger, s.countRequest, s.failureMiddleware(mux)))
	return s
}

// PocketClient returns a client configured for this server's credentials.
func (s *Server) PocketClient(opts ...pocket.Option) (*pocket.Client, error) {
	opts = append([]pocket.Option{pocket.WithHTTPClient(s.Client())}, opts...)
	return pocket.NewClient(s.URL, s.ConsumerKey, s.AccessToken, opts...)
}

func (s *Server) countRequest(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[path]++
}

// Requests returns how many requests were made to path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// FailNext makes the next request answer with status and Pocket's error
// headers instead of being served.
func (s *Server) FailNext(status int, xError, xErrorCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, xError: xError, xErrorCode: xErrorCode})
}

func (s *Server) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var f *failure
		if len(s.failures) > 0 {
			f = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		if f.xError != "" {
			w.Header().Set("X-Error", f.xError)
			w.Header().Set("X-Error-Code", f.xErrorCode)
		}
		w.WriteHeader(f.status)
	})
}

// Add seeds an unread item for givenURL and returns its id.
func (s *Server) Add(givenURL, title string) pocket.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(givenURL, title, uint64(s.now().Unix())).ItemID
}

// Put stores item as is, replacing any item with the same id.
func (s *Server) Put(item pocket.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ItemID] = &item
	delete(s.deleted, item.ItemID)
}

// Item returns a copy of the stored item.
func (s *Server) Item(id pocket.ItemID) (pocket.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return pocket.Item{}, false
	}
	return *item, true
}

// Len returns the number of live items.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Server) addLocked(givenURL, title string, at uint64) *pocket.Item {
	for _, item := range s.items {
		if item.GivenURL == givenURL {
			return item
		}
	}

	s.nextID++
	id := strconv.Itoa(s.nextID)
	item := &pocket.Item{
		ItemID:        id,
		ResolvedID:    id,
		GivenURL:      givenURL,
		ResolvedURL:   givenURL,
		GivenTitle:    title,
		ResolvedTitle: title,
		IsArticle:     true,
		TimeAdded:     at,
		TimeUpdated:   at,
		Lang:          "en",
		Tags:          map[string]pocket.Tag{},
		Authors:       map[string]pocket.Author{},
		Images:        map[string]pocket.Image{},
		Videos:        map[string]pocket.Video{},
	}
	s.items[id] = item
	delete(s.deleted, id)
	return item
}

func (s *Server) authorized(w http.ResponseWriter, consumerKey, accessToken string) bool {
	if consumerKey != s.ConsumerKey {
		w.Header().Set("X-Error", "Invalid consumer key.")
		w.Header().Set("X-Error-Code", "152")
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	if accessToken != s.AccessToken {
		w.Header().Set("X-Error", "Invalid access token.")
		w.Header().Set("X-Error-Code", "107")
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

type getRequest struct {
	ConsumerKey string  `json:"consumer_key"`
	AccessToken string  `json:"access_token"`
	State       string  `json:"state"`
	Favorite    *string `json:"favorite"`
	Tag         *string `json:"tag"`
	ContentType string  `json:"contentType"`
	Sort        string  `json:"sort"`
	DetailType  string  `json:"detailType"`
	Search      string  `json:"search"`
	Domain      string  `json:"domain"`
	Since       int64   `json:"since"`
	Count       int     `json:"count"`
	Offset      int     `json:"offset"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req getRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("invalid get request", "err", err)
		w.Header().Set("X-Error", "Invalid request, please refer to API documentation")
		w.Header().Set("X-Error-Code", "0")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !s.authorized(w, req.ConsumerKey, req.AccessToken) {
		return
	}

	rawList, n, err := s.page(req)
	if err != nil {
		http.Error(w, "Failed to encode list", http.StatusInternalServerError)
		s.logger.Error("failed to encode list", "err", err)
		return
	}

	resp := map[string]any{
		"status":   1,
		"complete": 1,
		"list":     rawList,
		"error":    nil,
		"since":    s.now().Unix(),
	}
	if n == 0 {
		resp["status"] = 2
	}
	s.writeJSON(w, resp)
}

// page renders the list for req, or an empty JSON array when nothing matches.
func (s *Server) page(req getRequest) (json.RawMessage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.filterLocked(req)
	sortItems(matched, req.Sort)

	if req.Offset > 0 {
		if req.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[req.Offset:]
		}
	}
	if req.Count > 0 && len(matched) > req.Count {
		matched = matched[:req.Count]
	}

	list := make(map[string]pocket.Entry, len(matched))
	for _, item := range matched {
		if req.DetailType != string(pocket.DetailComplete) {
			item.Images, item.Videos, item.Authors, item.Tags, item.Image = nil, nil, nil, nil, nil
		}
		list[item.ItemID] = pocket.Entry{Item: &item}
	}
	if req.Since > 0 && req.Offset == 0 {
		for id, at := range s.deleted {
			if int64(at) >= req.Since {
				list[id] = pocket.Entry{Deleted: &pocket.DeletedItem{ItemID: id}}
			}
		}
	}

	if len(list) == 0 {
		return json.RawMessage("[]"), 0, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, 0, err
	}
	return data, len(list), nil
}

// filterLocked returns copies of the items that match req.
func (s *Server) filterLocked(req getRequest) []pocket.Item {
	var out []pocket.Item
	for _, item := range s.items {
		switch req.State {
		case string(pocket.StateArchive):
			if item.Status != pocket.Read {
				continue
			}
		case string(pocket.StateAll):
		default:
			if item.Status != pocket.Unread {
				continue
			}
		}
		if req.Favorite != nil && *req.Favorite != strconv.Itoa(int(item.Favorite)) {
			continue
		}
		if req.Tag != nil && !matchTag(item, *req.Tag) {
			continue
		}
		if req.ContentType == string(pocket.ContentArticle) && !item.IsArticle {
			continue
		}
		if req.ContentType == string(pocket.ContentVideo) && item.HasVideo == pocket.VideoNo {
			continue
		}
		if req.ContentType == string(pocket.ContentImage) && item.HasImage != pocket.ImageIsSelf {
			continue
		}
		if req.Search != "" && !matchSearch(item, req.Search) {
			continue
		}
		if req.Domain != "" && !matchDomain(item, req.Domain) {
			continue
		}
		if req.Since > 0 && int64(item.TimeUpdated) < req.Since {
			continue
		}
		out = append(out, *item)
	}
	return out
}

func matchTag(item *pocket.Item, tag string) bool {
	if tag == "_untagged_" {
		return len(item.Tags) == 0
	}
	_, ok := item.Tags[tag]
	return ok
}

func matchSearch(item *pocket.Item, needle string) bool {
	needle = strings.ToLower(needle)
	return strings.Contains(strings.ToLower(item.EffectiveTitle()), needle) ||
		strings.Contains(strings.ToLower(item.EffectiveURL()), needle)
}

func matchDomain(item *pocket.Item, domain string) bool {
	u, err := url.Parse(item.EffectiveURL())
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func sortItems(items []pocket.Item, order string) {
	less := func(a, b pocket.Item) bool {
		return a.TimeAdded > b.TimeAdded
	}
	switch order {
	case string(pocket.SortOldest):
		less = func(a, b pocket.Item) bool { return a.TimeAdded < b.TimeAdded }
	case string(pocket.SortTitle):
		less = func(a, b pocket.Item) bool { return a.EffectiveTitle() < b.EffectiveTitle() }
	case string(pocket.SortSite):
		less = func(a, b pocket.Item) bool { return a.EffectiveURL() < b.EffectiveURL() }
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ItemID < b.ItemID
	})
}

type sendRequest struct {
	ConsumerKey string            `json:"consumer_key"`
	AccessToken string            `json:"access_token"`
	Actions     []json.RawMessage `json:"actions"`
}

type sendAction struct {
	Action string `json:"action"`
	ItemID string `json:"item_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Tags   string `json:"tags"`
	Time   int64  `json:"time"`
}

type actionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

var (
	errInvalidURL = &actionError{Code: 422, Message: "Invalid/non-existent URL", Type: "Unprocessable Entity"}
	errNoItem     = &actionError{Code: 400, Message: "Item not found", Type: "Bad Request"}
	errBadAction  = &actionError{Code: 400, Message: "Invalid action", Type: "Bad Request"}
)

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("invalid send request", "err", err)
		w.Header().Set("X-Error", "Invalid request, please refer to API documentation")
		w.Header().Set("X-Error-Code", "0")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !s.authorized(w, req.ConsumerKey, req.AccessToken) {
		return
	}

	results := make([]any, len(req.Actions))
	errs := make([]*actionError, len(req.Actions))
	allSucceeded := true

	s.mu.Lock()
	for i, raw := range req.Actions {
		var action sendAction
		if err := json.Unmarshal(raw, &action); err != nil {
			results[i], errs[i] = false, errBadAction
		} else {
			results[i], errs[i] = s.applyLocked(action)
		}
		if errs[i] != nil {
			allSucceeded = false
			s.logger.Debug("action rejected", "action", action.Action, "err", errs[i].Message)
		}
	}
	s.mu.Unlock()

	status := 1
	if !allSucceeded {
		status = 0
	}
	s.writeJSON(w, map[string]any{
		"status":         status,
		"action_results": results,
		"action_errors":  errs,
	})
}

func (s *Server) applyLocked(a sendAction) (any, *actionError) {
	at := uint64(s.now().Unix())
	if a.Time > 0 {
		at = uint64(a.Time)
	}

	if a.Action == string(pocket.ActionAdd) {
		u, err := url.Parse(a.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return false, errInvalidURL
		}
		item := s.addLocked(a.URL, a.Title, at)
		applyTags(item, splitTags(a.Tags), true)
		return modified(item), nil
	}

	item, ok := s.items[a.ItemID]
	if !ok {
		return false, errNoItem
	}

	switch pocket.ActionKind(a.Action) {
	case pocket.ActionArchive:
		item.Status = pocket.Read
		item.TimeRead = at
	case pocket.ActionReadd:
		item.Status = pocket.Unread
		item.TimeRead = 0
		item.TimeUpdated = at
		return modified(item), nil
	case pocket.ActionFavorite:
		item.Favorite = pocket.Favorited
		item.TimeFavorited = at
	case pocket.ActionUnfavorite:
		item.Favorite = pocket.NotFavorited
		item.TimeFavorited = 0
	case pocket.ActionDelete:
		delete(s.items, a.ItemID)
		s.deleted[a.ItemID] = at
		return true, nil
	case pocket.ActionTagsAdd:
		applyTags(item, splitTags(a.Tags), true)
	case pocket.ActionTagsReplace:
		item.Tags = map[string]pocket.Tag{}
		applyTags(item, splitTags(a.Tags), true)
	case pocket.ActionTagsRemove:
		applyTags(item, splitTags(a.Tags), false)
	default:
		return false, errBadAction
	}
	item.TimeUpdated = at
	return true, nil
}

func splitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func applyTags(item *pocket.Item, tags []string, add bool) {
	if item.Tags == nil {
		item.Tags = map[string]pocket.Tag{}
	}
	for _, t := range tags {
		if add {
			item.Tags[t] = pocket.Tag{ItemID: item.ItemID, Tag: t}
		} else {
			delete(item.Tags, t)
		}
	}
}

func modified(item *pocket.Item) pocket.ModifiedItem {
	givenURL, lang := item.GivenURL, item.Lang
	return pocket.ModifiedItem{
		ItemID:      item.ItemID,
		ResolvedID:  item.ResolvedID,
		GivenURL:    &givenURL,
		ResolvedURL: item.ResolvedURL,
		Excerpt:     item.Excerpt,
		IsArticle:   item.IsArticle,
		HasImage:    item.HasImage,
		HasVideo:    item.HasVideo,
		WordCount:   item.WordCount,
		Lang:        &lang,
	}
}

func (s *Server) handleOAuthRequest(w http.ResponseWriter, r *http.Request) {
	if !s.parseOAuthForm(w, r) {
		return
	}
	if r.PostForm.Get("redirect_uri") == "" {
		w.Header().Set("X-Error", "Missing redirect url.")
		w.Header().Set("X-Error-Code", "140")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_, _ = io.WriteString(w, url.Values{"code": {s.RequestToken}}.Encode())
}

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	if !s.parseOAuthForm(w, r) {
		return
	}
	if r.PostForm.Get("code") != s.RequestToken {
		w.Header().Set("X-Error", "User rejected code.")
		w.Header().Set("X-Error-Code", "158")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	_, _ = io.WriteString(w, url.Values{
		"access_token": {s.AccessToken},
		"username":     {s.Username},
	}.Encode())
}

func (s *Server) parseOAuthForm(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return false
	}
	if r.PostForm.Get("consumer_key") != s.ConsumerKey {
		w.Header().Set("X-Error", "Invalid consumer key.")
		w.Header().Set("X-Error-Code", "152")
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
		s.logger.Error("failed to encode response", "err", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
