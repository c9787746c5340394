package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pocketkit/internal/cache"
	"pocketkit/internal/config"
	"pocketkit/internal/logger"
	"pocketkit/internal/pocket"
	"pocketkit/internal/urlclean"
)

// Authenticator runs the OAuth flow. *pocket.Authenticator satisfies it.
type Authenticator interface {
	RequestToken(ctx context.Context, redirectURI string) (string, error)
	AuthorizationURL(token, redirectURI string) string
	Authorize(ctx context.Context, token string) (pocket.Authorization, error)
}

// App holds the application's core dependencies and configuration.
type App struct {
	Config        *config.Config
	Client        pocket.ClientInterface
	Authenticator Authenticator
	Store         *cache.Store
	Logger        *logger.Logger

	in  io.Reader
	out io.Writer
	now func() time.Time
}

// Option is a functional option for configuring the App.
type Option func(*App)

// NewApp creates a new App instance with the given options.
func NewApp(opts ...Option) *App {
	app := &App{
		Logger: logger.Discard(),
		in:     os.Stdin,
		out:    os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithClient sets the Pocket API client.
func WithClient(client pocket.ClientInterface) Option {
	return func(a *App) {
		a.Client = client
	}
}

func WithAuthenticator(auth Authenticator) Option {
	return func(a *App) {
		a.Authenticator = auth
	}
}

// WithStore sets the reading list cache.
func WithStore(store *cache.Store) Option {
	return func(a *App) {
		a.Store = store
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

var (
	errNoClient = errors.New("no Pocket client configured: run the auth command first")
	errNoStore  = errors.New("no reading list cache configured")
)

func (a *App) client() (pocket.ClientInterface, error) {
	if a.Client == nil {
		return nil, errNoClient
	}
	return a.Client, nil
}

func (a *App) store() (*cache.Store, error) {
	if a.Store == nil {
		return nil, errNoStore
	}
	return a.Store, nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// BatchError reports that some actions of a batch were rejected.
type BatchError struct {
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d actions failed", e.Failed, e.Total)
}

// report prints one line per outcome, labelled in submission order, and
// returns a *BatchError when any action was rejected.
func (a *App) report(labels []string, resp pocket.ModifyResponse) error {
	for i, outcome := range resp {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		if outcome.OK() {
			a.printf("ok\t%s\n", label)
			continue
		}
		a.printf("failed\t%s: %v\n", label, outcome.Err)
	}
	if failed := resp.Failed(); len(failed) > 0 {
		return &BatchError{Failed: len(failed), Total: len(resp)}
	}
	return nil
}

// readLines returns the non-blank lines of r, trimmed, skipping "#" comments.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}

// urlIndex maps cleaned URLs to item ids. Both the given and the resolved URL
// of an item are indexed; the first id in key order wins on collisions. It
// also counts the items saved under each host.
type urlIndex struct {
	list  pocket.ReadingList
	ids   map[string]pocket.ItemID
	hosts map[string]int
}

func newURLIndex(list pocket.ReadingList) *urlIndex {
	idx := &urlIndex{list: list, ids: make(map[string]pocket.ItemID), hosts: make(map[string]int)}
	for _, item := range list.Items() {
		for _, u := range []string{item.GivenURL, item.ResolvedURL} {
			if u == "" {
				continue
			}
			key := urlclean.Cleanup(u)
			if _, ok := idx.ids[key]; !ok {
				idx.ids[key] = item.ItemID
			}
		}
		for _, host := range urlclean.Hosts(item.EffectiveURL()) {
			idx.hosts[host]++
		}
	}
	return idx
}

// lookup returns the live item saved under rawURL, if any.
func (idx *urlIndex) lookup(rawURL string) *pocket.Item {
	id, ok := idx.ids[urlclean.Cleanup(rawURL)]
	if !ok {
		return nil
	}
	return idx.list[id].Item
}

// savedFrom returns the most specific host of rawURL that has saved items,
// and how many.
func (idx *urlIndex) savedFrom(rawURL string) (string, int) {
	for _, host := range urlclean.Hosts(rawURL) {
		if n := idx.hosts[host]; n > 0 {
			return host, n
		}
	}
	return "", 0
}
