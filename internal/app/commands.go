package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pocketkit/internal/crypto"
	"pocketkit/internal/logger"
	"pocketkit/internal/pocket"
	"pocketkit/internal/urlclean"
)

// Auth walks the user through Pocket's OAuth flow and prints shell exports
// for the resulting credentials. The access token is sealed when a token key
// is configured.
func (a *App) Auth(ctx context.Context) error {
	if a.Authenticator == nil {
		return errors.New("no authenticator configured")
	}

	token, err := a.Authenticator.RequestToken(ctx, pocket.DefaultRedirectURI)
	if err != nil {
		return err
	}
	a.printf("Please visit %s\n", a.Authenticator.AuthorizationURL(token, pocket.DefaultRedirectURI))
	a.printf("Press enter after authorizing with Pocket\n")
	if _, err := bufio.NewReader(a.in).ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	authorization, err := a.Authenticator.Authorize(ctx, token)
	if err != nil {
		return err
	}
	a.Logger.Infof("Authorized as %s with token %s", authorization.Username, logger.Redact(authorization.AccessToken))

	accessToken := authorization.AccessToken
	consumerKey := ""
	if a.Config != nil {
		consumerKey = a.Config.Pocket.ConsumerKey
		if key := a.Config.Pocket.TokenKey; key != "" {
			accessToken, err = crypto.Seal(accessToken, key)
			if err != nil {
				return fmt.Errorf("failed to seal access token: %w", err)
			}
		}
	}

	a.printf("export POCKET_CONSUMER_KEY=%q\n", consumerKey)
	a.printf("export POCKET_ACCESS_TOKEN=%q\n", accessToken)
	return nil
}

// ListOptions narrows a single get request. Zero values leave Pocket's
// defaults in place.
type ListOptions struct {
	State    pocket.State
	Favorite bool
	Tag      string
	Search   string
	Domain   string
	Sort     pocket.Sort
	Count    uint32
	Offset   uint32
}

func (o ListOptions) query() pocket.Query {
	q := pocket.Query{DetailType: pocket.Ptr(pocket.DetailSimple)}
	if o.State != "" {
		q.State = pocket.Ptr(o.State)
	}
	if o.Favorite {
		q.Favorite = pocket.Ptr(pocket.Favorited)
	}
	switch o.Tag {
	case "":
	case "_untagged_":
		q.Tag = pocket.Ptr(pocket.Untagged())
	default:
		q.Tag = pocket.Ptr(pocket.Tagged(o.Tag))
	}
	if o.Search != "" {
		q.Search = pocket.Ptr(o.Search)
	}
	if o.Domain != "" {
		q.Domain = pocket.Ptr(o.Domain)
	}
	if o.Sort != "" {
		q.Sort = pocket.Ptr(o.Sort)
	}
	if o.Count > 0 {
		q.Count = pocket.Ptr(o.Count)
	}
	if o.Offset > 0 {
		q.Offset = pocket.Ptr(o.Offset)
	}
	return q
}

// List prints one page of items matching opts as "id | title | url". A
// domain given as a URL is narrowed to its registrable domain.
func (a *App) List(ctx context.Context, opts ListOptions) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	if strings.Contains(opts.Domain, "://") {
		site, err := urlclean.Site(opts.Domain)
		if err != nil {
			return fmt.Errorf("%w: invalid domain: %v", ErrUsage, err)
		}
		a.Logger.Debugf("Listing domain %s for %s", site, opts.Domain)
		opts.Domain = site
	}

	list, err := client.Get(ctx, opts.query())
	if err != nil {
		return err
	}
	for _, item := range list.Items() {
		a.printf("%s | %s | %s\n", item.ItemID, item.EffectiveTitle(), item.EffectiveURL())
	}
	a.Logger.Debugf("Listed %d entries", len(list))
	return nil
}

// Sync downloads the whole reading list and replaces the cache with it.
func (a *App) Sync(ctx context.Context) error {
	return a.sync(ctx, false)
}

// SyncChanges applies the changes made since the last sync to the cache.
// Without a saved cursor it downloads everything like Sync.
func (a *App) SyncChanges(ctx context.Context) error {
	return a.sync(ctx, true)
}

func (a *App) sync(ctx context.Context, incremental bool) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}

	list := pocket.ReadingList{}
	var since int64
	if incremental {
		if since, err = store.Since(); err != nil {
			return err
		}
		if since == 0 {
			a.Logger.Infof("No sync cursor in %s, downloading everything", store.Path())
		} else if list, err = store.Load(); err != nil {
			return err
		}
	}

	changes, cursor, err := client.Changes(ctx, since)
	if err != nil {
		return err
	}
	list.Merge(changes)
	removed := 0
	for id, entry := range list {
		if entry.IsDeleted() {
			delete(list, id)
			removed++
		}
	}
	if err := store.Save(list, cursor); err != nil {
		return err
	}
	if since > 0 {
		a.printf("Applied %d changes, %d removed\n", len(changes), removed)
	}
	a.printf("Saved %d items to %s\n", len(list.Items()), store.Path())
	return nil
}

// Search prints every live item whose URL contains needle.
func (a *App) Search(ctx context.Context, needle string) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	list, err := client.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, item := range list.Items() {
		u := item.EffectiveURL()
		if !strings.Contains(u, needle) {
			continue
		}
		a.printf("Id:\t%s\nTitle:\t%s\nStatus:\t%s\nUsed url:\t%s\nCleaned url:\t%s\n\n",
			item.ItemID, item.EffectiveTitle(), item.Status, u, urlclean.Cleanup(u))
	}
	return nil
}

// Inspect prints the cached reading list as "title | url | clean | status".
func (a *App) Inspect() error {
	store, err := a.store()
	if err != nil {
		return err
	}
	list, err := store.Load()
	if err != nil {
		return err
	}
	if updated, err := store.UpdatedAt(); err == nil && !updated.IsZero() {
		a.Logger.Infof("Reading list cache %s is %s old", store.Path(), a.now().Sub(updated).Round(time.Second))
	}
	for _, item := range list.Items() {
		u := item.EffectiveURL()
		a.printf("%s | %s | %s | %s\n", item.EffectiveTitle(), u, urlclean.Cleanup(u), item.Status)
	}
	return nil
}

// Add saves every URL listed in r that is not in the reading list yet.
// Duplicates are detected on cleaned URLs.
func (a *App) Add(ctx context.Context, r io.Reader) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	lines, err := readLines(r)
	if err != nil {
		return err
	}
	list, err := client.ListAll(ctx)
	if err != nil {
		return err
	}

	idx := newURLIndex(list)
	seen := make(map[string]bool)
	var urls []string
	for _, u := range lines {
		if item := idx.lookup(u); item != nil {
			a.printf("Url %s already there. Not adding.\n", u)
			continue
		}
		key := urlclean.Cleanup(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		urls = append(urls, u)
	}

	resp, err := client.AddURLs(ctx, urls...)
	if err != nil {
		return err
	}
	return a.report(urls, resp)
}

// Archive marks the cached items for the URLs in r as read, skipping those
// already read.
func (a *App) Archive(ctx context.Context, r io.Reader) error {
	return a.batchFromCache(ctx, r, func(item *pocket.Item) bool {
		return item.Status == pocket.Unread
	}, "read", pocket.ClientInterface.Archive)
}

// Favorite marks the cached items for the URLs in r as favorite, skipping
// those already favorited.
func (a *App) Favorite(ctx context.Context, r io.Reader) error {
	return a.batchFromCache(ctx, r, func(item *pocket.Item) bool {
		return item.Favorite == pocket.NotFavorited
	}, "favorite", pocket.ClientInterface.Favorite)
}

type idAction func(c pocket.ClientInterface, ctx context.Context, ids ...pocket.ItemID) (pocket.ModifyResponse, error)

func (a *App) batchFromCache(ctx context.Context, r io.Reader, pending func(*pocket.Item) bool, state string, submit idAction) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}
	lines, err := readLines(r)
	if err != nil {
		return err
	}
	list, err := store.Load()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.Logger.Warnf("Reading list cache %s is empty, run sync first", store.Path())
	}

	idx := newURLIndex(list)
	seen := make(map[pocket.ItemID]bool)
	var ids []pocket.ItemID
	var labels []string
	for _, u := range lines {
		item := idx.lookup(u)
		switch {
		case item == nil:
			if host, n := idx.savedFrom(u); n > 0 {
				a.printf("Url %s did not match (%d saved from %s)\n", u, n, host)
				continue
			}
			a.printf("Url %s did not match\n", u)
		case !pending(item):
			a.printf("Url %s already marked as %s\n", u, state)
		case !seen[item.ItemID]:
			seen[item.ItemID] = true
			ids = append(ids, item.ItemID)
			labels = append(labels, u)
		}
	}

	resp, err := submit(client, ctx, ids...)
	if err != nil {
		return err
	}
	return a.report(labels, resp)
}

// Fixup re-marks favorite items as favorite and read items as read, which
// leaves their state unchanged but moves their last action time to now.
func (a *App) Fixup(ctx context.Context) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	list, err := client.ListAll(ctx)
	if err != nil {
		return err
	}

	var favorites, read []pocket.ItemID
	for _, item := range list.Items() {
		if item.Favorite == pocket.Favorited {
			favorites = append(favorites, item.ItemID)
		}
		if item.Status == pocket.Read {
			read = append(read, item.ItemID)
		}
	}
	a.printf("Favorites: %d\nRead: %d\n", len(favorites), len(read))

	favResp, err := client.Favorite(ctx, favorites...)
	if err != nil {
		return err
	}
	favErr := a.report(favorites, favResp)

	readResp, err := client.Archive(ctx, read...)
	if err != nil {
		return err
	}
	return errors.Join(favErr, a.report(read, readResp))
}
