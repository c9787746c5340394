package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"pocketkit/internal/pocket"
	"pocketkit/internal/urlclean"
)

// CSV exports name their columns; these are used when the header does not.
const (
	defaultURLColumn    = 0
	defaultFolderColumn = 3
)

// ImportCSV marks as read the cached items whose URLs appear in a CSV export
// filed under the Archive or Done folder. URLs listed in ignore are skipped.
// URLs missing from the cache are printed.
func (a *App) ImportCSV(ctx context.Context, ignore, export io.Reader) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}
	ignored, err := readLines(ignore)
	if err != nil {
		return err
	}
	list, err := store.Load()
	if err != nil {
		return err
	}

	skip := make(map[string]bool, len(ignored))
	for _, u := range ignored {
		skip[urlclean.Cleanup(u)] = true
	}

	reader := csv.NewReader(export)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read csv header: %w", err)
	}
	urlCol, folderCol := csvColumns(header)

	idx := newURLIndex(list)
	missing := make(map[string]bool)
	seen := make(map[pocket.ItemID]bool)
	var ids []pocket.ItemID
	var labels []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read csv record: %w", err)
		}
		if urlCol >= len(record) {
			continue
		}
		u := strings.TrimSpace(record[urlCol])
		if u == "" || skip[urlclean.Cleanup(u)] {
			continue
		}

		item := idx.lookup(u)
		if item == nil {
			missing[u] = true
			continue
		}
		folder := ""
		if folderCol < len(record) {
			folder = strings.TrimSpace(record[folderCol])
		}
		if item.Status == pocket.Unread && (folder == "Archive" || folder == "Done") && !seen[item.ItemID] {
			seen[item.ItemID] = true
			ids = append(ids, item.ItemID)
			labels = append(labels, u)
		}
	}

	a.printf("Missing: %d\n", len(missing))
	a.printf("Marking as read: %d\n", len(ids))
	for _, u := range sortedKeys(missing) {
		a.printf("%s\n", u)
	}

	resp, err := client.Archive(ctx, ids...)
	if err != nil {
		return err
	}
	return a.report(labels, resp)
}

func csvColumns(header []string) (urlCol, folderCol int) {
	urlCol, folderCol = defaultURLColumn, defaultFolderColumn
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "url":
			urlCol = i
		case "folder":
			folderCol = i
		}
	}
	return urlCol, folderCol
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// exportEntry is one link of Pocket's HTML export.
type exportEntry struct {
	URL       string
	Title     string
	Tags      []string
	TimeAdded time.Time
	Archived  bool
}

// parseExport reads Pocket's HTML export: an "Unread" and a "Read Archive"
// heading, each followed by a list of links carrying time_added and tags
// attributes.
func parseExport(r io.Reader) ([]exportEntry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	var entries []exportEntry
	archived := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2":
				archived = strings.Contains(strings.ToLower(textOf(n)), "archive")
				return
			case "a":
				if entry, ok := exportLink(n); ok {
					entry.Archived = archived
					entries = append(entries, entry)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return entries, nil
}

func exportLink(n *html.Node) (exportEntry, bool) {
	var entry exportEntry
	for _, attr := range n.Attr {
		switch attr.Key {
		case "href":
			entry.URL = strings.TrimSpace(attr.Val)
		case "time_added":
			if secs, err := strconv.ParseInt(attr.Val, 10, 64); err == nil && secs > 0 {
				entry.TimeAdded = time.Unix(secs, 0)
			}
		case "tags":
			for _, tag := range strings.Split(attr.Val, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					entry.Tags = append(entry.Tags, tag)
				}
			}
		}
	}
	entry.Title = strings.TrimSpace(textOf(n))
	if entry.Title == entry.URL {
		entry.Title = ""
	}
	return entry, entry.URL != ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// ImportHTML restores a Pocket HTML export: links not in the reading list are
// added with their tags and original save time, and links from the archive
// section are marked as read.
func (a *App) ImportHTML(ctx context.Context, r io.Reader) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	entries, err := parseExport(r)
	if err != nil {
		return err
	}
	list, err := client.ListAll(ctx)
	if err != nil {
		return err
	}

	idx := newURLIndex(list)
	now := a.now()
	added := make(map[string]int)
	marked := make(map[pocket.ItemID]bool)
	var adds []pocket.Action
	var addLabels []string
	var addArchived []bool
	var readIDs []pocket.ItemID
	var readLabels []string
	for _, entry := range entries {
		if item := idx.lookup(entry.URL); item != nil {
			if entry.Archived && item.Status == pocket.Unread && !marked[item.ItemID] {
				marked[item.ItemID] = true
				readIDs = append(readIDs, item.ItemID)
				readLabels = append(readLabels, entry.URL)
			}
			continue
		}

		key := urlclean.Cleanup(entry.URL)
		if i, ok := added[key]; ok {
			addArchived[i] = addArchived[i] || entry.Archived
			continue
		}
		added[key] = len(adds)

		at := entry.TimeAdded
		if at.IsZero() {
			at = now
		}
		adds = append(adds, pocket.AddTagged(entry.URL, entry.Title, entry.Tags, at))
		addLabels = append(addLabels, entry.URL)
		addArchived = append(addArchived, entry.Archived)
	}
	a.printf("Adding: %d\n", len(adds))

	resp, err := client.Modify(ctx, adds)
	if err != nil {
		return err
	}
	addErr := a.report(addLabels, resp)
	for i, outcome := range resp {
		if outcome.OK() && outcome.Item != nil && addArchived[i] {
			readIDs = append(readIDs, outcome.Item.ItemID)
			readLabels = append(readLabels, addLabels[i])
		}
	}
	a.printf("Marking as read: %d\n", len(readIDs))

	readResp, err := client.Archive(ctx, readIDs...)
	if err != nil {
		return err
	}
	return errors.Join(addErr, a.report(readLabels, readResp))
}
