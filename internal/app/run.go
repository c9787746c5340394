package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"pocketkit/internal/pocket"
)

// ErrUsage is returned for unknown commands and bad arguments.
var ErrUsage = errors.New("usage error")

const usage = `usage: pocketkit <command> [arguments]

commands:
  auth                          authorize and print credentials
  list [flags]                  print one page of items
  sync [-incremental]           save the reading list to the cache
  search <needle>               print items whose URL contains needle
  inspect                       print the cached reading list
  add <file>                    add the URLs listed in file
  archive <file>                mark the URLs listed in file as read
  favorite <file>               mark the URLs listed in file as favorite
  fixup                         re-mark favorite and read items
  import-csv <ignore> <csv>     mark URLs archived in a CSV export as read
  import-html <export.html>     restore a Pocket HTML export
`

// Usage writes the command summary to w.
func Usage(w io.Writer) {
	fmt.Fprint(w, usage)
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", ErrUsage)
	}
	cmd, rest := args[0], args[1:]
	a.Logger.Debugf("Running command %s", cmd)

	switch cmd {
	case "auth":
		return a.Auth(ctx)
	case "list":
		opts, err := parseListFlags(rest)
		if err != nil {
			return err
		}
		return a.List(ctx, opts)
	case "sync":
		incremental, err := parseSyncFlags(rest)
		if err != nil {
			return err
		}
		if incremental {
			return a.SyncChanges(ctx)
		}
		return a.Sync(ctx)
	case "search":
		if len(rest) != 1 {
			return fmt.Errorf("%w: search expects a needle", ErrUsage)
		}
		return a.Search(ctx, rest[0])
	case "inspect":
		return a.Inspect()
	case "add":
		return withFile(rest, cmd, func(f io.Reader) error { return a.Add(ctx, f) })
	case "archive":
		return withFile(rest, cmd, func(f io.Reader) error { return a.Archive(ctx, f) })
	case "favorite":
		return withFile(rest, cmd, func(f io.Reader) error { return a.Favorite(ctx, f) })
	case "fixup":
		return a.Fixup(ctx)
	case "import-csv":
		if len(rest) != 2 {
			return fmt.Errorf("%w: import-csv expects an ignore file and a csv file", ErrUsage)
		}
		return withFile(rest[:1], cmd, func(ignore io.Reader) error {
			return withFile(rest[1:], cmd, func(export io.Reader) error {
				return a.ImportCSV(ctx, ignore, export)
			})
		})
	case "import-html":
		return withFile(rest, cmd, func(f io.Reader) error { return a.ImportHTML(ctx, f) })
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

func withFile(args []string, cmd string, fn func(io.Reader) error) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s expects a file", ErrUsage, cmd)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()
	return fn(f)
}

func parseSyncFlags(args []string) (bool, error) {
	var incremental bool
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&incremental, "incremental", false, "only fetch changes since the last sync")
	if err := fs.Parse(args); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return false, fmt.Errorf("%w: sync takes no arguments", ErrUsage)
	}
	return incremental, nil
}

func parseListFlags(args []string) (ListOptions, error) {
	var opts ListOptions
	var state, sortOrder string
	var count, offset uint

	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&state, "state", "", "unread, archive or all")
	fs.BoolVar(&opts.Favorite, "favorite", false, "only favorited items")
	fs.StringVar(&opts.Tag, "tag", "", "only items with this tag, _untagged_ for none")
	fs.StringVar(&opts.Search, "search", "", "only items whose title or URL contains this")
	fs.StringVar(&opts.Domain, "domain", "", "only items from this domain, or from the site of this URL")
	fs.StringVar(&sortOrder, "sort", "", "newest, oldest, title or site")
	fs.UintVar(&count, "count", 0, "maximum number of items")
	fs.UintVar(&offset, "offset", 0, "number of items to skip")
	if err := fs.Parse(args); err != nil {
		return ListOptions{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	switch s := pocket.State(strings.ToLower(state)); s {
	case "", pocket.StateUnread, pocket.StateArchive, pocket.StateAll:
		opts.State = s
	default:
		return ListOptions{}, fmt.Errorf("%w: invalid state %q", ErrUsage, state)
	}
	switch s := pocket.Sort(strings.ToLower(sortOrder)); s {
	case "", pocket.SortNewest, pocket.SortOldest, pocket.SortTitle, pocket.SortSite:
		opts.Sort = s
	default:
		return ListOptions{}, fmt.Errorf("%w: invalid sort %q", ErrUsage, sortOrder)
	}
	opts.Count = uint32(count)
	opts.Offset = uint32(offset)
	return opts, nil
}
