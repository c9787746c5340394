package pocket

import "context"

// ClientInterface defines the interface for the Pocket API client.
type ClientInterface interface {
	GetPage(ctx context.Context, q Query) (Page, error)
	Get(ctx context.Context, q Query) (ReadingList, error)
	ListAll(ctx context.Context) (ReadingList, error)
	Changes(ctx context.Context, since int64) (ReadingList, int64, error)
	Modify(ctx context.Context, actions []Action) (ModifyResponse, error)
	Archive(ctx context.Context, ids ...ItemID) (ModifyResponse, error)
	Readd(ctx context.Context, ids ...ItemID) (ModifyResponse, error)
	Favorite(ctx context.Context, ids ...ItemID) (ModifyResponse, error)
	Unfavorite(ctx context.Context, ids ...ItemID) (ModifyResponse, error)
	Delete(ctx context.Context, ids ...ItemID) (ModifyResponse, error)
	AddURLs(ctx context.Context, urls ...string) (ModifyResponse, error)
	AddTags(ctx context.Context, tags []string, ids ...ItemID) (ModifyResponse, error)
	ReplaceTags(ctx context.Context, tags []string, ids ...ItemID) (ModifyResponse, error)
	RemoveTags(ctx context.Context, tags []string, ids ...ItemID) (ModifyResponse, error)
}

var _ ClientInterface = (*Client)(nil)
