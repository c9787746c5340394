package pocket

import (
	"encoding/json"
	"errors"
)

// State filters items by read state.
type State string

const (
	StateUnread  State = "unread"
	StateArchive State = "archive"
	StateAll     State = "all"
)

// ContentType filters items by kind.
type ContentType string

const (
	ContentArticle ContentType = "article"
	ContentVideo   ContentType = "video"
	ContentImage   ContentType = "image"
)

// Sort orders the returned items.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
	SortTitle  Sort = "title"
	SortSite   Sort = "site"
)

// DetailType selects the simple or complete field set.
type DetailType string

const (
	DetailSimple   DetailType = "simple"
	DetailComplete DetailType = "complete"
)

const untaggedTag = "_untagged_"

// TagFilter restricts a query to one tag, or to items without any tag.
type TagFilter struct {
	name     string
	untagged bool
}

// Tagged matches items carrying the tag name.
func Tagged(name string) TagFilter {
	return TagFilter{name: name}
}

// Untagged matches items without tags.
func Untagged() TagFilter {
	return TagFilter{untagged: true}
}

func (t TagFilter) String() string {
	if t.untagged {
		return untaggedTag
	}
	return t.name
}

func (t TagFilter) MarshalJSON() ([]byte, error) {
	if !t.untagged && t.name == "" {
		return nil, errors.New("tag filter has no tag name")
	}
	return json.Marshal(t.String())
}

// Query is the body of a get request. A nil field is left out of the request
// and Pocket's default applies.
type Query struct {
	State       *State          `json:"state,omitempty"`
	Favorite    *FavoriteStatus `json:"favorite,omitempty"`
	Tag         *TagFilter      `json:"tag,omitempty"`
	ContentType *ContentType    `json:"contentType,omitempty"`
	Sort        *Sort           `json:"sort,omitempty"`
	DetailType  *DetailType     `json:"detailType,omitempty"`
	Search      *string         `json:"search,omitempty"`
	Domain      *string         `json:"domain,omitempty"`
	Since       *int64          `json:"since,omitempty"`
	Count       *uint32         `json:"count,omitempty"`
	Offset      *uint32         `json:"offset,omitempty"`
}

// Ptr returns a pointer to v, for filling Query literals.
func Ptr[T any](v T) *T {
	return &v
}

// listAllQuery is the page request ListAll issues at offset page*size.
func listAllQuery(page, size uint32) Query {
	return Query{
		State:      Ptr(StateAll),
		DetailType: Ptr(DetailComplete),
		Sort:       Ptr(SortSite),
		Count:      Ptr(size),
		Offset:     Ptr(page * size),
	}
}
