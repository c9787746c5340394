package pocket

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ItemID identifies a saved item. It is stable across mutations and is the
// reference every modify action carries.
type ItemID = string

// Status is the read state of an item.
type Status uint8

const (
	Unread Status = iota
	Read
	ShouldBeDeleted
)

func (s Status) String() string {
	switch s {
	case Unread:
		return "Unread"
	case Read:
		return "Read"
	case ShouldBeDeleted:
		return "ShouldBeDeleted"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// FavoriteStatus is whether an item is favorited.
type FavoriteStatus uint8

const (
	NotFavorited FavoriteStatus = iota
	Favorited
)

func (f FavoriteStatus) String() string {
	if f == Favorited {
		return "Favorited"
	}
	return "NotFavorited"
}

// HasImage is whether an item has, or is, an image.
type HasImage uint8

const (
	ImageNo HasImage = iota
	ImageYes
	ImageIsSelf
)

// HasVideo is whether an item has, or is, a video.
type HasVideo uint8

const (
	VideoNo HasVideo = iota
	VideoYes
	VideoIsSelf
)

// Item is a saved page as returned by the get endpoint.
//
// Pocket documents every field as optional; the ones that are not pointers
// or maps have been present in every observed response and are required when
// decoding. Images, Videos, Authors and Tags are only sent for complete detail
// queries and are nil when absent.
type Item struct {
	ItemID ItemID
	// ResolvedID is "0" until Pocket has processed the URL.
	ResolvedID    string
	GivenURL      string
	ResolvedURL   string
	GivenTitle    string
	ResolvedTitle string
	Favorite      FavoriteStatus
	Status        Status
	Excerpt       string
	IsArticle     bool
	HasImage      HasImage
	HasVideo      HasVideo
	WordCount     uint64

	// Unix timestamps. TimeRead and TimeFavorited are 0 when never set.
	TimeAdded     uint64
	TimeUpdated   uint64
	TimeRead      uint64
	TimeFavorited uint64

	SortID                 uint32
	IsIndex                bool
	Lang                   string
	ListenDurationEstimate uint64
	TopImageURL            *string
	DomainMetadata         *DomainMetadata
	TimeToRead             *uint64
	AmpURL                 *string

	Images  map[string]Image
	Videos  map[string]Video
	Authors map[string]Author
	Tags    map[string]Tag
	Image   *MainImage
}

// EffectiveURL is the resolved URL when Pocket has one, else the given URL.
func (i *Item) EffectiveURL() string {
	if i.ResolvedURL != "" {
		return i.ResolvedURL
	}
	return i.GivenURL
}

// EffectiveTitle falls back from the resolved title to the given title and
// finally to EffectiveURL.
func (i *Item) EffectiveTitle() string {
	if i.ResolvedTitle != "" {
		return i.ResolvedTitle
	}
	if i.GivenTitle != "" {
		return i.GivenTitle
	}
	return i.EffectiveURL()
}

// TagNames returns the item's tags in sorted order.
func (i *Item) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Tag)
	}
	sort.Strings(names)
	return names
}

type DomainMetadata struct {
	Name          *string `json:"name,omitempty"`
	Logo          string  `json:"logo"`
	GreyscaleLogo string  `json:"greyscale_logo"`
}

// MainImage is the item's lead image.
type MainImage struct {
	ItemID string
	Src    string
	Width  uint32
	Height uint32
}

// Image is an image found in the item. Width, Height, Credit and Caption are
// often zero or empty.
type Image struct {
	ItemID  string
	ImageID string
	Src     string
	Width   uint32
	Height  uint32
	Credit  string
	Caption string
}

// Video is a video embedded in the item.
type Video struct {
	ItemID  string
	VideoID string
	Src     string
	Width   uint32
	Height  uint32
	Type    uint32
	// Vid is the hosting site's video id, often empty.
	Vid string
	// Length in seconds, when known.
	Length *uint32
}

type Author struct {
	ItemID   string `json:"item_id"`
	AuthorID string `json:"author_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

type Tag struct {
	ItemID string `json:"item_id"`
	Tag    string `json:"tag"`
}

// DeletedItem stands in for an item Pocket has marked for removal. Pocket
// also sends status "2" alongside it; only the id is kept.
type DeletedItem struct {
	ItemID ItemID `json:"item_id"`
}

// ModifiedItem is the reduced item the send endpoint returns for add and
// readd actions. GivenURL and Lang may be missing because Pocket has not
// finished resolving the item when it answers.
type ModifiedItem struct {
	ItemID         ItemID
	ResolvedID     string
	GivenURL       *string
	ResolvedURL    string
	Excerpt        string
	IsArticle      bool
	HasImage       HasImage
	HasVideo       HasVideo
	WordCount      uint64
	Lang           *string
	DomainMetadata *DomainMetadata
}

// Entry is one reading list member: either a live Item or a DeletedItem.
// Exactly one of the two fields is set.
type Entry struct {
	Item    *Item
	Deleted *DeletedItem
}

// ID returns the id of whichever variant is set.
func (e Entry) ID() ItemID {
	switch {
	case e.Item != nil:
		return e.Item.ItemID
	case e.Deleted != nil:
		return e.Deleted.ItemID
	}
	return ""
}

func (e Entry) IsDeleted() bool {
	return e.Item == nil && e.Deleted != nil
}

// ReadingList maps item ids to entries. Use IDs or Entries for a
// deterministic, key-ordered walk.
type ReadingList map[ItemID]Entry

// IDs returns the list's keys in ascending order.
func (rl ReadingList) IDs() []ItemID {
	ids := make([]ItemID, 0, len(rl))
	for id := range rl {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns the entries in key order.
func (rl ReadingList) Entries() []Entry {
	ids := rl.IDs()
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, rl[id])
	}
	return entries
}

// Items returns the live items in key order, skipping deleted entries.
func (rl ReadingList) Items() []*Item {
	var items []*Item
	for _, e := range rl.Entries() {
		if e.Item != nil {
			items = append(items, e.Item)
		}
	}
	return items
}

// Merge copies every entry of other into rl, replacing entries with the same
// id.
func (rl ReadingList) Merge(other ReadingList) {
	for id, e := range other {
		rl[id] = e
	}
}

// FindGivenURL returns the first item, in key order, saved with url.
func (rl ReadingList) FindGivenURL(url string) *Item {
	for _, item := range rl.Items() {
		if item.GivenURL == url {
			return item
		}
	}
	return nil
}

// CountGivenURL returns how many live items were saved with url.
func (rl ReadingList) CountGivenURL(url string) int {
	n := 0
	for _, item := range rl.Items() {
		if item.GivenURL == url {
			n++
		}
	}
	return n
}

// ActionError is Pocket's per-action rejection in a send response.
type ActionError struct {
	Code      uint16 `json:"code"`
	Message   string `json:"message"`
	ErrorType string `json:"type"`
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action rejected: %s (%d %s)", e.Message, e.Code, e.ErrorType)
}

// UnmarshalJSON accepts the error kind under either "type" or "error_type".
func (e *ActionError) UnmarshalJSON(data []byte) error {
	var w struct {
		Code      uint16 `json:"code"`
		Message   string `json:"message"`
		Type      string `json:"type"`
		ErrorType string `json:"error_type"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Code = w.Code
	e.Message = w.Message
	e.ErrorType = w.Type
	if e.ErrorType == "" {
		e.ErrorType = w.ErrorType
	}
	return nil
}
