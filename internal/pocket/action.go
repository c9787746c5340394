package pocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ActionKind is the value of an action's "action" field.
type ActionKind string

const (
	ActionAdd         ActionKind = "add"
	ActionArchive     ActionKind = "archive"
	ActionReadd       ActionKind = "readd"
	ActionFavorite    ActionKind = "favorite"
	ActionUnfavorite  ActionKind = "unfavorite"
	ActionDelete      ActionKind = "delete"
	ActionTagsAdd     ActionKind = "tags_add"
	ActionTagsReplace ActionKind = "tags_replace"
	ActionTagsRemove  ActionKind = "tags_remove"
)

func (k ActionKind) needsURL() bool {
	return k == ActionAdd
}

func (k ActionKind) needsTags() bool {
	return k == ActionTagsAdd || k == ActionTagsReplace || k == ActionTagsRemove
}

func (k ActionKind) valid() bool {
	switch k {
	case ActionAdd, ActionArchive, ActionReadd, ActionFavorite, ActionUnfavorite,
		ActionDelete, ActionTagsAdd, ActionTagsReplace, ActionTagsRemove:
		return true
	}
	return false
}

// Action is one mutation in a send batch. Build it with the constructors;
// Time is the caller's clock reading and is never filled in implicitly.
type Action struct {
	Kind   ActionKind
	ItemID ItemID
	URL    string
	// Title and Tags are optional for add.
	Title string
	Tags  []string
	Time  time.Time
}

func Add(url string, at time.Time) Action {
	return Action{Kind: ActionAdd, URL: url, Time: at}
}

// AddTagged adds url with a title and tags.
func AddTagged(url, title string, tags []string, at time.Time) Action {
	return Action{Kind: ActionAdd, URL: url, Title: title, Tags: tags, Time: at}
}

func Archive(id ItemID, at time.Time) Action {
	return Action{Kind: ActionArchive, ItemID: id, Time: at}
}

func Readd(id ItemID, at time.Time) Action {
	return Action{Kind: ActionReadd, ItemID: id, Time: at}
}

func Favorite(id ItemID, at time.Time) Action {
	return Action{Kind: ActionFavorite, ItemID: id, Time: at}
}

func Unfavorite(id ItemID, at time.Time) Action {
	return Action{Kind: ActionUnfavorite, ItemID: id, Time: at}
}

func Delete(id ItemID, at time.Time) Action {
	return Action{Kind: ActionDelete, ItemID: id, Time: at}
}

func TagsAdd(id ItemID, tags []string, at time.Time) Action {
	return Action{Kind: ActionTagsAdd, ItemID: id, Tags: tags, Time: at}
}

func TagsReplace(id ItemID, tags []string, at time.Time) Action {
	return Action{Kind: ActionTagsReplace, ItemID: id, Tags: tags, Time: at}
}

func TagsRemove(id ItemID, tags []string, at time.Time) Action {
	return Action{Kind: ActionTagsRemove, ItemID: id, Tags: tags, Time: at}
}

type actionWire struct {
	Action ActionKind `json:"action"`
	ItemID string     `json:"item_id,omitempty"`
	URL    string     `json:"url,omitempty"`
	Title  string     `json:"title,omitempty"`
	Tags   string     `json:"tags,omitempty"`
	Time   int64      `json:"time"`
}

// MarshalJSON renders the action with only the fields its kind takes. Tags
// are sent comma-joined.
func (a Action) MarshalJSON() ([]byte, error) {
	if !a.Kind.valid() {
		return nil, fmt.Errorf("unknown action %q", a.Kind)
	}
	if a.Time.IsZero() {
		return nil, fmt.Errorf("%s action has no time", a.Kind)
	}

	w := actionWire{Action: a.Kind, Time: a.Time.Unix()}
	switch {
	case a.Kind.needsURL():
		if a.URL == "" {
			return nil, fmt.Errorf("%s action has no url", a.Kind)
		}
		w.URL = a.URL
		w.Title = a.Title
		w.Tags = strings.Join(a.Tags, ",")
	default:
		if a.ItemID == "" {
			return nil, fmt.Errorf("%s action has no item_id", a.Kind)
		}
		w.ItemID = a.ItemID
	}
	if a.Kind.needsTags() {
		if len(a.Tags) == 0 {
			return nil, fmt.Errorf("%s action has no tags", a.Kind)
		}
		w.Tags = strings.Join(a.Tags, ",")
	}
	return json.Marshal(w)
}
