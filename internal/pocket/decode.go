package pocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// PageKind classifies a get response.
type PageKind int

const (
	// PageParsed carries a page of entries, possibly empty.
	PageParsed PageKind = iota
	// PageNoMore means "list" arrived as an empty array: there are no more
	// results at this offset.
	PageNoMore
)

func (k PageKind) String() string {
	if k == PageNoMore {
		return "no_more"
	}
	return "parsed"
}

// Page is one decoded get response.
type Page struct {
	Kind PageKind
	List ReadingList
	// Status, Complete and Since echo the top-level response fields. Since
	// can be passed back as Query.Since for an incremental fetch.
	Status   int
	Complete int
	Since    int64
}

// pageEnvelope classifies on "list" alone. The other fields are echoed when
// they can be read and never fail the page.
type pageEnvelope struct {
	Status   looseInt        `json:"status"`
	Complete looseInt        `json:"complete"`
	Since    looseInt        `json:"since"`
	Error    json.RawMessage `json:"error"`
	List     json.RawMessage `json:"list"`
}

// errorMessage returns the "error" field when it is a non-empty string.
func (e pageEnvelope) errorMessage() string {
	var msg string
	if err := json.Unmarshal(e.Error, &msg); err != nil {
		return ""
	}
	return msg
}

// DecodePage classifies a raw get response body.
//
// "list" is decoded as an object keyed by item id first. If that fails and
// "list" is an empty array the page is PageNoMore; a populated array is not a
// shape Pocket is known to send and is reported with the object decode error.
func DecodePage(body []byte) (Page, error) {
	const op = "pocket.DecodePage"

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, &DecodeError{Op: op, Err: err}
	}
	if msg := env.errorMessage(); msg != "" {
		return Page{}, &DecodeError{Op: op, Err: fmt.Errorf("response error: %s", msg)}
	}
	if len(env.List) == 0 {
		return Page{}, &DecodeError{Op: op, Err: errors.New(`missing field "list"`)}
	}

	page := Page{Status: int(env.Status), Complete: int(env.Complete), Since: int64(env.Since)}

	var list ReadingList
	listErr := json.Unmarshal(env.List, &list)
	if listErr == nil {
		if list == nil {
			return Page{}, &DecodeError{Op: op, Err: errors.New(`"list" is null`)}
		}
		if err := checkKeys(list); err != nil {
			return Page{}, &DecodeError{Op: op, Err: err}
		}
		page.Kind = PageParsed
		page.List = list
		return page, nil
	}

	var items []Item
	if err := json.Unmarshal(env.List, &items); err == nil && len(items) == 0 {
		page.Kind = PageNoMore
		page.List = ReadingList{}
		return page, nil
	}
	return Page{}, &DecodeError{Op: op, Err: listErr}
}

// checkKeys enforces that every entry is stored under its own id.
func checkKeys(list ReadingList) error {
	for key, e := range list {
		if id := e.ID(); id != key {
			return fmt.Errorf("entry %q carries item_id %q", key, id)
		}
	}
	return nil
}

// Outcome is the result of one submitted action. Err is nil on success, and
// Item is set when Pocket returned the affected item (add, readd). Err is an
// *ActionError for a rejected action, or a *ConflictError when Pocket
// reported both success and failure.
type Outcome struct {
	Item *ModifiedItem
	Err  error
}

// OK reports whether the action succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ModifyResponse holds one outcome per submitted action, in submission order.
type ModifyResponse []Outcome

// Failed returns the indexes of rejected actions.
func (r ModifyResponse) Failed() []int {
	var idx []int
	for i, o := range r {
		if o.Err != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// ConflictError reports an action that carries an error and a truthy result
// at the same time.
type ConflictError struct {
	Index  int
	Action *ActionError
	Result json.RawMessage
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("action %d reported both result %s and error: %v", e.Index, e.Result, e.Action)
}

func (e *ConflictError) Unwrap() error {
	return e.Action
}

type sendEnvelope struct {
	Status        int               `json:"status"`
	ActionResults []json.RawMessage `json:"action_results"`
	ActionErrors  []*ActionError    `json:"action_errors"`
}

// actionResult is one action_results element: a bare bool or an item.
type actionResult struct {
	ok   bool
	item *ModifiedItem
}

func decodeActionResult(raw json.RawMessage) (actionResult, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(trimmed, []byte("true")):
		return actionResult{ok: true}, nil
	case bytes.Equal(trimmed, []byte("false")), bytes.Equal(trimmed, []byte("null")):
		return actionResult{}, nil
	}
	var item ModifiedItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return actionResult{}, err
	}
	return actionResult{ok: true, item: &item}, nil
}

// DecodeModify decodes a send response for a batch of n actions and zips the
// twin action_results/action_errors arrays into n outcomes. warn receives
// anomalies that do not fail the batch and may be nil.
func DecodeModify(body []byte, n int, warn func(msg string, args ...any)) (ModifyResponse, error) {
	const op = "pocket.DecodeModify"

	if warn == nil {
		warn = func(string, ...any) {}
	}

	var env sendEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if len(env.ActionResults) != n {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("got %d action_results for %d actions", len(env.ActionResults), n)}
	}
	if len(env.ActionErrors) != n {
		return nil, &DecodeError{Op: op, Err: fmt.Errorf("got %d action_errors for %d actions", len(env.ActionErrors), n)}
	}

	resp := make(ModifyResponse, n)
	for i := range n {
		res, err := decodeActionResult(env.ActionResults[i])
		if err != nil {
			return nil, &DecodeError{Op: op, Err: fmt.Errorf("action_results[%d]: %w", i, err)}
		}

		if actionErr := env.ActionErrors[i]; actionErr != nil {
			if res.ok {
				conflict := &ConflictError{Index: i, Action: actionErr, Result: env.ActionResults[i]}
				warn("action reported success and failure", "index", i, "err", conflict.Error())
				resp[i] = Outcome{Err: conflict}
				continue
			}
			resp[i] = Outcome{Err: actionErr}
			continue
		}

		if !res.ok && res.item == nil {
			warn("action returned false without an error", "index", i)
		}
		resp[i] = Outcome{Item: res.item}
	}
	return resp, nil
}
