package pocket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "consumer", "token", opts...)
	require.NoError(t, err)
	return client
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("Failed to decode request body: %v", err)
	}
	return body
}

func TestNewClient(t *testing.T) {
	client, err := NewClient("http://localhost:8080/v3", "consumer", "token")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/v3", client.BaseURL.String())
	require.Equal(t, "consumer", client.ConsumerKey)
	require.EqualValues(t, DefaultPageSize, client.pageSize)

	_, err = NewClient("invalid-url", "consumer", "token")
	require.Error(t, err)

	_, err = NewClient("http://localhost", "", "token")
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get" {
			t.Errorf("Expected to request '/get', got '%s'", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Accept"); got != "application/json" {
			t.Errorf("Expected X-Accept application/json, got %q", got)
		}
		body := decodeBody(t, r)
		if body["consumer_key"] != "consumer" || body["access_token"] != "token" {
			t.Errorf("Expected auth fields in body, got %v", body)
		}
		if body["tag"] != "_untagged_" || body["count"] != float64(2) {
			t.Errorf("Expected query fields in body, got %v", body)
		}
		if _, ok := body["state"]; ok {
			t.Errorf("Expected unset state to be omitted, got %v", body)
		}
		fmt.Fprintf(w, `{"status": 1, "list": {"1": %s}}`, itemJSON("1", "https://a"))
	})

	list, err := client.Get(context.Background(), Query{Tag: Ptr(Untagged()), Count: Ptr(uint32(2))})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "https://a", list["1"].Item.GivenURL)
}

func TestGetNoMoreIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status": 2, "list": []}`)
	})

	list, err := client.Get(context.Background(), Query{})
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestGetTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Error", "Invalid consumer key.")
		w.Header().Set("X-Error-Code", "152")
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Get(context.Background(), Query{})
	require.Error(t, err)
	require.True(t, IsTransport(err))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusForbidden, te.StatusCode)
	require.Equal(t, "Invalid consumer key.", te.XError)
	require.Equal(t, "152", te.XErrorCode)
}

func TestGetDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"list": `)
	})

	_, err := client.Get(context.Background(), Query{})
	require.Error(t, err)
	require.True(t, IsDecode(err))
	require.False(t, IsTransport(err))
}

func TestListAll(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body := decodeBody(t, r)
		if body["state"] != "all" || body["detailType"] != "complete" || body["sort"] != "site" {
			t.Errorf("Unexpected list_all query %v", body)
		}
		if body["count"] != float64(2) {
			t.Errorf("Expected count 2, got %v", body["count"])
		}

		switch body["offset"] {
		case float64(0):
			fmt.Fprintf(w, `{"list": {"1": %s, "2": %s}}`, itemJSON("1", "https://a"), itemJSON("2", "https://b"))
		case float64(2):
			_, _ = io.WriteString(w, `{"list": {"3": {"item_id": "3", "status": "2"}}}`)
		default:
			_, _ = io.WriteString(w, `{"list": []}`)
		}
	}, WithPageSize(2))

	list, err := client.ListAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ItemID{"1", "2", "3"}, list.IDs())
	require.True(t, list["3"].IsDeleted())
	require.EqualValues(t, 3, requests.Load())
}

func TestChanges(t *testing.T) {
	tests := []struct {
		name       string
		since      int64
		wantSince  any
		wantCursor int64
	}{
		{"incremental", 1600000000, float64(1600000000), 1700000000},
		{"full", 0, nil, 1700000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body := decodeBody(t, r)
				if body["since"] != tt.wantSince {
					t.Errorf("Expected since %v, got %v", tt.wantSince, body["since"])
				}
				switch body["offset"] {
				case float64(0):
					fmt.Fprintf(w, `{"status": 1, "since": 1700000000, "list": {"1": %s, "2": {"item_id": "2", "status": "2"}}}`,
						itemJSON("1", "https://a"))
				default:
					_, _ = io.WriteString(w, `{"status": 2, "since": "1700000005", "list": []}`)
				}
			}, WithPageSize(2))

			list, cursor, err := client.Changes(context.Background(), tt.since)
			require.NoError(t, err)
			require.Equal(t, tt.wantCursor, cursor)
			require.Equal(t, []ItemID{"1", "2"}, list.IDs())
			require.True(t, list["2"].IsDeleted())
		})
	}
}

func TestListAllAbortsOnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["offset"] == float64(0) {
			fmt.Fprintf(w, `{"list": {"1": %s}}`, itemJSON("1", "https://a"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithPageSize(1))

	list, err := client.ListAll(context.Background())
	require.Error(t, err)
	require.Nil(t, list)
	require.True(t, IsTransport(err))
}

func TestListAllHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"list": {"1": %s}}`, itemJSON("1", "https://a"))
	}, WithPageSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListAll(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestModify(t *testing.T) {
	at := time.Unix(1700000000, 0)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("Expected to request '/send', got '%s'", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["access_token"] != "token" {
			t.Errorf("Expected auth fields in body, got %v", body)
		}
		actions, _ := body["actions"].([]any)
		if len(actions) != 2 {
			t.Errorf("Expected 2 actions, got %v", body["actions"])
			return
		}
		first, _ := actions[0].(map[string]any)
		if first["action"] != "archive" || first["item_id"] != "1" || first["time"] != float64(1700000000) {
			t.Errorf("Unexpected first action %v", first)
		}
		_, _ = io.WriteString(w, `{"status": 0, "action_results": [true, false],
			"action_errors": [null, {"code": 422, "message": "Invalid/non-existent URL", "type": "Unprocessable Entity"}]}`)
	})

	resp, err := client.Modify(context.Background(), []Action{Archive("1", at), Add("not a url", at)})
	require.NoError(t, err)
	require.Len(t, resp, 2)
	require.True(t, resp[0].OK())

	var actionErr *ActionError
	require.ErrorAs(t, resp[1].Err, &actionErr)
	require.Equal(t, "Invalid/non-existent URL", actionErr.Message)
}

func TestModifyMixedBatch(t *testing.T) {
	at := time.Unix(1700000000, 0)
	rejected := `{"code": 422, "message": "Invalid/non-existent URL", "type": "Unprocessable Entity"}`

	tests := []struct {
		name    string
		results string
		errors  string
		wantOK  []bool
		wantAdd bool
	}{
		{"all succeed", `[` + modifiedItemJSON + `, true, true]`, `[null, null, null]`, []bool{true, true, true}, true},
		{"add rejected", `[false, true, true]`, `[` + rejected + `, null, null]`, []bool{false, true, true}, false},
		{"archive rejected", `[` + modifiedItemJSON + `, false, true]`, `[null, ` + rejected + `, null]`, []bool{true, false, true}, true},
		{"delete conflicts", `[` + modifiedItemJSON + `, true, true]`, `[null, null, ` + rejected + `]`, []bool{true, true, false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body := decodeBody(t, r)
				actions, _ := body["actions"].([]any)
				want := []string{"add", "archive", "delete"}
				if len(actions) != len(want) {
					t.Errorf("Expected %d actions, got %v", len(want), body["actions"])
					return
				}
				for i, a := range actions {
					action, _ := a.(map[string]any)
					if action["action"] != want[i] {
						t.Errorf("Expected action %d to be %q, got %v", i, want[i], action)
					}
				}
				fmt.Fprintf(w, `{"status": 1, "action_results": %s, "action_errors": %s}`, tt.results, tt.errors)
			})

			resp, err := client.Modify(context.Background(), []Action{
				Add("http://example.com/new", at),
				Archive("1", at),
				Delete("2", at),
			})
			require.NoError(t, err)
			require.Len(t, resp, len(tt.wantOK))
			for i, ok := range tt.wantOK {
				require.Equal(t, ok, resp[i].OK(), "outcome %d", i)
			}
			if tt.wantAdd {
				require.NotNil(t, resp[0].Item)
				require.EqualValues(t, "2878954297", resp[0].Item.ItemID)
			} else {
				require.Nil(t, resp[0].Item)
			}
			require.Nil(t, resp[1].Item)
			require.Nil(t, resp[2].Item)
		})
	}
}

func TestModifyMixedBatchConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"action_results": [true, true, true],
			"action_errors": [null, {"code": 500, "message": "Oops", "type": "Internal"}, null]}`)
	})

	at := time.Unix(1700000000, 0)
	resp, err := client.Modify(context.Background(), []Action{Add("https://a", at), Archive("1", at), Delete("2", at)})
	require.NoError(t, err)
	require.Equal(t, []int{1}, resp.Failed())

	var conflict *ConflictError
	require.ErrorAs(t, resp[1].Err, &conflict)
	require.Equal(t, 1, conflict.Index)
}

func TestNilHTTPClientFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"list": []}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "consumer", "token", WithHTTPClient(nil))
	require.NoError(t, err)
	require.Same(t, http.DefaultClient, client.HTTPClient)

	list, err := client.Get(context.Background(), Query{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestModifyEmptyBatchSendsNothing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Expected no request, got %s", r.URL.Path)
	})

	resp, err := client.Modify(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, resp)
}

func TestModifyRejectsInvalidAction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Expected no request, got %s", r.URL.Path)
	})

	_, err := client.Modify(context.Background(), []Action{Archive("", time.Unix(1, 0))})
	require.Error(t, err)
}

func TestConvenienceWrappers(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name string
		call func(*Client) (ModifyResponse, error)
		kind string
		tags string
	}{
		{"archive", func(c *Client) (ModifyResponse, error) { return c.Archive(context.Background(), "1", "2") }, "archive", ""},
		{"readd", func(c *Client) (ModifyResponse, error) { return c.Readd(context.Background(), "1", "2") }, "readd", ""},
		{"favorite", func(c *Client) (ModifyResponse, error) { return c.Favorite(context.Background(), "1", "2") }, "favorite", ""},
		{"unfavorite", func(c *Client) (ModifyResponse, error) { return c.Unfavorite(context.Background(), "1", "2") }, "unfavorite", ""},
		{"delete", func(c *Client) (ModifyResponse, error) { return c.Delete(context.Background(), "1", "2") }, "delete", ""},
		{"add", func(c *Client) (ModifyResponse, error) {
			return c.AddURLs(context.Background(), "https://a", "https://b")
		}, "add", ""},
		{"tags_add", func(c *Client) (ModifyResponse, error) {
			return c.AddTags(context.Background(), []string{"x", "y"}, "1", "2")
		}, "tags_add", "x,y"},
		{"tags_replace", func(c *Client) (ModifyResponse, error) {
			return c.ReplaceTags(context.Background(), []string{"x"}, "1", "2")
		}, "tags_replace", "x"},
		{"tags_remove", func(c *Client) (ModifyResponse, error) {
			return c.RemoveTags(context.Background(), []string{"x"}, "1", "2")
		}, "tags_remove", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body := decodeBody(t, r)
				actions, _ := body["actions"].([]any)
				if len(actions) != 2 {
					t.Errorf("Expected 2 actions, got %v", body["actions"])
					return
				}
				for _, a := range actions {
					action, _ := a.(map[string]any)
					if action["action"] != tt.kind {
						t.Errorf("Expected action %q, got %v", tt.kind, action)
					}
					if action["time"] != float64(at.Unix()) {
						t.Errorf("Expected clock time, got %v", action["time"])
					}
					if tt.tags != "" && action["tags"] != tt.tags {
						t.Errorf("Expected tags %q, got %v", tt.tags, action["tags"])
					}
				}
				_, _ = io.WriteString(w, `{"action_results": [true, true], "action_errors": [null, null]}`)
			}, WithClock(func() time.Time { return at }))

			resp, err := tt.call(client)
			require.NoError(t, err)
			require.Len(t, resp, 2)
			require.Empty(t, resp.Failed())
		})
	}
}

func TestModifyLengthMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"action_results": [true], "action_errors": [null]}`)
	})

	_, err := client.Archive(context.Background(), "1", "2")
	require.Error(t, err)
	require.True(t, IsDecode(err))
	require.True(t, strings.Contains(err.Error(), "action_results"))
}
