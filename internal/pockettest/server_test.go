package pockettest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pocketkit/internal/pocket"
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func newClient(t *testing.T, s *Server) *pocket.Client {
	t.Helper()
	client, err := s.PocketClient(pocket.WithClock(fixedClock), pocket.WithPageSize(2))
	require.NoError(t, err)
	return client
}

func TestEmptyListIsArray(t *testing.T) {
	s := NewServer()
	defer s.Close()

	resp, err := http.Post(s.URL+"/get", "application/json",
		strings.NewReader(`{"consumer_key": "`+s.ConsumerKey+`", "access_token": "`+s.AccessToken+`"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"list":[]`)
}

func TestListAllAgainstFake(t *testing.T) {
	s := NewServer(WithClock(fixedClock))
	defer s.Close()
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example", "https://d.example", "https://e.example"} {
		s.Add(u, "")
	}

	list, err := newClient(t, s).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 5)
	// 3 populated pages of 2 and the terminating empty one.
	require.Equal(t, 4, s.Requests("/get"))
	for _, item := range list.Items() {
		require.NotNil(t, item.Tags, "complete detail carries collections")
	}
}

func TestModifyAgainstFake(t *testing.T) {
	s := NewServer(WithClock(fixedClock))
	defer s.Close()
	id := s.Add("https://example.com/a", "A")
	client := newClient(t, s)
	ctx := context.Background()

	resp, err := client.Archive(ctx, id)
	require.NoError(t, err)
	require.True(t, resp[0].OK())
	item, _ := s.Item(id)
	require.Equal(t, pocket.Read, item.Status)
	require.EqualValues(t, 1700000000, item.TimeRead)

	resp, err = client.Readd(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, resp[0].Item)
	require.Equal(t, id, resp[0].Item.ItemID)
	item, _ = s.Item(id)
	require.Equal(t, pocket.Unread, item.Status)
	require.Zero(t, item.TimeRead)

	_, err = client.Favorite(ctx, id)
	require.NoError(t, err)
	item, _ = s.Item(id)
	require.Equal(t, pocket.Favorited, item.Favorite)

	_, err = client.AddTags(ctx, []string{"go", "web"}, id)
	require.NoError(t, err)
	_, err = client.RemoveTags(ctx, []string{"web"}, id)
	require.NoError(t, err)
	item, _ = s.Item(id)
	require.Equal(t, []string{"go"}, item.TagNames())

	_, err = client.ReplaceTags(ctx, []string{"rust"}, id)
	require.NoError(t, err)
	item, _ = s.Item(id)
	require.Equal(t, []string{"rust"}, item.TagNames())
}

func TestAddAndDelete(t *testing.T) {
	s := NewServer(WithClock(fixedClock))
	defer s.Close()
	client := newClient(t, s)
	ctx := context.Background()

	resp, err := client.AddURLs(ctx, "https://example.com/new", "not a url")
	require.NoError(t, err)
	require.Len(t, resp, 2)
	require.True(t, resp[0].OK())
	require.NotNil(t, resp[0].Item)
	require.Equal(t, "https://example.com/new", *resp[0].Item.GivenURL)

	var actionErr *pocket.ActionError
	require.ErrorAs(t, resp[1].Err, &actionErr)
	require.EqualValues(t, 422, actionErr.Code)
	require.Equal(t, "Unprocessable Entity", actionErr.ErrorType)

	list, err := client.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.CountGivenURL("https://example.com/new"))

	id := resp[0].Item.ItemID
	_, err = client.Delete(ctx, id)
	require.NoError(t, err)

	list, err = client.ListAll(ctx)
	require.NoError(t, err)
	require.Nil(t, list.FindGivenURL("https://example.com/new"))

	// An incremental fetch reports the removal.
	page, err := client.GetPage(ctx, pocket.Query{Since: pocket.Ptr(int64(1699999999))})
	require.NoError(t, err)
	require.True(t, page.List[id].IsDeleted())
}

func TestGetFilters(t *testing.T) {
	s := NewServer(WithClock(fixedClock))
	defer s.Close()
	client := newClient(t, s)
	ctx := context.Background()

	read := s.Add("https://www.example.com/read", "Read one")
	fav := s.Add("https://other.org/fav", "Favorite one")
	s.Add("https://example.com/plain", "Plain")
	_, err := client.Archive(ctx, read)
	require.NoError(t, err)
	_, err = client.Favorite(ctx, fav)
	require.NoError(t, err)
	_, err = client.AddTags(ctx, []string{"go"}, fav)
	require.NoError(t, err)

	tests := []struct {
		name  string
		query pocket.Query
		want  int
	}{
		{"default is unread", pocket.Query{}, 2},
		{"archive", pocket.Query{State: pocket.Ptr(pocket.StateArchive)}, 1},
		{"all", pocket.Query{State: pocket.Ptr(pocket.StateAll)}, 3},
		{"favorite", pocket.Query{Favorite: pocket.Ptr(pocket.Favorited)}, 1},
		{"tag", pocket.Query{Tag: pocket.Ptr(pocket.Tagged("go"))}, 1},
		{"untagged", pocket.Query{Tag: pocket.Ptr(pocket.Untagged())}, 1},
		{"search", pocket.Query{State: pocket.Ptr(pocket.StateAll), Search: pocket.Ptr("plain")}, 1},
		{"domain", pocket.Query{State: pocket.Ptr(pocket.StateAll), Domain: pocket.Ptr("example.com")}, 2},
		{"count", pocket.Query{State: pocket.Ptr(pocket.StateAll), Count: pocket.Ptr(uint32(2))}, 2},
		{"past the end", pocket.Query{State: pocket.Ptr(pocket.StateAll), Offset: pocket.Ptr(uint32(3))}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := client.Get(ctx, tt.query)
			require.NoError(t, err)
			require.Len(t, list, tt.want)
		})
	}
}

func TestRejectsBadCredentials(t *testing.T) {
	s := NewServer()
	defer s.Close()

	client, err := pocket.NewClient(s.URL, s.ConsumerKey, "wrong")
	require.NoError(t, err)

	_, err = client.Get(context.Background(), pocket.Query{})
	var te *pocket.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusUnauthorized, te.StatusCode)
	require.Equal(t, "107", te.XErrorCode)
}

func TestFailNext(t *testing.T) {
	s := NewServer()
	defer s.Close()
	client := newClient(t, s)

	s.FailNext(http.StatusServiceUnavailable, "Pocket's sync server is down for scheduled maintenance.", "199")
	_, err := client.Get(context.Background(), pocket.Query{})
	require.True(t, pocket.IsTransport(err))

	_, err = client.Get(context.Background(), pocket.Query{})
	require.NoError(t, err)
}

func TestOAuth(t *testing.T) {
	s := NewServer()
	defer s.Close()

	auth, err := pocket.NewAuthenticator(s.URL, s.ConsumerKey, s.Client())
	require.NoError(t, err)

	token, err := auth.RequestToken(context.Background(), pocket.DefaultRedirectURI)
	require.NoError(t, err)
	require.Equal(t, s.RequestToken, token)

	authz, err := auth.Authorize(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, s.AccessToken, authz.AccessToken)
	require.Equal(t, s.Username, authz.Username)

	_, err = auth.Authorize(context.Background(), "unapproved")
	require.True(t, pocket.IsTransport(err))
}
