package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favescreen/pkg/config"
	"favescreen/pkg/logger"
)

func mastodonStatusJSON(id, acct, name, content string) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"url":        fmt.Sprintf("https://example.social/@%s/%s", acct, id),
		"content":    content,
		"created_at": "2024-03-15T10:30:00Z",
		"account": map[string]interface{}{
			"acct":         acct,
			"display_name": name,
		},
	}
}

func TestMastodonListFavorites(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/api/v1/accounts/verify_credentials":
			json.NewEncoder(w).Encode(map[string]string{"acct": "ada"})

		case "/api/v1/favourites":
			if r.URL.Query().Get("max_id") == "" {
				w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/favourites?limit=2&max_id=100>; rel="next", <%s/api/v1/favourites?min_id=200>; rel="prev"`, server.URL, server.URL))
				json.NewEncoder(w).Encode([]interface{}{
					mastodonStatusJSON("201", "ada", "Ada", "<p>Hello <b>world</b></p>"),
					mastodonStatusJSON("200", "grace", "Grace", "<p>line one<br>line two</p>"),
				})
			} else {
				// Final page: no next link.
				json.NewEncoder(w).Encode([]interface{}{
					mastodonStatusJSON("100", "ada", "Ada", "last"),
				})
			}

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	source := NewMastodon(config.MastodonConfig{
		Server:      server.URL,
		AccessToken: "access-token",
		PageSize:    2,
	}, testHTTPClient(), logger.NewTestLogger())

	require.NoError(t, source.SignIn(context.Background(), nil))

	favorites, err := source.ListFavorites(context.Background())
	require.NoError(t, err)
	require.Len(t, favorites, 3)

	assert.Equal(t, "201", favorites[0].ID)
	assert.Equal(t, "Hello world", favorites[0].Body)
	assert.Equal(t, "Ada", favorites[0].AuthorName)
	assert.Equal(t, "ada", favorites[0].AuthorHandle)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), favorites[0].Date)

	assert.Equal(t, "line one\nline two", favorites[1].Body)
	assert.Equal(t, "100", favorites[2].ID)
}

func TestMastodonListRequiresSignIn(t *testing.T) {
	source := NewMastodon(config.MastodonConfig{}, testHTTPClient(), logger.NewTestLogger())
	_, err := source.ListFavorites(context.Background())
	assert.Error(t, err)
}

func TestParseNextLink(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`<https://s/api/v1/favourites?max_id=1>; rel="next", <https://s/x>; rel="prev"`, "https://s/api/v1/favourites?max_id=1"},
		{`<https://s/x>; rel="prev"`, ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseNextLink(tt.header), "header %q", tt.header)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"<p>one</p><p>two</p>", "one\ntwo"},
		{"a&amp;b &lt;3", "a&b <3"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stripHTML(tt.in), "input %q", tt.in)
	}
}
