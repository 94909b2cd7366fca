package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favescreen/pkg/config"
	"favescreen/pkg/logger"
	"favescreen/pkg/post"
)

func tweetEntry(id, screenName, name, text string, protected bool) map[string]interface{} {
	return map[string]interface{}{
		"entryId": "tweet-" + id,
		"content": map[string]interface{}{
			"entryType": "TimelineTimelineItem",
			"itemContent": map[string]interface{}{
				"tweet_results": map[string]interface{}{
					"result": map[string]interface{}{
						"__typename": "Tweet",
						"rest_id":    id,
						"legacy": map[string]interface{}{
							"full_text":  text,
							"created_at": "Fri Mar 15 10:30:00 +0000 2024",
						},
						"core": map[string]interface{}{
							"user_results": map[string]interface{}{
								"result": map[string]interface{}{
									"legacy": map[string]interface{}{
										"name":        name,
										"screen_name": screenName,
										"protected":   protected,
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func cursorEntry(cursorType, value string) map[string]interface{} {
	return map[string]interface{}{
		"entryId": "cursor-" + cursorType,
		"content": map[string]interface{}{
			"entryType":  "TimelineTimelineCursor",
			"cursorType": cursorType,
			"value":      value,
		},
	}
}

func likesPage(entries ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				"result": map[string]interface{}{
					"timeline_v2": map[string]interface{}{
						"timeline": map[string]interface{}{
							"instructions": []interface{}{
								map[string]interface{}{
									"type":    "TimelineAddEntries",
									"entries": entries,
								},
							},
						},
					},
				},
			},
		},
	}
}

func testTwitterConfig(baseURL string) config.TwitterConfig {
	return config.TwitterConfig{
		BaseURL:     baseURL,
		UserID:      "12345",
		BearerToken: "bearer",
		AuthToken:   "authcookie",
		CSRFToken:   "csrf",
		PageSize:    2,
		MaxPosts:    10,
	}
}

func TestTwitterListFavorites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer bearer", r.Header.Get("Authorization"))
		assert.Equal(t, "csrf", r.Header.Get("x-csrf-token"))
		assert.Contains(t, r.Header.Get("Cookie"), "auth_token=authcookie")
		assert.Contains(t, r.Header.Get("Cookie"), "ct0=csrf")

		var variables map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables))
		assert.Equal(t, "12345", variables["userId"])

		if variables["cursor"] == nil {
			json.NewEncoder(w).Encode(likesPage(
				tweetEntry("111", "ada", "Ada", "public tweet", false),
				tweetEntry("222", "grace", "Grace", "protected tweet", true),
				cursorEntry("Bottom", "cursor-2"),
			))
		} else {
			assert.Equal(t, "cursor-2", variables["cursor"])
			json.NewEncoder(w).Encode(likesPage(
				cursorEntry("Bottom", "cursor-3"),
			))
		}
	}))
	defer server.Close()

	source := NewTwitter(testTwitterConfig(server.URL), time.Hour, testHTTPClient(), logger.NewTestLogger())

	favorites, err := source.ListFavorites(context.Background())
	require.NoError(t, err)
	require.Len(t, favorites, 2)

	assert.Equal(t, "111", favorites[0].ID)
	assert.Equal(t, "Ada", favorites[0].AuthorName)
	assert.Equal(t, "ada", favorites[0].AuthorHandle)
	assert.Equal(t, "public tweet", favorites[0].Body)
	assert.Equal(t, "https://x.com/ada/status/111", favorites[0].URL)
	assert.False(t, favorites[0].Protected)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), favorites[0].Date.UTC())

	assert.True(t, favorites[1].Protected)
}

func TestTwitterListCapsAtMaxPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var variables map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables))

		cursor, _ := variables["cursor"].(string)
		json.NewEncoder(w).Encode(likesPage(
			tweetEntry("a"+cursor, "ada", "Ada", "one", false),
			tweetEntry("b"+cursor, "ada", "Ada", "two", false),
			cursorEntry("Bottom", cursor+"x"),
		))
	}))
	defer server.Close()

	cfg := testTwitterConfig(server.URL)
	cfg.MaxPosts = 3

	source := NewTwitter(cfg, time.Hour, testHTTPClient(), logger.NewTestLogger())

	favorites, err := source.ListFavorites(context.Background())
	require.NoError(t, err)
	assert.Len(t, favorites, 3)
}

func TestTwitterCaptureSpec(t *testing.T) {
	source := NewTwitter(testTwitterConfig("https://example.com"), time.Hour, testHTTPClient(), logger.NewTestLogger())

	public := &post.Favorite{
		ID:          "111",
		URL:         "https://x.com/ada/status/111",
		EmbeddedURL: "https://platform.twitter.com/embed/Tweet.html?id=111",
	}
	spec := source.CaptureSpec(public)
	assert.Equal(t, public.EmbeddedURL, spec.URL)
	assert.Zero(t, spec.SettleDelay)

	private := &post.Favorite{
		ID:        "222",
		URL:       "https://x.com/grace/status/222",
		Protected: true,
	}
	spec = source.CaptureSpec(private)
	assert.Equal(t, private.URL, spec.URL)
	assert.Equal(t, 2*time.Second, spec.SettleDelay)
	assert.NotEmpty(t, spec.StyleCSS)
}
