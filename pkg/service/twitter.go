package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"favescreen/pkg/config"
	"favescreen/pkg/httpx"
	"favescreen/pkg/logger"
	"favescreen/pkg/post"
	"favescreen/pkg/render"
)

// twitterHideChromeCSS hides the navigation and engagement bars when a
// protected tweet has to render on the canonical page.
const twitterHideChromeCSS = `
header, [data-testid="BottomBar"], [data-testid="sheetDialog"],
[role="group"], [data-testid="inlinePrompt"] { display: none !important; }
`

// likesQueryID is the GraphQL persisted-query hash for the Likes timeline.
const likesQueryID = "B8I_QCljDBVfin21TTWMqA"

// Twitter lists likes over the private GraphQL API using session cookies,
// and renders protected tweets through a signed-in browser session.
type Twitter struct {
	cfg           config.TwitterConfig
	signInTimeout time.Duration
	client        *httpx.Client
	logger        logger.Logger
}

// NewTwitter creates the Twitter source. The client must be dedicated to
// this source; the construction installs the session headers on it.
func NewTwitter(cfg config.TwitterConfig, signInTimeout time.Duration, client *httpx.Client, log logger.Logger) *Twitter {
	if log == nil {
		log = logger.GetLogger()
	}

	cookie := fmt.Sprintf("auth_token=%s; ct0=%s", cfg.AuthToken, cfg.CSRFToken)
	if cfg.SessionCookie != "" {
		cookie += "; " + cfg.SessionCookie
	}
	client.SetHeaders(map[string]string{
		"Authorization": "Bearer " + cfg.BearerToken,
		"x-csrf-token":  cfg.CSRFToken,
		"Cookie":        cookie,
	})

	return &Twitter{cfg: cfg, signInTimeout: signInTimeout, client: client, logger: log}
}

func (t *Twitter) Name() string  { return "twitter" }
func (t *Twitter) Title() string { return "Twitter" }

// SignIn opens an interactive browser window so protected tweets render
// later. The human completes the sign-in; the flow waits for the home
// timeline to confirm it happened, then switches the account to the
// lights-out theme so canonical-page captures render dark.
func (t *Twitter) SignIn(ctx context.Context, r render.Renderer) error {
	return r.SignIn(ctx, t.Name(), func(p render.Page) error {
		if err := p.Navigate("https://x.com/login"); err != nil {
			return err
		}
		if err := p.WaitForURL("**/home", t.signInTimeout); err != nil {
			return err
		}

		// Theme selection is cosmetic; a settings redesign must not block
		// archiving.
		if err := t.selectDarkTheme(p); err != nil {
			t.logger.WithError(err).Warn("could not set lights-out theme")
		}
		return nil
	})
}

func (t *Twitter) selectDarkTheme(p render.Page) error {
	if err := p.Navigate("https://x.com/settings/display"); err != nil {
		return err
	}
	if err := p.WaitForSelector(`text="Lights out"`, 30*time.Second); err != nil {
		return err
	}
	return p.Click(`text="Lights out"`)
}

// Types below model the slice of the GraphQL Likes response we consume.

type twitterLikesResponse struct {
	Data struct {
		User struct {
			Result struct {
				TimelineV2 struct {
					Timeline struct {
						Instructions []twitterInstruction `json:"instructions"`
					} `json:"timeline"`
				} `json:"timeline_v2"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

type twitterInstruction struct {
	Type    string         `json:"type"`
	Entries []twitterEntry `json:"entries"`
}

type twitterEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		EntryType   string `json:"entryType"`
		CursorType  string `json:"cursorType"`
		Value       string `json:"value"`
		ItemContent struct {
			TweetResults struct {
				Result twitterTweetResult `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
	} `json:"content"`
}

type twitterTweetResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Legacy   struct {
		FullText          string `json:"full_text"`
		CreatedAt         string `json:"created_at"`
		PossiblySensitive bool   `json:"possibly_sensitive"`
	} `json:"legacy"`
	Core struct {
		UserResults struct {
			Result struct {
				Legacy struct {
					Name       string `json:"name"`
					ScreenName string `json:"screen_name"`
					Protected  bool   `json:"protected"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
}

// twitterTimeFormat is the legacy created_at format.
const twitterTimeFormat = "Mon Jan 2 15:04:05 -0700 2006"

// ListFavorites walks the Likes timeline with cursor pagination. The walk
// stops at MaxPosts, on a page with no tweets, or when the bottom cursor
// stops moving.
func (t *Twitter) ListFavorites(ctx context.Context) ([]*post.Favorite, error) {
	var favorites []*post.Favorite
	cursor := ""

	for t.cfg.MaxPosts <= 0 || len(favorites) < t.cfg.MaxPosts {
		page, err := t.fetchLikesPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list twitter likes: %w", err)
		}

		tweets, nextCursor := flattenLikesPage(page)
		if len(tweets) == 0 {
			break
		}

		for _, tw := range tweets {
			if t.cfg.MaxPosts > 0 && len(favorites) >= t.cfg.MaxPosts {
				break
			}

			date, err := time.Parse(twitterTimeFormat, tw.Legacy.CreatedAt)
			if err != nil {
				t.logger.WarnWithFields("skipping tweet with unparseable date", map[string]interface{}{
					"tweet_id": tw.RestID,
					"date":     tw.Legacy.CreatedAt,
				})
				continue
			}

			user := tw.Core.UserResults.Result.Legacy
			favorites = append(favorites, &post.Favorite{
				ID:           tw.RestID,
				AuthorName:   user.Name,
				AuthorHandle: user.ScreenName,
				Body:         tw.Legacy.FullText,
				Date:         date,
				URL:          fmt.Sprintf("https://x.com/%s/status/%s", user.ScreenName, tw.RestID),
				EmbeddedURL:  fmt.Sprintf("https://platform.twitter.com/embed/Tweet.html?id=%s&theme=light&hideThread=true&lang=en", tw.RestID),
				Protected:    user.Protected || tw.Legacy.PossiblySensitive,
			})
		}

		if nextCursor == "" || nextCursor == cursor {
			break
		}
		cursor = nextCursor
	}

	t.logger.InfoWithFields("listed twitter likes", map[string]interface{}{
		"count": len(favorites),
	})
	return favorites, nil
}

// fetchLikesPage issues one GraphQL Likes request.
func (t *Twitter) fetchLikesPage(ctx context.Context, cursor string) (*twitterLikesResponse, error) {
	variables := map[string]interface{}{
		"userId":                 t.cfg.UserID,
		"count":                  t.cfg.PageSize,
		"includePromotedContent": false,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, err
	}

	query := url.Values{"variables": {string(variablesJSON)}}
	likesURL := fmt.Sprintf("%s/graphql/%s/Likes?%s", t.cfg.BaseURL, likesQueryID, query.Encode())

	var page twitterLikesResponse
	if _, err := t.client.GetJSON(ctx, likesURL, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// flattenLikesPage pulls the tweets and the bottom cursor out of one page's
// instruction list.
func flattenLikesPage(page *twitterLikesResponse) ([]twitterTweetResult, string) {
	var tweets []twitterTweetResult
	cursor := ""

	for _, instruction := range page.Data.User.Result.TimelineV2.Timeline.Instructions {
		if instruction.Type != "TimelineAddEntries" {
			continue
		}
		for _, entry := range instruction.Entries {
			switch entry.Content.EntryType {
			case "TimelineTimelineItem":
				result := entry.Content.ItemContent.TweetResults.Result
				if result.TypeName == "Tweet" && result.RestID != "" {
					tweets = append(tweets, result)
				}
			case "TimelineTimelineCursor":
				if entry.Content.CursorType == "Bottom" {
					cursor = entry.Content.Value
				}
			}
		}
	}

	return tweets, cursor
}

// CaptureSpec prefers the embed widget, which renders without a session.
// Protected and sensitive tweets only render on the canonical page behind
// the saved sign-in, and that page reflows after load, so it gets a settle
// delay.
func (t *Twitter) CaptureSpec(f *post.Favorite) render.Capture {
	if f.Protected {
		return render.Capture{
			URL:         f.URL,
			Selector:    `article[data-testid="tweet"]`,
			StyleCSS:    twitterHideChromeCSS,
			Wait:        render.WaitLoad,
			SettleDelay: 2 * time.Second,
		}
	}

	return render.Capture{
		URL:      f.EmbeddedURL,
		Selector: "article",
		Wait:     render.WaitNetworkIdle,
	}
}
