package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"favescreen/pkg/config"
	"favescreen/pkg/httpx"
	"favescreen/pkg/logger"
	"favescreen/pkg/post"
	"favescreen/pkg/render"
)

// blueskyHideChromeCSS strips the app shell so only the post thread shows.
const blueskyHideChromeCSS = `
nav, header, [role="banner"] { display: none !important; }
`

// Bluesky lists likes over the XRPC API using an app password.
type Bluesky struct {
	cfg    config.BlueskyConfig
	client *httpx.Client
	logger logger.Logger

	did string
}

// NewBluesky creates the Bluesky source. The client must be dedicated to
// this source; sign-in installs an Authorization header on it.
func NewBluesky(cfg config.BlueskyConfig, client *httpx.Client, log logger.Logger) *Bluesky {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bluesky{cfg: cfg, client: client, logger: log}
}

func (b *Bluesky) Name() string  { return "bluesky" }
func (b *Bluesky) Title() string { return "Bluesky" }

// SignIn exchanges the identifier and app password for a session token.
// No browser is involved; post pages render without one.
func (b *Bluesky) SignIn(ctx context.Context, _ render.Renderer) error {
	var session struct {
		AccessJwt string `json:"accessJwt"`
		Did       string `json:"did"`
		Handle    string `json:"handle"`
	}

	err := b.client.PostJSON(ctx, b.cfg.BaseURL+"/com.atproto.server.createSession", map[string]string{
		"identifier": b.cfg.Identifier,
		"password":   b.cfg.AppPassword,
	}, &session)
	if err != nil {
		return fmt.Errorf("bluesky sign-in failed: %w", err)
	}

	b.did = session.Did
	b.client.SetHeader("Authorization", "Bearer "+session.AccessJwt)

	b.logger.InfoWithFields("signed in to bluesky", map[string]interface{}{
		"handle": session.Handle,
	})
	return nil
}

// blueskyFeedPage is one page of app.bsky.feed.getActorLikes.
type blueskyFeedPage struct {
	Cursor string `json:"cursor"`
	Feed   []struct {
		Post struct {
			URI    string `json:"uri"`
			Author struct {
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Record struct {
				Text      string    `json:"text"`
				CreatedAt time.Time `json:"createdAt"`
			} `json:"record"`
		} `json:"post"`
	} `json:"feed"`
}

// ListFavorites walks the likes feed with cursor pagination until the
// server returns an empty page.
func (b *Bluesky) ListFavorites(ctx context.Context) ([]*post.Favorite, error) {
	if b.did == "" {
		return nil, fmt.Errorf("bluesky source is not signed in")
	}

	var favorites []*post.Favorite
	cursor := ""

	for {
		query := url.Values{
			"actor": {b.did},
			"limit": {fmt.Sprintf("%d", b.cfg.PageSize)},
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page blueskyFeedPage
		_, err := b.client.GetJSON(ctx, b.cfg.BaseURL+"/app.bsky.feed.getActorLikes?"+query.Encode(), &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list bluesky likes: %w", err)
		}

		if len(page.Feed) == 0 {
			break
		}

		for _, item := range page.Feed {
			p := item.Post
			rkey := p.URI[strings.LastIndex(p.URI, "/")+1:]
			favorites = append(favorites, &post.Favorite{
				ID:           rkey,
				AuthorName:   p.Author.DisplayName,
				AuthorHandle: p.Author.Handle,
				Body:         p.Record.Text,
				Date:         p.Record.CreatedAt,
				URL:          fmt.Sprintf("https://bsky.app/profile/%s/post/%s", p.Author.Handle, rkey),
			})
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	b.logger.InfoWithFields("listed bluesky favorites", map[string]interface{}{
		"count": len(favorites),
	})
	return favorites, nil
}

// CaptureSpec renders the public post page and screenshots the thread item.
func (b *Bluesky) CaptureSpec(f *post.Favorite) render.Capture {
	return render.Capture{
		URL:      f.URL,
		Selector: `div[data-testid^="postThreadItem-by-"]`,
		StyleCSS: blueskyHideChromeCSS,
		Wait:     render.WaitNetworkIdle,
	}
}
