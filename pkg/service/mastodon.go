package service

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"favescreen/pkg/config"
	"favescreen/pkg/httpx"
	"favescreen/pkg/logger"
	"favescreen/pkg/post"
	"favescreen/pkg/render"
)

// mastodonHideChromeCSS hides the column chrome around a detailed status.
const mastodonHideChromeCSS = `
.ui__header, .columns-area__panels__pane, .column-header,
.detailed-status__action-bar, .status__action-bar { display: none !important; }
`

// Mastodon lists favourites over the REST API using an access token.
type Mastodon struct {
	cfg    config.MastodonConfig
	client *httpx.Client
	logger logger.Logger

	signedIn bool
}

// NewMastodon creates the Mastodon source. The client must be dedicated to
// this source; sign-in installs an Authorization header on it.
func NewMastodon(cfg config.MastodonConfig, client *httpx.Client, log logger.Logger) *Mastodon {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Mastodon{cfg: cfg, client: client, logger: log}
}

func (m *Mastodon) Name() string  { return "mastodon" }
func (m *Mastodon) Title() string { return "Mastodon" }

// SignIn verifies the access token against the instance.
func (m *Mastodon) SignIn(ctx context.Context, _ render.Renderer) error {
	m.client.SetHeader("Authorization", "Bearer "+m.cfg.AccessToken)

	var account struct {
		Acct string `json:"acct"`
	}
	_, err := m.client.GetJSON(ctx, m.cfg.Server+"/api/v1/accounts/verify_credentials", &account)
	if err != nil {
		return fmt.Errorf("mastodon sign-in failed: %w", err)
	}

	m.signedIn = true
	m.logger.InfoWithFields("signed in to mastodon", map[string]interface{}{
		"account": account.Acct,
	})
	return nil
}

// mastodonStatus is the slice of a status we archive.
type mastodonStatus struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Account   struct {
		Acct        string `json:"acct"`
		DisplayName string `json:"display_name"`
	} `json:"account"`
}

// ListFavorites pages through /api/v1/favourites. Mastodon paginates with a
// Link response header; the walk follows rel="next" until it disappears.
func (m *Mastodon) ListFavorites(ctx context.Context) ([]*post.Favorite, error) {
	if !m.signedIn {
		return nil, fmt.Errorf("mastodon source is not signed in")
	}

	var favorites []*post.Favorite
	next := fmt.Sprintf("%s/api/v1/favourites?limit=%d", m.cfg.Server, m.cfg.PageSize)

	for next != "" {
		var statuses []mastodonStatus
		header, err := m.client.GetJSON(ctx, next, &statuses)
		if err != nil {
			return nil, fmt.Errorf("failed to list mastodon favourites: %w", err)
		}

		if len(statuses) == 0 {
			break
		}

		for _, s := range statuses {
			favorites = append(favorites, &post.Favorite{
				ID:           s.ID,
				AuthorName:   s.Account.DisplayName,
				AuthorHandle: s.Account.Acct,
				Body:         stripHTML(s.Content),
				Date:         s.CreatedAt,
				URL:          s.URL,
			})
		}

		next = parseNextLink(header.Get("Link"))
	}

	m.logger.InfoWithFields("listed mastodon favourites", map[string]interface{}{
		"count": len(favorites),
	})
	return favorites, nil
}

// CaptureSpec renders the public status page and screenshots the detailed
// status card.
func (m *Mastodon) CaptureSpec(f *post.Favorite) render.Capture {
	return render.Capture{
		URL:      f.URL,
		Selector: "div.detailed-status",
		StyleCSS: mastodonHideChromeCSS,
		Wait:     render.WaitNetworkIdle,
	}
}

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// parseNextLink extracts the rel="next" URL from a Link header, or ""
// when there is no next page.
func parseNextLink(linkHeader string) string {
	match := nextLinkPattern.FindStringSubmatch(linkHeader)
	if match == nil {
		return ""
	}
	return match[1]
}

var (
	breakTagPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
)

// stripHTML flattens status HTML into plain text for the caption.
func stripHTML(s string) string {
	s = breakTagPattern.ReplaceAllString(s, "\n")
	s = htmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
