// Package service implements the favorite sources. Each source knows how to
// authenticate against its network, page through the account's liked posts,
// and describe how a post's page should be screenshotted.
package service

import (
	"context"

	"favescreen/pkg/post"
	"favescreen/pkg/render"
)

// Source is one social network's view of the account's favorites.
type Source interface {
	// Name is the service's short identifier ("bluesky", "mastodon",
	// "twitter"). It names the service's archive subtree.
	Name() string

	// Title is the human name used for remote album naming.
	Title() string

	// SignIn prepares authenticated access. Token-based sources validate
	// their credentials against the API; browser-based sources open an
	// interactive sign-in window through the renderer.
	SignIn(ctx context.Context, r render.Renderer) error

	// ListFavorites returns every liked post the service will yield,
	// newest first.
	ListFavorites(ctx context.Context) ([]*post.Favorite, error)

	// CaptureSpec describes how to screenshot one post.
	CaptureSpec(f *post.Favorite) render.Capture
}
