// Package post defines the canonical representation of a liked post that
// flows through the archival pipeline.
package post

import (
	"fmt"
	"strings"
	"time"
)

// Favorite is one liked post fetched from a service's API. Fields are
// normalized here so the renderer, tagger and archive never need to know
// which service a post came from.
type Favorite struct {
	// ID uniquely identifies the post within its service. It becomes the
	// archived file's base name, so it must not contain path separators.
	ID string

	// AuthorName is the display name of the post's author.
	AuthorName string

	// AuthorHandle is the author's account handle, without a leading @.
	AuthorHandle string

	// Body is the post's text content.
	Body string

	// Date is when the post was published.
	Date time.Time

	// URL is the canonical web address of the post.
	URL string

	// EmbeddedURL is an alternate widget address that renders the post
	// without signing in. Empty when the service has no embed view.
	EmbeddedURL string

	// Protected marks posts that only render for a signed-in session
	// (private accounts, sensitive-content interstitials).
	Protected bool
}

// Filename returns the name the post archives under.
func (f *Favorite) Filename() string {
	return f.ID + ".jpg"
}

// Attribution returns the author formatted as `Name (handle)`.
func (f *Favorite) Attribution() string {
	return fmt.Sprintf("%s (%s)", f.AuthorName, f.AuthorHandle)
}

// Validate checks that the post can be archived safely.
func (f *Favorite) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("post has no ID")
	}
	if strings.ContainsAny(f.ID, `/\`) {
		return fmt.Errorf("post ID %q contains a path separator", f.ID)
	}
	if f.URL == "" && f.EmbeddedURL == "" {
		return fmt.Errorf("post %s has no renderable URL", f.ID)
	}
	return nil
}
