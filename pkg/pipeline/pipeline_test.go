package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favescreen/pkg/archive"
	"favescreen/pkg/config"
	"favescreen/pkg/errors"
	"favescreen/pkg/frame"
	"favescreen/pkg/imagemeta"
	"favescreen/pkg/logger"
	"favescreen/pkg/post"
	"favescreen/pkg/render"
	"favescreen/pkg/service"
)

// fakeSource serves a fixed favorites list.
type fakeSource struct {
	name      string
	favorites []*post.Favorite
	signInErr error
}

func (s *fakeSource) Name() string  { return s.name }
func (s *fakeSource) Title() string { return "Test" }

func (s *fakeSource) SignIn(ctx context.Context, _ render.Renderer) error {
	return s.signInErr
}

func (s *fakeSource) ListFavorites(ctx context.Context) ([]*post.Favorite, error) {
	return s.favorites, nil
}

func (s *fakeSource) CaptureSpec(f *post.Favorite) render.Capture {
	return render.Capture{URL: f.URL, Selector: "article"}
}

// fakeRenderer hands out sessions that map URLs to canned screenshot bytes.
type fakeRenderer struct {
	shots map[string][]byte
	errs  map[string]error
}

func (r *fakeRenderer) SignIn(ctx context.Context, service string, flow func(render.Page) error) error {
	return nil
}

func (r *fakeRenderer) BeginCapture(ctx context.Context, service string) (render.Session, error) {
	return &fakeSession{r: r}, nil
}

func (r *fakeRenderer) Close() error { return nil }

type fakeSession struct {
	r *fakeRenderer
}

func (s *fakeSession) Capture(ctx context.Context, c render.Capture) ([]byte, error) {
	if err, ok := s.r.errs[c.URL]; ok {
		return nil, err
	}
	data, ok := s.r.shots[c.URL]
	if !ok {
		return nil, fmt.Errorf("no canned screenshot for %s", c.URL)
	}
	return data, nil
}

func (s *fakeSession) Close() error { return nil }

// fakePublisher allocates pairs with a fixed capacity and records every
// publish.
type fakePublisher struct {
	capacity   int
	publishes  map[string][]string // pair album title -> filenames
	publishErr error
}

func newFakePublisher(capacity int) *fakePublisher {
	return &fakePublisher{capacity: capacity, publishes: make(map[string][]string)}
}

func (p *fakePublisher) PairAllocator(ctx context.Context, title string) *archive.Allocator[frame.Pair] {
	return archive.NewAllocator(p.capacity, func(ordinal int) (frame.Pair, int, error) {
		name := fmt.Sprintf("%s Favorites %d", title, ordinal)
		pair := frame.Pair{
			Album:    &frame.Album{ID: int64(ordinal), Title: name},
			Playlist: &frame.Playlist{ID: int64(ordinal), Name: name},
		}
		return pair, len(p.publishes[name]), nil
	})
}

func (p *fakePublisher) Publish(ctx context.Context, pair frame.Pair, filename string, data []byte) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.publishes[pair.Album.Title] = append(p.publishes[pair.Album.Title], filename)
	return nil
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func favorite(id string) *post.Favorite {
	return &post.Favorite{
		ID:           id,
		AuthorName:   "Ada",
		AuthorHandle: "ada.example.com",
		Body:         "post " + id,
		Date:         time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		URL:          "https://example.com/posts/" + id,
	}
}

func testPipeline(t *testing.T, root string, r render.Renderer, pub Publisher) *Pipeline {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Archive.Root = root
	cfg.Archive.FolderCapacity = 2

	loc, err := time.LoadLocation(cfg.Archive.TimeZone)
	require.NoError(t, err)

	return New(cfg, r, imagemeta.NewTagger(loc), pub, logger.NewTestLogger())
}

func TestRunArchivesNewFavorites(t *testing.T) {
	root := t.TempDir()
	shot := encodeJPEG(t)

	// B is already archived from an earlier run.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "testsvc", "1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "testsvc", "1", "B.jpg"), shot, 0644))

	src := &fakeSource{
		name:      "testsvc",
		favorites: []*post.Favorite{favorite("A"), favorite("B"), favorite("C")},
	}
	renderer := &fakeRenderer{shots: map[string][]byte{
		"https://example.com/posts/A": shot,
		"https://example.com/posts/C": shot,
	}}
	publisher := newFakePublisher(2)

	p := testPipeline(t, root, renderer, publisher)
	summary, err := p.Run(context.Background(), []service.Source{src})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Listed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Archived)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Published)

	// Folder 1 had one slot left; C rolls into folder 2.
	assert.FileExists(t, filepath.Join(root, "testsvc", "1", "A.jpg"))
	assert.FileExists(t, filepath.Join(root, "testsvc", "2", "C.jpg"))

	assert.Equal(t, []string{"A.jpg", "C.jpg"}, publisher.publishes["Test Favorites 1"])
}

func TestRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	shot := encodeJPEG(t)

	src := &fakeSource{
		name:      "testsvc",
		favorites: []*post.Favorite{favorite("A"), favorite("B")},
	}
	renderer := &fakeRenderer{shots: map[string][]byte{
		"https://example.com/posts/A": shot,
		"https://example.com/posts/B": shot,
	}}

	p := testPipeline(t, root, renderer, nil)

	first, err := p.Run(context.Background(), []service.Source{src})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Archived)

	second, err := p.Run(context.Background(), []service.Source{src})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Archived)
	assert.Equal(t, 2, second.Skipped)
}

func TestRunAbortsWhenSelectorBreaks(t *testing.T) {
	src := &fakeSource{
		name:      "testsvc",
		favorites: []*post.Favorite{favorite("A"), favorite("B")},
	}
	renderer := &fakeRenderer{
		shots: map[string][]byte{"https://example.com/posts/B": encodeJPEG(t)},
		errs:  map[string]error{"https://example.com/posts/A": errors.ErrSelectorNotFound},
	}

	p := testPipeline(t, t.TempDir(), renderer, nil)

	_, err := p.Run(context.Background(), []service.Source{src})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSelectorNotFound)
}

func TestRunSkipsPostsThatFailToTag(t *testing.T) {
	src := &fakeSource{
		name:      "testsvc",
		favorites: []*post.Favorite{favorite("A"), favorite("B")},
	}
	renderer := &fakeRenderer{shots: map[string][]byte{
		"https://example.com/posts/A": []byte("not a jpeg"),
		"https://example.com/posts/B": encodeJPEG(t),
	}}

	p := testPipeline(t, t.TempDir(), renderer, nil)

	summary, err := p.Run(context.Background(), []service.Source{src})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Archived)
}

func TestRunContinuesWhenPublishFails(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{
		name:      "testsvc",
		favorites: []*post.Favorite{favorite("A")},
	}
	renderer := &fakeRenderer{shots: map[string][]byte{
		"https://example.com/posts/A": encodeJPEG(t),
	}}
	publisher := newFakePublisher(2)
	publisher.publishErr = errors.ErrPhotoNotResolved

	p := testPipeline(t, root, renderer, publisher)

	summary, err := p.Run(context.Background(), []service.Source{src})
	require.NoError(t, err)

	// The local archive still has the photo; only the remote leg failed.
	assert.Equal(t, 1, summary.Archived)
	assert.Equal(t, 1, summary.PublishFails)
	assert.Equal(t, 0, summary.Published)
	assert.FileExists(t, filepath.Join(root, "testsvc", "1", "A.jpg"))
}

func TestRunFailsWhenSignInFails(t *testing.T) {
	src := &fakeSource{
		name:      "testsvc",
		signInErr: fmt.Errorf("bad credentials"),
	}

	p := testPipeline(t, t.TempDir(), &fakeRenderer{}, nil)

	_, err := p.Run(context.Background(), []service.Source{src})
	assert.Error(t, err)
}
