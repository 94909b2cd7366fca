// Package pipeline runs the archival flow: for each enabled service, sign
// in, list the account's favorites, drop the ones already archived, then
// render, tag, file and optionally publish every new one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"favescreen/pkg/archive"
	"favescreen/pkg/config"
	errs "favescreen/pkg/errors"
	"favescreen/pkg/frame"
	"favescreen/pkg/imagemeta"
	"favescreen/pkg/logger"
	"favescreen/pkg/post"
	"favescreen/pkg/render"
	"favescreen/pkg/service"
)

// Publisher is the remote leg: capacity-bounded album/playlist pairs and
// photo publication into them. *frame.Library implements it; runs without
// a frame account pass nil.
type Publisher interface {
	PairAllocator(ctx context.Context, title string) *archive.Allocator[frame.Pair]
	Publish(ctx context.Context, pair frame.Pair, filename string, data []byte) error
}

// Summary counts what one run did.
type Summary struct {
	Listed       int
	Skipped      int
	Archived     int
	Failed       int
	Published    int
	PublishFails int
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       *config.Config
	renderer  render.Renderer
	tagger    *imagemeta.Tagger
	publisher Publisher
	logger    logger.Logger
}

// New creates a pipeline. publisher may be nil when the remote leg is
// disabled.
func New(cfg *config.Config, renderer render.Renderer, tagger *imagemeta.Tagger, publisher Publisher, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{
		cfg:       cfg,
		renderer:  renderer,
		tagger:    tagger,
		publisher: publisher,
		logger:    log,
	}
}

// Run archives every source in order. Per-post failures are logged and
// skipped; a selector that matches nothing aborts the whole run, since it
// means a page layout changed and every following capture would produce
// garbage.
func (p *Pipeline) Run(ctx context.Context, sources []service.Source) (*Summary, error) {
	summary := &Summary{}

	for _, src := range sources {
		if err := p.runSource(ctx, src, summary); err != nil {
			return summary, err
		}
	}

	p.logger.InfoWithFields("run complete", map[string]interface{}{
		"listed":       summary.Listed,
		"skipped":      summary.Skipped,
		"archived":     summary.Archived,
		"failed":       summary.Failed,
		"published":    summary.Published,
		"publish_fail": summary.PublishFails,
	})
	return summary, nil
}

func (p *Pipeline) runSource(ctx context.Context, src service.Source, summary *Summary) error {
	log := p.logger.WithField("service", src.Name())

	if err := src.SignIn(ctx, p.renderer); err != nil {
		return fmt.Errorf("%s sign-in failed: %w", src.Name(), err)
	}

	favorites, err := src.ListFavorites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s favorites: %w", src.Name(), err)
	}
	summary.Listed += len(favorites)

	serviceRoot := filepath.Join(p.cfg.Archive.Root, src.Name())

	index, err := archive.BuildIndex(serviceRoot)
	if err != nil {
		return err
	}
	store, err := archive.NewStore(serviceRoot, p.cfg.Archive.FolderCapacity)
	if err != nil {
		return err
	}

	log.InfoWithFields("starting archive pass", map[string]interface{}{
		"favorites": len(favorites),
		"archived":  index.Len(),
	})

	session, err := p.renderer.BeginCapture(ctx, src.Name())
	if err != nil {
		return fmt.Errorf("failed to open capture session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Warn("failed to close capture session")
		}
	}()

	var pairAlloc *archive.Allocator[frame.Pair]
	if p.publisher != nil {
		pairAlloc = p.publisher.PairAllocator(ctx, src.Title())
	}

	for _, f := range favorites {
		if err := ctx.Err(); err != nil {
			return err
		}

		if index.Contains(f.ID) {
			summary.Skipped++
			continue
		}

		if err := f.Validate(); err != nil {
			log.WithError(err).Warn("skipping invalid post")
			summary.Failed++
			continue
		}

		data, err := p.archiveOne(ctx, src, session, store, f)
		if err != nil {
			if errors.Is(err, errs.ErrSelectorNotFound) {
				return fmt.Errorf("screenshot selector broke on %s post %s: %w", src.Name(), f.ID, err)
			}
			log.ErrorWithFields("failed to archive post", map[string]interface{}{
				"post_id": f.ID,
				"error":   err.Error(),
			})
			summary.Failed++
			continue
		}

		index.Add(f.ID)
		summary.Archived++

		if pairAlloc != nil {
			if err := p.publishOne(ctx, pairAlloc, f, data); err != nil {
				log.WarnWithFields("failed to publish post to frame", map[string]interface{}{
					"post_id": f.ID,
					"error":   err.Error(),
				})
				summary.PublishFails++
			} else {
				summary.Published++
			}
		}
	}

	return nil
}

// archiveOne renders, tags and files a single post, returning the tagged
// JPEG for the remote leg.
func (p *Pipeline) archiveOne(ctx context.Context, src service.Source, session render.Session, store *archive.Store, f *post.Favorite) ([]byte, error) {
	raw, err := session.Capture(ctx, src.CaptureSpec(f))
	if err != nil {
		return nil, err
	}

	tagged, err := p.tagger.Tag(raw, imagemeta.Metadata{
		AuthorName:   f.AuthorName,
		AuthorHandle: f.AuthorHandle,
		Caption:      f.Body,
		SourceURL:    f.URL,
		Posted:       f.Date,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to tag screenshot: %w", err)
	}

	if _, err := store.Save(f.Filename(), tagged); err != nil {
		return nil, err
	}

	return tagged, nil
}

// publishOne places the photo in the next album/playlist pair with room.
func (p *Pipeline) publishOne(ctx context.Context, alloc *archive.Allocator[frame.Pair], f *post.Favorite, data []byte) error {
	pair, err := alloc.Allocate()
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, pair, f.Filename(), data); err != nil {
		return err
	}

	alloc.Record()
	return nil
}
