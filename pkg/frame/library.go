package frame

import (
	"context"
	"fmt"

	"favescreen/pkg/archive"
	"favescreen/pkg/config"
	"favescreen/pkg/logger"
)

// Library is a session-scoped view of the account's albums, playlists and
// frames. It hands out capacity-bounded album/playlist pairs per service
// and publishes photos into them.
type Library struct {
	client *Client
	cfg    config.FrameConfig
	logger logger.Logger

	loaded    bool
	albums    []Album
	playlists []Playlist
	frames    []Frame
}

// NewLibrary creates a library over an authenticated client.
func NewLibrary(client *Client, cfg config.FrameConfig, log logger.Logger) *Library {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Library{client: client, cfg: cfg, logger: log}
}

// load fetches the account inventory once per session.
func (l *Library) load(ctx context.Context) error {
	if l.loaded {
		return nil
	}

	albums, err := l.client.ListAlbums(ctx)
	if err != nil {
		return err
	}
	playlists, err := l.client.ListPlaylists(ctx)
	if err != nil {
		return err
	}
	frames, err := l.client.ListFrames(ctx)
	if err != nil {
		return err
	}

	l.albums = albums
	l.playlists = playlists
	l.frames = frames
	l.loaded = true

	l.logger.DebugWithFields("loaded frame library", map[string]interface{}{
		"albums":    len(albums),
		"playlists": len(playlists),
		"frames":    len(frames),
	})
	return nil
}

// PairAllocator returns an allocator that hands out album/playlist pairs
// named "<title> Favorites <ordinal>", bounded by the configured album
// capacity. Pairs are created on first use; a playlist is enabled on every
// frame exactly once, when it is created.
func (l *Library) PairAllocator(ctx context.Context, title string) *archive.Allocator[Pair] {
	prefix := title + " Favorites "

	return archive.NewAllocator(l.cfg.AlbumCapacity, func(ordinal int) (Pair, int, error) {
		if err := l.load(ctx); err != nil {
			return Pair{}, 0, err
		}

		name := fmt.Sprintf("%s%d", prefix, ordinal)

		album, err := l.ensureAlbum(ctx, name)
		if err != nil {
			return Pair{}, 0, err
		}
		playlist, err := l.ensurePlaylist(ctx, name)
		if err != nil {
			return Pair{}, 0, err
		}

		return Pair{Album: album, Playlist: playlist}, album.PhotoCount, nil
	})
}

// ensureAlbum finds the album by title or creates it.
func (l *Library) ensureAlbum(ctx context.Context, title string) (*Album, error) {
	for i := range l.albums {
		if l.albums[i].Title == title {
			return &l.albums[i], nil
		}
	}

	album, err := l.client.CreateAlbum(ctx, title)
	if err != nil {
		return nil, err
	}
	l.albums = append(l.albums, *album)
	return &l.albums[len(l.albums)-1], nil
}

// ensurePlaylist finds the playlist by name or creates it, enabling a
// freshly created playlist on every frame.
func (l *Library) ensurePlaylist(ctx context.Context, name string) (*Playlist, error) {
	for i := range l.playlists {
		if l.playlists[i].Name == name {
			return &l.playlists[i], nil
		}
	}

	playlist, err := l.client.CreatePlaylist(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, f := range l.frames {
		if err := l.client.EnablePlaylist(ctx, f.PK, playlist.ID); err != nil {
			return nil, fmt.Errorf("failed to enable playlist on frame %d: %w", f.PK, err)
		}
	}

	l.playlists = append(l.playlists, *playlist)
	return &l.playlists[len(l.playlists)-1], nil
}

// Publish uploads a photo into the pair's album, resolves its photo ID,
// and adds it to the pair's playlist. A photo that cannot be resolved yet
// returns errors.ErrPhotoNotResolved from the resolve step.
func (l *Library) Publish(ctx context.Context, pair Pair, filename string, data []byte) error {
	if err := l.client.UploadPhoto(ctx, pair.Album.ID, filename, data); err != nil {
		return err
	}

	photo, err := l.client.ResolvePhoto(ctx, pair.Album.ID, filename)
	if err != nil {
		return err
	}

	if err := l.client.AddToPlaylist(ctx, pair.Playlist.ID, photo.ID); err != nil {
		return err
	}

	return nil
}
