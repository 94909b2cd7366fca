package frame

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favescreen/pkg/logger"
)

func TestPairAllocatorCreatesAlbumAndPlaylist(t *testing.T) {
	s := newFakeFrameService(t)
	s.frames = []Frame{{PK: 1, Name: "kitchen"}, {PK: 2, Name: "office"}}

	client := newTestClient(t, s)
	library := NewLibrary(client, s.config(), logger.NewTestLogger())
	ctx := context.Background()

	alloc := library.PairAllocator(ctx, "Twitter")

	pair, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, "Twitter Favorites 1", pair.Album.Title)
	assert.Equal(t, "Twitter Favorites 1", pair.Playlist.Name)

	// The new playlist is enabled on both frames.
	assert.Equal(t, []int64{pair.Playlist.ID}, s.enabled[1])
	assert.Equal(t, []int64{pair.Playlist.ID}, s.enabled[2])
}

func TestPairAllocatorRollsOverAtCapacity(t *testing.T) {
	s := newFakeFrameService(t)
	client := newTestClient(t, s)
	library := NewLibrary(client, s.config(), logger.NewTestLogger())
	ctx := context.Background()

	// Capacity is 2 in the test config.
	alloc := library.PairAllocator(ctx, "Mastodon")

	first, err := alloc.Allocate()
	require.NoError(t, err)
	alloc.Record()
	second, err := alloc.Allocate()
	require.NoError(t, err)
	alloc.Record()
	assert.Equal(t, first.Album.ID, second.Album.ID)

	third, err := alloc.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, first.Album.ID, third.Album.ID)
	assert.Equal(t, "Mastodon Favorites 2", third.Album.Title)
	assert.Equal(t, "Mastodon Favorites 2", third.Playlist.Name)
}

func TestPairAllocatorResumesExistingAlbums(t *testing.T) {
	s := newFakeFrameService(t)

	// A prior run filled album 1 and left its playlist behind.
	s.albums = []Album{{ID: 500, Title: "Bluesky Favorites 1", PhotoCount: 2}}
	s.playlists = []Playlist{{ID: 501, Name: "Bluesky Favorites 1"}}
	s.frames = []Frame{{PK: 9, Name: "hall"}}

	client := newTestClient(t, s)
	library := NewLibrary(client, s.config(), logger.NewTestLogger())
	ctx := context.Background()

	alloc := library.PairAllocator(ctx, "Bluesky")

	pair, err := alloc.Allocate()
	require.NoError(t, err)

	// Album 1 is already at capacity, so the allocator moves on, and the
	// existing playlist is not re-enabled on any frame.
	assert.Equal(t, "Bluesky Favorites 2", pair.Album.Title)
	enabledTotal := 0
	for _, ids := range s.enabled {
		for _, id := range ids {
			if id == 501 {
				t.Error("existing playlist should not be re-enabled")
			}
		}
		enabledTotal += len(ids)
	}
	assert.Equal(t, 1, enabledTotal, "only the new playlist is enabled")
}

func TestPublishUploadsResolvesAndEnqueues(t *testing.T) {
	s := newFakeFrameService(t)
	client := newTestClient(t, s)
	library := NewLibrary(client, s.config(), logger.NewTestLogger())
	ctx := context.Background()

	alloc := library.PairAllocator(ctx, "Twitter")
	pair, err := alloc.Allocate()
	require.NoError(t, err)

	require.NoError(t, library.Publish(ctx, pair, "42.jpg", []byte("jpeg")))

	photos := s.photosByAlbum[pair.Album.ID]
	require.Len(t, photos, 1)
	assert.Equal(t, "42.jpg", photos[0].Filename)
	assert.Equal(t, []int64{photos[0].ID}, s.playlistItems[pair.Playlist.ID])
}
