package services

import (
	"context"

	"github.com/tunebridge/tunebridge/internal/models"
)

// SourceService reads playlists from the service tracks are imported from.
type SourceService interface {
	// Name returns the service this client talks to.
	Name() models.Service

	// Playlists retrieves all playlists of the authenticated user.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracks retrieves a playlist and its full track list.
	PlaylistTracks(ctx context.Context, playlistID string) (*models.Playlist, []models.Track, error)
}

// DestinationService writes to the service tracks are imported into.
type DestinationService interface {
	// Name returns the service this client talks to.
	Name() models.Service

	// Authenticate verifies credentials and loads the user's storefront.
	// Must be called before any other method.
	Authenticate(ctx context.Context) error

	// RegionIdentifier returns the user's storefront country code, or ""
	// before Authenticate succeeds.
	RegionIdentifier() string

	// Search queries the catalog for songs matching the query.
	Search(ctx context.Context, query string) ([]models.SearchResult, error)

	// CreatePlaylist creates a new library playlist with the given name.
	CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error)

	// Playlist retrieves an existing library playlist. Returns
	// shared.ErrPlaylistNotFound if it no longer exists.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// AddTrack appends a catalog track to a library playlist.
	AddTrack(ctx context.Context, playlistID, trackID string) error
}

// SecretStore persists credentials between runs. Implemented by
// repositories.StateRepository.
type SecretStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}
