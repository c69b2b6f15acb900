// package services defines clients for the MusicBrainz metadata API and the Spotify catalog API
package services

import (
	"context"

	"github.com/desertthunder/labeltree/internal/models"
)

// MetadataService is the read side used to build label family trees and rosters.
type MetadataService interface {
	// Label fetches a label with its label-label relations.
	Label(ctx context.Context, id string) (*models.Label, error)

	// ReleasesByLabel collects every release citing the label, up to the configured record cap.
	ReleasesByLabel(ctx context.Context, labelID string) ([]models.Release, error)
}

// CatalogService is the streaming catalog a playlist is exported to.
type CatalogService interface {
	// Me returns the authenticated user, the owner of created playlists.
	Me(ctx context.Context) (*SpotifyUser, error)

	// SearchAlbums runs an album search and returns at most limit albums.
	SearchAlbums(ctx context.Context, query string, limit int) ([]SpotifyAlbum, error)

	// AlbumTracks returns the full track listing of an album in disc order.
	AlbumTracks(ctx context.Context, albumID string) ([]SpotifyTrack, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error)

	// AddTracks appends up to [MaxTracksPerRequest] URIs to a playlist.
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}
