package tasks

import (
	"fmt"

	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, zero when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchLabel Phase = iota
	FetchRoster
	CreatePlaylist
	SearchAlbums
	FetchTracks
	WriteTracks
)

func (p Phase) String() string {
	switch p {
	case FetchLabel:
		return "fetch_label"
	case FetchRoster:
		return "fetch_roster"
	case CreatePlaylist:
		return "create_playlist"
	case SearchAlbums:
		return "search_albums"
	case FetchTracks:
		return "fetch_tracks"
	case WriteTracks:
		return "write_tracks"
	default:
		return ""
	}
}

func fetchLabelUpdate(step int, label *models.Label, depth int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLabel,
		Step:    step,
		Message: fmt.Sprintf("Fetched label %s (depth %d)", label.Name, depth),
		Data:    label,
	}
}

func fetchRosterUpdate(step, total int, labelID string, artists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRoster,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Roster for %s: %d artists", step, total, labelID, artists),
	}
}

func creatingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func createPlaylistUpdate(pl *services.SpotifyPlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func searchAlbumUpdate(step, total int, r ReleaseRequest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, r.ArtistName, r.ReleaseTitle),
	}
}

func unmatchedUpdate(step, total int, r ReleaseRequest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ no album for %s - %s", step, total, r.ArtistName, r.ReleaseTitle),
	}
}

func fetchTracksUpdate(step, total int, album services.SpotifyAlbum, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, album.Name, tracks),
	}
}

func writeTracksUpdate(step, total, written int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Added %d tracks", step, total, written),
	}
}
