package models

import (
	"fmt"
	"time"
)

type GenreStat struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type DecadeStat struct {
	Decade     string  `json:"decade"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Collaboration is a credited artist other than the subject, with the releases they share.
type Collaboration struct {
	Artist       Artist   `json:"artist"`
	ReleaseCount int      `json:"releaseCount"`
	Releases     []string `json:"releases"`
}

// CareerSpan is the earliest and latest first-release dates, or the artist's end date.
type CareerSpan struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Discography bundles an artist's release groups with the derived statistics.
type Discography struct {
	Artist         Artist          `json:"artist"`
	ReleaseGroups  []ReleaseGroup  `json:"releaseGroups"`
	TotalReleases  int             `json:"totalReleases"`
	CareerSpan     CareerSpan      `json:"careerSpan"`
	Genres         []GenreStat     `json:"genres"`
	Decades        []DecadeStat    `json:"decades"`
	Collaborations []Collaboration `json:"collaborations"`
}

// ExportRun records the outcome of one playlist export.
type ExportRun struct {
	ID                string    `json:"id"`
	PlaylistID        string    `json:"playlistId"`
	PlaylistName      string    `json:"playlistName"`
	ReleasesRequested int       `json:"releasesRequested"`
	ReleasesUnmatched int       `json:"releasesUnmatched"`
	TracksWritten     int       `json:"tracksWritten"`
	DuplicatesSkipped int       `json:"duplicatesSkipped"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Validate checks the fields required for persistence.
func (r *ExportRun) Validate() error {
	switch {
	case r.PlaylistID == "":
		return fmt.Errorf("playlist id is required")
	case r.PlaylistName == "":
		return fmt.Errorf("playlist name is required")
	case r.TracksWritten < 0 || r.DuplicatesSkipped < 0:
		return fmt.Errorf("track counts must not be negative")
	}
	return nil
}
