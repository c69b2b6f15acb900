// package formatter renders family trees, rosters and export runs as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/shared"
)

// Format names an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts the format names plus "md" and "txt".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// RosterToCSV writes one row per roster entry with columns: Artist ID, Artist, Status, Releases, Begin, End
func RosterToCSV(roster []models.RosterEntry) ([]byte, error) {
	rows := make([][]string, 0, len(roster))
	for _, e := range roster {
		rows = append(rows, []string{
			e.Artist.ID,
			e.Artist.Name,
			string(e.RelationshipType),
			strconv.Itoa(e.ReleaseCount),
			e.Period.Begin,
			e.Period.End,
		})
	}
	return writeCSV([]string{"Artist ID", "Artist", "Status", "Releases", "Begin", "End"}, rows)
}

// RosterToMarkdown renders a roster as a Markdown table under a heading.
func RosterToMarkdown(title string, roster []models.RosterEntry) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Artists**: %d\n\n", len(roster))
	buf.WriteString("| Artist | Status | Releases | Active |\n")
	buf.WriteString("| --- | --- | ---: | --- |\n")
	for _, e := range roster {
		fmt.Fprintf(&buf, "| %s | %s | %d | %s |\n",
			escapeCell(e.Artist.Name), e.RelationshipType, e.ReleaseCount, span(e.Period.Begin, e.Period.End))
	}
	return buf.Bytes()
}

// RosterToText renders a roster as aligned plain text, one artist per line.
func RosterToText(roster []models.RosterEntry) []byte {
	var buf bytes.Buffer
	for _, e := range roster {
		fmt.Fprintf(&buf, "%-32s %-8s %3d releases  %s\n",
			e.Artist.Name, e.RelationshipType, e.ReleaseCount, span(e.Period.Begin, e.Period.End))
	}
	return buf.Bytes()
}

// TreeToText renders a family tree as an indented outline.
func TreeToText(tree *models.FamilyTree) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d labels, %d roster entries, depth %d\n\n",
		tree.RootLabel.Name, tree.TotalLabels, tree.TotalArtists, tree.MaxDepth)

	tree.Tree.Walk(func(n *models.TreeNode) {
		fmt.Fprintf(&buf, "%s%s%s (%d artists)\n",
			strings.Repeat("  ", n.Depth), n.Label.Name, relationship(n), len(n.ArtistRoster))
	})
	return buf.Bytes()
}

// TreeToMarkdown renders a family tree as nested Markdown lists followed by one roster table per label.
func TreeToMarkdown(tree *models.FamilyTree) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s family tree\n\n", tree.RootLabel.Name)
	fmt.Fprintf(&buf, "**Labels**: %d\n", tree.TotalLabels)
	fmt.Fprintf(&buf, "**Roster entries**: %d\n", tree.TotalArtists)
	fmt.Fprintf(&buf, "**Updated**: %s\n\n", tree.LastUpdated.Format("2006-01-02"))

	buf.WriteString("## Labels\n\n")
	tree.Tree.Walk(func(n *models.TreeNode) {
		fmt.Fprintf(&buf, "%s- **%s**%s\n", strings.Repeat("  ", n.Depth), n.Label.Name, relationship(n))
	})

	tree.Tree.Walk(func(n *models.TreeNode) {
		if len(n.ArtistRoster) == 0 {
			return
		}
		fmt.Fprintf(&buf, "\n## %s roster\n\n", n.Label.Name)
		for _, e := range n.ArtistRoster {
			fmt.Fprintf(&buf, "- %s (%s, %d releases)\n", e.Artist.Name, e.RelationshipType, e.ReleaseCount)
		}
	})
	return buf.Bytes()
}

// RunsToCSV writes one row per export run with columns: ID, Playlist ID, Playlist, Requested, Unmatched, Written, Duplicates, Created
func RunsToCSV(runs []*models.ExportRun) ([]byte, error) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.PlaylistID,
			r.PlaylistName,
			strconv.Itoa(r.ReleasesRequested),
			strconv.Itoa(r.ReleasesUnmatched),
			strconv.Itoa(r.TracksWritten),
			strconv.Itoa(r.DuplicatesSkipped),
			r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return writeCSV([]string{"ID", "Playlist ID", "Playlist", "Requested", "Unmatched", "Written", "Duplicates", "Created"}, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func relationship(n *models.TreeNode) string {
	if n.Relationship == nil {
		return ""
	}
	return fmt.Sprintf(" [%s]", n.Relationship.Type)
}

func span(begin, end string) string {
	switch {
	case begin == "" && end == "":
		return ""
	case begin == end:
		return begin
	}
	return begin + " - " + end
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, shared.NetworkError(fmt.Errorf("failed to download image: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewAPIError(resp.StatusCode, "failed to download image")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
