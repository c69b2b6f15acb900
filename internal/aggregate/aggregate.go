// package aggregate folds denormalized MusicBrainz records into label counts, artist rosters and discography statistics.
//
// Every fold keeps first-seen order and sorts stably, so equal counts keep their input order.
// Records missing an ID are skipped.
package aggregate

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/labeltree/internal/models"
)

// DefaultTopN is the number of entries kept by the statistics folds.
const DefaultTopN = 10

// CurrentYears is how recent, in years, an artist's last release must be for the artist to count as current.
const CurrentYears = 5

const unknown = "Unknown"

// Labels counts label citations across releases. A label cited twice on one release counts twice.
func Labels(releases []models.Release) []models.AggregatedLabel {
	index := make(map[string]int)
	var out []models.AggregatedLabel

	for _, r := range releases {
		for _, info := range r.LabelInfo {
			if info.Label == nil || info.Label.ID == "" {
				continue
			}
			if i, ok := index[info.Label.ID]; ok {
				out[i].ReleaseCount++
				continue
			}
			index[info.Label.ID] = len(out)
			out = append(out, models.AggregatedLabel{Label: summarize(*info.Label), ReleaseCount: 1})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReleaseCount > out[j].ReleaseCount })
	return out
}

func summarize(l models.LabelSummary) models.LabelSummary {
	if strings.TrimSpace(l.Name) == "" {
		l.Name = unknown
	}
	if l.Type == "" {
		l.Type = unknown
	}
	return l
}

type rosterFold struct {
	artist   models.Artist
	count    int
	first    string
	last     string
	releases []string
}

// Roster folds release artist credits into roster entries, most releases first.
// An artist credited more than once on a release counts that release once.
func Roster(releases []models.Release, now time.Time) []models.RosterEntry {
	index := make(map[string]int)
	var folds []*rosterFold

	for _, r := range releases {
		seen := make(map[string]bool)
		for _, credit := range r.ArtistCredit {
			id := credit.Artist.ID
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			i, ok := index[id]
			if !ok {
				i = len(folds)
				index[id] = i
				folds = append(folds, &rosterFold{artist: credit.Artist})
			}
			f := folds[i]
			f.count++
			if r.ID != "" {
				f.releases = append(f.releases, r.ID)
			}
			if r.Date != "" {
				if f.first == "" || r.Date < f.first {
					f.first = r.Date
				}
				if f.last == "" || r.Date > f.last {
					f.last = r.Date
				}
			}
		}
	}

	out := make([]models.RosterEntry, 0, len(folds))
	for _, f := range folds {
		period := models.Period{Begin: f.first, End: f.last}
		if f.first == "" && f.artist.LifeSpan != nil {
			period = models.Period{Begin: f.artist.LifeSpan.Begin, End: f.artist.LifeSpan.End}
		}
		out = append(out, models.RosterEntry{
			Artist:           f.artist,
			Period:           period,
			ReleaseCount:     f.count,
			Releases:         f.releases,
			RelationshipType: Classify(f.artist, f.last, now),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReleaseCount > out[j].ReleaseCount })
	return out
}

// Classify decides whether an artist is on a label's current or former roster.
//
// An artist whose life-span has ended is former. Otherwise the artist is current
// when the last release falls within [CurrentYears] of now, or when there is no
// usable release date at all.
func Classify(artist models.Artist, lastRelease string, now time.Time) models.RosterStatus {
	if artist.LifeSpan.HasEnd() {
		return models.RosterFormer
	}

	last, ok := ParseDate(lastRelease)
	if !ok {
		return models.RosterCurrent
	}
	if !last.Before(now.AddDate(-CurrentYears, 0, 0)) {
		return models.RosterCurrent
	}
	return models.RosterFormer
}

// ParseDate parses a partial ISO date (YYYY, YYYY-MM or YYYY-MM-DD) to the start of the period it names.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Genres ranks release-group tags by vote weight. Percentages are of the total tag weight.
func Genres(groups []models.ReleaseGroup, n int) []models.GenreStat {
	index := make(map[string]int)
	var out []models.GenreStat
	total := 0

	for _, g := range groups {
		for _, tag := range g.Tags {
			name := strings.ToLower(strings.TrimSpace(tag.Name))
			if name == "" {
				continue
			}
			weight := max(tag.Count, 1)
			total += weight

			if i, ok := index[name]; ok {
				out[i].Count += weight
				continue
			}
			index[name] = len(out)
			out = append(out, models.GenreStat{Name: name, Count: weight})
		}
	}

	for i := range out {
		out[i].Percentage = percent(out[i].Count, total)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return top(out, n)
}

// Decades histograms release groups by the decade of their first release.
// Percentages are of all release groups, dated or not.
func Decades(groups []models.ReleaseGroup, n int) []models.DecadeStat {
	index := make(map[string]int)
	var out []models.DecadeStat

	for _, g := range groups {
		decade, ok := decadeOf(g.FirstReleaseDate)
		if !ok {
			continue
		}
		if i, ok := index[decade]; ok {
			out[i].Count++
			continue
		}
		index[decade] = len(out)
		out = append(out, models.DecadeStat{Decade: decade, Count: 1})
	}

	for i := range out {
		out[i].Percentage = percent(out[i].Count, len(groups))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return top(out, n)
}

func decadeOf(date string) (string, bool) {
	year, _, _ := strings.Cut(date, "-")
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return "", false
	}
	return strconv.Itoa(y/10*10) + "s", true
}

// Collaborations counts the releases each other credited artist shares with primaryArtistID.
func Collaborations(releases []models.Release, primaryArtistID string, n int) []models.Collaboration {
	index := make(map[string]int)
	var out []models.Collaboration

	for _, r := range releases {
		if len(r.ArtistCredit) < 2 {
			continue
		}
		seen := make(map[string]bool)
		for _, credit := range r.ArtistCredit {
			id := credit.Artist.ID
			if id == "" || id == primaryArtistID || seen[id] {
				continue
			}
			seen[id] = true

			i, ok := index[id]
			if !ok {
				i = len(out)
				index[id] = i
				out = append(out, models.Collaboration{Artist: credit.Artist})
			}
			out[i].ReleaseCount++
			out[i].Releases = append(out[i].Releases, r.Title)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReleaseCount > out[j].ReleaseCount })
	return top(out, n)
}

// Discography bundles an artist's release groups with the derived statistics.
func Discography(artist models.Artist, groups []models.ReleaseGroup, releases []models.Release) models.Discography {
	return models.Discography{
		Artist:         artist,
		ReleaseGroups:  groups,
		TotalReleases:  len(groups),
		CareerSpan:     careerSpan(artist, groups),
		Genres:         Genres(groups, DefaultTopN),
		Decades:        Decades(groups, DefaultTopN),
		Collaborations: Collaborations(releases, artist.ID, DefaultTopN),
	}
}

func careerSpan(artist models.Artist, groups []models.ReleaseGroup) models.CareerSpan {
	var span models.CareerSpan
	for _, g := range groups {
		d := g.FirstReleaseDate
		if d == "" {
			continue
		}
		if span.Start == "" || d < span.Start {
			span.Start = d
		}
		if d > span.End {
			span.End = d
		}
	}
	if artist.LifeSpan.HasEnd() {
		span.End = artist.LifeSpan.End
	}
	return span
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func top[T any](s []T, n int) []T {
	if n <= 0 {
		n = DefaultTopN
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
