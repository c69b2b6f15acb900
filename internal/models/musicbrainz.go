package models

// LifeSpan is the active period of an artist or label. Dates are partial ISO dates
// ("1989", "1989-04", "1989-04-12").
type LifeSpan struct {
	Begin string `json:"begin,omitempty"`
	End   string `json:"end,omitempty"`
	Ended bool   `json:"ended,omitempty"`
}

// HasEnd reports whether an end date is recorded.
func (l *LifeSpan) HasEnd() bool {
	return l != nil && l.End != ""
}

type Area struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SortName string   `json:"sort-name,omitempty"`
	ISOCodes []string `json:"iso-3166-1-codes,omitempty"`
}

type Alias struct {
	Name     string `json:"name"`
	SortName string `json:"sort-name,omitempty"`
	Type     string `json:"type,omitempty"`
	Locale   string `json:"locale,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// Tag is a folksonomy tag with its vote count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Genre struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Artist is a MusicBrainz artist.
type Artist struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SortName       string    `json:"sort-name,omitempty"`
	Type           string    `json:"type,omitempty"`
	Country        string    `json:"country,omitempty"`
	Disambiguation string    `json:"disambiguation,omitempty"`
	LifeSpan       *LifeSpan `json:"life-span,omitempty"`
	Area           *Area     `json:"area,omitempty"`
	Aliases        []Alias   `json:"aliases,omitempty"`
	Tags           []Tag     `json:"tags,omitempty"`
	Genres         []Genre   `json:"genres,omitempty"`
	Score          int       `json:"score,omitempty"`
}

// Label is a MusicBrainz label. Relations are only present when requested with inc=label-rels.
type Label struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SortName       string     `json:"sort-name,omitempty"`
	Type           string     `json:"type,omitempty"`
	Country        string     `json:"country,omitempty"`
	Disambiguation string     `json:"disambiguation,omitempty"`
	LabelCode      int        `json:"label-code,omitempty"`
	LifeSpan       *LifeSpan  `json:"life-span,omitempty"`
	Area           *Area      `json:"area,omitempty"`
	Aliases        []Alias    `json:"aliases,omitempty"`
	Tags           []Tag      `json:"tags,omitempty"`
	Relations      []Relation `json:"relations,omitempty"`
	Score          int        `json:"score,omitempty"`
}

// Summary returns the abbreviated shape used in release label-info.
func (l Label) Summary() LabelSummary {
	return LabelSummary{
		ID:             l.ID,
		Name:           l.Name,
		SortName:       l.SortName,
		Type:           l.Type,
		Disambiguation: l.Disambiguation,
		LabelCode:      l.LabelCode,
	}
}

// Relation is one entry of an entity's relations list.
type Relation struct {
	Type         string   `json:"type"`
	TypeID       string   `json:"type-id,omitempty"`
	Direction    string   `json:"direction"`
	TargetType   string   `json:"target-type"`
	TargetCredit string   `json:"target-credit,omitempty"`
	Begin        string   `json:"begin,omitempty"`
	End          string   `json:"end,omitempty"`
	Ended        bool     `json:"ended,omitempty"`
	Attributes   []string `json:"attributes,omitempty"`
	Label        *Label   `json:"label,omitempty"`
	Artist       *Artist  `json:"artist,omitempty"`
}

// LabelSummary is the partial label embedded in a release's label-info.
type LabelSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name,omitempty"`
	Type           string `json:"type,omitempty"`
	Disambiguation string `json:"disambiguation,omitempty"`
	LabelCode      int    `json:"label-code,omitempty"`
}

type LabelInfo struct {
	CatalogNumber string        `json:"catalog-number,omitempty"`
	Label         *LabelSummary `json:"label,omitempty"`
}

// ArtistCredit is one name in a credit list; JoinPhrase links it to the next.
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase,omitempty"`
	Artist     Artist `json:"artist"`
}

// CreditedName renders an artist credit list the way it is printed on the release.
func CreditedName(credits []ArtistCredit) string {
	var s string
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		s += name + c.JoinPhrase
	}
	return s
}

// ReleaseGroup groups the editions of one album, single or EP.
type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	PrimaryType      string         `json:"primary-type,omitempty"`
	SecondaryTypes   []string       `json:"secondary-types,omitempty"`
	FirstReleaseDate string         `json:"first-release-date,omitempty"`
	Disambiguation   string         `json:"disambiguation,omitempty"`
	ArtistCredit     []ArtistCredit `json:"artist-credit,omitempty"`
	Tags             []Tag          `json:"tags,omitempty"`
	Genres           []Genre        `json:"genres,omitempty"`
}

type CoverArtArchive struct {
	Artwork bool `json:"artwork"`
	Count   int  `json:"count"`
	Front   bool `json:"front"`
	Back    bool `json:"back"`
}

// Release is a single edition of a release group.
type Release struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Status          string           `json:"status,omitempty"`
	Date            string           `json:"date,omitempty"`
	Country         string           `json:"country,omitempty"`
	Barcode         string           `json:"barcode,omitempty"`
	Disambiguation  string           `json:"disambiguation,omitempty"`
	LabelInfo       []LabelInfo      `json:"label-info,omitempty"`
	ArtistCredit    []ArtistCredit   `json:"artist-credit,omitempty"`
	ReleaseGroup    *ReleaseGroup    `json:"release-group,omitempty"`
	Media           []Medium         `json:"media,omitempty"`
	CoverArtArchive *CoverArtArchive `json:"cover-art-archive,omitempty"`
}

type Medium struct {
	Position   int     `json:"position"`
	Title      string  `json:"title,omitempty"`
	Format     string  `json:"format,omitempty"`
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks,omitempty"`
}

type Track struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Number    string    `json:"number,omitempty"`
	Position  int       `json:"position"`
	Length    int       `json:"length,omitempty"`
	Recording Recording `json:"recording"`
}

type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
}

// CoverArt is a Cover Art Archive listing for a release.
type CoverArt struct {
	Release string          `json:"release"`
	Images  []CoverArtImage `json:"images"`
}

type CoverArtImage struct {
	Image      string            `json:"image"`
	Thumbnails map[string]string `json:"thumbnails,omitempty"`
	Front      bool              `json:"front"`
	Back       bool              `json:"back"`
	Types      []string          `json:"types,omitempty"`
	Approved   bool              `json:"approved"`
}

// Front returns the front cover image, if any.
func (c *CoverArt) Front() (CoverArtImage, bool) {
	if c == nil {
		return CoverArtImage{}, false
	}
	for _, img := range c.Images {
		if img.Front {
			return img, true
		}
	}
	return CoverArtImage{}, false
}
