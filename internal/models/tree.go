package models

import (
	"strings"
	"time"
)

// RelationshipType is how a related label hangs off its parent in a family tree.
type RelationshipType string

const (
	RelParent        RelationshipType = "parent"
	RelSubsidiary    RelationshipType = "subsidiary"
	RelImprint       RelationshipType = "imprint"
	RelReissueSeries RelationshipType = "reissue-series"
	RelHolding       RelationshipType = "holding"
	RelRenamedTo     RelationshipType = "renamed-to"
	RelOther         RelationshipType = "other"
)

// DefaultRelationshipFilter is the set of relationship types shown by default.
var DefaultRelationshipFilter = []RelationshipType{RelParent, RelSubsidiary, RelImprint}

// Relationship describes the edge between a tree node and its parent node.
type Relationship struct {
	Type         RelationshipType `json:"type"`
	Direction    string           `json:"direction"`
	Begin        string           `json:"begin,omitempty"`
	End          string           `json:"end,omitempty"`
	Ended        bool             `json:"ended,omitempty"`
	Attributes   []string         `json:"attributes,omitempty"`
	TargetCredit string           `json:"target-credit,omitempty"`
}

// ClassifyRelation maps a MusicBrainz label-label relation onto a [RelationshipType],
// seen from the label that owns the relations list.
func ClassifyRelation(rel Relation) RelationshipType {
	forward := rel.Direction != "backward"
	t := strings.ToLower(rel.Type)

	switch {
	case t == "label ownership":
		if forward {
			return RelSubsidiary
		}
		return RelParent
	case t == "imprint":
		if forward {
			return RelImprint
		}
		return RelParent
	case t == "label reissue" || strings.Contains(t, "reissue"):
		return RelReissueSeries
	case t == "label rename" || strings.Contains(t, "rename"):
		return RelRenamedTo
	case strings.Contains(t, "holding"):
		return RelHolding
	default:
		return RelOther
	}
}

// NewRelationship builds the tree edge for a relation.
func NewRelationship(rel Relation) *Relationship {
	return &Relationship{
		Type:         ClassifyRelation(rel),
		Direction:    rel.Direction,
		Begin:        rel.Begin,
		End:          rel.End,
		Ended:        rel.Ended,
		Attributes:   rel.Attributes,
		TargetCredit: rel.TargetCredit,
	}
}

// RosterStatus classifies an artist's tenure on a label.
type RosterStatus string

const (
	RosterCurrent RosterStatus = "current"
	RosterFormer  RosterStatus = "former"
)

// Period is a begin/end pair of partial ISO dates.
type Period struct {
	Begin string `json:"begin,omitempty"`
	End   string `json:"end,omitempty"`
}

// RosterEntry is an artist's presence on a label, derived from the label's releases.
type RosterEntry struct {
	Artist           Artist       `json:"artist"`
	Period           Period       `json:"period"`
	ReleaseCount     int          `json:"releaseCount"`
	Releases         []string     `json:"releases,omitempty"`
	RelationshipType RosterStatus `json:"relationshipType"`
}

// AggregatedLabel is a label and the number of release citations it received.
type AggregatedLabel struct {
	Label        LabelSummary `json:"label"`
	ReleaseCount int          `json:"releaseCount"`
}

// TreeNode is one label in a family tree.
type TreeNode struct {
	Label        Label         `json:"label"`
	Relationship *Relationship `json:"relationship,omitempty"`
	Children     []*TreeNode   `json:"children"`
	ArtistRoster []RosterEntry `json:"artistRoster,omitempty"`
	Depth        int           `json:"depth"`
}

// Walk visits n and its descendants in pre-order.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// FamilyTree is a built tree plus whole-tree aggregates.
type FamilyTree struct {
	RootLabel    Label     `json:"rootLabel"`
	Tree         *TreeNode `json:"tree"`
	TotalLabels  int       `json:"totalLabels"`
	TotalArtists int       `json:"totalArtists"`
	MaxDepth     int       `json:"maxDepth"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Recount recomputes the aggregates: node count, roster size sum and deepest depth reached.
func (t *FamilyTree) Recount() {
	t.TotalLabels, t.TotalArtists, t.MaxDepth = 0, 0, 0
	t.Tree.Walk(func(n *TreeNode) {
		t.TotalLabels++
		t.TotalArtists += len(n.ArtistRoster)
		if n.Depth > t.MaxDepth {
			t.MaxDepth = n.Depth
		}
	})
}
