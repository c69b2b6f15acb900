package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/labeltree/internal/aggregate"
	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/services"
	"github.com/desertthunder/labeltree/internal/shared"
)

const (
	DefaultMaxDepth          = 3
	DefaultRosterConcurrency = 4
)

// TreeOptions configures a [TreeBuilder]. Zero values select the defaults.
type TreeOptions struct {
	MaxDepth          int
	RosterConcurrency int
	Logger            *log.Logger
	Now               func() time.Time
}

// TreeBuilder builds label family trees from a [services.MetadataService].
type TreeBuilder struct {
	metadata    services.MetadataService
	maxDepth    int
	rosterLimit int
	logger      *log.Logger
	now         func() time.Time
}

// NewTreeBuilder creates a TreeBuilder reading from metadata.
func NewTreeBuilder(metadata services.MetadataService, opts TreeOptions) *TreeBuilder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.RosterConcurrency <= 0 {
		opts.RosterConcurrency = DefaultRosterConcurrency
	}
	return &TreeBuilder{
		metadata:    metadata,
		maxDepth:    opts.MaxDepth,
		rosterLimit: opts.RosterConcurrency,
		logger:      defaultLogger(opts.Logger, "tree"),
		now:         defaultClock(opts.Now),
	}
}

// BuildTree builds the family tree rooted at labelID down to maxDepth (the builder default when
// maxDepth <= 0), attaches a roster to every node and computes the tree totals.
//
// Only a failure to fetch the root label fails the call.
func (b *TreeBuilder) BuildTree(ctx context.Context, progress chan<- ProgressUpdate, labelID string, maxDepth int) (*models.FamilyTree, error) {
	if labelID == "" {
		return nil, fmt.Errorf("%w: label id", shared.ErrMissingArgument)
	}
	if maxDepth <= 0 {
		maxDepth = b.maxDepth
	}

	var fetched atomic.Int64
	root, err := b.buildNode(ctx, progress, &fetched, labelID, nil, 0, maxDepth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree for label %s: %w", labelID, err)
	}

	tree := &models.FamilyTree{RootLabel: root.Label, Tree: root}
	if err := b.AttachRosters(ctx, progress, tree); err != nil {
		return nil, err
	}

	tree.LastUpdated = b.now().UTC()
	tree.Recount()
	b.logger.Info("tree built", "root", root.Label.Name, "labels", tree.TotalLabels, "artists", tree.TotalArtists, "depth", tree.MaxDepth)
	return tree, nil
}

type childRef struct {
	id  string
	rel *models.Relationship
}

// relatedLabels lists the label targets of l's relations, skipping labels already on path.
func relatedLabels(l *models.Label, path []string) []childRef {
	var refs []childRef
	for _, rel := range l.Relations {
		if rel.TargetType != "label" || rel.Label == nil || rel.Label.ID == "" {
			continue
		}
		if rel.Label.ID == l.ID || slices.Contains(path, rel.Label.ID) {
			continue
		}
		refs = append(refs, childRef{id: rel.Label.ID, rel: models.NewRelationship(rel)})
	}
	return refs
}

func (b *TreeBuilder) buildNode(
	ctx context.Context, progress chan<- ProgressUpdate, fetched *atomic.Int64,
	id string, rel *models.Relationship, depth, maxDepth int, path []string,
) (*models.TreeNode, error) {
	logger := b.logger.With("label", id, "depth", depth)
	logger.Debug("node", "state", StatePending)

	logger.Debug("node", "state", StateFetchingLabel)
	label, err := b.metadata.Label(ctx, id)
	if err != nil {
		logger.Debug("node", "state", StateFailed, "error", err)
		return nil, err
	}

	node := &models.TreeNode{Label: *label, Relationship: rel, Children: []*models.TreeNode{}, Depth: depth}
	sendProgress(progress, fetchLabelUpdate(int(fetched.Add(1)), label, depth))

	if depth >= maxDepth {
		logger.Debug("node", "state", StateComplete)
		return node, nil
	}

	logger.Debug("node", "state", StateFetchingRelationships)
	path = append(path[:len(path):len(path)], id)
	refs := relatedLabels(label, path)

	logger.Debug("node", "state", StateAttachingChildren, "children", len(refs))
	children := make([]*models.TreeNode, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			child, err := b.buildNode(gctx, progress, fetched, ref.id, ref.rel, depth+1, maxDepth, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("dropping subtree", "child", ref.id, "error", err)
				return nil
			}
			children[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Debug("node", "state", StateFailed, "error", err)
		return nil, err
	}

	for _, c := range children {
		if c != nil {
			node.Children = append(node.Children, c)
		}
	}
	logger.Debug("node", "state", StateComplete)
	return node, nil
}

// AttachRosters fetches one artist roster per distinct label in tree and attaches it to every
// node with that label ID, then recounts the tree. A label whose releases cannot be fetched keeps
// an empty roster; only cancellation fails the pass.
func (b *TreeBuilder) AttachRosters(ctx context.Context, progress chan<- ProgressUpdate, tree *models.FamilyTree) error {
	if tree == nil || tree.Tree == nil {
		return fmt.Errorf("%w: empty tree", shared.ErrInvalidArgument)
	}

	var ids []string
	seen := make(map[string]bool)
	tree.Tree.Walk(func(n *models.TreeNode) {
		if !seen[n.Label.ID] {
			seen[n.Label.ID] = true
			ids = append(ids, n.Label.ID)
		}
	})

	rosters := make([][]models.RosterEntry, len(ids))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.rosterLimit)
	for i, id := range ids {
		g.Go(func() error {
			logger := b.logger.With("label", id)
			logger.Debug("node", "state", StateFetchingRoster)

			releases, err := b.metadata.ReleasesByLabel(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("roster unavailable", "error", err)
				return nil
			}

			rosters[i] = aggregate.Roster(releases, b.now())
			sendProgress(progress, fetchRosterUpdate(int(done.Add(1)), len(ids), id, len(rosters[i])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to attach rosters: %w", err)
	}

	byID := make(map[string][]models.RosterEntry, len(ids))
	for i, id := range ids {
		byID[id] = rosters[i]
	}
	tree.Tree.Walk(func(n *models.TreeNode) {
		n.ArtistRoster = byID[n.Label.ID]
	})
	tree.Recount()
	return nil
}

// FilterTree returns a copy of tree keeping only edges whose relationship type is in allowed
// ([models.DefaultRelationshipFilter] when empty). The root is always kept. A node of an excluded
// type is kept when at least one of its descendants survives; otherwise it is dropped from its
// parent. Every surviving node without surviving children has a non-nil, empty Children slice.
//
// The input tree is not modified. Totals on the copy are recounted.
func FilterTree(tree *models.FamilyTree, allowed []models.RelationshipType) *models.FamilyTree {
	if tree == nil {
		return nil
	}
	if len(allowed) == 0 {
		allowed = models.DefaultRelationshipFilter
	}
	set := make(map[models.RelationshipType]bool, len(allowed))
	for _, t := range allowed {
		set[t] = true
	}

	out := *tree
	if tree.Tree != nil {
		out.Tree = filterNode(tree.Tree, set)
	}
	out.Recount()
	return &out
}

func included(n *models.TreeNode, set map[models.RelationshipType]bool) bool {
	return n.Relationship == nil || set[n.Relationship.Type]
}

func filterNode(n *models.TreeNode, set map[models.RelationshipType]bool) *models.TreeNode {
	out := *n
	out.ArtistRoster = slices.Clone(n.ArtistRoster)
	out.Children = []*models.TreeNode{}

	for _, c := range n.Children {
		fc := filterNode(c, set)
		if len(fc.Children) > 0 || included(fc, set) {
			out.Children = append(out.Children, fc)
		}
	}
	return &out
}
