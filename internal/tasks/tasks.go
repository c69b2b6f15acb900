// package tasks builds label family trees and exports label releases to Spotify playlists.
//
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/labeltree/internal/shared"
)

// NodeState is the build state of one family-tree node. Transitions are logged at debug level.
type NodeState int

const (
	StatePending NodeState = iota
	StateFetchingLabel
	StateFetchingRelationships
	StateAttachingChildren
	StateFetchingRoster
	StateComplete
	StateFailed
)

func (s NodeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetchingLabel:
		return "fetching-label-info"
	case StateFetchingRelationships:
		return "fetching-relationships"
	case StateAttachingChildren:
		return "attaching-children"
	case StateFetchingRoster:
		return "fetching-roster"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func defaultLogger(l *log.Logger, component string) *log.Logger {
	if l == nil {
		l = shared.NewLogger(nil)
	}
	return shared.WithLogger(l, "component", component)
}

func defaultClock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
