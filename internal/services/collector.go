package services

import (
	"context"
	"fmt"
)

// DefaultPageSize is the largest page MusicBrainz serves.
const DefaultPageSize = 100

// PageFunc fetches the page starting at offset and reports the server's total.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (items []T, total int, err error)

// CollectAll pages through a result set at offsets 0, pageSize, 2*pageSize...
//
// Paging stops once offset+pageSize reaches the most recently reported total, or
// once maxRecords items have been gathered (the result is then truncated to
// maxRecords). A non-positive maxRecords means no cap. Any failed page fails the
// whole collection.
func CollectAll[T any](ctx context.Context, fetch PageFunc[T], pageSize, maxRecords int) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	for offset := 0; ; offset += pageSize {
		items, total, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
		}
		all = append(all, items...)

		if maxRecords > 0 && len(all) >= maxRecords {
			return all[:maxRecords], nil
		}
		if offset+pageSize >= total {
			return all, nil
		}
	}
}
