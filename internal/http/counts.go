package http

import (
	"context"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
)

// countSelections returns node counts for snap and the number of stored
// selections, or -1 when the store cannot be listed.
func countSelections(ctx context.Context, svc *selectionsvc.Service, snap *catalog.Snapshot) StatusCounts {
	counts := StatusCounts{Nodes: snap.Counts(), Selections: -1}
	refs, err := svc.List(ctx, "")
	if err != nil {
		return counts
	}
	counts.Selections = len(refs)
	return counts
}
