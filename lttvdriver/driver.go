package lttvdriver

import (
	"context"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttviter"
)

// DefaultBatchSize is the number of events middle() processes per
// iteration before yielding back to the host (spec.md §4.9, §5).
const DefaultBatchSize = 1000

// Run drives it through begin/middle/end exactly once: install hooks via
// begin, repeatedly call middle until it returns fewer than batchSize
// events or ctx is canceled, then call end (spec.md §4.9). It returns the
// total number of events processed.
//
// Each batch boundary is the driver's only suspension point: between
// batches ctx.Err() is checked, so a context cancellation (the host's idle
// callback deciding to abort) takes effect within one batch's worth of
// events (spec.md §5).
func Run(ctx context.Context, it *lttviter.Iterator, hooks lttviter.Hooks, endTime lttv.Timestamp, endPosition *lttviter.Position, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if err := it.Begin(hooks); err != nil {
		return 0, err
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			it.Cancel()
			break
		}
		n, err := it.Middle(endTime, batchSize, endPosition)
		if err != nil {
			it.End()
			return total, err
		}
		total += n
		if n < batchSize {
			break
		}
	}

	if err := it.End(); err != nil {
		return total, err
	}
	return total, nil
}
