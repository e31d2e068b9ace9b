package refresh

import (
	"context"
	"sync"

	"github.com/mlenko/flightpath/pkg/logger"
)

// BulkItem is the per-flight outcome of a bulk refresh. Err is set when the
// refresh failed outright; a degraded Result (stale cache, quota exceeded)
// is not an error.
type BulkItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
	ErrMsg string  `json:"error,omitempty"`
}

// RefreshMany refreshes a batch of flights with bounded concurrency.
// Individual failures never abort the batch; results are returned in
// request order with per-flight errors collected.
func (s *Service) RefreshMany(ctx context.Context, reqs []Request) []BulkItem {
	items := make([]BulkItem, len(reqs))

	sem := make(chan struct{}, s.config.Workers)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				items[i] = BulkItem{Index: i, Err: ctx.Err(), ErrMsg: ctx.Err().Error()}
				return
			}

			result, err := s.Refresh(ctx, req)
			item := BulkItem{Index: i, Result: result, Err: err}
			if err != nil {
				item.ErrMsg = err.Error()
				s.logger.Warn("Bulk refresh item failed",
					logger.String("flight", req.Key.String()),
					logger.Error(err))
			}
			items[i] = item
		}(i, req)
	}

	wg.Wait()

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	s.logger.Info("Bulk refresh complete",
		logger.Int("total", len(reqs)),
		logger.Int("failed", failed),
		logger.Int("workers", s.config.Workers))

	return items
}
