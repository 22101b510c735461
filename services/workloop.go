package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"property-scraper/metrics"
	"property-scraper/storage"
	"property-scraper/utils"
)

// ErrNoWork is returned by a batch when the claim comes back empty.
var ErrNoWork = errors.New("no more work")

// Stats summarises one stage run.
type Stats struct {
	Batches int
	Claimed int
	Done    int
	Failed  int
	Written int64
}

// WorkLoop claims batches of rows inside a transaction, transforms each row,
// and commits the results together with the rows' processed markers.
// T is the claimed row, R the per-row result.
type WorkLoop[T any, R any] struct {
	Name        string
	Begin       func(ctx context.Context) (storage.Tx, error)
	Claim       func(ctx context.Context, q storage.Querier, afterID int64, limit int) ([]T, error)
	Key         func(item T) int64
	Transform   func(ctx context.Context, item T) (R, error)
	Commit      func(ctx context.Context, q storage.Querier, done []T, results []R) (int64, error)
	BatchSize   int
	Parallelism int
	// MaxFailures consecutive failed batches stop the loop with an error.
	MaxFailures int
	// BatchTimeout bounds the transform phase while the claim transaction is
	// open. Items still running at the deadline are dropped. Zero disables it.
	BatchTimeout time.Duration
	// TxRetry governs retries of batches hitting serialization failures or deadlocks.
	TxRetry *utils.RetryConfig
	Logger  *utils.Logger
}

// Run processes batches until a claim returns nothing. Rows whose transform
// fails stay unprocessed and are not claimed again during this run.
func (w *WorkLoop[T, R]) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	var cursor int64
	failures := 0

	retry := w.TxRetry
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Logger: w.Logger}
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		after := cursor
		var b batchResult
		err := retry.Do(ctx, w.Name+" batch", func() error {
			var err error
			b, err = w.runBatch(ctx, after)
			if err != nil && !storage.IsRetryable(err) {
				return utils.Permanent(err)
			}
			return err
		})

		if errors.Is(err, ErrNoWork) {
			w.Logger.Info("[%s] no more work after %d batches (%d done, %d failed, %d written)",
				w.Name, stats.Batches, stats.Done, stats.Failed, stats.Written)
			return stats, nil
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		// a failed batch is skipped for the rest of this run; its rows stay unprocessed
		if b.lastKey > cursor {
			cursor = b.lastKey
		}

		if err != nil {
			failures++
			w.Logger.Error("[%s] batch after id %d failed (%d/%d): %v", w.Name, after, failures, w.MaxFailures, err)
			if failures >= w.MaxFailures {
				return stats, fmt.Errorf("%s: %d consecutive batch failures: %w", w.Name, failures, err)
			}
			continue
		}

		failures = 0
		stats.Batches++
		stats.Claimed += b.claimed
		stats.Done += b.done
		stats.Failed += b.claimed - b.done
		stats.Written += b.written
	}
}

type batchResult struct {
	firstKey int64
	lastKey  int64
	claimed  int
	done     int
	written  int64
}

func (w *WorkLoop[T, R]) runBatch(ctx context.Context, after int64) (res batchResult, err error) {
	start := time.Now()

	tx, err := w.Begin(ctx)
	if err != nil {
		return res, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && err == nil {
				err = rbErr
			}
		}
	}()

	items, err := w.Claim(ctx, tx, after, w.BatchSize)
	if err != nil {
		return res, err
	}
	if len(items) == 0 {
		return res, ErrNoWork
	}
	res.claimed = len(items)
	res.firstKey = w.Key(items[0])
	res.lastKey = w.Key(items[len(items)-1])

	tctx := ctx
	if w.BatchTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, w.BatchTimeout)
		defer cancel()
	}
	done, results := w.transformAll(tctx, items)
	res.done = len(done)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		w.Logger.Warn("[%s] batch ids %d..%d hit the %s deadline, %d/%d transformed",
			w.Name, res.firstKey, res.lastKey, w.BatchTimeout, res.done, res.claimed)
	}

	if len(done) > 0 {
		res.written, err = w.Commit(ctx, tx, done, results)
		if err != nil {
			return res, err
		}
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	committed = true

	metrics.BatchDuration.WithLabelValues(w.Name).Observe(time.Since(start).Seconds())
	metrics.RowsWritten.WithLabelValues(w.Name).Add(float64(res.written))
	metrics.ItemFailures.WithLabelValues(w.Name).Add(float64(res.claimed - res.done))
	w.Logger.Info("[%s] batch ids %d..%d: %d/%d transformed, %d written",
		w.Name, res.firstKey, res.lastKey, res.done, res.claimed, res.written)
	return res, nil
}

// transformAll runs Transform over items with bounded parallelism and returns
// the successful items and their results in claim order.
func (w *WorkLoop[T, R]) transformAll(ctx context.Context, items []T) ([]T, []R) {
	results := make([]R, len(items))
	ok := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, w.Parallelism))
	for i := range items {
		g.Go(func() error {
			r, err := w.Transform(gctx, items[i])
			if err != nil {
				w.Logger.Warn("[%s] item %d dropped: %v", w.Name, w.Key(items[i]), err)
				return nil
			}
			results[i] = r
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	done := make([]T, 0, len(items))
	out := make([]R, 0, len(items))
	for i := range items {
		if ok[i] {
			done = append(done, items[i])
			out = append(out, results[i])
		}
	}
	return done, out
}
