package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/enemy/pkg/logger"
)

const progressInterval = time.Second

// forEach runs fn for every index in [0,n) on up to workers goroutines and
// stops handing out work once ctx is done.
func forEach(ctx context.Context, workers, n int, fn func(i int)) {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	next := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				fn(i)
			}
		}()
	}
	go func() {
		defer close(next)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case next <- i:
			}
		}
	}()
	wg.Wait()
}

// submit posts every participant's window concurrently.
func submit(ctx context.Context, client *Client, cfg *Config, population []Participant, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting observations",
		logger.Int("users", len(population)),
		logger.Int("workers", cfg.Workers))

	var accepted, duplicate, failed, submitted atomic.Int64
	var lastReport atomic.Int64

	forEach(ctx, cfg.Workers, len(population), func(i int) {
		outcome, err := client.PostObservation(ctx, population[i])
		submitted.Add(1)
		switch outcome {
		case Accepted:
			accepted.Add(1)
		case Duplicate:
			duplicate.Add(1)
		default:
			failed.Add(1)
			log.Debug(ctx, "observation failed",
				logger.String("user_id", population[i].UserID),
				logger.Error(err))
		}

		now := time.Now().UnixNano()
		last := lastReport.Load()
		if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
			log.Info(ctx, "progress",
				logger.Int("submitted", int(submitted.Load())),
				logger.Int("total", len(population)),
				logger.Int("failed", int(failed.Load())))
		}
	})

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())
	log.Info(ctx, "observation submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed))
}

// waitForUsers polls /stats until the service holds at least want users.
func waitForUsers(ctx context.Context, client *Client, want int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		n, err := client.Users(ctx)
		if err == nil && n >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return err
			}
			return ErrNotSettled
		case <-ticker.C:
		}
	}
}
