package job

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const retryBatch = 20

// Retrier re-runs failed analysis attempts.
type Retrier interface {
	RetryFailed(ctx context.Context, maxAttempts, limit int) (int, error)
}

// AttemptRetrier is a job that periodically retries failed analyses.
type AttemptRetrier struct {
	retrier     Retrier
	interval    time.Duration
	maxAttempts int
	done        chan struct{}
	stopOnce    sync.Once
}

// NewAttemptRetrier creates a new AttemptRetrier instance.
func NewAttemptRetrier(retrier Retrier, interval time.Duration, maxAttempts int) *AttemptRetrier {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AttemptRetrier{
		retrier:     retrier,
		interval:    interval,
		maxAttempts: maxAttempts,
		done:        make(chan struct{}),
	}
}

func (c *AttemptRetrier) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// Run blocks until Stop is called.
func (c *AttemptRetrier) Run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.retry(ctx)
		}
	}
}

func (c *AttemptRetrier) retry(ctx context.Context) {
	completed, err := c.retrier.RetryFailed(ctx, c.maxAttempts, retryBatch)
	if err != nil {
		logrus.Errorf("retrying failed analyses: %v", err)
		return
	}
	if completed > 0 {
		logrus.Infof("completed %d previously failed analyses", completed)
	}
}
