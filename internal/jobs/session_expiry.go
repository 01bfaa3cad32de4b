package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultSessionCheckInterval = 30 * time.Second

// SessionExpirer logs the device out when its stored token has expired.
type SessionExpirer interface {
	ExpireStaleSession(ctx context.Context, now time.Time) (bool, error)
}

// SessionExpiryJob periodically drops a stored session whose token has expired,
// so the device UI is sent back to login instead of failing on the next scan.
type SessionExpiryJob struct {
	expirer  SessionExpirer
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func NewSessionExpiryJob(expirer SessionExpirer, interval time.Duration) *SessionExpiryJob {
	if interval <= 0 {
		interval = DefaultSessionCheckInterval
	}
	return &SessionExpiryJob{
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the background check; the first one runs immediately.
func (j *SessionExpiryJob) Start(ctx context.Context) {
	slog.Info("Starting session expiry job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)
	j.check(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				j.check(ctx)
			case <-ctx.Done():
				slog.Info("Session expiry job stopped")
				return
			case <-j.done:
				slog.Info("Session expiry job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *SessionExpiryJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

func (j *SessionExpiryJob) check(ctx context.Context) {
	expired, err := j.expirer.ExpireStaleSession(ctx, j.now())
	if err != nil {
		slog.Error("Failed to check stored session", "error", err)
		return
	}
	if expired {
		slog.Info("Expired session cleared")
	}
}
