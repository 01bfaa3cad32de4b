package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) ExpireStaleSession(context.Context, time.Time) (bool, error) {
	n := e.calls.Add(1)
	return n == 1, e.err
}

func TestSessionExpiryJob_ChecksImmediatelyAndPeriodically(t *testing.T) {
	expirer := &countingExpirer{}
	job := NewSessionExpiryJob(expirer, 10*time.Millisecond)

	job.Start(context.Background())
	defer job.Stop()

	assert.Equal(t, int32(1), expirer.calls.Load())
	assert.Eventually(t, func() bool { return expirer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestSessionExpiryJob_StopsOnContextAndStop(t *testing.T) {
	expirer := &countingExpirer{err: errors.New("store down")}
	ctx, cancel := context.WithCancel(context.Background())

	job := NewSessionExpiryJob(expirer, 5*time.Millisecond)
	job.Start(ctx)
	cancel()
	job.Stop()
	job.Stop()

	time.Sleep(20 * time.Millisecond)
	settled := expirer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, expirer.calls.Load())
}

func TestNewSessionExpiryJob_DefaultInterval(t *testing.T) {
	job := NewSessionExpiryJob(&countingExpirer{}, 0)
	assert.Equal(t, DefaultSessionCheckInterval, job.interval)
}
