package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shepherd-project/gpumon/internal/logger"
)

func newTestManager(timeout time.Duration) *Manager {
	return NewManager(timeout, logger.New(zap.NewNop()))
}

func waitDone(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

func TestHooksRunInPriorityOrder(t *testing.T) {
	m := newTestManager(time.Second)

	var mu sync.Mutex
	var order []string
	record := func(name string) Hook {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	m.Register("flush-logs", record("flush-logs"), PriorityLow)
	m.Register("http", record("http"), PriorityCritical)
	m.Register("first-normal", record("first-normal"), PriorityNormal)
	m.Register("second-normal", record("second-normal"), PriorityNormal)

	m.Start()
	m.Stop()
	waitDone(t, m)

	assert.Equal(t, []string{"http", "first-normal", "second-normal", "flush-logs"}, order)
}

func TestFailingAndSlowHooksDoNotBlock(t *testing.T) {
	m := newTestManager(50 * time.Millisecond)

	ran := false
	m.Register("fails", func(ctx context.Context) error { return errors.New("boom") }, PriorityCritical)
	m.Register("hangs", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	}, PriorityHigh)
	m.Register("last", func(ctx context.Context) error {
		ran = true
		return nil
	}, PriorityLow)

	m.Start()
	m.Stop()
	waitDone(t, m)
	assert.True(t, ran)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	m := newTestManager(time.Second)
	m.Stop()

	select {
	case <-m.Done():
		t.Fatal("shutdown ran without Start")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHooksRunOnce(t *testing.T) {
	m := newTestManager(time.Second)
	calls := 0
	m.Register("count", func(ctx context.Context) error {
		calls++
		return nil
	}, PriorityNormal)

	m.Start()
	m.Start()
	m.Stop()
	waitDone(t, m)
	m.run()
	m.Stop()

	require.Equal(t, 1, calls)
}
