// Package shutdown runs ordered cleanup hooks when gpumon receives a
// termination signal or is stopped programmatically.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/shepherd-project/gpumon/internal/logger"
)

// Hook is a cleanup function run during shutdown.
type Hook func(ctx context.Context) error

// HookPriority orders hooks; lower values run first.
type HookPriority int

const (
	// PriorityCritical hooks stop accepting work (the HTTP listener).
	PriorityCritical HookPriority = 0
	PriorityHigh     HookPriority = 1
	PriorityNormal   HookPriority = 2
	// PriorityLow hooks run last (log flushing).
	PriorityLow HookPriority = 3
)

type registeredHook struct {
	name     string
	hook     Hook
	priority HookPriority
}

// Manager manages graceful shutdown
type Manager struct {
	mu       sync.Mutex
	hooks    []registeredHook
	timeout  time.Duration
	signals  []os.Signal
	sigChan  chan os.Signal
	stopChan chan struct{}
	done     chan struct{}
	log      *logger.Logger
	started  bool
	stopped  bool
}

// NewManager creates a shutdown manager. timeout bounds each hook.
func NewManager(timeout time.Duration, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		timeout:  timeout,
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
		sigChan:  make(chan os.Signal, 1),
		stopChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Register adds a hook. Hooks with equal priority run in registration order.
func (m *Manager) Register(name string, hook Hook, priority HookPriority) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, registeredHook{name: name, hook: hook, priority: priority})
	m.log.Debugf("Registered shutdown hook: %s (priority: %d)", name, priority)
}

// Start begins listening for SIGINT and SIGTERM.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	signal.Notify(m.sigChan, m.signals...)
	go m.wait()
}

func (m *Manager) wait() {
	select {
	case sig := <-m.sigChan:
		m.log.Infof("Received signal %v, shutting down", sig)
	case <-m.stopChan:
		m.log.Info("Shutdown requested")
	}
	signal.Stop(m.sigChan)
	m.run()
}

// run executes the hooks once, in priority order.
func (m *Manager) run() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	hooks := make([]registeredHook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].priority < hooks[j].priority
	})

	for _, h := range hooks {
		m.runHook(h)
	}

	m.log.Info("Shutdown complete")
	close(m.done)
}

func (m *Manager) runHook(h registeredHook) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.hook(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			m.log.WithError(err).Errorf("Shutdown hook %s failed", h.name)
			return
		}
		m.log.Debugf("Shutdown hook %s done", h.name)
	case <-ctx.Done():
		m.log.Errorf("Shutdown hook %s timed out after %v", h.name, m.timeout)
	}
}

// Stop triggers shutdown programmatically. It is a no-op before Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return
	}

	select {
	case m.stopChan <- struct{}{}:
	default:
	}
}

// Done is closed once every hook has run.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until shutdown is complete.
func (m *Manager) Wait() {
	<-m.done
}
