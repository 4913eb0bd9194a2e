package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/craftlink/internal/clock"
)

// ErrBusy is returned by RunOnce while another run of the same job is in progress
var ErrBusy = errors.New("job run already in progress")

// task runs fn on a clock ticker until stopped. Runs never overlap: a tick
// that arrives while the previous run is still going is dropped.
type task struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	fn       func(ctx context.Context) error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	busy sync.Mutex
}

func newTask(name string, clk clock.Clock, interval, timeout time.Duration, logger *slog.Logger, fn func(ctx context.Context) error) *task {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &task{
		name:     name,
		interval: interval,
		timeout:  timeout,
		clock:    clk,
		logger:   logger.With(slog.String("job", name)),
		fn:       fn,
	}
}

// Start begins the job loop
func (t *task) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.running = true
	t.stopCh = make(chan struct{})
	t.cancel = cancel
	stopCh := t.stopCh
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx, stopCh)
	t.logger.Info("job started", slog.Duration("interval", t.interval))
}

// Stop cancels any in-flight run and waits for the loop to exit
func (t *task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	t.cancel()
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("job stopped")
}

// IsRunning returns whether the loop is running
func (t *task) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *task) run(ctx context.Context, stopCh <-chan struct{}) {
	defer t.wg.Done()

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			t.tick(ctx)
		case <-stopCh:
			return
		}
	}
}

func (t *task) tick(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	started := time.Now()
	err := t.guarded(ctx, t.fn)
	switch {
	case errors.Is(err, ErrBusy):
		t.logger.Warn("tick skipped; previous run still in progress")
	case err != nil:
		t.logger.Error("tick abandoned",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(started)),
		)
	}
}

func (t *task) guarded(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.busy.TryLock() {
		return ErrBusy
	}
	defer t.busy.Unlock()
	return fn(ctx)
}
