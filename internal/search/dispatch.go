package search

import (
	"sync"

	"go.uber.org/zap"
)

// dispatcher runs posted callbacks one at a time, in post order, on its own
// goroutine. post never blocks, so it is safe to call with locks held.
type dispatcher struct {
	logger *zap.Logger

	mu    sync.Mutex
	queue []func()

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// flush blocks until everything posted before it has run.
func (d *dispatcher) flush() {
	done := make(chan struct{})
	d.post(func() { close(done) })
	select {
	case <-done:
	case <-d.quit:
	}
}

// stop lets queued callbacks finish, then ends the goroutine.
func (d *dispatcher) stop() {
	d.quitOnce.Do(func() { close(d.quit) })
}

func (d *dispatcher) run() {
	for {
		d.drain()
		select {
		case <-d.wake:
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.call(fn)
	}
}

func (d *dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("search callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
