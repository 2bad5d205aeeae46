package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.Dispatcher = (*Dispatcher)(nil)

const (
	// DefaultStopTimeout bounds how long Stop waits for workers to exit.
	DefaultStopTimeout = 2 * time.Second

	// dequeueTimeout is how long an idle worker waits before rechecking.
	dequeueTimeout = time.Second
)

// Operation is the unit of work a task runs, given the credential chosen
// for it.
type Operation func(ctx context.Context, cred domain.Credential) (any, error)

// Pending is the handle returned by Submit. Exactly one outcome is recorded
// and Done is closed exactly once, whether the operation succeeded, failed,
// or was abandoned at shutdown.
type Pending struct {
	ID   string
	Kind domain.TaskKind

	op   Operation
	done chan struct{}
	once sync.Once

	result       any
	err          error
	credentialID string
}

func newPending(kind domain.TaskKind, op Operation) *Pending {
	return &Pending{
		ID:   uuid.NewString(),
		Kind: kind,
		op:   op,
		done: make(chan struct{}),
	}
}

// Done is closed when the outcome is recorded.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result blocks until the outcome is recorded and returns it. A failed task
// has a nil result and a non-nil error.
func (p *Pending) Result() (any, error) {
	<-p.done
	return p.result, p.err
}

// Wait is Result bounded by ctx and timeout. A zero timeout waits on ctx
// alone. Expiry returns ErrTaskTimeout; the task itself keeps running.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) (any, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, fmt.Errorf("%s task %s: %w", p.Kind, p.ID, domain.ErrTaskTimeout)
	}
}

// CredentialID returns the ID of the credential the task ran on, if any.
// Valid once Done is closed.
func (p *Pending) CredentialID() string {
	<-p.done
	return p.credentialID
}

func (p *Pending) complete(result any, err error) {
	p.once.Do(func() {
		if err != nil {
			result = nil
		}
		p.result, p.err = result, err
		close(p.done)
	})
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStopTimeout bounds how long Stop waits for workers.
func WithStopTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.stopTimeout = d
	}
}

// WithContext sets the context operations run under.
func WithContext(ctx context.Context) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.ctx = ctx
	}
}

// Dispatcher runs submitted operations on a pool of workers, pacing them
// through a Governor.
//
// The queue is unbounded. Callers bound the amount of outstanding work by
// sharding their requests one-to-one with credentials.
type Dispatcher struct {
	governor    *Governor
	ctx         context.Context
	stopTimeout time.Duration

	mu      sync.Mutex
	queue   []*Pending // nil entries are stop sentinels
	wake    chan struct{}
	running bool
	stopped bool
	workers int
	auto    bool // pool follows the credential count
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher drawing credentials from governor.
func NewDispatcher(governor *Governor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		governor:    governor,
		ctx:         context.Background(),
		stopTimeout: DefaultStopTimeout,
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues op and returns its handle immediately. Tasks submitted
// before Start wait in the queue. Submitting after Stop returns
// ErrDispatcherStopped.
func (d *Dispatcher) Submit(kind domain.TaskKind, op Operation) (*Pending, error) {
	if op == nil {
		return nil, fmt.Errorf("submit %s task: nil operation: %w", kind, domain.ErrInvalidInput)
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, fmt.Errorf("submit %s task: %w", kind, domain.ErrDispatcherStopped)
	}
	p := newPending(kind, op)
	d.queue = append(d.queue, p)
	d.mu.Unlock()

	d.signal()
	logger.Debug("dispatcher: queued %s task %s", kind, p.ID)
	return p, nil
}

// Start launches workers. Zero or negative means one worker per configured
// credential, at least one, and lets SyncWorkers grow the pool later.
// Calling Start on a running dispatcher does nothing; calling it after Stop
// starts a fresh pool.
func (d *Dispatcher) Start(workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.auto = workers <= 0
	if d.auto {
		workers = d.governor.Len()
	}
	if workers < 1 {
		workers = 1
	}
	if d.stopped {
		d.stopCh = make(chan struct{})
		d.stopped = false
	}

	d.running = true
	d.workers = 0
	d.spawn(workers)
	logger.Info("dispatcher: started %d worker(s)", workers)
}

// SyncWorkers grows a pool started with one worker per credential to match
// the Governor's current credential count. The pool never shrinks; surplus
// workers wait on the Governor like any other.
func (d *Dispatcher) SyncWorkers() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.stopped || !d.auto {
		return
	}
	extra := d.governor.Len() - d.workers
	if extra <= 0 {
		return
	}
	d.spawn(extra)
	logger.Info("dispatcher: grew pool to %d worker(s)", d.workers)
}

// spawn starts n more workers. Callers hold d.mu.
func (d *Dispatcher) spawn(n int) {
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go d.work(d.workers)
		d.workers++
	}
}

// Stop asks every worker to exit, waits up to the stop timeout for them,
// and completes every task still queued with ErrDispatcherStopped.
// Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	wasRunning := d.running
	if wasRunning {
		sentinels := make([]*Pending, d.workers, d.workers+len(d.queue))
		d.queue = append(sentinels, d.queue...)
	}
	close(d.stopCh)
	d.mu.Unlock()

	if wasRunning {
		joined := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(joined)
		}()
		select {
		case <-joined:
		case <-time.After(d.stopTimeout):
			logger.Warn("dispatcher: workers still busy after %s", d.stopTimeout)
		}
	}

	d.mu.Lock()
	abandoned := d.queue
	d.queue = nil
	d.running = false
	d.workers = 0
	d.mu.Unlock()

	n := 0
	for _, p := range abandoned {
		if p == nil {
			continue
		}
		p.complete(nil, domain.ErrDispatcherStopped)
		n++
	}
	if n > 0 {
		logger.Info("dispatcher: abandoned %d queued task(s)", n)
	}
}

// Status returns a snapshot of the pool and credential usage.
func (d *Dispatcher) Status() domain.DispatcherStatus {
	d.mu.Lock()
	queued := 0
	for _, p := range d.queue {
		if p != nil {
			queued++
		}
	}
	status := domain.DispatcherStatus{
		Running:     d.running && !d.stopped,
		Workers:     d.workers,
		QueueLength: queued,
	}
	d.mu.Unlock()

	status.Credentials = d.governor.Usage()
	return status
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// work is one worker loop.
func (d *Dispatcher) work(n int) {
	defer d.wg.Done()

	for {
		p, ok := d.dequeue()
		if !ok {
			if d.isStopping() {
				logger.Debug("dispatcher: worker %d exiting", n)
				return
			}
			continue
		}
		if p == nil {
			logger.Debug("dispatcher: worker %d stopped", n)
			return
		}
		d.execute(p)
	}
}

// dequeue pops the head of the queue, waiting up to dequeueTimeout.
func (d *Dispatcher) dequeue() (*Pending, bool) {
	d.mu.Lock()
	stopCh := d.stopCh
	if len(d.queue) > 0 {
		p := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		more := len(d.queue) > 0
		d.mu.Unlock()
		if more {
			d.signal()
		}
		return p, true
	}
	d.mu.Unlock()

	timer := time.NewTimer(dequeueTimeout)
	defer timer.Stop()

	select {
	case <-d.wake:
	case <-stopCh:
	case <-timer.C:
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	p := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return p, true
}

func (d *Dispatcher) isStopping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// sleep waits for dur or until Stop. Reports false if interrupted.
func (d *Dispatcher) sleep(dur time.Duration) bool {
	if dur <= 0 {
		return !d.isStopping()
	}
	d.mu.Lock()
	stopCh := d.stopCh
	d.mu.Unlock()

	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	}
}

// execute paces, runs and completes one task.
func (d *Dispatcher) execute(p *Pending) {
	for {
		sel, err := d.governor.Select()
		if errors.Is(err, domain.ErrNoCredentials) {
			logger.Warn("dispatcher: no credentials configured, retrying in %s", sel.Wait)
			if !d.sleep(sel.Wait) {
				p.complete(nil, domain.ErrDispatcherStopped)
				return
			}
			continue
		}

		if !d.sleep(sel.Wait) {
			p.complete(nil, domain.ErrDispatcherStopped)
			return
		}

		p.credentialID = sel.Credential.ID
		result, err := d.invoke(p, sel.Credential)
		d.governor.RecordUse(sel.Credential.ID, p.Kind)

		var rle *domain.RateLimitError
		if errors.As(err, &rle) {
			d.governor.RecordRateLimited(sel.Credential.ID, rle.RetryAfter)
		}
		if err != nil {
			logger.Warn("dispatcher: %s task %s on %s failed: %v", p.Kind, p.ID, sel.Credential.ID, err)
		} else {
			logger.Debug("dispatcher: %s task %s on %s done", p.Kind, p.ID, sel.Credential.ID)
		}
		p.complete(result, err)
		return
	}
}

// invoke runs the operation, converting a panic into an error.
func (d *Dispatcher) invoke(p *Pending, cred domain.Credential) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s task %s panicked: %v", p.Kind, p.ID, r)
		}
	}()
	return p.op(d.ctx, cred)
}
