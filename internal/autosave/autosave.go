// Package autosave debounces edits of one phase editor into saves.
//
// A Controller moves between Clean, Dirty, Pending, Saving and Error. Every
// edit that differs from the last saved content re-arms a single timer; when
// the timer fires the content at that moment is saved. Saves never overlap:
// edits made while a save is in flight are saved after it completes.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay is the debounce window after the last edit.
const DefaultDelay = 2 * time.Second

const defaultSaveTimeout = 30 * time.Second

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("autosave controller closed")

// State is the save state of an editor.
type State int

const (
	Clean State = iota
	Dirty
	Pending
	Saving
	Error
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Pending:
		return "pending"
	case Saving:
		return "saving"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Key identifies the phase being edited.
type Key struct {
	ProjectID    string
	ModuleNumber int
	PhaseNumber  int
}

// Saver persists the content of one phase.
type Saver interface {
	Save(ctx context.Context, key Key, content string) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, key Key, content string) error

func (f SaverFunc) Save(ctx context.Context, key Key, content string) error {
	return f(ctx, key, content)
}

// Options configures a Controller. Zero values use defaults.
type Options struct {
	Delay       time.Duration
	SaveTimeout time.Duration
	Scheduler   Scheduler
	// OnSaved runs after every successful save, for example to refresh a
	// cached progress summary.
	OnSaved func(key Key, content string)
	// OnError runs after a failed save.
	OnError func(key Key, err error)
	// OnTransition observes every state change. It runs with the
	// controller locked and must not call back into it.
	OnTransition func(from, to State)
	Logger       *slog.Logger
}

// Status is a snapshot of a controller.
type Status struct {
	Key         Key
	State       State
	Content     string
	LastSaved   string
	LastSavedAt time.Time
	Err         error
	Closed      bool
}

// Controller drives the autosave state machine of one editor session.
type Controller struct {
	saver       Saver
	sched       Scheduler
	delay       time.Duration
	saveTimeout time.Duration
	onSaved     func(Key, string)
	onError     func(Key, error)
	onChange    func(from, to State)
	logger      *slog.Logger

	mu          sync.Mutex
	key         Key
	content     string
	lastSaved   string
	lastSavedAt time.Time
	state       State
	err         error
	closed      bool
	timer       Timer
	// gen invalidates timers; a callback whose generation is stale is a no-op.
	gen uint64
	// epoch changes with the edited phase; results of saves from an older
	// epoch do not touch the current state.
	epoch uint64
	// done is non-nil while a save is in flight.
	done chan struct{}
	// inflight counts saves whose hooks have not yet returned.
	inflight int
	idle     *sync.Cond
}

// New starts a controller for key whose stored content is loaded.
func New(saver Saver, key Key, loaded string, opts Options) *Controller {
	c := &Controller{
		saver:       saver,
		sched:       opts.Scheduler,
		delay:       opts.Delay,
		saveTimeout: opts.SaveTimeout,
		onSaved:     opts.OnSaved,
		onError:     opts.OnError,
		onChange:    opts.OnTransition,
		logger:      opts.Logger,
		key:         key,
		content:     loaded,
		lastSaved:   loaded,
		state:       Clean,
	}
	c.idle = sync.NewCond(&c.mu)
	if c.sched == nil {
		c.sched = RealScheduler{}
	}
	if c.delay <= 0 {
		c.delay = DefaultDelay
	}
	if c.saveTimeout <= 0 {
		c.saveTimeout = defaultSaveTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Key:         c.key,
		State:       c.state,
		Content:     c.content,
		LastSaved:   c.lastSaved,
		LastSavedAt: c.lastSavedAt,
		Err:         c.err,
		Closed:      c.closed,
	}
}

// Edit records new editor content and schedules a save if it differs from
// the last saved content.
func (c *Controller) Edit(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.content = content

	if c.done != nil {
		// Saved when the in-flight save completes.
		return nil
	}
	if content == c.lastSaved {
		c.cancelTimerLocked()
		c.err = nil
		c.setStateLocked(Clean)
		return nil
	}
	c.setStateLocked(Dirty)
	c.armLocked()
	return nil
}

// SaveNow cancels any pending timer and saves the current content
// immediately, changed or not. It waits for an in-flight save first and
// returns the result of its own save.
func (c *Controller) SaveNow(ctx context.Context) error {
	return c.flush(ctx, false)
}

// SaveAndClose saves immediately and closes the controller on success. On
// failure the controller stays open in the Error state.
func (c *Controller) SaveAndClose(ctx context.Context) error {
	return c.flush(ctx, true)
}

// Close discards pending work. A timer that fires afterwards does nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.closed = true
}

// SwitchPhase points the controller at another phase whose stored content
// is loaded. Pending saves of the previous phase are discarded.
func (c *Controller) SwitchPhase(key Key, loaded string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.cancelTimerLocked()
	c.epoch++
	c.done = nil
	c.key = key
	c.content = loaded
	c.lastSaved = loaded
	c.lastSavedAt = time.Time{}
	c.err = nil
	c.setStateLocked(Clean)
	return nil
}

// Wait blocks until every started save has completed and its hooks have
// returned.
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
}

func (c *Controller) flush(ctx context.Context, closeAfter bool) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		c.cancelTimerLocked()
		done := c.done
		if done == nil {
			break
		}
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	key, content, epoch, done := c.beginSaveLocked()
	c.mu.Unlock()

	err := c.saver.Save(ctx, key, content)
	c.finishSave(key, content, epoch, done, err)
	if err != nil {
		return fmt.Errorf("saving phase: %w", err)
	}

	if closeAfter {
		c.mu.Lock()
		c.cancelTimerLocked()
		c.closed = true
		c.mu.Unlock()
	}
	return nil
}

func (c *Controller) armLocked() {
	c.cancelTimerLocked()
	gen := c.gen
	c.timer = c.sched.AfterFunc(c.delay, func() { c.fire(gen) })
	c.setStateLocked(Pending)
}

func (c *Controller) cancelTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.state != Pending || c.done != nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	key, content, epoch, done := c.beginSaveLocked()
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
		defer cancel()
		err := c.saver.Save(ctx, key, content)
		c.finishSave(key, content, epoch, done, err)
	}()
}

func (c *Controller) beginSaveLocked() (Key, string, uint64, chan struct{}) {
	done := make(chan struct{})
	c.done = done
	c.inflight++
	c.setStateLocked(Saving)
	return c.key, c.content, c.epoch, done
}

func (c *Controller) finishSave(key Key, content string, epoch uint64, done chan struct{}, err error) {
	defer func() {
		c.mu.Lock()
		c.inflight--
		c.idle.Broadcast()
		c.mu.Unlock()
	}()

	c.mu.Lock()
	current := epoch == c.epoch
	if current {
		c.done = nil
		if err != nil {
			c.err = err
			c.setStateLocked(Error)
		} else {
			c.err = nil
			c.lastSaved = content
			c.lastSavedAt = time.Now()
			switch {
			case c.closed:
				c.setStateLocked(Clean)
			case c.content != c.lastSaved:
				c.setStateLocked(Dirty)
				c.armLocked()
			default:
				c.setStateLocked(Clean)
			}
		}
	}
	close(done)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("autosave failed",
			"project_id", key.ProjectID,
			"module", key.ModuleNumber,
			"phase", key.PhaseNumber,
			"error", err,
		)
		if c.onError != nil {
			c.onError(key, err)
		}
		return
	}
	if c.onSaved != nil {
		c.onSaved(key, content)
	}
}

func (c *Controller) setStateLocked(to State) {
	from := c.state
	c.state = to
	if from != to && c.onChange != nil {
		c.onChange(from, to)
	}
}
