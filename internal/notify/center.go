package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Center is the notification registry. Entries are kept in insertion
// order and removed on expiry or explicit dismissal.
type Center struct {
	mu        sync.Mutex
	entries   []*entry
	listeners map[int]func([]Notification)
	nextSub   int
	closed    bool

	surface         Surface
	defaultDuration time.Duration
	now             func() time.Time
}

type entry struct {
	n     Notification
	timer *time.Timer
}

// Option configures a Center.
type Option func(*Center)

// WithDefaultDuration overrides DefaultDuration.
func WithDefaultDuration(d time.Duration) Option {
	return func(c *Center) { c.defaultDuration = d }
}

// WithClock sets the function used for CreatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// New creates a Center that mirrors every added notification to surface.
// surface may be nil.
func New(surface Surface, opts ...Option) *Center {
	c := &Center{
		listeners:       make(map[int]func([]Notification)),
		surface:         surface,
		defaultDuration: DefaultDuration,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddOption sets optional fields on a notification being added.
type AddOption func(*addConfig)

type addConfig struct {
	message     string
	action      *Action
	duration    time.Duration
	durationSet bool
}

// WithMessage sets the body text shown under the title.
func WithMessage(msg string) AddOption {
	return func(a *addConfig) { a.message = msg }
}

// WithDuration sets the auto-removal delay. Zero or negative disables it.
func WithDuration(d time.Duration) AddOption {
	return func(a *addConfig) {
		if d < 0 {
			d = 0
		}
		a.duration = d
		a.durationSet = true
	}
}

// WithAction attaches a button that opens url or calls trigger.
func WithAction(label, url string, trigger func()) AddOption {
	return func(a *addConfig) {
		a.action = &Action{Label: label, URL: url, Trigger: trigger}
	}
}

// Add registers a notification, schedules its removal and mirrors it to
// the surface. Returns the new id.
func (c *Center) Add(t Type, title string, opts ...AddOption) string {
	cfg := addConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.durationSet {
		cfg.duration = c.defaultDuration
	}

	e := &entry{n: Notification{
		ID:        uuid.NewString(),
		Type:      t,
		Title:     title,
		Message:   cfg.message,
		Action:    cfg.action,
		Duration:  cfg.duration,
		CreatedAt: c.now(),
	}}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return e.n.ID
	}
	c.entries = append(c.entries, e)
	if e.n.Duration > 0 {
		e.timer = time.AfterFunc(e.n.Duration, func() { c.expire(e) })
	}
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	if c.surface != nil {
		c.surface.Show(t, Toast{
			ID:          e.n.ID,
			Title:       title,
			Description: cfg.message,
			Duration:    e.n.Duration,
			Action:      cfg.action,
		})
	}
	notifyAll(listeners, snapshot)
	return e.n.ID
}

// Remove deletes the notification with id and cancels its expiry.
// Unknown ids are ignored.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	idx := -1
	for i, e := range c.entries {
		if e.n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.removeAtLocked(idx)
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	notifyAll(listeners, snapshot)
}

// expire removes e only if that exact entry is still registered.
func (c *Center) expire(e *entry) {
	c.mu.Lock()
	idx := -1
	for i, cur := range c.entries {
		if cur == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.removeAtLocked(idx)
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	notifyAll(listeners, snapshot)
}

// ClearAll empties the registry and stops every pending timer.
func (c *Center) ClearAll() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	c.stopTimersLocked()
	c.entries = nil
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	notifyAll(listeners, snapshot)
}

// List returns a snapshot of current notifications in insertion order.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.n
	}
	return out
}

// Get returns the notification with id, if registered.
func (c *Center) Get(id string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.n.ID == id {
			return e.n, true
		}
	}
	return Notification{}, false
}

// Subscribe registers fn to receive a snapshot after every change.
// The returned function unsubscribes.
func (c *Center) Subscribe(fn func([]Notification)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close stops all timers and drops entries and listeners. Later Adds
// are ignored.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	c.entries = nil
	c.listeners = make(map[int]func([]Notification))
	c.closed = true
}

func (c *Center) removeAtLocked(idx int) {
	if t := c.entries[idx].timer; t != nil {
		t.Stop()
	}
	c.entries = append(c.entries[:idx:idx], c.entries[idx+1:]...)
}

func (c *Center) stopTimersLocked() {
	for _, e := range c.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

func (c *Center) snapshotLocked() ([]Notification, []func([]Notification)) {
	if len(c.listeners) == 0 {
		return nil, nil
	}
	snapshot := make([]Notification, len(c.entries))
	for i, e := range c.entries {
		snapshot[i] = e.n
	}
	listeners := make([]func([]Notification), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}

func notifyAll(listeners []func([]Notification), snapshot []Notification) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
