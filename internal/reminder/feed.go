package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/labbo/internal/model"
)

// Feed polls a Source for one user and tracks which reminders were
// dismissed. Only student accounts ever see reminders.
type Feed struct {
	source Source
	userID string
	role   string

	window   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	onUpdate func([]Reminder)

	mu        sync.Mutex
	reminders []Reminder
	dismissed map[string]struct{}
	visible   bool

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithWindow sets how far ahead of now due dates are fetched.
func WithWindow(d time.Duration) FeedOption {
	return func(f *Feed) { f.window = d }
}

// WithInterval sets the poll period. Zero or negative keeps PollInterval.
func WithInterval(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithClock replaces time.Now for due-date arithmetic.
func WithClock(now func() time.Time) FeedOption {
	return func(f *Feed) { f.now = now }
}

// WithLogger sets where poll failures are logged.
func WithLogger(logger *slog.Logger) FeedOption {
	return func(f *Feed) { f.logger = logger }
}

// WithOnUpdate registers fn to receive Active after every successful poll.
func WithOnUpdate(fn func([]Reminder)) FeedOption {
	return func(f *Feed) { f.onUpdate = fn }
}

// NewFeed returns a stopped feed for userID. Call Start to begin polling.
func NewFeed(source Source, userID, role string, opts ...FeedOption) *Feed {
	f := &Feed{
		source:    source,
		userID:    userID,
		role:      role,
		window:    Window,
		interval:  PollInterval,
		now:       time.Now,
		logger:    slog.Default(),
		dismissed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) enabled() bool {
	return f.userID != "" && f.role == model.RoleStudent
}

// Refresh polls the source once. Errors are returned and the previous
// reminders are kept.
func (f *Feed) Refresh(ctx context.Context) error {
	if !f.enabled() {
		return nil
	}
	now := f.now()
	records, err := f.source.ListDueBorrowings(ctx, f.userID, now.Add(f.window))
	if err != nil {
		return fmt.Errorf("fetch due borrowings: %w", err)
	}
	derived := Derive(records, now)

	f.mu.Lock()
	f.reminders = derived
	for _, r := range derived {
		if _, ok := f.dismissed[r.ID]; !ok {
			f.visible = true
			break
		}
	}
	active := f.activeLocked()
	f.mu.Unlock()

	if f.onUpdate != nil {
		f.onUpdate(active)
	}
	return nil
}

// Start polls immediately and then every interval until Stop or ctx is done.
// Calling it again while running is a no-op.
func (f *Feed) Start(ctx context.Context) {
	if !f.enabled() {
		return
	}
	f.loopMu.Lock()
	if f.cancel != nil {
		f.loopMu.Unlock()
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	done := f.done
	f.loopMu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		f.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.poll(ctx)
			}
		}
	}()
}

// Stop cancels any in-flight fetch and waits for the loop to exit.
func (f *Feed) Stop() {
	f.loopMu.Lock()
	cancel := f.cancel
	done := f.done
	f.cancel = nil
	f.done = nil
	f.loopMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (f *Feed) poll(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Error("poll due-date reminders", "user_id", f.userID, "error", err)
	}
}

// Dismiss hides one reminder for the rest of the session.
func (f *Feed) Dismiss(id string) {
	f.mu.Lock()
	f.dismissed[id] = struct{}{}
	f.mu.Unlock()
}

// DismissAll dismisses every current reminder and hides the feed.
func (f *Feed) DismissAll() {
	f.mu.Lock()
	for _, r := range f.reminders {
		f.dismissed[r.ID] = struct{}{}
	}
	f.visible = false
	f.mu.Unlock()
}

// Hide closes the feed without dismissing anything. The next poll with
// undismissed reminders shows it again.
func (f *Feed) Hide() {
	f.mu.Lock()
	f.visible = false
	f.mu.Unlock()
}

// Visible reports whether the feed is open with something to show.
func (f *Feed) Visible() bool {
	if !f.enabled() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible && len(f.undismissedLocked()) > 0
}

// Active returns up to DisplayCap undismissed reminders, earliest due first.
// It is empty while the feed is hidden.
func (f *Feed) Active() []Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeLocked()
}

// Count returns the number of undismissed reminders, ignoring the display cap.
func (f *Feed) Count() int {
	if !f.enabled() {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.undismissedLocked())
}

// Reminders returns every reminder from the last poll, dismissed or not.
func (f *Feed) Reminders() []Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Reminder(nil), f.reminders...)
}

func (f *Feed) activeLocked() []Reminder {
	if !f.enabled() || !f.visible {
		return nil
	}
	active := f.undismissedLocked()
	if len(active) > DisplayCap {
		active = active[:DisplayCap]
	}
	return active
}

func (f *Feed) undismissedLocked() []Reminder {
	var out []Reminder
	for _, r := range f.reminders {
		if _, ok := f.dismissed[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}
