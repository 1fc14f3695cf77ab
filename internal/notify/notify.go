// Package notify keeps the in-process registry of transient user
// notifications and mirrors each one to a toast surface.
package notify

import "time"

// Type classifies a notification for display.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// DefaultDuration is used when Add is called without WithDuration.
const DefaultDuration = 5 * time.Second

// Action is an optional call to action attached to a notification.
type Action struct {
	Label   string `json:"label"`
	URL     string `json:"url,omitempty"`
	Trigger func() `json:"-"`
}

// Notification is a registered entry. A zero Duration means it stays
// until removed.
type Notification struct {
	ID        string        `json:"id"`
	Type      Type          `json:"type"`
	Title     string        `json:"title"`
	Message   string        `json:"message,omitempty"`
	Action    *Action       `json:"action,omitempty"`
	Duration  time.Duration `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// Toast is what a surface receives for immediate display.
type Toast struct {
	ID          string
	Title       string
	Description string
	Duration    time.Duration
	Action      *Action
}

// Surface renders toasts. Implementations must not block.
type Surface interface {
	Show(t Type, toast Toast)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(t Type, toast Toast)

func (f SurfaceFunc) Show(t Type, toast Toast) { f(t, toast) }

// Surfaces fans a toast out to several surfaces in order.
type Surfaces []Surface

func (s Surfaces) Show(t Type, toast Toast) {
	for _, surface := range s {
		if surface != nil {
			surface.Show(t, toast)
		}
	}
}
