package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/notify"
	"github.com/dukerupert/labbo/internal/reminder"
	"github.com/dukerupert/labbo/internal/store"
	"github.com/dukerupert/labbo/internal/websocket"
)

// sentRetention is how long dedup records are kept.
const sentRetention = 14 * 24 * time.Hour

// Scheduler periodically turns due borrowings into in-app and push reminders.
type Scheduler struct {
	mu            sync.RWMutex
	sender        Sender
	push          *store.PushStore
	borrowings    *store.BorrowingStore
	notifications *store.NotificationStore
	realtime      *notify.Realtime
	hub           *websocket.Hub
	logger        *slog.Logger
	interval      time.Duration
	window        time.Duration
	now           func() time.Time
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewScheduler creates a due-date reminder scheduler. sender, realtime and
// hub may be nil.
func NewScheduler(sender Sender, pushStore *store.PushStore, borrowingStore *store.BorrowingStore, notificationStore *store.NotificationStore, realtime *notify.Realtime, hub *websocket.Hub, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:        sender,
		push:          pushStore,
		borrowings:    borrowingStore,
		notifications: notificationStore,
		realtime:      realtime,
		hub:           hub,
		logger:        logger,
		interval:      reminder.PollInterval,
		window:        reminder.Window,
		now:           time.Now,
	}
}

// Start runs one pass immediately and then every interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.borrowings.ListAllDue(ctx, now.Add(s.window))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("list due borrowings", "error", err)
		}
		return
	}

	failed := 0
	for _, b := range due {
		if ctx.Err() != nil {
			return
		}
		failed += s.remind(b, now)
	}
	if failed > 0 && s.realtime != nil {
		s.realtime.BulkOperation("Deliver", failed, false)
	}

	if err := s.push.CleanupSent(now.Add(-sentRetention)); err != nil {
		s.logger.Warn("cleanup sent notifications", "error", err)
	}
}

// remind handles one due borrowing and returns how many push deliveries failed.
func (s *Scheduler) remind(b model.BorrowingTransaction, now time.Time) int {
	dueDate, err := b.DueDate()
	if err != nil {
		s.logger.Warn("bad due date", "borrowing_id", b.ID, "value", b.ExpectedReturnDate)
		return 0
	}
	days := reminder.DaysUntil(dueDate, now)

	sent, err := s.push.WasSent(model.NotifTypeDueDateReminder, b.ID, days)
	if err != nil {
		s.logger.Error("check sent", "borrowing_id", b.ID, "error", err)
		return 0
	}
	if sent {
		return 0
	}

	name := b.EquipmentName
	if name == "" {
		name = reminder.UnknownEquipment
	}
	title := "Equipment Due Soon"
	if days < 0 {
		title = "Equipment Overdue"
	}
	message := fmt.Sprintf("%s: %s", name, reminder.UrgencyText(days))

	userID := b.UserID
	n, err := s.notifications.Create(model.Notification{
		UserID:   &userID,
		Type:     model.NotifTypeDueDateReminder,
		Title:    title,
		Message:  message,
		Priority: priorityFor(days),
		Data: map[string]any{
			"borrowing_id":   b.ID,
			"equipment_id":   b.EquipmentID,
			"due_date":       b.ExpectedReturnDate,
			"days_until_due": days,
		},
	})
	if err != nil {
		s.logger.Error("create reminder notification", "borrowing_id", b.ID, "error", err)
		return 0
	}

	if s.hub != nil {
		s.hub.SendToUser(b.UserID, websocket.Message{
			Type:   "notification_created",
			Entity: "notification",
			Action: "created",
			ID:     n.ID,
			Extra:  map[string]any{"title": n.Title, "message": n.Message, "priority": n.Priority},
		})
	}

	failed := s.sendPush(b.UserID, Payload{
		Title: title,
		Body:  message,
		URL:   "/dashboard/my-borrowings",
		Tag:   "due-" + b.ID,
	})

	if days < 0 && s.realtime != nil {
		s.realtime.BorrowingUpdate(name, "", "overdue")
	}

	if err := s.push.RecordSent(model.NotifTypeDueDateReminder, b.ID, days); err != nil {
		s.logger.Error("record sent", "borrowing_id", b.ID, "error", err)
	}
	return failed
}

// sendPush delivers payload to every subscription of userID. Expired
// subscriptions are dropped and do not count as failures.
func (s *Scheduler) sendPush(userID string, payload Payload) int {
	if s.sender == nil {
		return 0
	}
	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return 0
	}
	failed := 0
	for _, sub := range subs {
		if err := s.sender.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				failed++
				s.logger.Warn("send push", "user_id", userID, "error", err)
			}
		}
	}
	return failed
}

func priorityFor(days int) string {
	switch reminder.Urgency(days) {
	case reminder.UrgencyOverdue:
		return model.PriorityUrgent
	case reminder.UrgencyToday:
		return model.PriorityHigh
	}
	return model.PriorityMedium
}
