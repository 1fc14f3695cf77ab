package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/labbo/internal/handler"
	"github.com/dukerupert/labbo/internal/media"
	"github.com/dukerupert/labbo/internal/middleware"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/notify"
	"github.com/dukerupert/labbo/internal/push"
	"github.com/dukerupert/labbo/internal/store"
	ws "github.com/dukerupert/labbo/internal/websocket"
)

// Config carries the deployment settings the router and background jobs need.
type Config struct {
	SecureCookies   bool
	AllowedOrigins  []string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
	Media           media.Config
	AuthRateLimit   int
	// TrustedProxies may report the client address in forwarding headers.
	// Nil trusts no one.
	TrustedProxies *middleware.TrustedProxies
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	center        *notify.Center
	authH         *handler.AuthHandler
	demoH         *handler.DemoHandler
	equipmentH    *handler.EquipmentHandler
	borrowingH    *handler.BorrowingHandler
	reminderH     *handler.ReminderHandler
	notificationH *handler.NotificationHandler
	toastH        *handler.ToastHandler
	pushH         *handler.PushHandler
	userStore     *store.UserStore
	sessionStore  *store.SessionStore
	resetStore    *store.TokenStore
	verifyStore   *store.TokenStore
	pushStore     *store.PushStore
	rateLimiter   *middleware.RateLimiter
	authLimit     int
	proxies       *middleware.TrustedProxies
	pushScheduler *push.Scheduler
	origins       []string
	logger        *slog.Logger
}

// New builds the application graph. mailer may be nil when email is not
// configured.
func New(db *sql.DB, mailer handler.Mailer, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	center := notify.New(notify.Surfaces{hub, notify.NewLogSurface(logger.With("component", "toast"))})
	realtime := notify.NewRealtime(center)
	hub.OnCommand(func(_ string, cmd ws.Command) {
		switch cmd.Type {
		case ws.CmdDismissToast:
			center.Remove(cmd.ID)
		case ws.CmdClearToasts:
			center.ClearAll()
		}
	})

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	resetStore := store.NewPasswordResetStore(db)
	verifyStore := store.NewEmailVerificationStore(db)
	auditStore := store.NewAuditStore(db)
	equipmentStore := store.NewEquipmentStore(db)
	borrowingStore := store.NewBorrowingStore(db)
	notificationStore := store.NewNotificationStore(db)
	pushStore := store.NewPushStore(db)

	mediaStore := media.New(cfg.Media)

	subscriber := cfg.PushSubscriber
	if subscriber == "" {
		subscriber = "mailto:noreply@labbo.app"
	}
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, subscriber)
	var sender push.Sender
	if pushSvc.Enabled() {
		sender = pushSvc
	}
	pushSched := push.NewScheduler(sender, pushStore, borrowingStore, notificationStore, realtime, hub, logger.With("component", "push"))

	authLimit := cfg.AuthRateLimit
	if authLimit <= 0 {
		authLimit = 10
	}

	return &Server{
		db:            db,
		hub:           hub,
		center:        center,
		authH:         handler.NewAuthHandler(userStore, sessionStore, resetStore, verifyStore, auditStore, mailer, cfg.SecureCookies, logger.With("component", "auth")),
		demoH:         handler.NewDemoHandler(userStore, logger.With("component", "demo")),
		equipmentH:    handler.NewEquipmentHandler(equipmentStore, mediaStore, realtime, hub, logger.With("component", "equipment")),
		borrowingH:    handler.NewBorrowingHandler(borrowingStore, equipmentStore, userStore, auditStore, realtime, hub, logger.With("component", "borrowing")),
		reminderH:     handler.NewReminderHandler(borrowingStore, logger.With("component", "reminder")),
		notificationH: handler.NewNotificationHandler(notificationStore, logger.With("component", "notification")),
		toastH:        handler.NewToastHandler(center),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		userStore:     userStore,
		sessionStore:  sessionStore,
		resetStore:    resetStore,
		verifyStore:   verifyStore,
		pushStore:     pushStore,
		rateLimiter:   middleware.NewRateLimiter(),
		authLimit:     authLimit,
		proxies:       cfg.TrustedProxies,
		pushScheduler: pushSched,
		origins:       cfg.AllowedOrigins,
		logger:        logger,
	}
}

// Center returns the server-wide notification center.
func (s *Server) Center() *notify.Center {
	return s.center
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// UserStore returns the user store for seeding.
func (s *Server) UserStore() *store.UserStore {
	return s.userStore
}

// PushScheduler returns the due-date reminder scheduler.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// SeedDemoAccounts creates the built-in demo users that do not exist yet.
func (s *Server) SeedDemoAccounts() (int, error) {
	return s.userStore.EnsureDemoAccounts(model.DefaultDemoAccounts())
}

// Cleanup purges expired sessions and tokens and stale rate-limit entries.
func (s *Server) Cleanup() {
	if n, err := s.sessionStore.DeleteExpired(); err != nil {
		s.logger.Error("cleanup sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("expired sessions removed", "count", n)
	}
	for name, ts := range map[string]*store.TokenStore{"reset": s.resetStore, "verification": s.verifyStore} {
		if _, err := ts.DeleteExpired(); err != nil {
			s.logger.Error("cleanup tokens", "kind", name, "error", err)
		}
	}
	s.rateLimiter.Cleanup()
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *Server) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Close stops pending toast timers.
func (s *Server) Close() {
	s.center.Close()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	outerMux.HandleFunc("POST /api/auth/verify", s.authH.Verify)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/verify-email", s.rateLimitedHandler(s.authH.VerifyEmail))
	outerMux.HandleFunc("POST /api/auth/forgot-password", s.rateLimitedHandler(s.authH.ForgotPassword))
	outerMux.HandleFunc("POST /api/auth/reset-password", s.rateLimitedHandler(s.authH.ResetPassword))
	outerMux.HandleFunc("GET /api/demo-accounts", s.demoH.List)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	logged := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.ResolveClientIP(s.proxies)(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, middleware.Policy{Limit: s.authLimit, Window: time.Minute})
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleLabStaff)

	// Equipment
	mux.HandleFunc("GET /api/equipment", s.equipmentH.List)
	mux.HandleFunc("GET /api/equipment/{id}", s.equipmentH.Get)
	mux.Handle("POST /api/equipment", staff(http.HandlerFunc(s.equipmentH.Create)))
	mux.Handle("PUT /api/equipment/{id}/status", staff(http.HandlerFunc(s.equipmentH.UpdateStatus)))
	mux.Handle("POST /api/equipment/{id}/image", staff(http.HandlerFunc(s.equipmentH.ImageUpload)))
	mux.Handle("DELETE /api/equipment/{id}", staff(http.HandlerFunc(s.equipmentH.Delete)))

	// Borrowings
	mux.HandleFunc("GET /api/borrowings", s.borrowingH.List)
	mux.HandleFunc("GET /api/borrowings/due", s.borrowingH.Due)
	mux.HandleFunc("POST /api/borrowings", s.borrowingH.Borrow)
	mux.HandleFunc("POST /api/borrowings/{id}/return", s.borrowingH.Return)

	// Reminders and notifications
	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)

	// Toasts
	mux.HandleFunc("GET /api/toasts", s.toastH.List)
	mux.HandleFunc("DELETE /api/toasts/{id}", s.toastH.Dismiss)
	mux.HandleFunc("DELETE /api/toasts", s.toastH.Clear)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins))
}
