package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicware/clinic-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/clinicware/clinic-ai-platform/internal/http/middleware"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Session       *handlers.SessionHandler
	Notifications *handlers.NotificationsHandler
	Conversations *handlers.ConversationsHandler
	Outbound      *handlers.OutboundHandler
	Stream        *handlers.StreamHandler

	AdminAuthSecret    string
	DefaultTenant      string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.RateLimit(10, 30))
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Use(httpmiddleware.ResolveTenant(cfg.DefaultTenant))

		if cfg.Session != nil {
			admin.Route("/session", func(r chi.Router) {
				r.Get("/status", cfg.Session.Status)
				r.Get("/qr", cfg.Session.PairingImage)
				r.Post("/start", cfg.Session.Start)
				r.Post("/logout", cfg.Session.Logout)
			})
		}
		if cfg.Notifications != nil {
			admin.Route("/notifications", func(r chi.Router) {
				r.Get("/", cfg.Notifications.List)
				r.Get("/unread-count", cfg.Notifications.UnreadCount)
				r.Post("/read-all", cfg.Notifications.MarkAllRead)
				r.Post("/{notificationID}/read", cfg.Notifications.MarkRead)
				if cfg.Stream != nil {
					r.Get("/stream", cfg.Stream.Serve)
				}
			})
		}
		if cfg.Conversations != nil {
			admin.Route("/conversations", func(r chi.Router) {
				r.Get("/", cfg.Conversations.List)
				r.Get("/{chatID}/messages", cfg.Conversations.Messages)
			})
		}
		if cfg.Outbound != nil {
			admin.Post("/messages", cfg.Outbound.Send)
		}
	})

	return r
}
