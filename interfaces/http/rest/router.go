package rest

import (
	"net/http"

	"recall-backend/infrastructure/config"
	"recall-backend/interfaces/http/rest/handlers"
	"recall-backend/interfaces/http/rest/middleware"
	ws "recall-backend/interfaces/websocket"
	"recall-backend/pkg/auth"
	"recall-backend/pkg/common"
	"recall-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg       *config.Config
	memories  *handlers.MemoryHandler
	profile   *handlers.ProfileHandler
	assistant *handlers.AssistantHandler
	websocket *ws.Handler
	validator *auth.JWTValidator
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	memories *handlers.MemoryHandler,
	profile *handlers.ProfileHandler,
	assistant *handlers.AssistantHandler,
	websocket *ws.Handler,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		memories:  memories,
		profile:   profile,
		assistant: assistant,
		websocket: websocket,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))
	router.Use(middleware.CircuitBreaker(middleware.DefaultCircuitBreakerConfig("api"), rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Operational endpoints
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.cfg.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", rt.memories.CreateMemory)
			r.Get("/", rt.memories.ListMemories)
			r.Post("/migrate", rt.memories.MigrateLegacy)
			r.Get("/ws", rt.websocket.Serve)
			r.Get("/{memoryID}", rt.memories.GetMemory)
			r.Put("/{memoryID}", rt.memories.UpdateMemory)
			r.Delete("/{memoryID}", rt.memories.DeleteMemory)
			r.Post("/{memoryID}/toggle", rt.memories.ToggleMemory)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", rt.profile.GetProfile)
			r.Put("/", rt.profile.UpdateProfile)
			r.Post("/notifications", rt.profile.SetNotifications)
		})

		r.Post("/assistant/memories", rt.assistant.CreateFromPhrase)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
