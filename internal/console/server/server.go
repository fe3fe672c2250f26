package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/condgate/internal/console/handler"
	"github.com/xela07ax/condgate/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	adminKeyHash string

	ruleHandler     *handler.RuleHandler     // /v1/rules
	decisionHandler *handler.DecisionHandler // /v1/decisions
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	adminKeyHash string,
	ruleH *handler.RuleHandler,
	decisionH *handler.DecisionHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		adminKeyHash:    adminKeyHash,
		ruleHandler:     ruleH,
		decisionHandler: decisionH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// --- 2. Публичные роуты ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. Защищенный периметр (X-Admin-Key) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.AdminKeyMiddleware(s.adminKeyHash, s.logger))

		r.Route("/v1/rules", func(r chi.Router) {
			r.Get("/", s.ruleHandler.List)
			r.Post("/", s.ruleHandler.Create)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.ruleHandler.Get)
				r.Put("/", s.ruleHandler.Update)
				r.Delete("/", s.ruleHandler.Delete)
				r.Post("/evaluate", s.ruleHandler.Evaluate) // Dry-run без вызова
			})
		})

		if s.decisionHandler != nil {
			r.Get("/v1/decisions", s.decisionHandler.List)
		}
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
