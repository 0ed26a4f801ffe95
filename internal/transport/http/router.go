package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/metrics"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Auth    *app.AuthService
	Catalog *app.CatalogService
	Game    *app.GameService
	Ranking *app.RankingService
}

// Server adapts the use cases to HTTP and websocket clients.
type Server struct {
	services Services
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewServer builds the HTTP adapter. m may be nil to disable /metrics.
func NewServer(services Services, log logrus.FieldLogger, m *metrics.Metrics) *Server {
	return &Server{
		services: services,
		log:      log,
		metrics:  m,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router wires every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/admin/users", s.createAdministrator)
		r.Delete("/users/{userID}", s.deactivateUser)

		r.Get("/modules", s.listModules)
		r.Post("/modules", s.createModule)
		r.Put("/modules/{moduleID}", s.updateModule)
		r.Delete("/modules/{moduleID}", s.deleteModule)
		r.Get("/modules/{moduleID}/questions", s.playQuestions)
		r.Get("/modules/{moduleID}/best", s.bestSession)
		r.Get("/admin/modules/{moduleID}/questions", s.listQuestions)
		r.Post("/questions", s.createQuestion)
		r.Delete("/questions/{questionID}", s.deleteQuestion)

		r.Post("/sessions", s.startSession)
		r.Get("/sessions", s.listSessions)
		r.Get("/sessions/{sessionID}", s.getSession)
		r.Post("/sessions/{sessionID}/answers", s.recordAnswer)
		r.Post("/sessions/{sessionID}/finish", s.finishSession)

		r.Get("/users/{userID}/best-sessions", s.bestSessions)
		r.Get("/users/{userID}/stats", s.studentStats)
		r.Get("/stats", s.allStats)
		r.Get("/ranking", s.ranking)
		r.Get("/ws/ranking", s.rankingFeed)
	})
	return r
}
