package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rutzsco/custom-chat-copilot-go/internal/api/handlers"
	appmiddleware "github.com/rutzsco/custom-chat-copilot-go/internal/api/middlewares"
	"github.com/rutzsco/custom-chat-copilot-go/internal/config"
	"github.com/rutzsco/custom-chat-copilot-go/internal/services"
)

// Server wraps the HTTP server instance and its routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, chat *services.ChatService, documents *services.DocumentService, logger *slog.Logger) *Server {
	chatHandler := handlers.NewChatHandler(chat, logger)
	docHandler := handlers.NewDocumentHandler(documents, logger)
	profileHandler := handlers.NewProfileHandler(chat)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", handlers.Healthz)

		api.Group(func(protected chi.Router) {
			protected.Use(appmiddleware.JWT(cfg.JWTSecret))
			protected.Post("/chat", chatHandler.Chat)
			protected.Post("/chat/stream", chatHandler.ChatStream)
			protected.Post("/chat/rating", chatHandler.Rate)
			protected.Get("/profiles", profileHandler.List)
			protected.Post("/documents/upload", docHandler.Upload)
			protected.Get("/documents", docHandler.List)
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
