package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rutzsco/custom-chat-copilot-go/internal/config"
	db "github.com/rutzsco/custom-chat-copilot-go/internal/core/database"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/extract"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/ingest"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/llm"
	objectclient "github.com/rutzsco/custom-chat-copilot-go/internal/core/object-client"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/orchestration"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/prompt"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/retrieval"
	"github.com/rutzsco/custom-chat-copilot-go/internal/logging"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
	"github.com/rutzsco/custom-chat-copilot-go/internal/services"
)

// App owns the wired dependency graph and the HTTP server.
type App struct {
	DB       *db.DatabaseClient
	Ingestor *ingest.DocumentIngestor
	Server   *Server
	Logger   *slog.Logger

	workers int
}

// NewApp builds the full dependency graph. Any invalid configuration,
// unreachable backend or profile/strategy mismatch fails startup here;
// nothing is deferred to request time.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New()

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	logger.Info("database ready")

	objClient, err := objectclient.NewS3Client(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	completer, err := llm.NewGeminiClient(initCtx, cfg.AIAPIKey, cfg.GenModel, cfg.PremiumGenModel)
	if err != nil {
		return nil, fmt.Errorf("completion client: %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	catalog, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("profile catalog: %w", err)
	}
	catalog.SetDefaultCitationBaseURL(cfg.CitationBaseURL)

	extractor := extract.NewDocconvExtractor(false)
	retriever := retrieval.NewRetriever(embedder, dbClient, completer)

	selector := orchestration.NewSelector(orchestration.Deps{
		Prompts:    prompt.NewResolver(),
		Completer:  completer,
		Retriever:  retriever,
		Extractor:  extractor,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		Logger:     logger,
	})
	if err := selector.Validate(catalog); err != nil {
		return nil, fmt.Errorf("strategy selection: %w", err)
	}
	logger.Info("profile catalog validated", "profiles", len(catalog.All()))

	ingestor := ingest.NewDocumentIngestor(dbClient, objClient, embedder, extractor, cfg.BucketName, nil, logger)

	chatService := services.NewChatService(catalog, selector, dbClient, logger)
	documentService := services.NewDocumentService(dbClient, objClient, ingestor, cfg.BucketName)

	server := NewServer(cfg, chatService, documentService, logger)

	return &App{
		DB:       dbClient,
		Ingestor: ingestor,
		Server:   server,
		Logger:   logger,
		workers:  cfg.IngestWorkers,
	}, nil
}

// Start launches the ingestion workers and the HTTP server. It blocks
// until the server stops.
func (a *App) Start(ctx context.Context) error {
	a.Ingestor.Start(ctx, a.workers)
	return a.Server.Start()
}

func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
