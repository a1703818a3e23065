package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicore/medical-assistant/internal/config"
	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
	"github.com/clinicore/medical-assistant/internal/core/usecase"
	"github.com/clinicore/medical-assistant/internal/infrastructure/chunking"
	"github.com/clinicore/medical-assistant/internal/infrastructure/extractor"
	"github.com/clinicore/medical-assistant/internal/infrastructure/llm/ollama"
	"github.com/clinicore/medical-assistant/internal/infrastructure/queue/nats"
	"github.com/clinicore/medical-assistant/internal/infrastructure/repository/postgres"
	"github.com/clinicore/medical-assistant/internal/infrastructure/resilience"
	"github.com/clinicore/medical-assistant/internal/infrastructure/storage/localfs"
	"github.com/clinicore/medical-assistant/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Documents ports.DocumentRepository
	Vectors   ports.VectorIndex

	ChatUC     *usecase.ChatUseCase
	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	DocumentUC ports.DocumentReader
	PatientUC  ports.PatientDirectory

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	documents := postgres.NewDocumentRepository(db)
	patients := postgres.NewPatientRepository(db)
	sessions := postgres.NewSessionRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(
		cfg.OllamaURL,
		cfg.OllamaAdvancedModel,
		cfg.OllamaFastModel,
		cfg.OllamaEmbedModel,
		ollama.Options{ResilienceExecutor: executor},
	)
	classifier := ollama.NewClassifier(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewDispatcher(storage)

	scorer := usecase.NewRelevanceScorer(usecase.RelevanceConfig{
		KeywordBoostMax:    cfg.KeywordBoostMax,
		RecencyThreshold:   daysAsDuration(cfg.RecencyThresholdDays),
		RecencyDecayWindow: daysAsDuration(cfg.RecencyDecayDays),
	})
	engine := usecase.NewRetrievalEngine(vectors, documents, scorer, usecase.RetrievalEngineConfig{
		TopN: cfg.RetrievalTopN,
	})
	assembler := usecase.NewContextAssembler(usecase.AssemblerConfig{
		DefaultDocConfidence: cfg.FullDocDefaultConf,
	})

	policy, err := usecase.NewHeuristicPolicy(usecase.HeuristicConfig{
		Lexicon:         loadLexicon(cfg.StrategyLexiconPath),
		ShortQueryWords: cfg.StrategyShortQueryLen,
	})
	if err != nil {
		return nil, fmt.Errorf("init strategy policy: %w", err)
	}
	selector := usecase.NewStrategySelector(policy)

	chatUC := usecase.NewChatUseCase(
		selector,
		engine,
		assembler,
		ollamaClient,
		sessions,
		vectors,
		documents,
		usecase.ChatConfig{
			Limits: domain.ChatLimits{
				MaxToolCalls: cfg.ChatMaxToolCalls,
				HistoryTurns: cfg.ChatHistoryTurns,
			},
			ContextBudgetTokens: cfg.ContextBudgetTokens,
			MaxCompletionTokens: cfg.CompletionMaxTokens,
			Temperature:         cfg.CompletionTemperature,
			ToolsEnabled:        cfg.ChatToolsEnabled,
		},
	)

	ingestUC := usecase.NewIngestDocumentUseCase(patients, documents, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(documents, textExtractor, classifier, chunker, vectors)
	documentUC := usecase.NewDocumentQueryUseCase(documents)
	patientUC := usecase.NewPatientUseCase(patients)

	return &App{
		Config: cfg,

		Queue:     queue,
		Documents: documents,
		Vectors:   vectors,

		ChatUC:     chatUC,
		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		DocumentUC: documentUC,
		PatientUC:  patientUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// loadLexicon reads the optional strategy lexicon override. No path means
// built-in defaults; a broken file falls back to defaults with a warning.
func loadLexicon(path string) usecase.StrategyLexicon {
	if path == "" {
		return usecase.StrategyLexicon{}
	}
	lexicon, err := usecase.LoadStrategyLexicon(path)
	if err != nil {
		slog.Warn("strategy_lexicon_fallback", "path", path, "error", err)
	}
	return lexicon
}

func daysAsDuration(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}
