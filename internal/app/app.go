// Package app wires configuration into providers and the pipeline. It is
// shared by the HTTP server and the CLI.
package app

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/pdfchat/internal/agent"
	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/config"
	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/index"
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/parser"
	"github.com/dgallion1/pdfchat/internal/pipeline"
)

// Options maps cfg onto pipeline options.
func Options(cfg config.Config) (pipeline.Options, error) {
	unit, err := pipeline.ParseIndexUnit(cfg.RAG.IndexUnit)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Chunk: chunker.Config{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
		},
		IndexUnit: unit,
		Index: index.Options{
			BatchSize:   cfg.EmbedBatchSize,
			Concurrency: cfg.EmbedConcurrency,
		},
		RetrievalK: cfg.RAG.RetrievalK,
		Agent: agent.Config{
			Persona:       cfg.RAG.SystemPersona,
			SystemPrompt:  cfg.RAG.SystemPrompt,
			Temperature:   cfg.RAG.ModelTemperature,
			MaxIterations: cfg.RAG.MaxIterations,
			MaxDuration:   cfg.RAG.MaxDuration,
		},
		Parser:        parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext, PdftotextTimeout: cfg.RequestTimeout},
		RetryTimeouts: cfg.RetryTimeouts,
		JobTTL:        cfg.JobTTL,
	}, nil
}

// Providers builds the embedding and chat clients named by cfg. Chat
// latencies are recorded into stats.
func Providers(cfg config.Config, stats *llm.LLMStats) (embedding.Embedder, llm.ChatModel, error) {
	emb, err := embedding.New(embedding.Config{
		Provider:          cfg.EmbeddingProvider,
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.EmbeddingBaseURL,
		Model:             cfg.EmbeddingModel,
		Dimensions:        cfg.EmbeddingDimensions,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.EmbeddingRPS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("embedding provider: %w", err)
	}
	model, err := llm.New(llm.Config{
		Provider: cfg.ChatProvider,
		APIKey:   cfg.ChatAPIKey(),
		BaseURL:  cfg.ChatBaseURL,
		Model:    cfg.ChatModel,
		Timeout:  cfg.RequestTimeout,
		Stats:    stats,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("chat provider: %w", err)
	}
	return emb, model, nil
}

// New validates cfg and returns a ready orchestrator with its stats sink.
func New(cfg config.Config, log *slog.Logger) (*pipeline.Orchestrator, *llm.LLMStats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, nil, err
	}
	stats := llm.NewLLMStats(cfg.LLMStatsWindow)
	emb, model, err := Providers(cfg, stats)
	if err != nil {
		return nil, nil, err
	}
	log.Info("providers ready",
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_model", emb.ModelName(),
		"chat_provider", cfg.ChatProvider,
		"chat_model", model.ModelName(),
		"index_unit", opts.IndexUnit,
	)
	return pipeline.NewOrchestrator(emb, model, opts, log), stats, nil
}
