package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"rolerag/internal/assembler"
	"rolerag/internal/config"
	"rolerag/internal/domain"
	"rolerag/internal/embedding/gemini"
	"rolerag/internal/embedding/openai"
	"rolerag/internal/embedding/tfidf"
	"rolerag/internal/ingest"
	geminillm "rolerag/internal/llm/gemini"
	openaillm "rolerag/internal/llm/openai"
	"rolerag/internal/retrieval"
	"rolerag/internal/roles"
	"rolerag/internal/service"
	"rolerag/internal/tagger"
	"rolerag/internal/vectorstore/keyword"
	"rolerag/internal/vectorstore/memory"
	"rolerag/internal/vectorstore/qdrant"
)

func permissionTable(cfg *config.AppConfig) *roles.Table {
	if len(cfg.Departments) == 0 {
		return roles.Default()
	}
	return roles.NewTable(cfg.Departments)
}

func newEmbedder(ctx context.Context, cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: oc.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	case "gemini":
		emb, err := gemini.New(ctx, gemini.Config{
			APIKeyEnv: cfg.Embedder.Gemini.APIKeyEnv,
			Model:     cfg.Embedder.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		return emb, nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}

// newOracle returns the configured oracle and whether it lives only in this process.
func newOracle(ctx context.Context, cfg *config.AppConfig) (domain.Oracle, bool, func(), error) {
	noop := func() {}
	switch cfg.VectorStore.Type {
	case "keyword":
		o, err := keyword.New()
		if err != nil {
			return nil, false, noop, err
		}
		return o, true, func() { _ = o.Close() }, nil
	}

	emb, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, false, noop, err
	}
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.New(emb), true, noop, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if emb.Name() == "tfidf" {
			return nil, false, noop, fmt.Errorf("qdrant needs a corpus-independent embedder, not tfidf")
		}
		return qdrant.New(qdrant.Config{
			URL:        q.URL,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}, emb), false, noop, nil
	}
	return nil, false, noop, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
}

func newGenerator(ctx context.Context, cfg *config.AppConfig) (domain.Generator, error) {
	g := cfg.Generator
	switch g.Type {
	case "none", "":
		return nil, nil
	case "openai":
		return openaillm.New(openaillm.Config{
			BaseURL:     g.BaseURL,
			APIKeyEnv:   g.APIKeyEnv,
			Model:       g.Model,
			Temperature: g.Temperature,
			Timeout:     time.Duration(g.TimeoutSecs) * time.Second,
		})
	case "gemini":
		return geminillm.New(ctx, geminillm.Config{
			APIKeyEnv:   g.APIKeyEnv,
			Model:       g.Model,
			Temperature: float32(g.Temperature),
		})
	}
	return nil, fmt.Errorf("unknown generator: %s", g.Type)
}

func newPipeline(cfg *config.AppConfig, oracle domain.Oracle, log *zap.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(tagger.New(permissionTable(cfg)), oracle, ingest.Options{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.VectorStore.BatchSize,
		Logger:    log,
	})
}

// buildService assembles the question service. In-process oracles are loaded
// from the chunk files first.
func buildService(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*service.Service, func(), error) {
	oracle, inProcess, closeFn, err := newOracle(ctx, cfg)
	if err != nil {
		return nil, closeFn, err
	}
	if inProcess {
		rep, err := newPipeline(cfg, oracle, log).Run(ctx, cfg.DataDir)
		if err != nil {
			closeFn()
			return nil, func() {}, fmt.Errorf("ingest failed: %w", err)
		}
		if rep.Records == 0 {
			log.Warn("no chunk files found; run `rag extract` first", zap.String("data_dir", cfg.DataDir))
		}
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		log.Warn("generator unavailable, answers will be extractive", zap.Error(err))
		gen = nil
	}

	filter := retrieval.NewFilter(oracle, retrieval.Options{
		OverFetch:   cfg.Retrieval.OverFetch,
		MaxDistance: cfg.Retrieval.MaxDistance,
		Logger:      log,
	})
	asm := assembler.New(gen, assembler.Options{
		ContextBudget: cfg.Assembler.ContextBudget,
		MinChunkChars: cfg.Assembler.MinChunkChars,
		Logger:        log,
	})
	return service.New(filter, asm, service.Options{NResults: cfg.Retrieval.NResults, Logger: log}), closeFn, nil
}
