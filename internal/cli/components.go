package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"groundchat/internal/answer"
	"groundchat/internal/chunker"
	"groundchat/internal/config"
	"groundchat/internal/domain"
	embedopenai "groundchat/internal/embedding/openai"
	"groundchat/internal/embedding/tfidf"
	"groundchat/internal/ingest"
	llmopenai "groundchat/internal/llm/openai"
	"groundchat/internal/loader"
	"groundchat/internal/retriever"
	"groundchat/internal/service"
	"groundchat/internal/summarizer"
	"groundchat/internal/vectorstore/memory"
	"groundchat/internal/vectorstore/pgvector"
	"groundchat/internal/vectorstore/qdrant"
	"groundchat/internal/vectorstore/sqlite"
)

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(cfg.Embedder.MaxInputChars), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		o := cfg.Embedder.OpenAI
		return embedopenai.NewClient(embedopenai.Config{
			BaseURL:       o.BaseURL,
			APIKeyEnv:     o.APIKeyEnv,
			Model:         o.Model,
			Dimension:     o.Dimension,
			MaxInputChars: cfg.Embedder.MaxInputChars,
			Timeout:       secs(o.TimeoutSecs),
			MaxRetries:    config.Retries(o.MaxRetries),
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "window", "":
		return chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}

// openIndex returns the configured vector index and a closer for any
// connection it holds.
func openIndex(ctx context.Context, cfg *config.AppConfig) (domain.VectorIndex, io.Closer, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage(), nopCloser{}, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.VectorStore.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    secs(q.TimeoutSecs),
		}), nopCloser{}, nil
	case "pgvector":
		p := cfg.VectorStore.PgVector
		dsn := os.Getenv(p.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("pgvector: %s is not set", p.DSNEnv)
		}
		s, err := pgvector.Open(ctx, dsn, p.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func newLLM(cfg *config.AppConfig) (domain.LLM, error) {
	switch cfg.LLM.Type {
	case "openai", "":
		return llmopenai.NewClient(llmopenai.Config{
			BaseURL:         cfg.LLM.BaseURL,
			APIKeyEnv:       cfg.LLM.APIKeyEnv,
			Model:           cfg.LLM.Model,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         secs(cfg.LLM.TimeoutSecs),
			MaxRetries:      config.Retries(cfg.LLM.MaxRetries),
		})
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.LLM.Type)
	}
}

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.AppConfig
	logger   *log.Logger
	embedder domain.Embedder
	chunker  domain.Chunker
	index    domain.VectorIndex
	closer   io.Closer
	// overview summarises the last ingested corpus.
	overview string
}

func newApp(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (*app, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := newChunker(cfg)
	if err != nil {
		return nil, err
	}
	idx, closer, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", cfg.VectorStore.Type, err)
	}
	return &app{cfg: cfg, logger: logger, embedder: emb, chunker: ch, index: idx, closer: closer}, nil
}

func (a *app) Close() error { return a.closer.Close() }

// ingest replaces the index contents with the documents under paths. A
// failed run leaves the index cleared so a partial corpus is never served.
func (a *app) ingest(ctx context.Context, paths []string) (ingest.Stats, error) {
	docs, err := loader.Load(paths)
	if err != nil {
		return ingest.Stats{}, err
	}
	if err := a.index.Clear(ctx); err != nil {
		return ingest.Stats{}, fmt.Errorf("clear index: %w", err)
	}
	stats, err := ingest.NewIngestor(a.chunker, a.embedder, a.index, a.logger).Ingest(ctx, docs)
	if err != nil {
		if cerr := a.index.Clear(ctx); cerr != nil {
			a.logger.Error("clear index after failed ingest", "err", cerr)
		}
		return ingest.Stats{}, err
	}
	a.overview = summarizer.Overview(docs, a.cfg.Summary.MaxSentences)
	return stats, nil
}

// prepare makes the index servable: it ingests paths when given, otherwise
// it reuses a persistent index. Corpus-fitted embedders always need paths.
func (a *app) prepare(ctx context.Context, paths []string) (string, error) {
	if len(paths) > 0 {
		stats, err := a.ingest(ctx, paths)
		if err != nil {
			return "", fmt.Errorf("ingest: %w", err)
		}
		header := fmt.Sprintf("%d documents, %d chunks", stats.Documents, stats.Chunks)
		if a.overview != "" {
			header += ": " + a.overview
		}
		return header, nil
	}
	if _, ok := a.embedder.(domain.Preparer); ok {
		return "", fmt.Errorf("the %s embedder is fitted to the corpus; pass the document files", a.embedder.Name())
	}
	if a.cfg.VectorStore.Type == "memory" {
		return "", fmt.Errorf("the memory index starts empty; pass the document files")
	}
	return fmt.Sprintf("existing %s index", a.cfg.VectorStore.Type), nil
}

func (a *app) chatService() (*service.RAGService, error) {
	llm, err := newLLM(a.cfg)
	if err != nil {
		return nil, err
	}
	r, err := retriever.New(a.embedder, a.index, a.cfg.Retrieval.TopK)
	if err != nil {
		return nil, err
	}
	ans := answer.New(llm, answer.Options{
		Domain:               a.cfg.Answer.Domain,
		MaxOutputTokens:      a.cfg.LLM.MaxOutputTokens,
		ContextWindowTokens:  a.cfg.LLM.ContextWindowTokens,
		SupportWarnThreshold: a.cfg.Answer.SupportWarnThreshold,
	}, a.logger)
	return service.NewRAGService(r, ans, service.Options{
		TopK:             a.cfg.Retrieval.TopK,
		MemoryTokenLimit: a.cfg.Memory.TokenLimit,
	}, a.logger), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
