// Package rag answers natural-language questions about crawled listings
// with retrieval-augmented generation over the crawl CSV.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"naver-estate/utils"
)

// ErrNotReady is returned by Ask and Retrieve before Setup has succeeded.
var ErrNotReady = errors.New("rag: system not set up")

// Options tunes a System.
type Options struct {
	CSVPath      string
	CacheDir     string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	EmbedWorkers int
	Temperature  float64
}

// System wires loader, splitter, index and chain together.
type System struct {
	opts   Options
	loader *Loader
	index  *Index
	llm    llms.Model
	logger *utils.Logger

	mu    sync.RWMutex
	chain *Chain
}

func NewSystem(opts Options, embedder embeddings.Embedder, llm llms.Model, logger *utils.Logger) *System {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &System{
		opts:   opts,
		loader: NewLoader(opts.CSVPath, logger),
		index:  NewIndex(opts.CacheDir, embedder, opts.EmbedWorkers, logger),
		llm:    llm,
		logger: logger,
	}
}

// Setup loads the cached index, or builds it from the CSV when there is no
// cache, the cache is unreadable, or force is set.
func (s *System) Setup(ctx context.Context, force bool) error {
	loaded := false
	if !force {
		switch err := s.index.Load(); {
		case err == nil:
			loaded = true
			s.logger.Info("[rag] Loaded cached index (%d chunks)", s.index.Len())
		case errors.Is(err, ErrNoCache):
			s.logger.Info("[rag] No cached index, building a new one")
		default:
			s.logger.Warn("[rag] Cached index unusable, rebuilding: %v", err)
		}
	}

	if !loaded {
		if err := s.build(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.chain = NewChain(vectorstores.ToRetriever(s.index, s.opts.TopK), s.llm, s.opts.Temperature)
	s.mu.Unlock()
	return nil
}

func (s *System) build(ctx context.Context) error {
	docs, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("rag: %s has no listings to index", s.opts.CSVPath)
	}
	chunks, err := Split(docs, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if err != nil {
		return err
	}

	s.index.Reset()
	if _, err := s.index.AddDocuments(ctx, chunks); err != nil {
		return err
	}
	return s.index.Save()
}

// Rebuild discards any cache and indexes the CSV again.
func (s *System) Rebuild(ctx context.Context) error {
	return s.Setup(ctx, true)
}

func (s *System) Ask(ctx context.Context, question string) (string, error) {
	c, err := s.ready()
	if err != nil {
		return "", err
	}
	return c.Invoke(ctx, question)
}

// Retrieve returns the documents the chain would use as context.
func (s *System) Retrieve(ctx context.Context, question string) ([]schema.Document, error) {
	c, err := s.ready()
	if err != nil {
		return nil, err
	}
	return c.Retrieve(ctx, question)
}

// ClearCache deletes the persisted index. The system must be set up again
// before answering.
func (s *System) ClearCache() (bool, error) {
	s.mu.Lock()
	s.chain = nil
	s.mu.Unlock()
	return s.index.Clear()
}

func (s *System) CacheInfo() CacheInfo {
	return s.index.CacheInfo()
}

func (s *System) ready() (*Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.chain == nil {
		return nil, ErrNotReady
	}
	return s.chain, nil
}
