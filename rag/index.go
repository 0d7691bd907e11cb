package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"naver-estate/utils"
)

const (
	indexFileName  = "index.json"
	indexVersion   = 1
	embedBatchSize = 64
)

// ErrNoCache is returned by Load when no index has been persisted yet.
var ErrNoCache = errors.New("rag: no cached index")

type indexEntry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Vector   []float32      `json:"vector"`
}

type indexFile struct {
	Version int          `json:"version"`
	Created time.Time    `json:"created_at"`
	Entries []indexEntry `json:"entries"`
}

// CacheInfo describes the persisted index on disk.
type CacheInfo struct {
	Exists   bool      `json:"exists"`
	Path     string    `json:"path,omitempty"`
	SizeMB   float64   `json:"size_mb,omitempty"`
	Modified time.Time `json:"modified_time,omitempty"`
}

// Index is an in-memory vector store persisted as a single JSON file under
// its cache directory. Search is brute-force cosine similarity.
type Index struct {
	dir      string
	embedder embeddings.Embedder
	workers  int
	logger   *utils.Logger

	mu      sync.RWMutex
	entries []indexEntry
}

var _ vectorstores.VectorStore = (*Index)(nil)

func NewIndex(dir string, embedder embeddings.Embedder, workers int, logger *utils.Logger) *Index {
	if workers < 1 {
		workers = 1
	}
	return &Index{dir: dir, embedder: embedder, workers: workers, logger: logger}
}

// Path is the location of the persisted index file.
func (x *Index) Path() string { return filepath.Join(x.dir, indexFileName) }

// Len returns the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// AddDocuments embeds docs in concurrent batches and appends them to the
// index. It returns the generated ids in input order.
func (x *Index) AddDocuments(ctx context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors := make([][]float32, len(docs))

	pool := utils.NewWorkerPool(x.workers, 0)
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		pool.Submit(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vecs, err := x.embedder.EmbedDocuments(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("rag: embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("rag: embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	added := make([]indexEntry, len(docs))
	for i, d := range docs {
		ids[i] = uuid.NewString()
		added[i] = indexEntry{ID: ids[i], Content: d.PageContent, Metadata: d.Metadata, Vector: vectors[i]}
	}

	x.mu.Lock()
	x.entries = append(x.entries, added...)
	x.mu.Unlock()

	x.logger.Debug("[rag] Indexed %d chunks (%d workers)", len(docs), x.workers)
	return ids, nil
}

// SimilaritySearch returns the numDocuments chunks closest to query, most
// similar first. A score threshold option drops weaker matches.
func (x *Index) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	var opts vectorstores.Options
	for _, o := range options {
		o(&opts)
	}

	qv, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	type hit struct {
		i     int
		score float32
	}
	hits := make([]hit, 0, len(x.entries))
	for i, e := range x.entries {
		s := cosine(qv, e.Vector)
		if opts.ScoreThreshold > 0 && s < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, hit{i, s})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if numDocuments > 0 && len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}
	out := make([]schema.Document, len(hits))
	for k, h := range hits {
		e := x.entries[h.i]
		out[k] = schema.Document{PageContent: e.Content, Metadata: e.Metadata, Score: h.score}
	}
	return out, nil
}

// Save writes the index to disk atomically.
func (x *Index) Save() error {
	x.mu.RLock()
	file := indexFile{Version: indexVersion, Created: time.Now().UTC(), Entries: x.entries}
	data, err := json.Marshal(file)
	x.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("rag: encode index: %w", err)
	}

	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return fmt.Errorf("rag: create cache dir: %w", err)
	}
	tmp := x.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("rag: write index: %w", err)
	}
	if err := os.Rename(tmp, x.Path()); err != nil {
		return fmt.Errorf("rag: replace index: %w", err)
	}
	x.logger.Info("[rag] Saved index with %d chunks to %s", len(file.Entries), x.Path())
	return nil
}

// Load replaces the in-memory entries with the persisted index.
func (x *Index) Load() error {
	data, err := os.ReadFile(x.Path())
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoCache
	}
	if err != nil {
		return fmt.Errorf("rag: read index: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("rag: decode index: %w", err)
	}
	if file.Version != indexVersion {
		return fmt.Errorf("rag: index version %d, want %d", file.Version, indexVersion)
	}
	if len(file.Entries) == 0 {
		return fmt.Errorf("rag: cached index is empty")
	}

	x.mu.Lock()
	x.entries = file.Entries
	x.mu.Unlock()
	return nil
}

// Reset drops the in-memory entries.
func (x *Index) Reset() {
	x.mu.Lock()
	x.entries = nil
	x.mu.Unlock()
}

// Clear removes the persisted index and empties the in-memory one. It
// reports whether there was anything to delete.
func (x *Index) Clear() (bool, error) {
	x.Reset()
	err := os.Remove(x.Path())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rag: clear cache: %w", err)
	}
	return true, nil
}

func (x *Index) CacheInfo() CacheInfo {
	st, err := os.Stat(x.Path())
	if err != nil {
		return CacheInfo{Exists: false}
	}
	return CacheInfo{
		Exists:   true,
		Path:     x.Path(),
		SizeMB:   math.Round(float64(st.Size())/(1024*1024)*100) / 100,
		Modified: st.ModTime(),
	}
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
