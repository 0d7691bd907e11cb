package rag

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"naver-estate/services"
	"naver-estate/storage"
	"naver-estate/utils"
)

// Loader turns the crawl CSV into one document per listing. Each document
// is the listing's "column: value" lines, including the per-area price
// ratios.
type Loader struct {
	path    string
	cleaner *services.Cleaner
	logger  *utils.Logger
}

func NewLoader(path string, logger *utils.Logger) *Loader {
	return &Loader{path: path, cleaner: services.NewCleaner(logger), logger: logger}
}

func (l *Loader) Load(ctx context.Context) ([]schema.Document, error) {
	table, err := storage.ReadTable(l.path)
	if err != nil {
		return nil, fmt.Errorf("rag: load documents: %w", err)
	}
	enriched := l.cleaner.Enrich(table)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(enriched.Columns); err != nil {
		return nil, fmt.Errorf("rag: encode header: %w", err)
	}
	if err := w.WriteAll(enriched.Rows); err != nil {
		return nil, fmt.Errorf("rag: encode rows: %w", err)
	}

	docs, err := documentloaders.NewCSV(&buf).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: parse csv: %w", err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata["source"] = l.path
	}

	l.logger.Info("[rag] Loaded %d documents from %s", len(docs), l.path)
	return docs, nil
}
