package storage

import (
	"context"

	"naver-estate/models"
)

// TableWriter persists the raw, column-projected crawl output.
type TableWriter interface {
	Write(table *models.Table) error
}

// ListingSink receives cleaned listings after the CSV has been written.
type ListingSink interface {
	Write(ctx context.Context, runID string, listings []*models.Listing) error
	Close() error
}

var (
	_ TableWriter = (*CSVWriter)(nil)
	_ ListingSink = (*PostgresWriter)(nil)
	_ ListingSink = (*AMQPPublisher)(nil)
)
