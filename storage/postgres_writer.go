package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"naver-estate/models"
	"naver-estate/utils"
)

const listingColumns = 17

// PostgresWriter persists cleaned listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

const (
	pingAttempts = 10
	pingInterval = 2 * time.Second
)

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter. Cancelling ctx abandons the
// connection attempts.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i == pingAttempts-1 {
			break
		}
		if serr := utils.WallClock.Sleep(ctx, pingInterval); serr != nil {
			err = serr
			break
		}
	}
	if err != nil {
		_ = db.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("postgres: connect: %w", ctx.Err())
		}
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			atcl_no        TEXT          PRIMARY KEY,
			run_id         UUID          NOT NULL,
			name           TEXT          NOT NULL DEFAULT '',
			region         TEXT          NOT NULL DEFAULT '',
			listing_type   TEXT          NOT NULL DEFAULT '',
			trade_type     TEXT          NOT NULL DEFAULT '',
			floor_info     TEXT          NOT NULL DEFAULT '',
			deposit        NUMERIC(12,2) NOT NULL DEFAULT 0,
			rent           NUMERIC(12,2) NOT NULL DEFAULT 0,
			supply_area    NUMERIC(10,2) NOT NULL DEFAULT 0,
			exclusive_area NUMERIC(10,2) NOT NULL DEFAULT 0,
			direction      TEXT          NOT NULL DEFAULT '',
			confirmed_on   TEXT          NOT NULL DEFAULT '',
			lat            DOUBLE PRECISION NOT NULL DEFAULT 0,
			lng            DOUBLE PRECISION NOT NULL DEFAULT 0,
			geohash        VARCHAR(12)   NOT NULL DEFAULT '',
			description    TEXT          NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_region  ON listings(region);
		CREATE INDEX IF NOT EXISTS idx_listings_rent    ON listings(rent);
		CREATE INDEX IF NOT EXISTS idx_listings_geohash ON listings(geohash);
		CREATE INDEX IF NOT EXISTS idx_listings_run     ON listings(run_id);
	`)
	return err
}

// Write upserts every listing, tagging rows with the crawl run id. Listings
// already stored under the same article number are refreshed in place.
func (pw *PostgresWriter) Write(ctx context.Context, runID string, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))
		query, args := upsertQuery(runID, listings[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("postgres: upsert batch at %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// upsertQuery builds one multi-row INSERT ... ON CONFLICT statement.
// Duplicate article numbers inside a batch are collapsed, last one wins,
// since Postgres rejects a statement that touches the same row twice.
func upsertQuery(runID string, batch []*models.Listing) (string, []any) {
	seen := make(map[string]int, len(batch))
	var unique []*models.Listing
	for _, l := range batch {
		if i, ok := seen[l.ArticleNo]; ok {
			unique[i] = l
			continue
		}
		seen[l.ArticleNo] = len(unique)
		unique = append(unique, l)
	}

	valueStrings := make([]string, 0, len(unique))
	valueArgs := make([]any, 0, len(unique)*listingColumns)

	for idx, l := range unique {
		base := idx * listingColumns
		ph := make([]string, listingColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			l.ArticleNo, runID, l.Name, l.Region, l.ListingType, l.TradeType, l.FloorInfo,
			l.Deposit, l.Rent, l.SupplyArea, l.ExclusiveArea, l.Direction, l.ConfirmedOn,
			l.Lat, l.Lng, l.Geohash, l.Description)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (atcl_no, run_id, name, region, listing_type, trade_type, floor_info,
			deposit, rent, supply_area, exclusive_area, direction, confirmed_on,
			lat, lng, geohash, description)
		VALUES %s
		ON CONFLICT (atcl_no) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			name = EXCLUDED.name,
			region = EXCLUDED.region,
			listing_type = EXCLUDED.listing_type,
			trade_type = EXCLUDED.trade_type,
			floor_info = EXCLUDED.floor_info,
			deposit = EXCLUDED.deposit,
			rent = EXCLUDED.rent,
			supply_area = EXCLUDED.supply_area,
			exclusive_area = EXCLUDED.exclusive_area,
			direction = EXCLUDED.direction,
			confirmed_on = EXCLUDED.confirmed_on,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			geohash = EXCLUDED.geohash,
			description = EXCLUDED.description,
			created_at = NOW()
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored listings, optionally restricted to one run.
func (pw *PostgresWriter) FetchAll(ctx context.Context, runID string) ([]*models.Listing, error) {
	query := `
		SELECT atcl_no, name, region, listing_type, trade_type, floor_info,
			deposit, rent, supply_area, exclusive_area, direction, confirmed_on,
			lat, lng, geohash, description, created_at
		FROM listings`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = $1`
		args = append(args, runID)
	}
	query += ` ORDER BY atcl_no`

	rows, err := pw.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// rowScanner is the subset of *sql.Rows that scanListings reads.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanListings(rows rowScanner) ([]*models.Listing, error) {
	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(
			&l.ArticleNo, &l.Name, &l.Region, &l.ListingType, &l.TradeType, &l.FloorInfo,
			&l.Deposit, &l.Rent, &l.SupplyArea, &l.ExclusiveArea, &l.Direction, &l.ConfirmedOn,
			&l.Lat, &l.Lng, &l.Geohash, &l.Description, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	return listings, nil
}
