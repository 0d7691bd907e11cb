package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"naver-estate/models"
)

func TestBuildListingMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := &models.Listing{ArticleNo: "2401", Region: "성수1가제1동", Deposit: 1000, Rent: 60}

	msg, err := buildListingMessage("run-1", l, now)
	if err != nil {
		t.Fatal(err)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Errorf("DeliveryMode: got %d, want persistent", msg.DeliveryMode)
	}
	if msg.MessageId != "2401" {
		t.Errorf("MessageId: got %q, want 2401", msg.MessageId)
	}
	if msg.Headers["x-run-id"] != "run-1" {
		t.Errorf("x-run-id header: got %v", msg.Headers["x-run-id"])
	}

	var ev ListingEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if ev.RunID != "run-1" || ev.Listing.Region != "성수1가제1동" || ev.Listing.Rent != 60 {
		t.Errorf("decoded event: %+v", ev)
	}
}

func TestUpsertQueryPlaceholders(t *testing.T) {
	batch := []*models.Listing{{ArticleNo: "1"}, {ArticleNo: "2"}}
	query, args := upsertQuery("run", batch)

	if len(args) != 2*listingColumns {
		t.Errorf("args: got %d, want %d", len(args), 2*listingColumns)
	}
	if !strings.Contains(query, "$34") || strings.Contains(query, "$35") {
		t.Errorf("placeholders should run to $34:\n%s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (atcl_no) DO UPDATE") {
		t.Error("query should upsert on atcl_no")
	}
}

func TestUpsertQueryCollapsesDuplicates(t *testing.T) {
	batch := []*models.Listing{
		{ArticleNo: "1", Rent: 10},
		{ArticleNo: "2", Rent: 20},
		{ArticleNo: "1", Rent: 30},
	}
	_, args := upsertQuery("run", batch)

	if len(args) != 2*listingColumns {
		t.Fatalf("args: got %d, want %d", len(args), 2*listingColumns)
	}
	// rent is the 9th column of each row
	if got := args[8]; got != float64(30) {
		t.Errorf("duplicate should keep last value: got %v, want 30", got)
	}
}

type fakeRows struct {
	rows [][]any
	next int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.next >= len(r.rows) {
		return false
	}
	r.next++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.next-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func listingRow(no, region string, deposit, rent float64, at time.Time) []any {
	return []any{no, "매물 " + no, region, "원룸", "월세", "3/5",
		deposit, rent, 33.0, 20.5, "남향", "25.03.01",
		37.54, 127.05, "wydm9", "역세권", at}
}

func TestScanListings(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := &fakeRows{rows: [][]any{
		listingRow("101", "성수1가제1동", 1000, 60, at),
		listingRow("102", "옥수동", 500, 45, at),
	}}

	listings, err := scanListings(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings: got %d, want 2", len(listings))
	}
	l := listings[1]
	if l.ArticleNo != "102" || l.Region != "옥수동" || l.Deposit != 500 || l.Rent != 45 {
		t.Errorf("second listing: %+v", l)
	}
	if l.ExclusiveArea != 20.5 || l.Geohash != "wydm9" || !l.CreatedAt.Equal(at) {
		t.Errorf("second listing: %+v", l)
	}
}

func TestScanListingsRowsError(t *testing.T) {
	broken := errors.New("connection reset")
	_, err := scanListings(&fakeRows{err: broken})
	if !errors.Is(err, broken) {
		t.Errorf("err: got %v, want %v", err, broken)
	}
}

func TestNewPostgresWriterHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := NewPostgresWriter(ctx, "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err: got %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("NewPostgresWriter kept retrying after cancel")
	}
}
