package naver

import (
	"context"
	"errors"
	"testing"

	"naver-estate/models"
)

type scriptedFetcher struct {
	pages     []*models.Page
	failAt    int
	requested []int
}

func (f *scriptedFetcher) FetchPage(_ context.Context, page int) (*models.Page, error) {
	f.requested = append(f.requested, page)
	if f.failAt == page {
		return nil, ErrFetchExhausted
	}
	if page > len(f.pages) {
		return &models.Page{}, nil
	}
	return f.pages[page-1], nil
}

func articles(ids ...string) []models.Article {
	out := make([]models.Article, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Article{"atclNo": id})
	}
	return out
}

func TestCollectStopsOnEmptyPage(t *testing.T) {
	f := &scriptedFetcher{pages: []*models.Page{
		{Body: articles("1", "2"), More: true},
		{Body: articles("3"), More: true},
		{Body: nil, More: true},
	}}

	res, err := Collect(context.Background(), f, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Articles) != 3 {
		t.Errorf("articles: got %d, want 3", len(res.Articles))
	}
	if res.Pages != 3 {
		t.Errorf("pages: got %d, want 3", res.Pages)
	}
	if len(f.requested) != 3 {
		t.Errorf("requests: got %v, want pages 1..3", f.requested)
	}
}

func TestCollectIncludesLastPage(t *testing.T) {
	f := &scriptedFetcher{pages: []*models.Page{
		{Body: articles("1", "2"), More: true},
		{Body: articles("3"), More: false},
		{Body: articles("never"), More: true},
	}}

	res, err := Collect(context.Background(), f, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Articles) != 3 {
		t.Fatalf("articles: got %d, want 3", len(res.Articles))
	}
	if got := res.Articles[2]["atclNo"]; got != "3" {
		t.Errorf("last article: got %v, want 3", got)
	}
	for _, p := range f.requested {
		if p == 3 {
			t.Error("page 3 must not be requested after more=false")
		}
	}
}

func TestCollectKeepsPageOrder(t *testing.T) {
	f := &scriptedFetcher{pages: []*models.Page{
		{Body: articles("a", "b"), More: true},
		{Body: articles("c", "d"), More: true},
		{Body: articles("e"), More: false},
	}}

	res, err := Collect(context.Background(), f, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c", "d", "e"}
	for i, a := range res.Articles {
		if a["atclNo"] != want[i] {
			t.Errorf("article %d: got %v, want %s", i, a["atclNo"], want[i])
		}
	}
	for i, p := range f.requested {
		if p != i+1 {
			t.Errorf("request %d: got page %d, want %d", i, p, i+1)
		}
	}
}

func TestCollectAbortsOnTerminalFailure(t *testing.T) {
	f := &scriptedFetcher{
		pages: []*models.Page{
			{Body: articles("1"), More: true},
			{Body: articles("2"), More: true},
			{Body: articles("3"), More: false},
		},
		failAt: 2,
	}

	res, err := Collect(context.Background(), f, quietLogger())
	if !errors.Is(err, ErrFetchExhausted) {
		t.Fatalf("err: got %v, want ErrFetchExhausted", err)
	}
	if len(res.Articles) != 1 {
		t.Errorf("partial articles: got %d, want 1", len(res.Articles))
	}
	if len(f.requested) != 2 {
		t.Errorf("requests: got %v, want [1 2]", f.requested)
	}
}

func TestCollectEmptyFirstPage(t *testing.T) {
	f := &scriptedFetcher{}

	res, err := Collect(context.Background(), f, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 0 {
		t.Errorf("articles: got %d, want 0", len(res.Articles))
	}
	if res.Pages != 1 {
		t.Errorf("pages: got %d, want 1", res.Pages)
	}
}
