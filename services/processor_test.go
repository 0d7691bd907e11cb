package services

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"naver-estate/config"
	"naver-estate/models"
	"naver-estate/utils"
)

func testProfile(t *testing.T) *config.Profile {
	t.Helper()
	p, err := config.DefaultProfile()
	if err != nil {
		t.Fatalf("DefaultProfile: %v", err)
	}
	return p
}

func TestRegionNameIsTotal(t *testing.T) {
	table := NewRegionTable(testProfile(t).RegionCodes, "기타지역(%s)")

	tests := []struct {
		code string
		want string
	}{
		{"1120010100", "왕십리도선동"},
		{"1120011800", "용답동"},
		{"1120011200", "옥수동"},
		{"9999999999", "기타지역(9999999999)"},
		{"", "기타지역()"},
		{"abc%d", "기타지역(abc%d)"},
	}

	for _, tt := range tests {
		got := table.Name(tt.code)
		if got != tt.want {
			t.Errorf("Name(%q) = %q; want %q", tt.code, got, tt.want)
		}
		if got == "" {
			t.Errorf("Name(%q) returned empty string", tt.code)
		}
		if _, known := testProfile(t).RegionCodes[tt.code]; !known && !strings.Contains(got, tt.code) {
			t.Errorf("Name(%q) = %q does not embed the unknown code", tt.code, got)
		}
	}
}

func TestProcessProjectsColumns(t *testing.T) {
	profile := testProfile(t)
	proc := NewProcessor(profile, utils.NewLogger())

	articles := []models.Article{
		{"atclNo": "1", "atclNm": "A", "cortarNo": "1120011200", "prc": json.Number("1000"), "tagList": []any{"x"}, "rentPrc": json.Number("50")},
		{"atclNo": "2", "atclNm": "B", "cortarNo": "0000000000", "prc": json.Number("500")},
	}

	table := proc.Process(articles)
	wantCols := []string{"atclNo", "atclNm", "region", "prc", "rentPrc"}
	if !slices.Equal(table.Columns, wantCols) {
		t.Fatalf("columns: got %v, want %v", table.Columns, wantCols)
	}

	// Output columns keep the configured order and are a subset of it.
	last := -1
	for _, c := range table.Columns {
		idx := slices.Index(profile.Columns, c)
		if idx < 0 {
			t.Errorf("column %q not configured", c)
		}
		if idx <= last {
			t.Errorf("column %q out of order", c)
		}
		last = idx
	}

	if table.Len() != 2 {
		t.Fatalf("rows: got %d, want 2", table.Len())
	}
	if got := table.Value(0, "region"); got != "옥수동" {
		t.Errorf("row 0 region: got %q", got)
	}
	if got := table.Value(1, "region"); got != "기타지역(0000000000)" {
		t.Errorf("row 1 region: got %q", got)
	}
	if got := table.Value(1, "rentPrc"); got != "" {
		t.Errorf("missing optional field should be empty, got %q", got)
	}
	if got := table.Value(0, "prc"); got != "1000" {
		t.Errorf("prc: got %q, want 1000", got)
	}
}

func TestProcessMissingRegionField(t *testing.T) {
	proc := NewProcessor(testProfile(t), utils.NewLogger())

	table := proc.Process([]models.Article{
		{"atclNo": "1"},
		{"atclNo": "2"},
	})
	if !slices.Equal(table.Columns, []string{"atclNo", "region"}) {
		t.Fatalf("columns: got %v", table.Columns)
	}
	for i := range table.Rows {
		if got := table.Value(i, "region"); got != "지역정보없음" {
			t.Errorf("row %d region: got %q, want 지역정보없음", i, got)
		}
	}
}

func TestProcessEmpty(t *testing.T) {
	proc := NewProcessor(testProfile(t), utils.NewLogger())
	if table := proc.Process(nil); table != nil {
		t.Errorf("expected nil table for no articles, got %+v", table)
	}
}
