package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Article is one listing record exactly as the upstream API returned it.
// Numbers are kept as json.Number so that their textual form survives to CSV.
type Article map[string]any

// Has reports whether the record carries the field at all.
func (a Article) Has(field string) bool {
	_, ok := a[field]
	return ok
}

// String renders a field as a CSV cell. Missing and null fields are empty.
func (a Article) String(field string) string {
	return FormatValue(a[field])
}

// FormatValue renders a decoded JSON value the way it should appear in a cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Page is the decoded payload of one articleList response.
type Page struct {
	Body []Article `json:"body"`
	More bool      `json:"more"`
}

// Empty reports whether the page signals the natural end of pagination.
func (p *Page) Empty() bool {
	return p == nil || len(p.Body) == 0
}

// Table is the post-processed, column-projected result of a crawl run.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i for column name, or "" when absent.
func (t *Table) Value(i int, name string) string {
	j := t.Index(name)
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// Listing is a cleaned, typed listing ready for analytics and storage.
// Prices are in units of 10,000 KRW as published by the upstream site; areas
// are square metres.
type Listing struct {
	ArticleNo     string    `json:"atcl_no"`
	Name          string    `json:"name"`
	Region        string    `json:"region"`
	ListingType   string    `json:"listing_type"`
	TradeType     string    `json:"trade_type"`
	FloorInfo     string    `json:"floor_info,omitempty"`
	Deposit       float64   `json:"deposit"`
	Rent          float64   `json:"rent"`
	SupplyArea    float64   `json:"supply_area"`
	ExclusiveArea float64   `json:"exclusive_area"`
	Direction     string    `json:"direction,omitempty"`
	ConfirmedOn   string    `json:"confirmed_on,omitempty"`
	Lat           float64   `json:"lat,omitempty"`
	Lng           float64   `json:"lng,omitempty"`
	Geohash       string    `json:"geohash,omitempty"`
	Description   string    `json:"description,omitempty"`
	Building      string    `json:"building,omitempty"`
	Realtor       string    `json:"realtor,omitempty"`
	CreatedAt     time.Time `json:"-"`
}

// Stats is a summary of deposit, rent and area figures over a group of
// listings. Pyeong averages are the square-metre averages in 평.
type Stats struct {
	Count         int     `json:"count"`
	AvgDeposit    float64 `json:"avg_deposit"`
	MedianDeposit float64 `json:"median_deposit"`
	MinDeposit    float64 `json:"min_deposit"`
	MaxDeposit    float64 `json:"max_deposit"`
	AvgRent       float64 `json:"avg_rent"`
	MedianRent    float64 `json:"median_rent"`
	MinRent       float64 `json:"min_rent"`
	MaxRent       float64 `json:"max_rent"`
	AvgArea1      float64 `json:"avg_area1"`
	MedianArea1   float64 `json:"median_area1"`
	AvgArea2      float64 `json:"avg_area2"`
	MedianArea2   float64 `json:"median_area2"`
	AvgPyeong1    float64 `json:"avg_pyeong1"`
	AvgPyeong2    float64 `json:"avg_pyeong2"`
	PopularType   string  `json:"popular_type,omitempty"`
}

// InsightReport holds the computed analytics over the cleaned dataset.
type InsightReport struct {
	TotalListings int                         `json:"total_listings"`
	Overall       Stats                       `json:"overall"`
	ByRegion      map[string]Stats            `json:"by_region"`
	ByType        map[string]Stats            `json:"by_type"`
	ByRegionType  map[string]map[string]Stats `json:"by_region_type"`
	Cheapest      *Listing                    `json:"-"`
	Largest       *Listing                    `json:"-"`
}

// Bin is one equal-width histogram bucket. Lower is inclusive; Upper is
// exclusive except for the last bin of a histogram.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Distribution holds deposit and rent histograms for one region.
type Distribution struct {
	Region  string `json:"region"`
	Count   int    `json:"count"`
	Deposit []Bin  `json:"deposit"`
	Rent    []Bin  `json:"rent"`
}

// RegionComparison is the side-by-side summary of one region.
type RegionComparison struct {
	Region     string  `json:"region"`
	Count      int     `json:"count"`
	AvgDeposit float64 `json:"avg_deposit"`
	AvgRent    float64 `json:"avg_rent"`
	AvgPyeong1 float64 `json:"avg_pyeong1"`
	AvgPyeong2 float64 `json:"avg_pyeong2"`
}

// SearchFilter narrows listings for the dashboard search. Zero values mean
// "no constraint".
type SearchFilter struct {
	Region      string
	ListingType string
	MinDeposit  float64
	MaxDeposit  float64
	MinRent     float64
	MaxRent     float64
	MinArea     float64
	MaxArea     float64
	Limit       int
}
