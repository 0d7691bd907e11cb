package services

import (
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mmcloughlin/geohash"

	"naver-estate/models"
	"naver-estate/utils"
)

const geohashPrecision = 7

// Cleaner transforms the crawl table into typed, validated Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean converts table rows into Listings. Rows without a region, a deposit
// or a monthly rent are dropped.
func (c *Cleaner) Clean(table *models.Table) []*models.Listing {
	if table.Len() == 0 {
		return nil
	}
	result := make([]*models.Listing, 0, table.Len())

	for i := range table.Rows {
		get := func(col string) string { return table.Value(i, col) }

		region := normaliseText(get("region"))
		deposit, okDeposit := parseNumber(get("prc"))
		rent, okRent := parseNumber(get("rentPrc"))
		if region == "" || !okDeposit || !okRent {
			c.logger.Debug("[cleaner] Dropping row %d (%s): missing region, deposit or rent", i, get("atclNo"))
			continue
		}

		supply, _ := parseNumber(get("spc1"))
		exclusive, _ := parseNumber(get("spc2"))
		lat, _ := parseNumber(get("lat"))
		lng, _ := parseNumber(get("lng"))

		l := &models.Listing{
			ArticleNo:     strings.TrimSpace(get("atclNo")),
			Name:          normaliseText(get("atclNm")),
			Region:        region,
			ListingType:   normaliseText(get("rletTpNm")),
			TradeType:     normaliseText(get("tradTpNm")),
			FloorInfo:     normaliseText(get("flrInfo")),
			Deposit:       deposit,
			Rent:          rent,
			SupplyArea:    supply,
			ExclusiveArea: exclusive,
			Direction:     normaliseText(get("direction")),
			ConfirmedOn:   strings.TrimSpace(get("atclCfmYmd")),
			Lat:           lat,
			Lng:           lng,
			Description:   normaliseText(get("atclFetrDesc")),
			Building:      normaliseText(get("bildNm")),
			Realtor:       normaliseText(get("rltrNm")),
			CreatedAt:     time.Now(),
		}
		if lat != 0 || lng != 0 {
			l.Geohash = geohash.EncodeWithPrecision(lat, lng, geohashPrecision)
		}

		result = append(result, l)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		table.Len(), len(result), table.Len()-len(result))
	return result
}

// ratioColumns are the per-area price columns appended by Enrich.
var ratioColumns = []struct {
	name, num, den string
}{
	{"prc/spc1", "prc", "spc1"},
	{"prc/spc2", "prc", "spc2"},
	{"rentPrc/spc1", "rentPrc", "spc1"},
	{"rentPrc/spc2", "rentPrc", "spc2"},
}

// Enrich returns a copy of table with deposit and rent per unit of supply and
// exclusive area appended. Cells whose inputs are missing or zero stay empty.
func (c *Cleaner) Enrich(table *models.Table) *models.Table {
	if table == nil {
		return nil
	}
	out := &models.Table{
		Columns: slices.Clone(table.Columns),
		Rows:    make([][]string, 0, len(table.Rows)),
	}
	for _, rc := range ratioColumns {
		out.Columns = append(out.Columns, rc.name)
	}

	for i, row := range table.Rows {
		r := append(make([]string, 0, len(row)+len(ratioColumns)), row...)
		for _, rc := range ratioColumns {
			num, ok1 := parseNumber(table.Value(i, rc.num))
			den, ok2 := parseNumber(table.Value(i, rc.den))
			cell := ""
			if ok1 && ok2 && den != 0 {
				cell = strconv.FormatFloat(round2(num/den), 'f', -1, 64)
			}
			r = append(r, cell)
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// parseNumber reads a plain or comma-grouped decimal. Empty and non-numeric
// cells report ok=false.
func parseNumber(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
