package services

import (
	"fmt"

	"naver-estate/config"
	"naver-estate/models"
	"naver-estate/utils"
)

// RegionColumn is the derived column holding the human-readable region name.
const RegionColumn = "region"

// RegionTable maps administrative region codes to display names.
type RegionTable struct {
	names    map[string]string
	fallback string
}

// NewRegionTable builds a lookup table. fallback is a format with one %s verb
// for the raw code.
func NewRegionTable(names map[string]string, fallback string) *RegionTable {
	if fallback == "" {
		fallback = "기타지역(%s)"
	}
	return &RegionTable{names: names, fallback: fallback}
}

// Name returns the display name for code. Unknown codes yield the fallback
// label embedding the code.
func (t *RegionTable) Name(code string) string {
	if name, ok := t.names[code]; ok && name != "" {
		return name
	}
	return fmt.Sprintf(t.fallback, code)
}

// Processor turns accumulated articles into the output table.
type Processor struct {
	logger      *utils.Logger
	regions     *RegionTable
	regionField string
	missing     string
	columns     []string
}

// NewProcessor creates a Processor for the given crawl profile.
func NewProcessor(profile *config.Profile, logger *utils.Logger) *Processor {
	return &Processor{
		logger:      logger,
		regions:     NewRegionTable(profile.RegionCodes, profile.RegionFallback),
		regionField: profile.RegionField,
		missing:     profile.RegionMissing,
		columns:     profile.Columns,
	}
}

// Process derives the region column and projects every article onto the
// configured columns. Columns that no article carries are left out; fields
// that are not configured are dropped. Returns nil when there is nothing to
// process.
func (p *Processor) Process(articles []models.Article) *models.Table {
	if len(articles) == 0 {
		return nil
	}

	present := make(map[string]bool)
	for _, a := range articles {
		for k := range a {
			present[k] = true
		}
	}

	p.logger.Info("[processor] Resolving region names")
	hasRegionField := present[p.regionField]
	if !hasRegionField {
		p.logger.Warn("[processor] Field %q not found in any article, using %q", p.regionField, p.missing)
	}
	present[RegionColumn] = true

	cols := make([]string, 0, len(p.columns))
	for _, c := range p.columns {
		if present[c] {
			cols = append(cols, c)
		}
	}

	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		region := p.missing
		if hasRegionField {
			region = p.regions.Name(a.String(p.regionField))
		}

		row := make([]string, len(cols))
		for i, c := range cols {
			if c == RegionColumn {
				row[i] = region
				continue
			}
			row[i] = a.String(c)
		}
		rows = append(rows, row)
	}

	return &models.Table{Columns: cols, Rows: rows}
}
