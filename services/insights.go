package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"naver-estate/models"
	"naver-estate/utils"
)

const defaultSearchLimit = 20

// sqmPerPyeong is the conversion used by Korean listing sites.
const sqmPerPyeong = 3.3

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ByRegion:     make(map[string]models.Stats),
		ByType:       make(map[string]models.Stats),
		ByRegionType: make(map[string]map[string]models.Stats),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	report.Overall = computeStats(listings)

	byRegion := make(map[string][]*models.Listing)
	byType := make(map[string][]*models.Listing)
	byRegionType := make(map[string]map[string][]*models.Listing)

	for _, l := range listings {
		byRegion[l.Region] = append(byRegion[l.Region], l)
		byType[l.ListingType] = append(byType[l.ListingType], l)
		if byRegionType[l.Region] == nil {
			byRegionType[l.Region] = make(map[string][]*models.Listing)
		}
		byRegionType[l.Region][l.ListingType] = append(byRegionType[l.Region][l.ListingType], l)

		if report.Cheapest == nil || l.Rent < report.Cheapest.Rent {
			report.Cheapest = l
		}
		if l.ExclusiveArea > 0 && (report.Largest == nil || l.ExclusiveArea > report.Largest.ExclusiveArea) {
			report.Largest = l
		}
	}

	for region, group := range byRegion {
		report.ByRegion[region] = computeStats(group)
	}
	for typ, group := range byType {
		report.ByType[typ] = computeStats(group)
	}
	for region, types := range byRegionType {
		report.ByRegionType[region] = make(map[string]models.Stats, len(types))
		for typ, group := range types {
			report.ByRegionType[region][typ] = computeStats(group)
		}
	}

	s.logger.Debug("[insights] %d listings across %d regions and %d types",
		report.TotalListings, len(report.ByRegion), len(report.ByType))
	return report
}

// Regions returns the region names in the report, sorted.
func (s *InsightService) Regions(r *models.InsightReport) []string {
	out := make([]string, 0, len(r.ByRegion))
	for region := range r.ByRegion {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}

// Search returns the listings matching every set constraint of f, in input
// order, capped at f.Limit (20 when unset).
func (s *InsightService) Search(listings []*models.Listing, f models.SearchFilter) []*models.Listing {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var out []*models.Listing
	for _, l := range listings {
		if f.Region != "" && l.Region != f.Region {
			continue
		}
		if f.ListingType != "" && l.ListingType != f.ListingType {
			continue
		}
		if !inRange(l.Deposit, f.MinDeposit, f.MaxDeposit) ||
			!inRange(l.Rent, f.MinRent, f.MaxRent) ||
			!inRange(l.ExclusiveArea, f.MinArea, f.MaxArea) {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Distribution bins the deposits and rents of region into bins equal-width
// buckets each. It returns false when the region has no listings.
func (s *InsightService) Distribution(listings []*models.Listing, region string, bins int) (*models.Distribution, bool) {
	var deposits, rents []float64
	for _, l := range listings {
		if l.Region != region {
			continue
		}
		deposits = append(deposits, l.Deposit)
		rents = append(rents, l.Rent)
	}
	if len(deposits) == 0 {
		return nil, false
	}
	return &models.Distribution{
		Region:  region,
		Count:   len(deposits),
		Deposit: histogram(deposits, bins),
		Rent:    histogram(rents, bins),
	}, true
}

// Compare summarises each requested region in the given order. Unknown
// regions are reported in missing.
func (s *InsightService) Compare(r *models.InsightReport, regions []string) (out []models.RegionComparison, missing []string) {
	for _, region := range regions {
		st, ok := r.ByRegion[region]
		if !ok {
			missing = append(missing, region)
			continue
		}
		out = append(out, models.RegionComparison{
			Region:     region,
			Count:      st.Count,
			AvgDeposit: st.AvgDeposit,
			AvgRent:    st.AvgRent,
			AvgPyeong1: st.AvgPyeong1,
			AvgPyeong2: st.AvgPyeong2,
		})
	}
	return out, missing
}

// histogram spreads vals over n equal-width bins between their min and max.
// Identical values collapse into a single bin.
func histogram(vals []float64, n int) []models.Bin {
	if len(vals) == 0 {
		return []models.Bin{}
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if n < 1 || hi == lo {
		n = 1
	}

	width := (hi - lo) / float64(n)
	out := make([]models.Bin, n)
	for i := range out {
		out[i].Lower = round2(lo + float64(i)*width)
		out[i].Upper = round2(lo + float64(i+1)*width)
	}
	out[n-1].Upper = hi

	for _, v := range vals {
		i := n - 1
		if width > 0 {
			i = min(int((v-lo)/width), n-1)
		}
		out[i].Count++
	}
	return out
}

func inRange(v, min, max float64) bool {
	if min > 0 && v < min {
		return false
	}
	if max > 0 && v > max {
		return false
	}
	return true
}

func computeStats(group []*models.Listing) models.Stats {
	st := models.Stats{Count: len(group)}
	if len(group) == 0 {
		return st
	}

	var deposits, rents, area1, area2 []float64
	typeCount := make(map[string]int)
	for _, l := range group {
		deposits = append(deposits, l.Deposit)
		rents = append(rents, l.Rent)
		if l.SupplyArea > 0 {
			area1 = append(area1, l.SupplyArea)
		}
		if l.ExclusiveArea > 0 {
			area2 = append(area2, l.ExclusiveArea)
		}
		if l.ListingType != "" {
			typeCount[l.ListingType]++
		}
	}

	st.AvgDeposit, st.MedianDeposit, st.MinDeposit, st.MaxDeposit = summarise(deposits)
	st.AvgRent, st.MedianRent, st.MinRent, st.MaxRent = summarise(rents)
	st.AvgArea1, st.MedianArea1, _, _ = summarise(area1)
	st.AvgArea2, st.MedianArea2, _, _ = summarise(area2)
	st.AvgPyeong1 = toPyeong(st.AvgArea1)
	st.AvgPyeong2 = toPyeong(st.AvgArea2)

	best := 0
	for typ, n := range typeCount {
		if n > best || (n == best && typ < st.PopularType) {
			best, st.PopularType = n, typ
		}
	}
	return st
}

// summarise returns mean, median, min and max, each rounded to 2 places.
func summarise(vals []float64) (avg, median, min, max float64) {
	if len(vals) == 0 {
		return 0, 0, 0, 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return round2(total / float64(n)), round2(median), round2(sorted[0]), round2(sorted[n-1])
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 성동구 매물 요약\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total listings      : \033[1m%d\033[0m\n", r.TotalListings)
	if r.TotalListings > 0 {
		fmt.Printf("  Avg deposit (만원)  : \033[1;32m%.0f\033[0m (median %.0f)\n", r.Overall.AvgDeposit, r.Overall.MedianDeposit)
		fmt.Printf("  Avg rent (만원)     : \033[1;32m%.1f\033[0m (median %.1f)\n", r.Overall.AvgRent, r.Overall.MedianRent)
	}
	fmt.Println()

	if r.Cheapest != nil {
		fmt.Printf("\033[1;33m  Lowest Monthly Rent\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s (%s)\n", truncate(r.Cheapest.Name, 50), r.Cheapest.Region)
		fmt.Printf("  Rent %.0f / Deposit %.0f · %s\n", r.Cheapest.Rent, r.Cheapest.Deposit, r.Cheapest.Realtor)
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Listings by Region\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ByRegion) == 0 {
		fmt.Printf("  No region data\n")
	} else {
		type regionCount struct {
			region string
			stats  models.Stats
		}
		var regions []regionCount
		for region, st := range r.ByRegion {
			regions = append(regions, regionCount{region, st})
		}
		sort.Slice(regions, func(i, j int) bool {
			if regions[i].stats.Count != regions[j].stats.Count {
				return regions[i].stats.Count > regions[j].stats.Count
			}
			return regions[i].region < regions[j].region
		})
		for _, rc := range regions {
			bar := strings.Repeat("█", int(math.Ceil(float64(rc.stats.Count)/5)))
			fmt.Printf("  %-16s %s (%d, avg rent %.0f)\n", truncate(rc.region, 16), bar, rc.stats.Count, rc.stats.AvgRent)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Listings by Type\033[0m\n")
	fmt.Printf("  %s\n", thin)
	types := make([]string, 0, len(r.ByType))
	for typ := range r.ByType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		st := r.ByType[typ]
		fmt.Printf("  %-12s %4d  deposit %7.0f  rent %5.0f\n", truncate(typ, 12), st.Count, st.AvgDeposit, st.AvgRent)
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func toPyeong(sqm float64) float64 {
	return math.Round(sqm/sqmPerPyeong*10) / 10
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
