package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"naver-estate/models"
	"naver-estate/rag"
	"naver-estate/services"
	"naver-estate/storage"
	"naver-estate/utils"
)

// Asker answers free-form questions about the listings.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Handler serves a snapshot of listings loaded once at startup.
type Handler struct {
	listings []*models.Listing
	report   *models.InsightReport
	insights *services.InsightService
	asker    Asker
	logger   *utils.Logger
}

// NewHandler precomputes the insight report. asker may be nil, in which case
// the ask endpoint reports the assistant as unavailable.
func NewHandler(listings []*models.Listing, insights *services.InsightService, asker Asker, logger *utils.Logger) *Handler {
	return &Handler{
		listings: listings,
		report:   insights.Generate(listings),
		insights: insights,
		asker:    asker,
		logger:   logger,
	}
}

// LoadListings reads a crawl CSV and cleans it into typed listings.
func LoadListings(path string, logger *utils.Logger) ([]*models.Listing, error) {
	table, err := storage.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return services.NewCleaner(logger).Clean(table), nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"listings": len(h.listings),
	})
}

type overviewResponse struct {
	TotalListings int                     `json:"total_listings"`
	Overall       models.Stats            `json:"overall"`
	ByType        map[string]models.Stats `json:"by_type"`
	Cheapest      *models.Listing         `json:"cheapest,omitempty"`
	Largest       *models.Listing         `json:"largest,omitempty"`
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, overviewResponse{
		TotalListings: h.report.TotalListings,
		Overall:       h.report.Overall,
		ByType:        h.report.ByType,
		Cheapest:      h.report.Cheapest,
		Largest:       h.report.Largest,
	})
}

func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"regions": h.insights.Regions(h.report),
	})
}

func (h *Handler) Region(w http.ResponseWriter, r *http.Request) {
	region, stats, ok := h.lookupRegion(r)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown region %q", region))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"region": region,
		"stats":  stats,
	})
}

func (h *Handler) RegionTypes(w http.ResponseWriter, r *http.Request) {
	region, _, ok := h.lookupRegion(r)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown region %q", region))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"region": region,
		"types":  h.report.ByRegionType[region],
	})
}

const (
	defaultBins = 10
	maxBins     = 50
)

func (h *Handler) RegionDistribution(w http.ResponseWriter, r *http.Request) {
	region, _, ok := h.lookupRegion(r)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown region %q", region))
		return
	}

	bins := defaultBins
	if raw := r.URL.Query().Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBins {
			WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid bins: %q (1-%d)", raw, maxBins))
			return
		}
		bins = n
	}

	dist, _ := h.insights.Distribution(h.listings, region, bins)
	RespondWithJSON(w, http.StatusOK, dist)
}

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var regions []string
	for _, v := range r.URL.Query()["region"] {
		if v = strings.TrimSpace(v); v != "" {
			regions = append(regions, v)
		}
	}
	if len(regions) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "at least one region parameter is required")
		return
	}

	out, missing := h.insights.Compare(h.report, regions)
	if len(missing) > 0 {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown regions: %s", strings.Join(missing, ", ")))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"regions": out,
	})
}

func (h *Handler) lookupRegion(r *http.Request) (string, models.Stats, bool) {
	region := chi.URLParam(r, "region")
	if unescaped, err := url.PathUnescape(region); err == nil {
		region = unescaped
	}
	stats, ok := h.report.ByRegion[region]
	return region, stats, ok
}

func (h *Handler) Listings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	found := h.insights.Search(h.listings, filter)
	if found == nil {
		found = []*models.Listing{}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"count":    len(found),
		"listings": found,
	})
}

func parseFilter(q url.Values) (models.SearchFilter, error) {
	f := models.SearchFilter{
		Region:      q.Get("region"),
		ListingType: q.Get("type"),
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"min_deposit", &f.MinDeposit},
		{"max_deposit", &f.MaxDeposit},
		{"min_rent", &f.MinRent},
		{"max_rent", &f.MaxRent},
		{"min_area", &f.MinArea},
		{"max_area", &f.MaxArea},
	}
	for _, fl := range floats {
		raw := q.Get(fl.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return f, fmt.Errorf("invalid %s: %q", fl.key, raw)
		}
		*fl.dst = v
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, fmt.Errorf("invalid limit: %q", raw)
		}
		f.Limit = n
	}
	return f, nil
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.asker == nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		WriteJSONError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.asker.Ask(r.Context(), question)
	if errors.Is(err, rag.ErrNotReady) {
		WriteJSONError(w, http.StatusServiceUnavailable, "assistant is not ready")
		return
	}
	if err != nil {
		h.logger.Error("[dashboard] ask failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteJSONError(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, map[string]string{"error": message})
}
