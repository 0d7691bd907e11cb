package naver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"naver-estate/config"
	"naver-estate/models"
	"naver-estate/utils"
)

// ErrFetchExhausted is returned when one page could not be fetched within
// the retry budget. Collection stops at that page.
var ErrFetchExhausted = errors.New("naver: retry budget exhausted")

// PageIssuer performs one attempt at fetching a page.
type PageIssuer interface {
	Fetch(ctx context.Context, page int) (*models.Page, error)
}

// Scraper fetches articleList pages with bounded retries and drives the
// collection loop.
type Scraper struct {
	issuer PageIssuer
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// New creates a ready-to-use Scraper from configuration and a crawl profile.
func New(cfg *config.Config, profile *config.Profile, logger *utils.Logger) (*Scraper, error) {
	throttleMin, throttleMax := cfg.RequestDelay()
	client, err := NewClient(profile, ClientOptions{
		Throttle: utils.DelayRange{Min: throttleMin, Max: throttleMax},
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	backoffMin, backoffMax := cfg.RetryDelay()
	return NewWithIssuer(client, &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     utils.DelayRange{Min: backoffMin, Max: backoffMax},
		Logger:      logger,
	}, logger), nil
}

// NewWithIssuer wires a Scraper around an arbitrary issuer and retry policy.
// A nil logger falls back to the default stdout logger.
func NewWithIssuer(issuer PageIssuer, retry *utils.RetryConfig, logger *utils.Logger) *Scraper {
	if logger == nil {
		logger = utils.NewLogger()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.Logger == nil {
		retry.Logger = logger
	}
	return &Scraper{issuer: issuer, retry: retry, logger: logger}
}

// FetchPage returns the page payload, retrying transient failures. Once the
// budget is spent the error wraps ErrFetchExhausted.
func (s *Scraper) FetchPage(ctx context.Context, page int) (*models.Page, error) {
	var result *models.Page

	err := s.retry.Do(ctx, fmt.Sprintf("page-%d", page), func(attempt int) error {
		s.logger.Info("[naver] Collecting page %d (attempt %d/%d)", page, attempt, s.retry.MaxAttempts)
		p, err := s.issuer.Fetch(ctx, page)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchExhausted, err)
	}
	return result, nil
}

// Collect runs the collection loop from page 1.
func (s *Scraper) Collect(ctx context.Context) (Result, error) {
	start := time.Now()
	res, err := Collect(ctx, s, s.logger)
	if err == nil {
		s.logger.Info("[naver] Collection finished in %v: %d pages, %d articles",
			time.Since(start).Round(time.Second), res.Pages, len(res.Articles))
	}
	return res, err
}
