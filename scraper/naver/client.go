package naver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"naver-estate/config"
	"naver-estate/models"
	"naver-estate/utils"
)

var (
	// ErrBadStatus is returned when the API answers with anything but 200.
	ErrBadStatus = errors.New("naver: unexpected status")
	// ErrChallenge is returned when the body carries the bot-defense marker.
	ErrChallenge = errors.New("naver: bot challenge detected")
)

// ClientOptions tunes a Client. Zero values fall back to production defaults.
type ClientOptions struct {
	Throttle  utils.DelayRange
	Sleeper   utils.Sleeper
	Challenge ChallengeDetector
	Logger    *utils.Logger
}

// Client issues single articleList requests. It does not retry.
type Client struct {
	profile     *config.Profile
	endpoint    *url.URL
	base        *colly.Collector
	throttle    utils.DelayRange
	sleeper     utils.Sleeper
	isChallenge ChallengeDetector
	logger      *utils.Logger
}

// NewClient builds a Client bound to the profile's endpoint, cookies and
// fingerprint headers.
func NewClient(profile *config.Profile, opts ClientOptions) (*Client, error) {
	endpoint, err := url.Parse(profile.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("naver: parse endpoint %q: %w", profile.Endpoint, err)
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	// Status handling is ours: every response reaches OnResponse and only
	// transport failures surface as Visit errors.
	c.ParseHTTPErrorResponse = true

	cookies := make([]*http.Cookie, 0, len(profile.Cookies))
	for name, value := range profile.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	if err := c.SetCookies(endpoint.String(), cookies); err != nil {
		return nil, fmt.Errorf("naver: set cookies: %w", err)
	}

	cl := &Client{
		profile:     profile,
		endpoint:    endpoint,
		base:        c,
		throttle:    opts.Throttle,
		sleeper:     opts.Sleeper,
		isChallenge: opts.Challenge,
		logger:      opts.Logger,
	}
	if cl.sleeper == nil {
		cl.sleeper = utils.WallClock
	}
	if cl.isChallenge == nil {
		cl.isChallenge = MarkerDetector(profile.ChallengeMarker)
	}
	if cl.logger == nil {
		cl.logger = utils.NewLogger()
	}
	return cl, nil
}

// PageURL returns the request URL for a page number.
func (c *Client) PageURL(page int) string {
	q := url.Values{}
	for k, v := range c.profile.Params {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(page))

	u := *c.endpoint
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch waits for the throttle delay, then performs exactly one request for
// page and decodes the payload.
func (c *Client) Fetch(ctx context.Context, page int) (*models.Page, error) {
	if err := utils.RandomSleep(ctx, c.sleeper, c.throttle); err != nil {
		return nil, err
	}

	collector := c.base.Clone()
	collector.Context = ctx
	extensions.RandomUserAgent(collector)

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range c.profile.Headers {
			r.Headers.Set(k, v)
		}
		c.logger.Debug("[naver] GET %s", r.URL.String())
	})

	var (
		status int
		body   []byte
		got    bool
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		got = true
	})

	if err := collector.Visit(c.PageURL(page)); err != nil {
		return nil, fmt.Errorf("naver: request page %d: %w", page, err)
	}
	if !got {
		return nil, fmt.Errorf("naver: request page %d: no response received", page)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, status)
	}
	if c.isChallenge(body) {
		return nil, ErrChallenge
	}

	return decodePage(body)
}

func decodePage(body []byte) (*models.Page, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p models.Page
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("naver: decode page: %w", err)
	}
	return &p, nil
}
