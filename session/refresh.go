// Package session renews the Naver Land cookie set by driving a real
// headless browser through the landing page.
package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"naver-estate/utils"
)

const (
	DefaultLandingURL = "https://m.land.naver.com/"
	cookieDomain      = "naver.com"
	mobileUserAgent   = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
)

// Refresher visits the landing page in headless Chrome and returns the
// cookies the site issued to the browser.
type Refresher struct {
	chromeBin  string
	landingURL string
	settle     time.Duration
	logger     *utils.Logger
}

func NewRefresher(chromeBin string, logger *utils.Logger) *Refresher {
	return &Refresher{
		chromeBin:  chromeBin,
		landingURL: DefaultLandingURL,
		settle:     5 * time.Second,
		logger:     logger,
	}
}

// Harvest returns the name/value pairs of every naver.com cookie present
// after the landing page has settled.
func (r *Refresher) Harvest(ctx context.Context) (map[string]string, error) {
	chromeBin := r.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	r.logger.Info("[session] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(mobileUserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, r.settle+60*time.Second)
	defer cancelRun()

	var cookies []*network.Cookie
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(r.landingURL),
		chromedp.Sleep(r.settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("session: browse %s: %w", r.landingURL, err)
	}

	jar := cookieMap(cookies)
	if len(jar) == 0 {
		return nil, fmt.Errorf("session: no %s cookies issued by %s", cookieDomain, r.landingURL)
	}
	r.logger.Info("[session] Harvested %d cookies", len(jar))
	return jar, nil
}

// cookieMap keeps naver.com cookies only. A later duplicate name wins.
func cookieMap(cookies []*network.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		if !strings.HasSuffix(strings.TrimPrefix(c.Domain, "."), cookieDomain) {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
