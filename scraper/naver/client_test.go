package naver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"naver-estate/config"
	"naver-estate/models"
	"naver-estate/utils"
)

var (
	throttle = utils.DelayRange{Min: 3 * time.Second, Max: 5 * time.Second}
	backoff  = utils.DelayRange{Min: 5 * time.Second, Max: 10 * time.Second}
)

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithOptions(utils.LoggerOptions{Writer: io.Discard})
}

type fakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func testProfile(endpoint string) *config.Profile {
	return &config.Profile{
		Endpoint: endpoint,
		Params: map[string]string{
			"cortarNo": "1120000000",
			"tradTpCd": "B2",
			"z":        "13",
		},
		Cookies: map[string]string{
			"NNB":  "TESTNNB",
			"ASID": "TESTASID",
		},
		Headers: map[string]string{
			"accept":           "application/json, text/javascript, */*; q=0.01",
			"referer":          "https://m.land.naver.com/",
			"x-requested-with": "XMLHttpRequest",
		},
		ChallengeMarker: DefaultChallengeMarker,
		RegionField:     "cortarNo",
		Columns:         []string{"atclNo", "region"},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, sl *fakeSleeper) *Client {
	t.Helper()
	c, err := NewClient(testProfile(srv.URL+"/cluster/ajax/articleList"), ClientOptions{
		Throttle: throttle,
		Sleeper:  sl,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClientSendsProfileRequest(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		fmt.Fprint(w, `{"code":"success","more":true,"body":[{"atclNo":"2401","prc":500,"lat":37.55}]}`)
	}))
	defer srv.Close()

	sl := &fakeSleeper{}
	page, err := newTestClient(t, srv, sl).Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if got.URL.Path != "/cluster/ajax/articleList" {
		t.Errorf("path: got %q", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("page") != "2" || q.Get("cortarNo") != "1120000000" || q.Get("tradTpCd") != "B2" {
		t.Errorf("query: got %v", q)
	}
	if c, err := got.Cookie("NNB"); err != nil || c.Value != "TESTNNB" {
		t.Errorf("NNB cookie: got %v, %v", c, err)
	}
	if got.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		t.Errorf("x-requested-with: got %q", got.Header.Get("X-Requested-With"))
	}
	if ua := got.Header.Get("User-Agent"); ua == "" || strings.Contains(ua, "colly") {
		t.Errorf("user-agent should be a randomized browser UA, got %q", ua)
	}

	if !page.More || len(page.Body) != 1 {
		t.Fatalf("page: got %+v", page)
	}
	if page.Body[0].String("prc") != "500" || page.Body[0].String("lat") != "37.55" {
		t.Errorf("numbers should keep their text: prc=%q lat=%q",
			page.Body[0].String("prc"), page.Body[0].String("lat"))
	}

	if len(sl.calls) != 1 || !throttle.Contains(sl.calls[0]) {
		t.Errorf("throttle sleeps: got %v, want one within %v..%v", sl.calls, throttle.Min, throttle.Max)
	}
}

func TestClientRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"body":[{"atclNo":"1"}],"more":false}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, &fakeSleeper{}).Fetch(context.Background(), 1)
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("err: got %v, want ErrBadStatus", err)
	}
}

func TestClientDetectsChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>비정상적인 접근이 감지되었습니다.</body></html>")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, &fakeSleeper{}).Fetch(context.Background(), 1)
	if !errors.Is(err, ErrChallenge) {
		t.Errorf("err: got %v, want ErrChallenge", err)
	}
}

func TestClientRejectsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"body": [`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, &fakeSleeper{}).Fetch(context.Background(), 1)
	if err == nil || errors.Is(err, ErrChallenge) || errors.Is(err, ErrBadStatus) {
		t.Errorf("err: got %v, want decode error", err)
	}
}

func TestClientCustomChallengeDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"blocked","body":[]}`)
	}))
	defer srv.Close()

	c, err := NewClient(testProfile(srv.URL), ClientOptions{
		Sleeper: &fakeSleeper{},
		Logger:  quietLogger(),
		Challenge: func(body []byte) bool {
			return strings.Contains(string(body), `"code":"blocked"`)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Fetch(context.Background(), 1); !errors.Is(err, ErrChallenge) {
		t.Errorf("err: got %v, want ErrChallenge", err)
	}
}

func TestMarkerDetector(t *testing.T) {
	detect := MarkerDetector("")
	if !detect([]byte("... 비정상적인 접근 ...")) {
		t.Error("default marker not detected")
	}
	if detect([]byte(`{"body":[],"more":false}`)) {
		t.Error("plain JSON flagged as challenge")
	}
}

func TestDecodeEmptyPage(t *testing.T) {
	p, err := decodePage([]byte(`{"code":"success","more":false,"body":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Empty() {
		t.Error("page with empty body should be Empty")
	}

	var nilPage *models.Page
	if !nilPage.Empty() {
		t.Error("nil page should be Empty")
	}
}
