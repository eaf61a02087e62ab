package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/andesco/tagladder/pkg/taglib"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>T</title></head><body><h1>Movies</h1></body></html>`

var testConfig = taglib.InjectionConfig{
	taglib.ServiceLytics: "lytics-id",
	taglib.ServiceGtag:   "G-TEST",
}

type origin struct {
	srv      *httptest.Server
	lastPath string
	lastBody string
	lastHdr  http.Header
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		o.lastPath = r.URL.RequestURI()
		o.lastBody = string(body)
		o.lastHdr = r.Header.Clone()

		switch {
		case strings.HasPrefix(r.URL.Path, "/api/"):
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"ok":true,"head":"</head>"}`)
		case r.URL.Path == "/old":
			http.Redirect(w, r, "/new", http.StatusFound)
		case r.URL.Path == "/missing":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, page)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("X-Powered-By", "origin")
			w.Header().Set("Content-Length", strconv.Itoa(len(page)))
			io.WriteString(w, page)
		}
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func newApp(t *testing.T, o *origin, reg *prometheus.Registry) *fiber.App {
	t.Helper()
	u, err := url.Parse(o.srv.URL)
	require.NoError(t, err)

	return NewServer(ServerOptions{
		Origin:         u,
		Injector:       taglib.NewInjector(5*time.Second),
		Config:         testConfig,
		ExposeSnippets: true,
		Registry:       reg,
	})
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestProxySite_RewritesHTML(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/movies?page=2&q=a%20b", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/movies?page=2&q=a%20b", o.lastPath)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "origin", resp.Header.Get("X-Powered-By"))

	want := strings.Replace(page, "</head>", taglib.Assemble(testConfig).String()+"</head>", 1)
	assert.Equal(t, want, body)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Find("head script").Length())
	assert.Equal(t, "Movies", doc.Find("body h1").Text())
}

func TestProxySite_PassesThroughJSON(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/movies", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"ok":true,"head":"</head>"}`, body)
}

func TestProxySite_KeepsStatus(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "404 Not Found", resp.Status)
	assert.Contains(t, body, "G-TEST")
}

func TestProxySite_PassesRedirectsThrough(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, nil)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/old", nil))

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/new", resp.Header.Get("Location"))
	assert.Equal(t, "/old", o.lastPath)
}

func TestProxySite_Head(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodHead, "/movies", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(len(page)), resp.ContentLength)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "origin", resp.Header.Get("X-Powered-By"))
	assert.Empty(t, body)
}

type stubDoer struct{ resp *http.Response }

func (d stubDoer) Do(*http.Request) (*http.Response, error) { return d.resp, nil }

func TestProxySite_CustomReasonPhrase(t *testing.T) {
	inj := &taglib.Injector{Client: stubDoer{resp: &http.Response{
		StatusCode:    299,
		Status:        "299 Custom Thing",
		Header:        http.Header{"Content-Type": {"text/html"}},
		ContentLength: int64(len(page)),
		Body:          io.NopCloser(strings.NewReader(page)),
	}}}
	u, err := url.Parse("http://origin.invalid")
	require.NoError(t, err)

	app := fiber.New()
	app.All("/*", ProxySite(u, inj, testConfig, nil))

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 299, resp.StatusCode)
	assert.Equal(t, "299 Custom Thing", resp.Status)
	assert.Contains(t, body, "G-TEST")
}

func TestProxySite_ForwardsMethodHeadersAndBody(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"q":"alien"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client", "test")
	req.Header.Set("Accept-Encoding", "br")
	resp, _ := do(t, app, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"q":"alien"}`, o.lastBody)
	assert.Equal(t, "test", o.lastHdr.Get("X-Client"))
	assert.NotEqual(t, "br", o.lastHdr.Get("Accept-Encoding"))
}

func TestProxySite_OriginDown(t *testing.T) {
	o := newOrigin(t)
	reg := prometheus.NewRegistry()
	app := newApp(t, o, reg)
	o.srv.Close()

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "error fetching origin")
}

func TestProxySite_Metrics(t *testing.T) {
	o := newOrigin(t)
	reg := prometheus.NewRegistry()
	u, err := url.Parse(o.srv.URL)
	require.NoError(t, err)
	m := NewMetrics(reg)

	app := fiber.New()
	app.All("/*", ProxySite(u, taglib.NewInjector(time.Second), testConfig, m))

	do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/y", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.responsesTotal.WithLabelValues(string(taglib.StateRewritten))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.responsesTotal.WithLabelValues(string(taglib.StatePassthrough))))
}

func TestMetricsEndpoint(t *testing.T) {
	o := newOrigin(t)
	app := newApp(t, o, prometheus.NewRegistry())

	do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `tagladder_proxy_responses_total{outcome="rewritten"} 1`)
}

func TestOriginURL(t *testing.T) {
	base, err := url.Parse("https://movies.example.com/")
	require.NoError(t, err)

	got, err := originURL(base, "/fr/search?q=%C3%A9t%C3%A9")
	require.NoError(t, err)
	assert.Equal(t, "https://movies.example.com/fr/search?q=%C3%A9t%C3%A9", got)

	got, err = originURL(base, "")
	require.NoError(t, err)
	assert.Equal(t, "https://movies.example.com/", got)

	_, err = originURL(&url.URL{Path: "/relative"}, "/x")
	assert.Error(t, err)
}

func TestSnippets(t *testing.T) {
	t.Run("exposed", func(t *testing.T) {
		app := fiber.New()
		app.Get("/snippets", Snippets(taglib.InjectionConfig{taglib.ServiceGtag: "G-1"}, true))

		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/snippets", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/x-yaml", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "order:\n    - lytics\n    - gtag\n")
		assert.Contains(t, body, "service: gtag")
		assert.Contains(t, body, "id: G-1")
		assert.NotContains(t, body, "service: lytics")
	})

	t.Run("disabled", func(t *testing.T) {
		app := fiber.New()
		app.Get("/snippets", Snippets(testConfig, false))

		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/snippets", nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Snippets Disabled", body)
	})
}

type fakeCounter struct {
	n   int64
	err error
}

func (f fakeCounter) Stats(context.Context) (int64, error) { return f.n, f.err }

func TestStats(t *testing.T) {
	t.Run("documents", func(t *testing.T) {
		app := fiber.New()
		app.Get("/api/stats", Stats(fakeCounter{n: 31944}))

		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"result":31944}`, body)
	})

	t.Run("upstream failure", func(t *testing.T) {
		app := fiber.New()
		app.Get("/api/stats", Stats(fakeCounter{err: errors.New("meilisearch down")}))

		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.JSONEq(t, `{"error":"meilisearch down"}`, body)
	})
}
