package handlers

import (
	"net/url"

	"github.com/andesco/tagladder/pkg/taglib"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOptions wires the proxy routes.
type ServerOptions struct {
	Origin   *url.URL
	Injector *taglib.Injector
	Config   taglib.InjectionConfig

	// ExposeSnippets enables GET /snippets.
	ExposeSnippets bool
	// Search, when set, serves GET /api/stats instead of forwarding it.
	Search DocumentCounter
	// Registry receives the proxy metrics, served at /metrics. Nil disables both.
	Registry *prometheus.Registry
}

// NewServer builds the Fiber app. Every path not claimed by a local route is
// forwarded to the origin.
func NewServer(opts ServerOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	var m *Metrics
	if opts.Registry != nil {
		m = NewMetrics(opts.Registry)
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	app.Get("/snippets", Snippets(opts.Config, opts.ExposeSnippets))

	if opts.Search != nil {
		app.Get("/api/stats", Stats(opts.Search))
	}

	app.All("/*", ProxySite(opts.Origin, opts.Injector, opts.Config, m))
	return app
}
