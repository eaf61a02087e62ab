package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andesco/tagladder/pkg/taglib"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Request headers that belong to the client connection, not the origin.
// Accept-Encoding is dropped so the Go transport negotiates compression and
// hands back a decoded body.
var dropRequestHeaders = []string{"Accept-Encoding", "Connection", "Keep-Alive", "Proxy-Connection", "Te", "Upgrade"}

// Response framing headers are recomputed by the server for the body it
// actually sends.
var framingHeaders = map[string]bool{
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
}

// ProxySite is a Fiber handler that forwards every request to origin and
// injects the tracking payload built from cfg into HTML responses.
func ProxySite(origin *url.URL, inj *taglib.Injector, cfg taglib.InjectionConfig, m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		targetURL, err := originURL(origin, c.OriginalURL())
		if err != nil {
			log.Error().Err(err).Str("path", c.OriginalURL()).Msg("could not build origin URL")
			return c.Status(fiber.StatusBadRequest).SendString("Could not build origin URL")
		}

		req, err := toHTTPRequest(c, targetURL)
		if err != nil {
			log.Error().Err(err).Str("url", targetURL).Msg("could not build origin request")
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}

		resp, err := inj.Handle(req, cfg)
		if err != nil {
			m.ObserveError(time.Since(start))
			log.Error().Err(err).Str("url", targetURL).Msg("origin request failed")
			return c.Status(fiber.StatusBadGateway).SendString(err.Error())
		}
		m.Observe(resp.State, time.Since(start))

		c.Status(resp.StatusCode)
		c.Context().Response.Header.SetStatusMessage([]byte(resp.StatusText))
		c.Context().Response.Header.SetNoDefaultContentType(true)
		head := c.Method() == fiber.MethodHead
		for key, values := range resp.Header {
			canonical := http.CanonicalHeaderKey(key)
			// a HEAD response has no body to size, so the origin's length stands
			if framingHeaders[canonical] && !(head && canonical == fiber.HeaderContentLength) {
				continue
			}
			for _, value := range values {
				c.Response().Header.Add(key, value)
			}
		}

		if head {
			resp.Body.Close()
			c.Context().Response.SkipBody = true
			return nil
		}
		return c.SendStream(resp.Body, int(resp.ContentLength))
	}
}

// originURL joins the origin base with the raw request URI, so the path and
// query reach the origin exactly as the client sent them.
// eg: origin https://site.com, /movies?page=2 -> https://site.com/movies?page=2
func originURL(origin *url.URL, requestURI string) (string, error) {
	if origin == nil || origin.Scheme == "" || origin.Host == "" {
		return "", fmt.Errorf("origin URL must be absolute, got '%v'", origin)
	}
	if !strings.HasPrefix(requestURI, "/") {
		requestURI = "/" + requestURI
	}

	base := strings.TrimRight(origin.String(), "/")
	full, err := url.Parse(base + requestURI)
	if err != nil {
		return "", fmt.Errorf("error parsing request URI '%s': %w", requestURI, err)
	}
	return full.String(), nil
}

// toHTTPRequest converts the Fiber request into a net/http request for
// targetURL. Body bytes are copied since fasthttp reuses its buffers.
func toHTTPRequest(c *fiber.Ctx, targetURL string) (*http.Request, error) {
	body := bytes.Clone(c.Body())
	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating origin request: %w", err)
	}

	c.Request().Header.VisitAll(func(key, value []byte) {
		req.Header.Add(string(key), string(value))
	})
	for _, h := range dropRequestHeaders {
		req.Header.Del(h)
	}
	req.Header.Del("Host")
	req.ContentLength = int64(len(body))
	if len(body) == 0 {
		req.Body = http.NoBody
	}

	return req, nil
}
