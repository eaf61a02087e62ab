// Package taglib forwards requests to an origin and injects tracking
// snippets into HTML responses right before the closing head tag.
package taglib

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// #############################################################################
// # Core Injector
// #############################################################################

// Injector proxies one request at a time. It holds no per-request state and
// is safe for concurrent use.
type Injector struct {
	Client Doer
	// LogURLs logs every forwarded URL at debug level.
	LogURLs bool
}

// NewOriginClient returns a client that hands origin redirects back to the
// caller instead of following them.
func NewOriginClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewInjector creates an Injector using NewOriginClient(timeout).
func NewInjector(timeout time.Duration) *Injector {
	return &Injector{Client: NewOriginClient(timeout)}
}

// Handle forwards req to its origin and returns the response to send back.
// cfg is read only. HTML responses get the payload assembled from cfg
// inserted before the first </head>; anything else passes through with its
// body stream untouched. Origin transport errors are returned as is.
func (inj *Injector) Handle(req *http.Request, cfg InjectionConfig) (*Response, error) {
	if inj.LogURLs {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("forwarding request")
	}

	origin, err := Fetch(inj.Client, req)
	if err != nil {
		return nil, err
	}

	if req.Method == http.MethodHead || bodyless(origin.StatusCode) || !IsHTML(origin.Header) {
		return Passthrough(origin)
	}

	payload := Assemble(cfg)
	if payload.Empty() {
		return Passthrough(origin)
	}

	resp, err := Rewrite(origin, payload)
	if err != nil {
		return nil, err
	}
	if resp.State == StatePassthrough {
		log.Debug().Str("url", req.URL.String()).Msg("no </head> marker found, body left unchanged")
	}
	return resp, nil
}

// bodyless reports statuses that never carry a body.
func bodyless(code int) bool {
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}
