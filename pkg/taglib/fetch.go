package taglib

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OriginResponse is the unmodified result of forwarding a request.
type OriginResponse struct {
	StatusCode    int
	StatusText    string
	Header        http.Header
	ContentLength int64
	Body          *Body
}

// Fetch forwards req to its own URL and returns the origin's response.
// req is cloned before sending and is never modified.
func Fetch(client Doer, req *http.Request) (*OriginResponse, error) {
	out := req.Clone(req.Context())
	out.RequestURI = ""

	resp, err := client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("error fetching origin %s: %w", req.URL.Redacted(), err)
	}

	return &OriginResponse{
		StatusCode:    resp.StatusCode,
		StatusText:    statusText(resp),
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Body:          newBody(resp.Body),
	}, nil
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	text := strings.TrimPrefix(resp.Status, code)
	if text == resp.Status && resp.Status != "" {
		return resp.Status
	}
	return strings.TrimPrefix(text, " ")
}
