package taglib

import (
	"io"
	"net/http"
	"strings"
)

// Marker is the literal text the payload is inserted in front of.
const Marker = "</head>"

// State is the terminal state of one handled request.
type State string

const (
	StatePassthrough State = "passthrough"
	StateRewritten   State = "rewritten"
)

// Response is what the caller sends back to the client. StatusCode,
// StatusText and Header are always the origin's.
type Response struct {
	StatusCode int
	StatusText string
	Header     http.Header
	// ContentLength is the body length in bytes, or -1 when unknown.
	ContentLength int64
	Body          io.ReadCloser
	State         State
}

// InjectBeforeHead inserts payload before the first occurrence of Marker.
// The second return value is false when the marker is missing, in which case
// body is returned as is.
func InjectBeforeHead(body, payload string) (string, bool) {
	i := strings.Index(body, Marker)
	if i < 0 {
		return body, false
	}

	var sb strings.Builder
	sb.Grow(len(body) + len(payload))
	sb.WriteString(body[:i])
	sb.WriteString(payload)
	sb.WriteString(body[i:])
	return sb.String(), true
}

// Rewrite consumes origin's body and returns a response carrying the
// injected text. origin's body cannot be read again afterwards.
func Rewrite(origin *OriginResponse, payload Payload) (*Response, error) {
	text, err := origin.Body.Text()
	if err != nil {
		return nil, err
	}

	state := StatePassthrough
	if !payload.Empty() {
		var found bool
		text, found = InjectBeforeHead(text, payload.String())
		if found {
			state = StateRewritten
		}
	}

	return &Response{
		StatusCode:    origin.StatusCode,
		StatusText:    origin.StatusText,
		Header:        origin.Header,
		ContentLength: int64(len(text)),
		Body:          io.NopCloser(strings.NewReader(text)),
		State:         state,
	}, nil
}

// Passthrough hands origin's body stream over untouched.
func Passthrough(origin *OriginResponse) (*Response, error) {
	rc, err := origin.Body.Take()
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:    origin.StatusCode,
		StatusText:    origin.StatusText,
		Header:        origin.Header,
		ContentLength: origin.ContentLength,
		Body:          rc,
		State:         StatePassthrough,
	}, nil
}
