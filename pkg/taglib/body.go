package taglib

import (
	"errors"
	"fmt"
	"io"
)

// ErrBodyConsumed is returned when an origin body is read a second time.
var ErrBodyConsumed = errors.New("origin body already consumed")

// Body is the origin response body. It can be consumed exactly once, either
// handed over as a stream (Take) or materialized as text (Text).
type Body struct {
	rc       io.ReadCloser
	consumed bool
}

func newBody(rc io.ReadCloser) *Body {
	if rc == nil {
		rc = io.NopCloser(eofReader{})
	}
	return &Body{rc: rc}
}

// Take transfers ownership of the underlying stream to the caller, who must
// close it.
func (b *Body) Take() (io.ReadCloser, error) {
	if b.consumed {
		return nil, ErrBodyConsumed
	}
	b.consumed = true
	return b.rc, nil
}

// Text reads the whole stream, closes it and returns its contents.
func (b *Body) Text() (string, error) {
	rc, err := b.Take()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("error reading origin body: %w", err)
	}
	return string(data), nil
}

// Consumed reports whether the body has already been taken or read.
func (b *Body) Consumed() bool {
	return b.consumed
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
