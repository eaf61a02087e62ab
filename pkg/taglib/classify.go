package taglib

import (
	"net/http"
	"strings"
)

const htmlMediaType = "text/html"

// IsHTML reports whether the declared content type contains text/html.
// Parameters such as charset are tolerated by the containment check.
func IsHTML(header http.Header) bool {
	contentType := header.Get("Content-Type")
	return contentType != "" && strings.Contains(contentType, htmlMediaType)
}
