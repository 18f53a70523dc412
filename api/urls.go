package api

import (
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
)

func exportURL(name string) string {
	return fmt.Sprintf("/exports/%s", url.PathEscape(name))
}

func qrURL(name string) string {
	return fmt.Sprintf("/exports/%s/qr", url.PathEscape(name))
}

// absoluteURL resolves path against the host the request came in on, so a
// phone scanning the QR code reaches the booth.
func absoluteURL(c *gin.Context, path string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, path)
}
