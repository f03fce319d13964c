package httputil

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout = 2 * time.Minute
	UserAgent      = "basinseries/1.0"
)

// NewClient returns an HTTP client for raster downloads. Rasters are larger
// than API payloads, so the timeout is generous.
func NewClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: userAgent{next: http.DefaultTransport},
	}
}

type userAgent struct {
	next http.RoundTripper
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return u.next.RoundTrip(req)
}
