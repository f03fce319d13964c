package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/basinseries/internal/httputil"
	"github.com/lox/basinseries/internal/metrics"
)

// Fetcher reads a file relative to a collection's root.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Location identifies the root, for cache keys and logs.
	Location() string
}

func observe(scheme string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.FetchesTotal.WithLabelValues(scheme, status).Inc()
	metrics.FetchLatency.WithLabelValues(scheme).Observe(time.Since(start).Seconds())
}

func retryPolicy(ctx context.Context, maxElapsed time.Duration) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return backoff.WithContext(bo, ctx)
}

// Dir reads from the local filesystem.
type Dir struct {
	Root string
}

func (d *Dir) Location() string {
	return "file://" + d.Root
}

func (d *Dir) Fetch(_ context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(name)))
	observe("file", start, err)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// HTTP downloads from a base URL, retrying rate limits and server errors.
type HTTP struct {
	Base       *url.URL
	Client     *http.Client
	MaxElapsed time.Duration
}

func NewHTTP(base *url.URL) *HTTP {
	return &HTTP{Base: base, Client: httputil.NewClient(), MaxElapsed: 2 * time.Minute}
}

func (h *HTTP) Location() string {
	return h.Base.String()
}

func (h *HTTP) Fetch(ctx context.Context, name string) ([]byte, error) {
	u := *h.Base
	u.Path = path.Join(h.Base.Path, name)
	target := u.String()

	start := time.Now()
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := h.Client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", name, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", name, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	err := backoff.Retry(operation, retryPolicy(ctx, h.MaxElapsed))
	observe(h.Base.Scheme, start, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FTP downloads over FTP, one connection per file.
type FTP struct {
	Addr       string // host:port
	User       string
	Password   string
	Root       string
	Timeout    time.Duration
	MaxElapsed time.Duration
}

func NewFTP(u *url.URL) *FTP {
	addr := u.Host
	if u.Port() == "" {
		addr += ":21"
	}
	f := &FTP{
		Addr:       addr,
		User:       "anonymous",
		Password:   "anonymous",
		Root:       u.Path,
		Timeout:    30 * time.Second,
		MaxElapsed: 2 * time.Minute,
	}
	if u.User != nil {
		f.User = u.User.Username()
		if p, ok := u.User.Password(); ok {
			f.Password = p
		}
	}
	return f
}

func (f *FTP) Location() string {
	return "ftp://" + f.Addr + f.Root
}

func (f *FTP) Fetch(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	var body []byte
	operation := func() error {
		conn, err := ftp.Dial(f.Addr, ftp.DialWithTimeout(f.Timeout), ftp.DialWithContext(ctx))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		defer conn.Quit()

		if err := conn.Login(f.User, f.Password); err != nil {
			return backoff.Permanent(fmt.Errorf("ftp login: %w", err))
		}

		resp, err := conn.Retr(path.Join(f.Root, name))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("ftp retr %s: %w", name, err))
		}
		defer resp.Close()

		body, err = io.ReadAll(resp)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		return nil
	}

	err := backoff.Retry(operation, retryPolicy(ctx, f.MaxElapsed))
	observe("ftp", start, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}
