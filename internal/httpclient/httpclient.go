package httpclient

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration

	// Logger, when set, receives one debug record per outbound request.
	Logger *slog.Logger
}

func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		// Image generation can hold the response headers for a long time.
		ResponseHeaderTimeout: 150 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = transport
	if opts.Logger != nil {
		rt = &loggingTransport{next: transport, logger: opts.Logger}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// RoundTrip logs host and a redacted path. Query strings are dropped and the
// Bot API token segment is masked.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	path := redactPath(req.URL.Path)
	attrs := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", path,
		"dur_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		msg := strings.ReplaceAll(err.Error(), req.URL.Path, path)
		t.logger.Debug("outbound request failed", append(attrs, "err", msg)...)
		return nil, err
	}
	t.logger.Debug("outbound request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}

// redactPath masks the /bot<token> segment used by the Telegram Bot API.
func redactPath(path string) string {
	for _, prefix := range []string{"/bot", "/file/bot"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return prefix + "<redacted>" + rest[i:]
		}
		return prefix + "<redacted>"
	}
	return path
}
