// Package httpcache memoizes chat-completion responses. Completions are
// requested at temperature 0, so an identical request body under the same
// credentials is answered from memory.
package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

type Transport struct {
	base http.RoundTripper
	c    *Cache
	log  *zap.Logger
	now  func() time.Time

	keyHeaders []string
}

// NewTransport wraps base. A disabled config returns base unchanged.
func NewTransport(base http.RoundTripper, cfg Config, log *zap.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !cfg.Enabled {
		return base
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		base:       base,
		c:          New(cfg.TTL, cfg.MaxEntries),
		log:        log,
		now:        time.Now,
		keyHeaders: []string{"Authorization", "Accept"},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("httpcache: nil request")
	}
	if !strings.EqualFold(req.Method, http.MethodPost) && !strings.EqualFold(req.Method, http.MethodGet) {
		return t.base.RoundTrip(req)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	key := RequestKey(req, body, t.keyHeaders)

	if cached, ok := t.c.Get(key, t.now()); ok {
		t.log.Debug("completion served from cache",
			zap.String("url", req.URL.String()),
			zap.Int("hits", t.c.Stats().Hits),
		)
		return cachedResponse(req, cached), nil
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// Only successful completions are worth replaying.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		t.c.Put(key, Response{Status: resp.StatusCode, Header: resp.Header, Body: b, StoredAt: t.now()})
	}
	return responseWithBody(req, resp, b), nil
}

func responseWithBody(req *http.Request, resp *http.Response, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        cloneHeader(resp.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
	}
}

func cachedResponse(req *http.Request, cached Response) *http.Response {
	status := cached.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        cloneHeader(cached.Header),
		Body:          io.NopCloser(bytes.NewReader(cached.Body)),
		ContentLength: int64(len(cached.Body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
