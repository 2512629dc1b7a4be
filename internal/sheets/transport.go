package sheets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const maxResponseBytes = 16 << 20

// Request is a transport-neutral description of one endpoint call.
// Body is nil for GET calls.
type Request struct {
	Method string
	URL    string
	Body   []byte
}

// Response is the shape every transport hands back. Opaque responses carry no
// status or body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Opaque     bool
}

type Transport interface {
	Strategy() Strategy
	Do(ctx context.Context, req Request) (*Response, error)
}

var callbackSeq atomic.Uint64

// uniqueName returns a process-unique identifier for callbacks and frames.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), callbackSeq.Add(1))
}

func newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func corsAllowed(header http.Header, origin string) bool {
	allowed := strings.TrimSpace(header.Get("Access-Control-Allow-Origin"))
	return allowed == "*" || (allowed != "" && allowed == origin)
}

// corsTransport is a cross-origin request that only succeeds when the target
// grants the caller's origin.
type corsTransport struct {
	client  *http.Client
	origin  string
	noCache bool
}

func (t *corsTransport) Strategy() Strategy {
	if t.noCache {
		return StrategyNoCache
	}
	return StrategyDirect
}

func (t *corsTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if t.noCache {
		busted, err := withQuery(req.URL, "_", strconv.FormatInt(time.Now().UnixNano(), 10))
		if err != nil {
			return nil, err
		}
		req.URL = busted
	}

	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Origin", t.origin)
	if t.noCache {
		httpReq.Header.Set("Cache-Control", "no-cache, no-store")
		httpReq.Header.Set("Pragma", "no-cache")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	out, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if !corsAllowed(out.Header, t.origin) {
		return nil, ErrCORSBlocked
	}
	return out, nil
}

// proxyTransport relays the request through a public CORS relay that takes the
// escaped target URL appended to its prefix.
type proxyTransport struct {
	inner  *corsTransport
	prefix string
}

func (t *proxyTransport) Strategy() Strategy {
	return StrategyProxy
}

func (t *proxyTransport) Do(ctx context.Context, req Request) (*Response, error) {
	req.URL = t.prefix + url.QueryEscape(req.URL)
	return t.inner.Do(ctx, req)
}

// noCORSTransport fires the request and throws the response away, the way an
// opaque browser fetch does. Only network-level failures are reported.
type noCORSTransport struct {
	client *http.Client
}

func (t *noCORSTransport) Strategy() Strategy {
	return StrategyNoCORS
}

func (t *noCORSTransport) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	return &Response{Opaque: true}, nil
}

func withQuery(rawURL string, key string, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
