package sheets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// FrameTimeout bounds the transports that wait on a callback or a message.
const FrameTimeout = 30 * time.Second

// jsonpTransport loads the endpoint as a script with a uniquely named
// callback. The endpoint must answer with `<callback>(<json>)`. A script tag
// has no request body, so payload-carrying calls are refused up front.
type jsonpTransport struct {
	client  *http.Client
	timeout time.Duration
}

func (t *jsonpTransport) Strategy() Strategy {
	return StrategyJSONP
}

func (t *jsonpTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if len(req.Body) > 0 {
		return nil, ErrJSONPBody
	}

	callback := uniqueName("bizdash_jsonp")
	target, err := withQuery(req.URL, "callback", callback)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/javascript, */*")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("jsonp callback %s not invoked within %s", callback, t.timeout)
		}
		return nil, err
	}
	out, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if out.StatusCode < 200 || out.StatusCode > 299 {
		return nil, fmt.Errorf("jsonp script failed to load (HTTP %d)", out.StatusCode)
	}

	payload, ok := unwrapCallback(out.Body, callback)
	if !ok {
		return nil, fmt.Errorf("jsonp response did not invoke callback %s", callback)
	}
	return &Response{StatusCode: out.StatusCode, Header: out.Header, Body: payload}, nil
}

// unwrapCallback extracts the argument of `name(...)`, tolerating a trailing
// semicolon and surrounding whitespace.
func unwrapCallback(body []byte, name string) ([]byte, bool) {
	trimmed := bytes.TrimSpace(body)
	trimmed = bytes.TrimSuffix(trimmed, []byte(";"))
	trimmed = bytes.TrimSpace(trimmed)
	prefix := []byte(name + "(")
	if !bytes.HasPrefix(trimmed, prefix) || !bytes.HasSuffix(trimmed, []byte(")")) {
		return nil, false
	}
	return bytes.TrimSpace(trimmed[len(prefix) : len(trimmed)-1]), true
}
