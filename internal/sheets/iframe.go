package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// frameMessage is what the target page posts back to its parent window.
type frameMessage struct {
	IframeID string          `json:"iframeId"`
	Data     json.RawMessage `json:"data"`
}

// iframeTransport submits a hidden form and waits for the target page to post
// a message tagged with the frame's id. Requests with a payload are POSTed as
// a form field, the rest are plain GET navigations.
type iframeTransport struct {
	client  *http.Client
	timeout time.Duration
}

func (t *iframeTransport) Strategy() Strategy {
	return StrategyIframe
}

func (t *iframeTransport) Do(ctx context.Context, req Request) (*Response, error) {
	frameID := uniqueName("bizdash_iframe")

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var (
		httpReq *http.Request
		err     error
	)
	if len(req.Body) > 0 {
		form := url.Values{}
		form.Set("iframeId", frameID)
		form.Set("payload", string(req.Body))
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(form.Encode()))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		target, qerr := withQuery(req.URL, "iframeId", frameID)
		if qerr != nil {
			return nil, qerr
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/html")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("frame %s: %w within %s", frameID, ErrNoMessage, t.timeout)
		}
		return nil, err
	}
	out, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	data, ok := findFrameMessage(out.Body, frameID)
	if !ok {
		return nil, fmt.Errorf("frame %s: %w", frameID, ErrNoMessage)
	}
	return &Response{StatusCode: http.StatusOK, Header: out.Header, Body: data}, nil
}

// findFrameMessage scans a page for postMessage(<json>, ...) calls and
// returns the data of the first message tagged with frameID. Messages for
// other frames are ignored.
func findFrameMessage(page []byte, frameID string) (json.RawMessage, bool) {
	marker := []byte("postMessage(")
	rest := page
	for {
		idx := bytes.Index(rest, marker)
		if idx < 0 {
			return nil, false
		}
		rest = rest[idx+len(marker):]

		var msg frameMessage
		if err := json.NewDecoder(bytes.NewReader(rest)).Decode(&msg); err != nil {
			continue
		}
		if msg.IframeID == frameID && len(msg.Data) > 0 {
			return msg.Data, true
		}
	}
}
