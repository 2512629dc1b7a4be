package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const maxXHRRedirects = 5

// xhrTransport builds each request by hand and sends it straight through an
// http.RoundTripper, skipping http.Client. Redirects are followed manually;
// 301, 302 and 303 downgrade to GET without a body.
type xhrTransport struct {
	roundTripper http.RoundTripper
}

func (t *xhrTransport) Strategy() Strategy {
	return StrategyXHR
}

func (t *xhrTransport) Do(ctx context.Context, req Request) (*Response, error) {
	current := req
	for hop := 0; hop <= maxXHRRedirects; hop++ {
		httpReq, err := newHTTPRequest(ctx, current)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")

		resp, err := t.roundTripper.RoundTrip(httpReq)
		if err != nil {
			return nil, err
		}
		out, err := readResponse(resp)
		if err != nil {
			return nil, err
		}

		switch out.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		default:
			return out, nil
		}

		location := out.Header.Get("Location")
		if location == "" {
			return out, nil
		}
		next, err := resolveLocation(current.URL, location)
		if err != nil {
			return nil, err
		}
		current.URL = next
		if out.StatusCode != http.StatusTemporaryRedirect && out.StatusCode != http.StatusPermanentRedirect {
			current.Method = http.MethodGet
			current.Body = nil
		}
	}
	return nil, fmt.Errorf("xhr: stopped after %d redirects", maxXHRRedirects)
}

func resolveLocation(base string, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
