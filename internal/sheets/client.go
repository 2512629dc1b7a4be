package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"bizdash/backend/internal/domain"
)

type Config struct {
	TransactionsURL string
	CustomersURL    string
	InventoryURL    string
	Strategy        Strategy
	// ProxyPrefix is prepended to the escaped target URL by the proxy strategy.
	ProxyPrefix string
	// Origin is presented by the strategies that are subject to CORS checks.
	Origin       string
	FrameTimeout time.Duration
	HTTPClient   *http.Client
	RoundTripper http.RoundTripper
}

// Client is constructed once per process and shared by reference. The active
// strategy is read at the start of every call, so switching it never affects
// calls already in flight.
type Client struct {
	mu         sync.RWMutex
	strategy   Strategy
	urls       map[Group]string
	transports map[Strategy]Transport
	log        *Log
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	roundTripper := cfg.RoundTripper
	if roundTripper == nil {
		roundTripper = http.DefaultTransport
	}
	origin := cfg.Origin
	if origin == "" {
		origin = "http://localhost"
	}
	proxyPrefix := cfg.ProxyPrefix
	if proxyPrefix == "" {
		proxyPrefix = "https://corsproxy.io/?"
	}
	frameTimeout := cfg.FrameTimeout
	if frameTimeout <= 0 {
		frameTimeout = FrameTimeout
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyDirect
	}

	direct := &corsTransport{client: httpClient, origin: origin}
	transports := map[Strategy]Transport{
		StrategyDirect:  direct,
		StrategyProxy:   &proxyTransport{inner: direct, prefix: proxyPrefix},
		StrategyNoCORS:  &noCORSTransport{client: httpClient},
		StrategyNoCache: &corsTransport{client: httpClient, origin: origin, noCache: true},
		StrategyJSONP:   &jsonpTransport{client: httpClient, timeout: frameTimeout},
		StrategyIframe:  &iframeTransport{client: httpClient, timeout: frameTimeout},
		StrategyXHR:     &xhrTransport{roundTripper: roundTripper},
	}

	c := &Client{
		urls: map[Group]string{
			GroupTransactions: cfg.TransactionsURL,
			GroupCustomers:    cfg.CustomersURL,
			GroupInventory:    cfg.InventoryURL,
		},
		transports: transports,
		log:        NewLog(),
	}
	if _, ok := transports[strategy]; !ok {
		log.Printf("[sheets] unknown transport %q, using %s", strategy, StrategyDirect)
		strategy = StrategyDirect
	}
	c.strategy = strategy
	return c
}

func (c *Client) SetTransport(strategy Strategy) error {
	if _, ok := c.transports[strategy]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransport, strategy)
	}
	c.mu.Lock()
	previous := c.strategy
	c.strategy = strategy
	c.mu.Unlock()
	c.log.Add("set transport", domain.OutcomeInfo, fmt.Sprintf("%s -> %s", previous, strategy))
	return nil
}

func (c *Client) Transport() Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy
}

func (c *Client) URL(group Group) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.urls[group]
}

func (c *Client) Log() *Log {
	return c.log
}

func (c *Client) Test(ctx context.Context, group Group) (string, error) {
	env, err := c.call(ctx, group, ActionTest, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) ExportTransactions(ctx context.Context, items []domain.Transaction) (string, error) {
	return c.push(ctx, GroupTransactions, ActionExport, transactionsPayload{Transactions: nonNil(items)})
}

func (c *Client) SyncTransactions(ctx context.Context, items []domain.Transaction) (string, error) {
	return c.push(ctx, GroupTransactions, ActionSync, transactionsPayload{Transactions: nonNil(items)})
}

func (c *Client) ImportTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var items []domain.Transaction
	if err := c.pull(ctx, GroupTransactions, &items); err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func (c *Client) ExportCustomers(ctx context.Context, items []domain.Customer) (string, error) {
	return c.push(ctx, GroupCustomers, ActionExport, customersPayload{Customers: nonNil(items)})
}

func (c *Client) SyncCustomers(ctx context.Context, items []domain.Customer) (string, error) {
	return c.push(ctx, GroupCustomers, ActionSync, customersPayload{Customers: nonNil(items)})
}

func (c *Client) ImportCustomers(ctx context.Context) ([]domain.Customer, error) {
	var items []domain.Customer
	if err := c.pull(ctx, GroupCustomers, &items); err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func (c *Client) ExportInventory(ctx context.Context, inv Inventory) (string, error) {
	return c.push(ctx, GroupInventory, ActionExport, normalizeInventory(inv))
}

func (c *Client) SyncInventory(ctx context.Context, inv Inventory) (string, error) {
	return c.push(ctx, GroupInventory, ActionSync, normalizeInventory(inv))
}

func (c *Client) ImportInventory(ctx context.Context) (Inventory, error) {
	var inv Inventory
	if err := c.pull(ctx, GroupInventory, &inv); err != nil {
		return Inventory{}, err
	}
	return normalizeInventory(inv), nil
}

func (c *Client) push(ctx context.Context, group Group, action Action, payload any) (string, error) {
	env, err := c.call(ctx, group, action, payload)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) pull(ctx context.Context, group Group, dest any) error {
	env, err := c.call(ctx, group, ActionImport, nil)
	if err != nil {
		return err
	}
	op := opName(ActionImport, group)
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		c.log.Add(op, domain.OutcomeError, fmt.Sprintf("decode data: %v", err))
		return &Error{Op: op, Strategy: env.strategy, Message: "malformed data payload", Err: err}
	}
	return nil
}

type result struct {
	envelope
	strategy Strategy
}

// call performs one logical operation and normalizes every failure mode
// (transport error, non-2xx status, success=false, unreadable body) into *Error.
// Every attempt leaves a log entry whatever its outcome.
func (c *Client) call(ctx context.Context, group Group, act Action, payload any) (*result, error) {
	c.mu.RLock()
	strategy := c.strategy
	endpoint := c.urls[group]
	c.mu.RUnlock()
	transport := c.transports[strategy]
	op := opName(act, group)

	fail := func(e *Error) (*result, error) {
		e.Op = op
		e.Strategy = strategy
		c.log.Add(op, domain.OutcomeError, fmt.Sprintf("[%s] %s", strategy, e.Error()))
		log.Printf("[sheets] %v", e)
		return nil, e
	}

	if endpoint == "" {
		return fail(&Error{Err: fmt.Errorf("%w %s", ErrNoEndpoint, group)})
	}
	target, err := withQuery(endpoint, "action", string(act))
	if err != nil {
		return fail(&Error{Err: err})
	}

	req := Request{Method: http.MethodGet, URL: target}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fail(&Error{Err: fmt.Errorf("encode payload: %w", err)})
		}
		req.Method = http.MethodPost
		req.Body = body
	}

	startedAt := time.Now()
	resp, err := transport.Do(ctx, req)
	if err != nil {
		return fail(&Error{Err: err})
	}

	if resp.Opaque {
		if act == ActionImport {
			return fail(&Error{Err: ErrOpaqueResponse})
		}
		c.log.Add(op, domain.OutcomeSuccess, fmt.Sprintf("[%s] %s %s dispatched, opaque response assumed delivered (%s)", strategy, req.Method, endpoint, time.Since(startedAt).Round(time.Millisecond)))
		return &result{envelope: envelope{Success: true, Message: "request sent"}, strategy: strategy}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(&Error{StatusCode: resp.StatusCode, Message: snippet(resp.Body)})
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fail(&Error{StatusCode: resp.StatusCode, Message: "unreadable response: " + snippet(resp.Body), Err: err})
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "endpoint reported failure"
		}
		return fail(&Error{StatusCode: resp.StatusCode, Message: msg})
	}

	detail := env.Message
	if detail == "" {
		detail = fmt.Sprintf("%d bytes of data", len(env.Data))
	}
	c.log.Add(op, domain.OutcomeSuccess, fmt.Sprintf("[%s] %s (%s)", strategy, detail, time.Since(startedAt).Round(time.Millisecond)))
	return &result{envelope: env, strategy: strategy}, nil
}

func opName(act Action, group Group) string {
	return fmt.Sprintf("%s %s", act, group)
}

// snippet shortens body for log details without splitting a UTF-8 sequence.
func snippet(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func normalizeInventory(inv Inventory) Inventory {
	return Inventory{Products: nonNil(inv.Products), Suppliers: nonNil(inv.Suppliers)}
}
