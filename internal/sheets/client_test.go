package sheets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"bizdash/backend/internal/domain"
)

type sheetServer struct {
	*httptest.Server
	sheet    *Sheet
	requests atomic.Int64
	lastReq  atomic.Pointer[http.Request]
}

// newSheetServer mounts the three group endpoints over one shared sheet.
func newSheetServer(t *testing.T, allowOrigin string) *sheetServer {
	t.Helper()
	s := &sheetServer{sheet: NewSheet()}
	mux := http.NewServeMux()
	mux.Handle("/transactions", NewEndpoint(GroupTransactions, s.sheet, allowOrigin))
	mux.Handle("/customers", NewEndpoint(GroupCustomers, s.sheet, allowOrigin))
	mux.Handle("/inventory", NewEndpoint(GroupInventory, s.sheet, allowOrigin))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.lastReq.Store(r.Clone(context.Background()))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestClient(base string, strategy Strategy, opts ...func(*Config)) *Client {
	cfg := Config{
		TransactionsURL: base + "/transactions",
		CustomersURL:    base + "/customers",
		InventoryURL:    base + "/inventory",
		Strategy:        strategy,
		Origin:          "http://dash.local",
		FrameTimeout:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

func sampleTransactions() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t1", Date: "2024-05-01", Description: "Venda", Amount: decimal.NewFromInt(100), Type: domain.TransactionIncome, Status: domain.StatusCompleted},
		{ID: "t2", Date: "2024-05-02", Description: "Aluguel", Amount: decimal.NewFromInt(40), Type: domain.TransactionExpense, Status: domain.StatusCompleted},
	}
}

func TestRoundTripPerStrategy(t *testing.T) {
	for _, strategy := range []Strategy{StrategyDirect, StrategyNoCache, StrategyIframe, StrategyXHR} {
		t.Run(string(strategy), func(t *testing.T) {
			srv := newSheetServer(t, "*")
			client := newTestClient(srv.URL, strategy)
			ctx := context.Background()

			msg, err := client.ExportTransactions(ctx, sampleTransactions())
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if !strings.Contains(msg, "exported 2") {
				t.Fatalf("unexpected export message %q", msg)
			}

			got, err := client.ImportTransactions(ctx)
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			if len(got) != 2 || got[0].ID != "t1" || !got[0].Amount.Equal(decimal.NewFromInt(100)) {
				t.Fatalf("unexpected import: %+v", got)
			}

			entries := client.Log().Entries()
			if len(entries) != 2 {
				t.Fatalf("expected 2 log entries, got %d", len(entries))
			}
			for _, e := range entries {
				if e.Outcome != domain.OutcomeSuccess || !strings.Contains(e.Detail, string(strategy)) {
					t.Fatalf("unexpected log entry %+v", e)
				}
			}
		})
	}
}

func TestDirectRequiresCORSGrant(t *testing.T) {
	srv := newSheetServer(t, "")
	client := newTestClient(srv.URL, StrategyDirect)

	_, err := client.ImportCustomers(context.Background())
	if !errors.Is(err, ErrCORSBlocked) {
		t.Fatalf("expected ErrCORSBlocked, got %v", err)
	}
	var sheetErr *Error
	if !errors.As(err, &sheetErr) || sheetErr.Strategy != StrategyDirect || sheetErr.Op != "import customers" {
		t.Fatalf("expected normalized *Error, got %#v", err)
	}
	entries := client.Log().Entries()
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeError {
		t.Fatalf("expected one error log entry, got %+v", entries)
	}
}

func TestDirectAcceptsMatchingOrigin(t *testing.T) {
	srv := newSheetServer(t, "http://dash.local")
	client := newTestClient(srv.URL, StrategyDirect)
	if _, err := client.Test(context.Background(), GroupCustomers); err != nil {
		t.Fatalf("expected matching origin to pass, got %v", err)
	}
	if origin := srv.lastReq.Load().Header.Get("Origin"); origin != "http://dash.local" {
		t.Fatalf("expected Origin header, got %q", origin)
	}

	other := newTestClient(srv.URL, StrategyDirect, func(c *Config) { c.Origin = "http://evil.local" })
	if _, err := other.Test(context.Background(), GroupCustomers); !errors.Is(err, ErrCORSBlocked) {
		t.Fatalf("expected mismatched origin to be blocked, got %v", err)
	}
}

func TestProxyRelaysThroughPrefix(t *testing.T) {
	srv := newSheetServer(t, "")
	var relayed atomic.Int64
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayed.Add(1)
		target, err := url.QueryUnescape(r.URL.RawQuery)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req, _ := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
		req.Header.Set("Content-Type", r.Header.Get("Content-Type"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}))
	t.Cleanup(relay.Close)

	client := newTestClient(srv.URL, StrategyProxy, func(c *Config) { c.ProxyPrefix = relay.URL + "/?" })
	ctx := context.Background()
	if _, err := client.ExportCustomers(ctx, []domain.Customer{{ID: "c1", Name: "Ana"}}); err != nil {
		t.Fatalf("export via proxy: %v", err)
	}
	got, err := client.ImportCustomers(ctx)
	if err != nil {
		t.Fatalf("import via proxy: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Ana" || relayed.Load() != 2 {
		t.Fatalf("expected relayed round trip, got %+v (relayed=%d)", got, relayed.Load())
	}
}

func TestNoCacheSendsBypassHeaders(t *testing.T) {
	srv := newSheetServer(t, "*")
	client := newTestClient(srv.URL, StrategyNoCache)
	if _, err := client.Test(context.Background(), GroupTransactions); err != nil {
		t.Fatalf("test: %v", err)
	}
	last := srv.lastReq.Load()
	if !strings.Contains(last.Header.Get("Cache-Control"), "no-cache") || last.Header.Get("Pragma") != "no-cache" {
		t.Fatalf("missing cache bypass headers: %v", last.Header)
	}
	if last.URL.Query().Get("_") == "" || last.URL.Query().Get("action") != "test" {
		t.Fatalf("missing cache buster or action: %s", last.URL.RawQuery)
	}
}

func TestNoCORSAssumesSuccessAndCannotImport(t *testing.T) {
	srv := newSheetServer(t, "")
	client := newTestClient(srv.URL, StrategyNoCORS)
	ctx := context.Background()

	if _, err := client.ExportTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatalf("no-cors export must assume success, got %v", err)
	}
	if got := len(srv.sheet.Transactions()); got != 2 {
		t.Fatalf("expected the push to reach the sheet, got %d rows", got)
	}

	if _, err := client.ImportTransactions(ctx); !errors.Is(err, ErrOpaqueResponse) {
		t.Fatalf("expected ErrOpaqueResponse on import, got %v", err)
	}

	entries := client.Log().Entries()
	if len(entries) != 2 {
		t.Fatalf("expected one entry per attempt, got %+v", entries)
	}
	if entries[0].Outcome != domain.OutcomeSuccess || entries[1].Outcome != domain.OutcomeError {
		t.Fatalf("unexpected outcomes %+v", entries)
	}
}

func TestNoCORSReportsNetworkFailure(t *testing.T) {
	srv := newSheetServer(t, "")
	base := srv.URL
	srv.Close()

	client := newTestClient(base, StrategyNoCORS)
	if _, err := client.ExportCustomers(context.Background(), nil); err == nil {
		t.Fatalf("expected network failure to surface")
	}
}

func TestJSONPRefusesBodyWithoutNetwork(t *testing.T) {
	srv := newSheetServer(t, "")
	client := newTestClient(srv.URL, StrategyJSONP)

	_, err := client.ExportTransactions(context.Background(), sampleTransactions())
	if !errors.Is(err, ErrJSONPBody) {
		t.Fatalf("expected ErrJSONPBody, got %v", err)
	}
	if srv.requests.Load() != 0 {
		t.Fatalf("jsonp must not send the request, got %d requests", srv.requests.Load())
	}
	entries := client.Log().Entries()
	if len(entries) != 1 || entries[0].Outcome != domain.OutcomeError {
		t.Fatalf("expected logged failure, got %+v", entries)
	}
}

func TestJSONPImport(t *testing.T) {
	srv := newSheetServer(t, "")
	srv.sheet.SetInventory(Inventory{
		Products:  []domain.Product{{ID: "p1", Name: "Cafe", Stock: 3}},
		Suppliers: []domain.Supplier{{ID: "s1", Name: "Torrefacao"}},
	})
	client := newTestClient(srv.URL, StrategyJSONP)

	inv, err := client.ImportInventory(context.Background())
	if err != nil {
		t.Fatalf("jsonp import: %v", err)
	}
	if len(inv.Products) != 1 || len(inv.Suppliers) != 1 || inv.Suppliers[0].Name != "Torrefacao" {
		t.Fatalf("unexpected inventory %+v", inv)
	}
	if cb := srv.lastReq.Load().URL.Query().Get("callback"); !strings.HasPrefix(cb, "bizdash_jsonp_") {
		t.Fatalf("expected unique callback name, got %q", cb)
	}
}

func TestJSONPRejectsWrongCallbackAndTimesOut(t *testing.T) {
	wrong := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`someoneElse({"success":true,"data":[]});`))
	}))
	t.Cleanup(wrong.Close)
	client := newTestClient(wrong.URL, StrategyJSONP)
	if _, err := client.ImportCustomers(context.Background()); err == nil || !strings.Contains(err.Error(), "did not invoke callback") {
		t.Fatalf("expected callback mismatch error, got %v", err)
	}

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		slow.Close()
	})
	timed := newTestClient(slow.URL, StrategyJSONP, func(c *Config) { c.FrameTimeout = 50 * time.Millisecond })
	if _, err := timed.ImportCustomers(context.Background()); err == nil || !strings.Contains(err.Error(), "not invoked within") {
		t.Fatalf("expected jsonp timeout, got %v", err)
	}
}

func TestIframeIgnoresMessagesForOtherFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<script>window.parent.postMessage({"iframeId":"somebody_else","data":{"success":true}}, "*");</script>`))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(srv.URL, StrategyIframe)
	if _, err := client.Test(context.Background(), GroupTransactions); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("expected ErrNoMessage, got %v", err)
	}
}

func TestIframePostsFormPayload(t *testing.T) {
	srv := newSheetServer(t, "")
	client := newTestClient(srv.URL, StrategyIframe)
	if _, err := client.ExportCustomers(context.Background(), []domain.Customer{{ID: "c1", Name: "Ana"}}); err != nil {
		t.Fatalf("iframe export: %v", err)
	}
	last := srv.lastReq.Load()
	if last.Method != http.MethodPost || !strings.HasPrefix(last.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		t.Fatalf("expected form post, got %s %s", last.Method, last.Header.Get("Content-Type"))
	}
	if got := srv.sheet.Customers(); len(got) != 1 || got[0].Name != "Ana" {
		t.Fatalf("expected sheet updated, got %+v", got)
	}
}

func TestXHRFollowsRedirects(t *testing.T) {
	sheet := newSheetServer(t, "")
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, sheet.URL+r.URL.Path+"?"+r.URL.RawQuery, http.StatusTemporaryRedirect)
	}))
	t.Cleanup(front.Close)

	client := newTestClient(front.URL, StrategyXHR)
	if _, err := client.ExportCustomers(context.Background(), []domain.Customer{{ID: "c9", Name: "Zed"}}); err != nil {
		t.Fatalf("xhr export through redirect: %v", err)
	}
	if got := sheet.sheet.Customers(); len(got) != 1 || got[0].ID != "c9" {
		t.Fatalf("expected redirected POST to keep its body, got %+v", got)
	}
	if sheet.lastReq.Load().Header.Get("X-Requested-With") != "XMLHttpRequest" {
		t.Fatalf("expected xhr marker header")
	}
}

func TestFailureNormalization(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"non-2xx", http.StatusInternalServerError, `boom`, 500, "boom"},
		{"success false", http.StatusOK, `{"success":false,"error":"sheet locked"}`, 200, "sheet locked"},
		{"success false without error", http.StatusOK, `{"success":false}`, 200, "endpoint reported failure"},
		{"not json", http.StatusOK, `<html>login</html>`, 200, "unreadable response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			client := newTestClient(srv.URL, StrategyDirect)
			_, err := client.SyncCustomers(context.Background(), []domain.Customer{{ID: "c1"}})
			var sheetErr *Error
			if !errors.As(err, &sheetErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if sheetErr.StatusCode != tc.wantStatus || !strings.Contains(sheetErr.Error(), tc.wantMsg) {
				t.Fatalf("unexpected error %+v (%v)", sheetErr, sheetErr)
			}
			if entries := client.Log().Entries(); len(entries) != 1 || entries[0].Outcome != domain.OutcomeError {
				t.Fatalf("expected one error log entry, got %+v", entries)
			}
		})
	}
}

func TestSyncKeepsPostedRowsAndAddsSheetRows(t *testing.T) {
	srv := newSheetServer(t, "*")
	srv.sheet.SetCustomers([]domain.Customer{{ID: "c1", Name: "Ana Stale"}, {ID: "c2", Name: "Bruno"}})
	client := newTestClient(srv.URL, StrategyDirect)
	ctx := context.Background()

	if _, err := client.SyncCustomers(ctx, []domain.Customer{{ID: "c1", Name: "Ana"}}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, err := client.ImportCustomers(ctx)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	names := map[string]string{}
	for _, c := range got {
		names[c.ID] = c.Name
	}
	if len(names) != 2 || names["c1"] != "Ana" || names["c2"] != "Bruno" {
		t.Fatalf("unexpected merged sheet %v", names)
	}
}

func TestStrategySwitchDoesNotAffectInFlightCall(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(srv.URL, StrategyDirect)
	done := make(chan error, 1)
	go func() {
		_, err := client.ExportTransactions(context.Background(), sampleTransactions())
		done <- err
	}()

	<-entered
	if err := client.SetTransport(StrategyJSONP); err != nil {
		t.Fatalf("set transport: %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("in-flight direct export should succeed, got %v", err)
	}
	if client.Transport() != StrategyJSONP {
		t.Fatalf("expected jsonp to be active for later calls")
	}
	entries := client.Log().Entries()
	last := entries[len(entries)-1]
	if last.Outcome != domain.OutcomeSuccess || !strings.Contains(last.Detail, "[direct]") {
		t.Fatalf("expected the export to be logged under direct, got %+v", last)
	}
}

func TestClientConfigurationErrors(t *testing.T) {
	client := New(Config{Strategy: "carrier-pigeon"})
	if client.Transport() != StrategyDirect {
		t.Fatalf("expected unknown strategy to fall back to direct, got %s", client.Transport())
	}
	if err := client.SetTransport("smoke-signal"); !errors.Is(err, ErrUnknownTransport) {
		t.Fatalf("expected ErrUnknownTransport, got %v", err)
	}
	if _, err := client.ImportTransactions(context.Background()); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestSnippetKeepsRunesWhole(t *testing.T) {
	body := []byte(strings.Repeat("a", 199) + "çé")
	got := snippet(body)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got)
	}
	if got != strings.Repeat("a", 199)+"..." {
		t.Fatalf("unexpected snippet %q", got)
	}
	if short := snippet([]byte("olá")); short != "olá" {
		t.Fatalf("short bodies must pass through, got %q", short)
	}
}

func TestParseHelpers(t *testing.T) {
	for _, s := range Strategies() {
		parsed, err := ParseStrategy(" " + strings.ToUpper(string(s)) + " ")
		if err != nil || parsed != s {
			t.Fatalf("parse %s: got %s, %v", s, parsed, err)
		}
	}
	if g, err := ParseGroup("products"); err != nil || g != GroupInventory {
		t.Fatalf("expected products to map to inventory, got %s %v", g, err)
	}
	if _, err := ParseGroup("invoices"); err == nil {
		t.Fatalf("expected unknown group error")
	}
}
