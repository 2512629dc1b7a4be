package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizdash/backend/internal/cache"
	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/sheets"
)

func newSheetService(t *testing.T, handler http.Handler, strategy sheets.Strategy) (*testEnv, *sheets.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := sheets.New(sheets.Config{
		TransactionsURL: srv.URL + "/transactions",
		CustomersURL:    srv.URL + "/customers",
		InventoryURL:    srv.URL + "/inventory",
		Strategy:        strategy,
	})
	env := newTestEnv(t, nil)
	env.svc.sheets = client
	return env, client
}

func sheetMux(sheet *sheets.Sheet) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/transactions", sheets.NewEndpoint(sheets.GroupTransactions, sheet, "*"))
	mux.Handle("/customers", sheets.NewEndpoint(sheets.GroupCustomers, sheet, "*"))
	mux.Handle("/inventory", sheets.NewEndpoint(sheets.GroupInventory, sheet, "*"))
	return mux
}

func seedCustomers(t *testing.T, env *testEnv, items ...domain.Customer) {
	t.Helper()
	env.svc.replaceCustomers(context.Background(), items)
}

func TestSyncWithSheetKeepsLocalAndAddsRemoteRows(t *testing.T) {
	sheet := sheets.NewSheet()
	sheet.SetCustomers([]domain.Customer{{ID: "c1", Name: "Ana Stale"}, {ID: "c2", Name: "Bruno"}})
	env, _ := newSheetService(t, sheetMux(sheet), sheets.StrategyDirect)
	seedCustomers(t, env, domain.Customer{ID: "c1", Name: "Ana"})

	if err := env.svc.SyncWithSheet(context.Background(), sheets.GroupCustomers); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got := map[string]string{}
	for _, c := range env.svc.Customers() {
		got[c.ID] = c.Name
	}
	if len(got) != 2 || got["c1"] != "Ana" || got["c2"] != "Bruno" {
		t.Fatalf("unexpected merged customers %v", got)
	}
	if cached := env.local.Customers(context.Background()); len(cached) != 2 {
		t.Fatalf("expected merged customers cached, got %+v", cached)
	}
	remote := map[string]string{}
	for _, c := range sheet.Customers() {
		remote[c.ID] = c.Name
	}
	if remote["c1"] != "Ana" || remote["c2"] != "Bruno" {
		t.Fatalf("expected the sheet to hold the merged rows, got %v", remote)
	}
	if env.rec.Count(domain.LevelSuccess) != 1 {
		t.Fatalf("expected one success notification, got %+v", env.rec.Notifications())
	}
}

func TestSheetFailureLeavesLocalStateUnchanged(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
	})
	env, _ := newSheetService(t, failing, sheets.StrategyDirect)
	ctx := context.Background()
	seedCustomers(t, env, domain.Customer{ID: "c1", Name: "Ana"})
	env.rec.Reset()

	before, _, _ := env.backend.Get(ctx, cache.KeyCustomers)
	memBefore := mustJSON(t, env.svc.Customers())

	if err := env.svc.SyncWithSheet(ctx, sheets.GroupCustomers); err == nil {
		t.Fatalf("expected sync failure")
	}
	if err := env.svc.ImportFromSheet(ctx, sheets.GroupCustomers); err == nil {
		t.Fatalf("expected import failure")
	}

	after, _, _ := env.backend.Get(ctx, cache.KeyCustomers)
	if string(after) != string(before) {
		t.Fatalf("cache changed:\nbefore %s\nafter  %s", before, after)
	}
	if mustJSON(t, env.svc.Customers()) != memBefore {
		t.Fatalf("memory changed after failed sheet calls")
	}
	if env.rec.Count(domain.LevelError) != 2 {
		t.Fatalf("expected one error per logical operation, got %+v", env.rec.Notifications())
	}
}

func TestNoCORSSyncCannotReadBackAndKeepsState(t *testing.T) {
	sheet := sheets.NewSheet()
	sheet.SetCustomers([]domain.Customer{{ID: "c2", Name: "Bruno"}})
	env, _ := newSheetService(t, sheetMux(sheet), sheets.StrategyNoCORS)
	seedCustomers(t, env, domain.Customer{ID: "c1", Name: "Ana"})

	err := env.svc.SyncWithSheet(context.Background(), sheets.GroupCustomers)
	if !errors.Is(err, sheets.ErrOpaqueResponse) {
		t.Fatalf("expected ErrOpaqueResponse, got %v", err)
	}
	if got := env.svc.Customers(); len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("local customers must be unchanged, got %+v", got)
	}
}

func TestImportFromSheetReplacesInventory(t *testing.T) {
	sheet := sheets.NewSheet()
	sheet.SetInventory(sheets.Inventory{
		Products:  []domain.Product{{ID: "p1", Name: "Cafe", Stock: 3}},
		Suppliers: []domain.Supplier{{ID: "s1", Name: "Torrefacao"}},
	})
	env, _ := newSheetService(t, sheetMux(sheet), sheets.StrategyDirect)
	ctx := context.Background()
	env.svc.CreateProduct(ctx, domain.Product{Name: "Old", Stock: 40})

	if err := env.svc.ImportFromSheet(ctx, sheets.GroupInventory); err != nil {
		t.Fatalf("import: %v", err)
	}
	products := env.svc.Products()
	if len(products) != 1 || products[0].ID != "p1" || len(env.svc.Suppliers()) != 1 {
		t.Fatalf("expected inventory replaced, got %+v %+v", products, env.svc.Suppliers())
	}
	if env.svc.Summary().LowStockCount != 1 {
		t.Fatalf("expected summary recomputed, got %+v", env.svc.Summary())
	}
}

func TestExportToSheetOverwrites(t *testing.T) {
	sheet := sheets.NewSheet()
	sheet.SetCustomers([]domain.Customer{{ID: "stale", Name: "Stale"}})
	env, client := newSheetService(t, sheetMux(sheet), sheets.StrategyXHR)
	ctx := context.Background()
	env.svc.CreateCustomer(ctx, domain.Customer{Name: "Ana"})

	if _, err := env.svc.ExportToSheet(ctx, sheets.GroupCustomers); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := sheet.Customers(); len(got) != 1 || got[0].Name != "Ana" {
		t.Fatalf("expected sheet overwritten, got %+v", got)
	}
	if client.Log().Len() != 1 {
		t.Fatalf("expected one logged attempt, got %d", client.Log().Len())
	}
}

func TestSheetOperationsWithoutClient(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.svc.ImportFromSheet(context.Background(), sheets.GroupCustomers); !errors.Is(err, ErrNoSheets) {
		t.Fatalf("expected ErrNoSheets, got %v", err)
	}
}

func TestImportDropsBlankAndRepeatedIDs(t *testing.T) {
	sheet := sheets.NewSheet()
	sheet.SetCustomers([]domain.Customer{
		{ID: "c1", Name: "A"},
		{ID: "c1", Name: "A dup"},
		{ID: "", Name: "blank row"},
		{ID: "c2", Name: "B"},
	})
	env, _ := newSheetService(t, sheetMux(sheet), sheets.StrategyDirect)
	ctx := context.Background()

	if err := env.svc.ImportFromSheet(ctx, sheets.GroupCustomers); err != nil {
		t.Fatalf("import: %v", err)
	}
	got := env.svc.Customers()
	if len(got) != 2 || got[0].ID != "c1" || got[0].Name != "A" || got[1].ID != "c2" {
		t.Fatalf("expected c1 (first row) and c2, got %+v", got)
	}
	if cached := env.local.Customers(ctx); len(cached) != 2 {
		t.Fatalf("expected the cache to hold distinct rows, got %+v", cached)
	}

	if !env.svc.DeleteCustomer(ctx, "c1") {
		t.Fatalf("expected c1 to be deleted")
	}
	for _, c := range env.svc.Customers() {
		if c.ID == "c1" {
			t.Fatalf("c1 still present after delete: %+v", env.svc.Customers())
		}
	}
}
