package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/sheets"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newSheetEnv(t *testing.T) (*sheets.Sheet, string) {
	t.Helper()
	sheet := sheets.NewSheet()
	srv := httptest.NewServer(sheetMux(sheet, "*"))
	t.Cleanup(srv.Close)

	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SHEETS_TRANSPORT", "")
	t.Setenv("SHEETS_TRANSACTIONS_URL", srv.URL+"/transactions")
	t.Setenv("SHEETS_CUSTOMERS_URL", srv.URL+"/customers")
	t.Setenv("SHEETS_PRODUCTS_URL", srv.URL+"/inventory")
	return sheet, filepath.Join(t.TempDir(), "cache.db")
}

func TestTransportsListsEveryStrategy(t *testing.T) {
	out, err := runCLI(t, "transports")
	if err != nil {
		t.Fatalf("transports: %v", err)
	}
	lines := strings.Fields(out)
	if len(lines) != len(sheets.Strategies()) {
		t.Fatalf("expected %d strategies, got %q", len(sheets.Strategies()), out)
	}
	if lines[0] != string(sheets.StrategyDirect) {
		t.Fatalf("expected direct first, got %q", lines[0])
	}
}

func TestUnknownTransportFlagIsRejected(t *testing.T) {
	if _, err := runCLI(t, "--transport", "smoke-signals", "transports"); err == nil {
		t.Fatalf("expected unknown transport to be rejected")
	}
}

func TestUnknownGroupIsRejected(t *testing.T) {
	_, cachePath := newSheetEnv(t)
	if _, err := runCLI(t, "--cache", cachePath, "import", "invoices"); err == nil {
		t.Fatalf("expected unknown group to be rejected")
	}
}

func TestImportExportThroughLocalCache(t *testing.T) {
	sheet, cachePath := newSheetEnv(t)
	sheet.SetCustomers([]domain.Customer{
		{ID: "c1", Name: "Ana", Status: domain.CustomerActive},
		{ID: "c2", Name: "Bruno", Status: domain.CustomerActive},
	})

	out, err := runCLI(t, "--cache", cachePath, "--transport", "xhr", "import", "customers")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "customers: 2") {
		t.Fatalf("expected 2 imported customers, got %q", out)
	}

	sheet.SetCustomers(nil)
	if _, err := runCLI(t, "--cache", cachePath, "--transport", "xhr", "export", "customers"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := len(sheet.Customers()); got != 2 {
		t.Fatalf("expected export to restore 2 customers on the sheet, got %d", got)
	}

	out, err = runCLI(t, "--cache", cachePath, "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "customers: 2") {
		t.Fatalf("expected cached customers to persist, got %q", out)
	}
}

func TestSyncMergesSheetRowsIntoCache(t *testing.T) {
	sheet, cachePath := newSheetEnv(t)
	sheet.SetCustomers([]domain.Customer{{ID: "c1", Name: "Ana", Status: domain.CustomerActive}})
	if _, err := runCLI(t, "--cache", cachePath, "--transport", "xhr", "import", "customers"); err != nil {
		t.Fatalf("import: %v", err)
	}

	sheet.SetCustomers([]domain.Customer{{ID: "c9", Name: "Carla", Status: domain.CustomerActive}})
	out, err := runCLI(t, "--cache", cachePath, "--transport", "xhr", "sync", "customers")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "customers: 2") {
		t.Fatalf("expected merged customers, got %q", out)
	}
	if got := len(sheet.Customers()); got != 2 {
		t.Fatalf("expected the sheet to hold both customers after sync, got %d", got)
	}
}

func TestSheetConnectionTest(t *testing.T) {
	_, cachePath := newSheetEnv(t)
	out, err := runCLI(t, "--cache", cachePath, "test", "inventory")
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected a connection message")
	}
}
