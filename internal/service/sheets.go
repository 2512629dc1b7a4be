package service

import (
	"context"
	"fmt"
	"log"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/reconcile"
	"bizdash/backend/internal/sheets"
)

// Spreadsheet operations report exactly one notification each. Nothing local
// changes until every remote step of the operation has succeeded.

func (s *Service) TestSheet(ctx context.Context, group sheets.Group) (string, error) {
	if s.sheets == nil {
		return "", ErrNoSheets
	}
	msg, err := s.sheets.Test(ctx, group)
	s.reportSheet("Connection test", group, msg, err)
	return msg, err
}

func (s *Service) ExportToSheet(ctx context.Context, group sheets.Group) (string, error) {
	if s.sheets == nil {
		return "", ErrNoSheets
	}
	var (
		msg string
		err error
	)
	switch group {
	case sheets.GroupTransactions:
		msg, err = s.sheets.ExportTransactions(ctx, s.Transactions())
	case sheets.GroupCustomers:
		msg, err = s.sheets.ExportCustomers(ctx, s.Customers())
	case sheets.GroupInventory:
		msg, err = s.sheets.ExportInventory(ctx, s.inventory())
	default:
		return "", fmt.Errorf("unknown entity group %q", group)
	}
	s.reportSheet("Export", group, msg, err)
	return msg, err
}

// ImportFromSheet replaces the local group with the sheet's rows.
func (s *Service) ImportFromSheet(ctx context.Context, group sheets.Group) error {
	if s.sheets == nil {
		return ErrNoSheets
	}
	var err error
	switch group {
	case sheets.GroupTransactions:
		var items []domain.Transaction
		if items, err = s.sheets.ImportTransactions(ctx); err == nil {
			s.replaceTransactions(ctx, items)
		}
	case sheets.GroupCustomers:
		var items []domain.Customer
		if items, err = s.sheets.ImportCustomers(ctx); err == nil {
			s.replaceCustomers(ctx, items)
		}
	case sheets.GroupInventory:
		var inv sheets.Inventory
		if inv, err = s.sheets.ImportInventory(ctx); err == nil {
			s.replaceInventory(ctx, inv)
		}
	default:
		return fmt.Errorf("unknown entity group %q", group)
	}
	s.reportSheet("Import", group, "imported", err)
	return err
}

// SyncWithSheet pushes the local group for a sheet-side merge, reads the
// merged sheet back and merges it into the local group with local rows
// winning on id collisions.
func (s *Service) SyncWithSheet(ctx context.Context, group sheets.Group) error {
	if s.sheets == nil {
		return ErrNoSheets
	}
	var err error
	switch group {
	case sheets.GroupTransactions:
		var remote []domain.Transaction
		if _, err = s.sheets.SyncTransactions(ctx, s.Transactions()); err == nil {
			if remote, err = s.sheets.ImportTransactions(ctx); err == nil {
				s.mergeTransactions(ctx, remote)
			}
		}
	case sheets.GroupCustomers:
		var remote []domain.Customer
		if _, err = s.sheets.SyncCustomers(ctx, s.Customers()); err == nil {
			if remote, err = s.sheets.ImportCustomers(ctx); err == nil {
				s.mergeCustomers(ctx, remote)
			}
		}
	case sheets.GroupInventory:
		var remote sheets.Inventory
		if _, err = s.sheets.SyncInventory(ctx, s.inventory()); err == nil {
			if remote, err = s.sheets.ImportInventory(ctx); err == nil {
				s.mergeInventory(ctx, remote)
			}
		}
	default:
		return fmt.Errorf("unknown entity group %q", group)
	}
	s.reportSheet("Sync", group, "synchronized", err)
	return err
}

func (s *Service) reportSheet(op string, group sheets.Group, msg string, err error) {
	if err != nil {
		s.notify(domain.LevelError, op+" failed", fmt.Sprintf("%s: %v", group, err))
		return
	}
	if msg == "" {
		msg = "ok"
	}
	s.notify(domain.LevelSuccess, op, fmt.Sprintf("%s: %s", group, msg))
}

func (s *Service) inventory() sheets.Inventory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sheets.Inventory{Products: cloneSlice(s.products), Suppliers: cloneSlice(s.suppliers)}
}

// distinctRows drops imported rows with a blank or repeated id, keeping the
// first occurrence of each id.
func distinctRows[T domain.Entity](kind string, items []T) []T {
	rows := reconcile.Merge[T](nil, items)
	if dropped := len(items) - len(rows); dropped > 0 {
		log.Printf("[service] WARN: sheet import %s dropped %d rows with a blank or repeated id", kind, dropped)
	}
	return rows
}

func (s *Service) replaceTransactions(ctx context.Context, items []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = distinctRows("transactions", items)
	s.recompute()
	s.persist("transactions", s.local.SetTransactions(ctx, s.transactions))
}

func (s *Service) replaceCustomers(ctx context.Context, items []domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = distinctRows("customers", items)
	s.recompute()
	s.persist("customers", s.local.SetCustomers(ctx, s.customers))
}

func (s *Service) replaceInventory(ctx context.Context, inv sheets.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = distinctRows("products", inv.Products)
	s.suppliers = distinctRows("suppliers", inv.Suppliers)
	s.recompute()
	s.persist("products", s.local.SetProducts(ctx, s.products))
	s.persist("suppliers", s.local.SetSuppliers(ctx, s.suppliers))
}

func (s *Service) mergeTransactions(ctx context.Context, remote []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = reconcile.Merge(s.transactions, remote)
	s.recompute()
	s.persist("transactions", s.local.SetTransactions(ctx, s.transactions))
}

func (s *Service) mergeCustomers(ctx context.Context, remote []domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = reconcile.Merge(s.customers, remote)
	s.recompute()
	s.persist("customers", s.local.SetCustomers(ctx, s.customers))
}

func (s *Service) mergeInventory(ctx context.Context, remote sheets.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = reconcile.Merge(s.products, remote.Products)
	s.suppliers = reconcile.Merge(s.suppliers, remote.Suppliers)
	s.recompute()
	s.persist("products", s.local.SetProducts(ctx, s.products))
	s.persist("suppliers", s.local.SetSuppliers(ctx, s.suppliers))
}
