package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bizdash/backend/internal/domain"
)

// RefreshData replaces memory and the local cache with the session owner's
// remote rows, one entity kind at a time. A failed fetch stops the refresh;
// kinds already replaced stay replaced.
func (s *Service) RefreshData(ctx context.Context) error {
	owner := s.OwnerID()
	if owner == "" || s.repo == nil {
		return ErrNoSession
	}

	steps := []struct {
		kind string
		run  func() error
	}{
		{"transactions", func() error {
			items, err := s.repo.ListTransactions(ctx, owner)
			if err != nil {
				return err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.transactions = cloneSlice(items)
			s.recompute()
			s.persist("transactions", s.local.SetTransactions(ctx, s.transactions))
			return nil
		}},
		{"customers", func() error {
			items, err := s.repo.ListCustomers(ctx, owner)
			if err != nil {
				return err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.customers = cloneSlice(items)
			s.recompute()
			s.persist("customers", s.local.SetCustomers(ctx, s.customers))
			return nil
		}},
		{"products", func() error {
			items, err := s.repo.ListProducts(ctx, owner)
			if err != nil {
				return err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.products = cloneSlice(items)
			s.recompute()
			s.persist("products", s.local.SetProducts(ctx, s.products))
			return nil
		}},
		{"suppliers", func() error {
			items, err := s.repo.ListSuppliers(ctx, owner)
			if err != nil {
				return err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.suppliers = cloneSlice(items)
			s.recompute()
			s.persist("suppliers", s.local.SetSuppliers(ctx, s.suppliers))
			return nil
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			log.Printf("[service] refresh %s failed owner=%s: %v", step.kind, owner, err)
			s.notify(domain.LevelError, "Refresh failed", fmt.Sprintf("could not load %s from the server: %v", step.kind, err))
			return fmt.Errorf("refresh %s: %w", step.kind, err)
		}
	}
	return nil
}

// SyncWithDatabase upserts every in-memory entity for the session owner. The
// first failure stops the run.
func (s *Service) SyncWithDatabase(ctx context.Context) error {
	s.mu.RLock()
	owner := s.ownerID
	transactions := cloneSlice(s.transactions)
	customers := cloneSlice(s.customers)
	products := cloneSlice(s.products)
	suppliers := cloneSlice(s.suppliers)
	s.mu.RUnlock()

	if owner == "" || s.repo == nil {
		s.notify(domain.LevelWarning, "Database sync", "sign in to sync with the database")
		return ErrNoSession
	}

	count := 0
	fail := func(kind string, id string, err error) error {
		log.Printf("[service] database sync %s %s failed owner=%s: %v", kind, id, owner, err)
		s.notifyOwner(owner, domain.LevelError, "Database sync failed", fmt.Sprintf("%s %s: %v", kind, id, err))
		return fmt.Errorf("sync %s %s: %w", kind, id, err)
	}
	for _, tx := range transactions {
		if err := s.repo.UpsertTransaction(ctx, owner, tx); err != nil {
			return fail("transaction", tx.ID, err)
		}
		count++
	}
	for _, c := range customers {
		if err := s.repo.UpsertCustomer(ctx, owner, c); err != nil {
			return fail("customer", c.ID, err)
		}
		count++
	}
	for _, p := range products {
		if err := s.repo.UpsertProduct(ctx, owner, p); err != nil {
			return fail("product", p.ID, err)
		}
		count++
	}
	for _, sup := range suppliers {
		if err := s.repo.UpsertSupplier(ctx, owner, sup); err != nil {
			return fail("supplier", sup.ID, err)
		}
		count++
	}

	s.notifyOwner(owner, domain.LevelSuccess, "Database sync", fmt.Sprintf("%d records synced", count))
	return nil
}

// ClearAll wipes memory and the local cache once the Confirmer approves, and
// with an active session also deletes the owner's remote rows. A remote
// failure is returned but the local data stays cleared.
func (s *Service) ClearAll(ctx context.Context) error {
	if !s.confirmer.Confirm(ctx, "Delete all data? This cannot be undone.") {
		return ErrNotConfirmed
	}

	s.mu.Lock()
	s.transactions = []domain.Transaction{}
	s.customers = []domain.Customer{}
	s.products = []domain.Product{}
	s.suppliers = []domain.Supplier{}
	s.recompute()
	s.persist("all collections", s.local.Clear(ctx))
	owner := s.ownerID
	s.mu.Unlock()

	if owner == "" || s.repo == nil {
		s.notify(domain.LevelSuccess, "Data cleared", "all local data was removed")
		return nil
	}

	err := errors.Join(
		wrapKind("transactions", s.repo.DeleteAllTransactions(ctx, owner)),
		wrapKind("customers", s.repo.DeleteAllCustomers(ctx, owner)),
		wrapKind("products", s.repo.DeleteAllProducts(ctx, owner)),
		wrapKind("suppliers", s.repo.DeleteAllSuppliers(ctx, owner)),
	)
	if err != nil {
		log.Printf("[service] WARN: remote clear failed owner=%s: %v", owner, err)
		s.notify(domain.LevelError, "Data cleared locally", fmt.Sprintf("the server copy could not be removed: %v", err))
		return fmt.Errorf("clear remote: %w", err)
	}
	s.notify(domain.LevelSuccess, "Data cleared", "all local and server data was removed")
	return nil
}

func wrapKind(kind string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", kind, err)
}
