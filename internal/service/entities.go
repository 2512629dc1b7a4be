package service

import (
	"context"
	"fmt"
	"strings"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
	"bizdash/backend/internal/xid"
)

const (
	prefixTransaction = "txn"
	prefixCustomer    = "cus"
	prefixProduct     = "prd"
	prefixSupplier    = "sup"
)

func newEntityID(prefix string) string {
	return xid.New(prefix)
}

// uniqueID draws ids until one is not already used in items.
func uniqueID[T domain.Entity](items []T, prefix string, gen func(string) string) string {
	for {
		id := gen(prefix)
		if id != "" && indexOf(items, id) < 0 {
			return id
		}
	}
}

func indexOf[T domain.Entity](items []T, id string) int {
	for i, item := range items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func cloneSlice[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// The helpers below never modify their input, so readers holding an earlier
// slice keep a consistent view.

func appended[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func replacedAt[T any](items []T, idx int, item T) []T {
	out := cloneSlice(items)
	out[idx] = item
	return out
}

func removedAt[T any](items []T, idx int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidEntity, fmt.Sprintf(format, args...))
}

func validateTransaction(tx domain.Transaction) error {
	if !tx.Type.Valid() {
		return invalid("transaction type %q", tx.Type)
	}
	if !tx.Status.Valid() {
		return invalid("transaction status %q", tx.Status)
	}
	if tx.Amount.IsNegative() {
		return invalid("transaction amount must not be negative")
	}
	return nil
}

// snapshotNames copies the current customer and product names onto tx. Ids
// that no longer resolve keep whatever name the transaction already had.
// Must be called with s.mu held.
func (s *Service) snapshotNames(tx domain.Transaction) domain.Transaction {
	if tx.CustomerID == "" {
		tx.CustomerName = ""
	} else if idx := indexOf(s.customers, tx.CustomerID); idx >= 0 {
		tx.CustomerName = s.customers[idx].Name
	}

	if len(tx.ProductIDs) == 0 {
		tx.ProductNames = nil
		return tx
	}
	names := make([]string, len(tx.ProductIDs))
	for i, id := range tx.ProductIDs {
		if idx := indexOf(s.products, id); idx >= 0 {
			names[i] = s.products[idx].Name
		} else if i < len(tx.ProductNames) {
			names[i] = tx.ProductNames[i]
		}
	}
	tx.ProductNames = names
	return tx
}

func (s *Service) CreateTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if tx.Status == "" {
		tx.Status = domain.StatusCompleted
	}
	tx.Description = strings.TrimSpace(tx.Description)
	if err := validateTransaction(tx); err != nil {
		return domain.Transaction{}, err
	}

	s.mu.Lock()
	tx.ID = uniqueID(s.transactions, prefixTransaction, s.newID)
	tx = s.snapshotNames(tx)
	s.transactions = appended(s.transactions, tx)
	s.recompute()
	s.persist("transactions", s.local.SetTransactions(ctx, s.transactions))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "create transaction "+tx.ID, func(ctx context.Context, ownerID string) error {
		return s.repo.InsertTransaction(ctx, ownerID, tx)
	})
	return tx, nil
}

// UpdateTransaction merges patch over the transaction with the given id. The
// bool is false, and nothing changes, when the id is unknown.
func (s *Service) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (domain.Transaction, bool, error) {
	s.mu.Lock()
	idx := indexOf(s.transactions, id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Transaction{}, false, nil
	}
	updated := patch.Apply(s.transactions[idx])
	if err := validateTransaction(updated); err != nil {
		s.mu.Unlock()
		return domain.Transaction{}, true, err
	}
	if patch.ChangesReferences() {
		updated = s.snapshotNames(updated)
	}
	s.transactions = replacedAt(s.transactions, idx, updated)
	s.recompute()
	s.persist("transactions", s.local.SetTransactions(ctx, s.transactions))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "update transaction "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.UpdateTransaction(ctx, ownerID, id, updated)
	})
	return updated, true, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := indexOf(s.transactions, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.transactions = removedAt(s.transactions, idx)
	s.recompute()
	s.persist("transactions", s.local.SetTransactions(ctx, s.transactions))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "delete transaction "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.DeleteTransaction(ctx, ownerID, id)
	})
	return true
}

func (s *Service) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.Customer{}, invalid("customer name is required")
	}
	if c.Status == "" {
		c.Status = domain.CustomerActive
	}

	s.mu.Lock()
	c.ID = uniqueID(s.customers, prefixCustomer, s.newID)
	s.customers = appended(s.customers, c)
	s.recompute()
	s.persist("customers", s.local.SetCustomers(ctx, s.customers))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "create customer "+c.ID, func(ctx context.Context, ownerID string) error {
		return s.repo.InsertCustomer(ctx, ownerID, c)
	})
	return c, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, patch domain.CustomerPatch) (domain.Customer, bool, error) {
	s.mu.Lock()
	idx := indexOf(s.customers, id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Customer{}, false, nil
	}
	updated := patch.Apply(s.customers[idx])
	if strings.TrimSpace(updated.Name) == "" {
		s.mu.Unlock()
		return domain.Customer{}, true, invalid("customer name is required")
	}
	s.customers = replacedAt(s.customers, idx, updated)
	s.recompute()
	s.persist("customers", s.local.SetCustomers(ctx, s.customers))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "update customer "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.UpdateCustomer(ctx, ownerID, id, updated)
	})
	return updated, true, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := indexOf(s.customers, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.customers = removedAt(s.customers, idx)
	s.recompute()
	s.persist("customers", s.local.SetCustomers(ctx, s.customers))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "delete customer "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.DeleteCustomer(ctx, ownerID, id)
	})
	return true
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("product name is required")
	}
	if p.Price.IsNegative() || p.Stock < 0 {
		return invalid("product price and stock must not be negative")
	}
	if p.MinimumStock != nil && *p.MinimumStock < 0 {
		return invalid("minimum stock must not be negative")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	p.ID = uniqueID(s.products, prefixProduct, s.newID)
	s.products = appended(s.products, p)
	s.recompute()
	s.persist("products", s.local.SetProducts(ctx, s.products))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "create product "+p.ID, func(ctx context.Context, ownerID string) error {
		return s.repo.InsertProduct(ctx, ownerID, p)
	})
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, bool, error) {
	s.mu.Lock()
	idx := indexOf(s.products, id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Product{}, false, nil
	}
	updated := patch.Apply(s.products[idx])
	if err := validateProduct(updated); err != nil {
		s.mu.Unlock()
		return domain.Product{}, true, err
	}
	s.products = replacedAt(s.products, idx, updated)
	s.recompute()
	s.persist("products", s.local.SetProducts(ctx, s.products))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "update product "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.UpdateProduct(ctx, ownerID, id, updated)
	})
	return updated, true, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := indexOf(s.products, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.products = removedAt(s.products, idx)
	s.recompute()
	s.persist("products", s.local.SetProducts(ctx, s.products))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "delete product "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.DeleteProduct(ctx, ownerID, id)
	})
	return true
}

func (s *Service) CreateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return domain.Supplier{}, invalid("supplier name is required")
	}

	s.mu.Lock()
	sup.ID = uniqueID(s.suppliers, prefixSupplier, s.newID)
	s.suppliers = appended(s.suppliers, sup)
	s.recompute()
	s.persist("suppliers", s.local.SetSuppliers(ctx, s.suppliers))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "create supplier "+sup.ID, func(ctx context.Context, ownerID string) error {
		return s.repo.InsertSupplier(ctx, ownerID, sup)
	})
	return sup, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, patch domain.SupplierPatch) (domain.Supplier, bool, error) {
	s.mu.Lock()
	idx := indexOf(s.suppliers, id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Supplier{}, false, nil
	}
	updated := patch.Apply(s.suppliers[idx])
	if strings.TrimSpace(updated.Name) == "" {
		s.mu.Unlock()
		return domain.Supplier{}, true, invalid("supplier name is required")
	}
	s.suppliers = replacedAt(s.suppliers, idx, updated)
	s.recompute()
	s.persist("suppliers", s.local.SetSuppliers(ctx, s.suppliers))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "update supplier "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.UpdateSupplier(ctx, ownerID, id, updated)
	})
	return updated, true, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := indexOf(s.suppliers, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.suppliers = removedAt(s.suppliers, idx)
	s.recompute()
	s.persist("suppliers", s.local.SetSuppliers(ctx, s.suppliers))
	owner := s.ownerID
	s.mu.Unlock()

	s.mirror(ctx, owner, "delete supplier "+id, func(ctx context.Context, ownerID string) error {
		return s.repo.DeleteSupplier(ctx, ownerID, id)
	})
	return true
}
