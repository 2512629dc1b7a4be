package cache

import (
	"context"
	"encoding/json"
	"log"

	"bizdash/backend/internal/domain"
)

const (
	KeyTransactions = "bizdash:transactions"
	KeyCustomers    = "bizdash:customers"
	KeyProducts     = "bizdash:products"
	KeySuppliers    = "bizdash:suppliers"
)

var allKeys = []string{KeyTransactions, KeyCustomers, KeyProducts, KeySuppliers}

// Backend is a persisted key/value store of raw collection blobs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Local keeps the four entity collections in a Backend as JSON arrays.
// Reads never fail: an absent, unreadable or corrupt entry comes back empty.
type Local struct {
	backend Backend
}

func NewLocal(backend Backend) *Local {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Local{backend: backend}
}

func (l *Local) Transactions(ctx context.Context) []domain.Transaction {
	return read[domain.Transaction](ctx, l.backend, KeyTransactions)
}

func (l *Local) SetTransactions(ctx context.Context, items []domain.Transaction) error {
	return write(ctx, l.backend, KeyTransactions, items)
}

func (l *Local) Customers(ctx context.Context) []domain.Customer {
	return read[domain.Customer](ctx, l.backend, KeyCustomers)
}

func (l *Local) SetCustomers(ctx context.Context, items []domain.Customer) error {
	return write(ctx, l.backend, KeyCustomers, items)
}

func (l *Local) Products(ctx context.Context) []domain.Product {
	return read[domain.Product](ctx, l.backend, KeyProducts)
}

func (l *Local) SetProducts(ctx context.Context, items []domain.Product) error {
	return write(ctx, l.backend, KeyProducts, items)
}

func (l *Local) Suppliers(ctx context.Context) []domain.Supplier {
	return read[domain.Supplier](ctx, l.backend, KeySuppliers)
}

func (l *Local) SetSuppliers(ctx context.Context, items []domain.Supplier) error {
	return write(ctx, l.backend, KeySuppliers, items)
}

func (l *Local) Clear(ctx context.Context) error {
	return l.backend.Delete(ctx, allKeys...)
}

func read[T any](ctx context.Context, backend Backend, key string) []T {
	raw, ok, err := backend.Get(ctx, key)
	if err != nil {
		log.Printf("[cache] WARN: read %s failed, using empty collection: %v", key, err)
		return []T{}
	}
	if !ok || len(raw) == 0 {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("[cache] WARN: corrupt %s entry, using empty collection: %v", key, err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func write[T any](ctx context.Context, backend Backend, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return backend.Set(ctx, key, payload)
}
