package store

import (
	"context"
	"errors"

	"bizdash/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidEntity = errors.New("invalid entity")
	ErrOwnerRequired = errors.New("owner id required")
	ErrDuplicateID   = errors.New("duplicate id")
)

// Repository is the hosted relational backend. Every call is scoped to one
// owner and never reads or touches rows owned by anybody else; a row that
// exists under a different owner is reported as ErrNotFound.
type Repository interface {
	ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error)
	InsertTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error
	UpdateTransaction(ctx context.Context, ownerID string, id string, tx domain.Transaction) error
	UpsertTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID string, id string) error
	DeleteAllTransactions(ctx context.Context, ownerID string) error

	ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error)
	InsertCustomer(ctx context.Context, ownerID string, customer domain.Customer) error
	UpdateCustomer(ctx context.Context, ownerID string, id string, customer domain.Customer) error
	UpsertCustomer(ctx context.Context, ownerID string, customer domain.Customer) error
	DeleteCustomer(ctx context.Context, ownerID string, id string) error
	DeleteAllCustomers(ctx context.Context, ownerID string) error

	ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error)
	InsertProduct(ctx context.Context, ownerID string, product domain.Product) error
	UpdateProduct(ctx context.Context, ownerID string, id string, product domain.Product) error
	UpsertProduct(ctx context.Context, ownerID string, product domain.Product) error
	DeleteProduct(ctx context.Context, ownerID string, id string) error
	DeleteAllProducts(ctx context.Context, ownerID string) error

	ListSuppliers(ctx context.Context, ownerID string) ([]domain.Supplier, error)
	InsertSupplier(ctx context.Context, ownerID string, supplier domain.Supplier) error
	UpdateSupplier(ctx context.Context, ownerID string, id string, supplier domain.Supplier) error
	UpsertSupplier(ctx context.Context, ownerID string, supplier domain.Supplier) error
	DeleteSupplier(ctx context.Context, ownerID string, id string) error
	DeleteAllSuppliers(ctx context.Context, ownerID string) error

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

func CheckScope(ownerID string, id string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if id == "" {
		return ErrInvalidEntity
	}
	return nil
}
