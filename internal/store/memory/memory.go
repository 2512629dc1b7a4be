package memory

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
)

// DemoOwnerID owns the rows of the seeded demo account.
const DemoOwnerID = "owner-demo"

// table keeps one entity kind partitioned by owner, in insertion order.
type table[T domain.Entity] struct {
	rows  map[string][]T
	owner map[string]string
}

func newTable[T domain.Entity]() *table[T] {
	return &table[T]{rows: make(map[string][]T), owner: make(map[string]string)}
}

func (t *table[T]) list(ownerID string) []T {
	rows := t.rows[ownerID]
	out := make([]T, len(rows))
	copy(out, rows)
	return out
}

func (t *table[T]) insert(ownerID string, item T) error {
	id := item.EntityID()
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	if _, exists := t.owner[id]; exists {
		return store.ErrDuplicateID
	}
	t.owner[id] = ownerID
	t.rows[ownerID] = append(t.rows[ownerID], item)
	return nil
}

func (t *table[T]) update(ownerID string, id string, item T) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	if item.EntityID() != id {
		return store.ErrInvalidEntity
	}
	if t.owner[id] != ownerID {
		return store.ErrNotFound
	}
	rows := t.rows[ownerID]
	for i := range rows {
		if rows[i].EntityID() == id {
			rows[i] = item
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *table[T]) upsert(ownerID string, item T) error {
	id := item.EntityID()
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	current, exists := t.owner[id]
	if !exists {
		return t.insert(ownerID, item)
	}
	if current != ownerID {
		return store.ErrNotFound
	}
	return t.update(ownerID, id, item)
}

func (t *table[T]) delete(ownerID string, id string) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	if t.owner[id] != ownerID {
		return store.ErrNotFound
	}
	rows := t.rows[ownerID]
	for i := range rows {
		if rows[i].EntityID() == id {
			t.rows[ownerID] = append(rows[:i:i], rows[i+1:]...)
			delete(t.owner, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *table[T]) deleteAll(ownerID string) error {
	if ownerID == "" {
		return store.ErrOwnerRequired
	}
	for _, row := range t.rows[ownerID] {
		delete(t.owner, row.EntityID())
	}
	delete(t.rows, ownerID)
	return nil
}

type Store struct {
	mu           sync.RWMutex
	transactions *table[domain.Transaction]
	customers    *table[domain.Customer]
	products     *table[domain.Product]
	suppliers    *table[domain.Supplier]
	users        map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		transactions: newTable[domain.Transaction](),
		customers:    newTable[domain.Customer](),
		products:     newTable[domain.Product](),
		suppliers:    newTable[domain.Supplier](),
		users:        make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a single demo account. The password comes
// from SEED_OWNER_PASSWORD and falls back to a dev default with a warning.
func NewSeeded() *Store {
	s := New()
	password := envOr("SEED_OWNER_PASSWORD", "owner123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	s.AddUser(domain.UserAccount{
		Username:  "owner",
		Password:  string(hash),
		OwnerID:   DemoOwnerID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) AddUser(user domain.UserAccount) {
	s.mu.Lock()
	s.users[user.Username] = user
	s.mu.Unlock()
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]domain.Transaction, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.list(ownerID), nil
}

func (s *Store) InsertTransaction(_ context.Context, ownerID string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.insert(ownerID, tx)
}

func (s *Store) UpdateTransaction(_ context.Context, ownerID string, id string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.update(ownerID, id, tx)
}

func (s *Store) UpsertTransaction(_ context.Context, ownerID string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.upsert(ownerID, tx)
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.delete(ownerID, id)
}

func (s *Store) DeleteAllTransactions(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.deleteAll(ownerID)
}

func (s *Store) ListCustomers(_ context.Context, ownerID string) ([]domain.Customer, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customers.list(ownerID), nil
}

func (s *Store) InsertCustomer(_ context.Context, ownerID string, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.insert(ownerID, customer)
}

func (s *Store) UpdateCustomer(_ context.Context, ownerID string, id string, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.update(ownerID, id, customer)
}

func (s *Store) UpsertCustomer(_ context.Context, ownerID string, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.upsert(ownerID, customer)
}

func (s *Store) DeleteCustomer(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.delete(ownerID, id)
}

func (s *Store) DeleteAllCustomers(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.deleteAll(ownerID)
}

func (s *Store) ListProducts(_ context.Context, ownerID string) ([]domain.Product, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products.list(ownerID), nil
}

func (s *Store) InsertProduct(_ context.Context, ownerID string, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products.insert(ownerID, product)
}

func (s *Store) UpdateProduct(_ context.Context, ownerID string, id string, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products.update(ownerID, id, product)
}

func (s *Store) UpsertProduct(_ context.Context, ownerID string, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products.upsert(ownerID, product)
}

func (s *Store) DeleteProduct(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products.delete(ownerID, id)
}

func (s *Store) DeleteAllProducts(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products.deleteAll(ownerID)
}

func (s *Store) ListSuppliers(_ context.Context, ownerID string) ([]domain.Supplier, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suppliers.list(ownerID), nil
}

func (s *Store) InsertSupplier(_ context.Context, ownerID string, supplier domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppliers.insert(ownerID, supplier)
}

func (s *Store) UpdateSupplier(_ context.Context, ownerID string, id string, supplier domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppliers.update(ownerID, id, supplier)
}

func (s *Store) UpsertSupplier(_ context.Context, ownerID string, supplier domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppliers.upsert(ownerID, supplier)
}

func (s *Store) DeleteSupplier(_ context.Context, ownerID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppliers.delete(ownerID, id)
}

func (s *Store) DeleteAllSuppliers(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppliers.deleteAll(ownerID)
}
