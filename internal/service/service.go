package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"bizdash/backend/internal/cache"
	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/sheets"
	"bizdash/backend/internal/store"
)

var (
	ErrNoSession    = errors.New("no active remote session")
	ErrNotConfirmed = errors.New("operation not confirmed")
	ErrNoSheets     = errors.New("spreadsheet sync is not configured")
	ErrForeignOwner = errors.New("the active session belongs to another account")
)

// remoteTimeout bounds a single background mirror call.
const remoteTimeout = 20 * time.Second

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Confirmer approves destructive operations.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

type confirmContextKey struct{}

func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmContextKey{}, confirmed)
}

// RequestConfirmer approves only when the caller's context carries an explicit
// confirmation (see WithConfirmation).
type RequestConfirmer struct{}

func (RequestConfirmer) Confirm(ctx context.Context, _ string) bool {
	confirmed, _ := ctx.Value(confirmContextKey{}).(bool)
	return confirmed
}

type Options struct {
	Cache     *cache.Local
	Repo      store.Repository
	Sheets    *sheets.Client
	Notifier  Notifier
	Confirmer Confirmer
}

// Service is the single in-memory copy of the four collections and their
// summary. Every mutation updates memory and the local cache before it
// returns; the remote store is mirrored in the background and its failures
// never roll the local change back.
type Service struct {
	mu           sync.RWMutex
	transactions []domain.Transaction
	customers    []domain.Customer
	products     []domain.Product
	suppliers    []domain.Supplier
	summary      domain.Summary
	ownerID      string
	// audience mirrors ownerID for notify, which runs with or without mu held.
	audience atomic.Value

	local     *cache.Local
	repo      store.Repository
	sheets    *sheets.Client
	notifier  Notifier
	confirmer Confirmer
	newID     func(prefix string) string

	pending sync.WaitGroup
}

func New(opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NewLocal(nil)
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = RequestConfirmer{}
	}
	return &Service{
		transactions: []domain.Transaction{},
		customers:    []domain.Customer{},
		products:     []domain.Product{},
		suppliers:    []domain.Supplier{},
		local:        opts.Cache,
		repo:         opts.Repo,
		sheets:       opts.Sheets,
		notifier:     opts.Notifier,
		confirmer:    opts.Confirmer,
		newID:        newEntityID,
	}
}

// Load hydrates memory from the local cache.
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = s.local.Transactions(ctx)
	s.customers = s.local.Customers(ctx)
	s.products = s.local.Products(ctx)
	s.suppliers = s.local.Suppliers(ctx)
	s.recompute()
}

// StartSession activates remote mirroring for ownerID and pulls the owner's
// data from the remote store.
func (s *Service) StartSession(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return store.ErrOwnerRequired
	}
	if s.repo == nil {
		return fmt.Errorf("%w: remote store not configured", ErrNoSession)
	}
	s.mu.Lock()
	s.ownerID = ownerID
	s.audience.Store(ownerID)
	s.mu.Unlock()
	return s.RefreshData(ctx)
}

func (s *Service) EndSession() {
	s.mu.Lock()
	s.ownerID = ""
	s.audience.Store("")
	s.mu.Unlock()
}

// CheckOwner reports whether the actor carried by ctx owns the active
// session: ErrNoSession when there is none, ErrForeignOwner when another
// account holds it.
func (s *Service) CheckOwner(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.OwnerID == "" {
		return store.ErrOwnerRequired
	}
	switch owner := s.OwnerID(); owner {
	case "":
		return ErrNoSession
	case actor.OwnerID:
		return nil
	default:
		return ErrForeignOwner
	}
}

func (s *Service) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

func (s *Service) Sheets() *sheets.Client {
	return s.sheets
}

// Wait blocks until every background remote mirror has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) Summary() domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

func (s *Service) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.transactions)
}

func (s *Service) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.customers)
}

func (s *Service) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.products)
}

func (s *Service) Suppliers() []domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.suppliers)
}

// recompute must be called with s.mu held for writing.
func (s *Service) recompute() {
	s.summary = ComputeSummary(s.transactions, s.customers, s.products, s.suppliers)
}

// notify addresses n to the current session owner.
func (s *Service) notify(level domain.NotificationLevel, title string, message string) {
	owner, _ := s.audience.Load().(string)
	s.notifyOwner(owner, level, title, message)
}

func (s *Service) notifyOwner(ownerID string, level domain.NotificationLevel, title string, message string) {
	s.notifier.Notify(domain.Notification{
		Level:   level,
		Title:   title,
		Message: message,
		At:      time.Now().UTC(),
		OwnerID: ownerID,
	})
}

// persist writes one collection to the local cache. A cache failure is
// reported but memory keeps the new state.
func (s *Service) persist(kind string, err error) {
	if err == nil {
		return
	}
	log.Printf("[service] WARN: local cache write %s failed: %v", kind, err)
	s.notify(domain.LevelWarning, "Local cache", fmt.Sprintf("could not save %s locally: %v", kind, err))
}

// mirror runs fn against the remote store in the background when a session
// is active. ownerID is captured by the caller together with the local write.
func (s *Service) mirror(ctx context.Context, ownerID string, what string, fn func(ctx context.Context, ownerID string) error) {
	if ownerID == "" || s.repo == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(base, remoteTimeout)
		defer cancel()
		if err := fn(ctx, ownerID); err != nil {
			log.Printf("[service] WARN: remote %s failed owner=%s: %v", what, ownerID, err)
			s.notifyOwner(ownerID, domain.LevelWarning, "Remote sync", fmt.Sprintf("%s was saved locally but not on the server: %v", what, err))
		}
	}()
}
