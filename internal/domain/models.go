package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinimumStock is the low-stock threshold for products that do not set one.
const DefaultMinimumStock = 10

type Entity interface {
	EntityID() string
}

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
	TransactionRefund  TransactionType = "refund"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionRefund:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCanceled  TransactionStatus = "canceled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

type CustomerStatus string

const (
	CustomerActive   CustomerStatus = "active"
	CustomerInactive CustomerStatus = "inactive"
)

type CustomerCategory string

const (
	CategoryRegular    CustomerCategory = "regular"
	CategoryVIP        CustomerCategory = "vip"
	CategoryEnterprise CustomerCategory = "enterprise"
	CategoryNew        CustomerCategory = "new"
)

// Transaction dates are ISO-8601 calendar dates ("2006-01-02") kept as text so
// they round-trip through the spreadsheet unchanged. CustomerName and
// ProductNames are snapshots taken when the references are written; renaming
// the customer or product later does not update them.
type Transaction struct {
	ID                   string            `json:"id"`
	Date                 string            `json:"date"`
	Description          string            `json:"description"`
	Amount               decimal.Decimal   `json:"amount"`
	Type                 TransactionType   `json:"type"`
	Category             string            `json:"category"`
	PaymentMethod        string            `json:"paymentMethod,omitempty"`
	CustomerID           string            `json:"customerId,omitempty"`
	CustomerName         string            `json:"customerName,omitempty"`
	ProductIDs           []string          `json:"productIds,omitempty"`
	ProductNames         []string          `json:"productNames,omitempty"`
	Status               TransactionStatus `json:"status"`
	Notes                string            `json:"notes,omitempty"`
	Refundable           bool              `json:"refundable,omitempty"`
	RelatedTransactionID string            `json:"relatedTransactionId,omitempty"`
}

func (t Transaction) EntityID() string { return t.ID }

type Customer struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Address        string           `json:"address,omitempty"`
	Document       string           `json:"document,omitempty"`
	JoinDate       string           `json:"joinDate"`
	TotalPurchases decimal.Decimal  `json:"totalPurchases"`
	LastPurchase   string           `json:"lastPurchase,omitempty"`
	Status         CustomerStatus   `json:"status"`
	Category       CustomerCategory `json:"category,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

func (c Customer) EntityID() string { return c.ID }

type Product struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Price        decimal.Decimal  `json:"price"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Stock        int              `json:"stock"`
	Category     string           `json:"category"`
	MinimumStock *int             `json:"minimumStock,omitempty"`
	SupplierID   string           `json:"supplierId,omitempty"`
	Barcode      string           `json:"barcode,omitempty"`
}

func (p Product) EntityID() string { return p.ID }

func (p Product) Threshold() int {
	if p.MinimumStock == nil {
		return DefaultMinimumStock
	}
	return *p.MinimumStock
}

func (p Product) LowStock() bool {
	return p.Stock < p.Threshold()
}

type Supplier struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ContactName string   `json:"contactName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address,omitempty"`
	Document    string   `json:"document,omitempty"`
	Category    string   `json:"category,omitempty"`
	ProductIDs  []string `json:"productIds,omitempty"`
}

func (s Supplier) EntityID() string { return s.ID }

type TransactionPatch struct {
	Date                 *string            `json:"date,omitempty"`
	Description          *string            `json:"description,omitempty"`
	Amount               *decimal.Decimal   `json:"amount,omitempty"`
	Type                 *TransactionType   `json:"type,omitempty"`
	Category             *string            `json:"category,omitempty"`
	PaymentMethod        *string            `json:"paymentMethod,omitempty"`
	CustomerID           *string            `json:"customerId,omitempty"`
	ProductIDs           *[]string          `json:"productIds,omitempty"`
	Status               *TransactionStatus `json:"status,omitempty"`
	Notes                *string            `json:"notes,omitempty"`
	Refundable           *bool              `json:"refundable,omitempty"`
	RelatedTransactionID *string            `json:"relatedTransactionId,omitempty"`
}

// Apply overlays the supplied fields on t. Denormalized names are left to the caller.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	setIf(&t.Date, p.Date)
	setIf(&t.Description, p.Description)
	setIf(&t.Amount, p.Amount)
	setIf(&t.Type, p.Type)
	setIf(&t.Category, p.Category)
	setIf(&t.PaymentMethod, p.PaymentMethod)
	setIf(&t.CustomerID, p.CustomerID)
	if p.ProductIDs != nil {
		t.ProductIDs = append([]string(nil), (*p.ProductIDs)...)
	}
	setIf(&t.Status, p.Status)
	setIf(&t.Notes, p.Notes)
	setIf(&t.Refundable, p.Refundable)
	setIf(&t.RelatedTransactionID, p.RelatedTransactionID)
	return t
}

// ChangesReferences reports whether applying p can alter the customer or product snapshots.
func (p TransactionPatch) ChangesReferences() bool {
	return p.CustomerID != nil || p.ProductIDs != nil
}

type CustomerPatch struct {
	Name           *string           `json:"name,omitempty"`
	Email          *string           `json:"email,omitempty"`
	Phone          *string           `json:"phone,omitempty"`
	Address        *string           `json:"address,omitempty"`
	Document       *string           `json:"document,omitempty"`
	JoinDate       *string           `json:"joinDate,omitempty"`
	TotalPurchases *decimal.Decimal  `json:"totalPurchases,omitempty"`
	LastPurchase   *string           `json:"lastPurchase,omitempty"`
	Status         *CustomerStatus   `json:"status,omitempty"`
	Category       *CustomerCategory `json:"category,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
}

func (p CustomerPatch) Apply(c Customer) Customer {
	setIf(&c.Name, p.Name)
	setIf(&c.Email, p.Email)
	setIf(&c.Phone, p.Phone)
	setIf(&c.Address, p.Address)
	setIf(&c.Document, p.Document)
	setIf(&c.JoinDate, p.JoinDate)
	setIf(&c.TotalPurchases, p.TotalPurchases)
	setIf(&c.LastPurchase, p.LastPurchase)
	setIf(&c.Status, p.Status)
	setIf(&c.Category, p.Category)
	setIf(&c.Notes, p.Notes)
	return c
}

type ProductPatch struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Stock        *int             `json:"stock,omitempty"`
	Category     *string          `json:"category,omitempty"`
	MinimumStock *int             `json:"minimumStock,omitempty"`
	SupplierID   *string          `json:"supplierId,omitempty"`
	Barcode      *string          `json:"barcode,omitempty"`
}

func (p ProductPatch) Apply(pr Product) Product {
	setIf(&pr.Name, p.Name)
	setIf(&pr.Description, p.Description)
	setIf(&pr.Price, p.Price)
	if p.Cost != nil {
		cost := *p.Cost
		pr.Cost = &cost
	}
	setIf(&pr.Stock, p.Stock)
	setIf(&pr.Category, p.Category)
	if p.MinimumStock != nil {
		minimum := *p.MinimumStock
		pr.MinimumStock = &minimum
	}
	setIf(&pr.SupplierID, p.SupplierID)
	setIf(&pr.Barcode, p.Barcode)
	return pr
}

type SupplierPatch struct {
	Name        *string   `json:"name,omitempty"`
	ContactName *string   `json:"contactName,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Document    *string   `json:"document,omitempty"`
	Category    *string   `json:"category,omitempty"`
	ProductIDs  *[]string `json:"productIds,omitempty"`
}

func (p SupplierPatch) Apply(s Supplier) Supplier {
	setIf(&s.Name, p.Name)
	setIf(&s.ContactName, p.ContactName)
	setIf(&s.Email, p.Email)
	setIf(&s.Phone, p.Phone)
	setIf(&s.Address, p.Address)
	setIf(&s.Document, p.Document)
	setIf(&s.Category, p.Category)
	if p.ProductIDs != nil {
		s.ProductIDs = append([]string(nil), (*p.ProductIDs)...)
	}
	return s
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

type Summary struct {
	TotalIncome         decimal.Decimal `json:"totalIncome"`
	TotalExpenses       decimal.Decimal `json:"totalExpenses"`
	Balance             decimal.Decimal `json:"balance"`
	LowStockCount       int             `json:"lowStockCount"`
	CustomerCount       int             `json:"customerCount"`
	ProductCount        int             `json:"productCount"`
	SupplierCount       int             `json:"supplierCount"`
	PendingTransactions int             `json:"pendingTransactions"`
}

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
	// OwnerID addresses the notification; empty means no session owned it.
	OwnerID string            `json:"-"`
}

type SyncOutcome string

const (
	OutcomeSuccess SyncOutcome = "success"
	OutcomeError   SyncOutcome = "error"
	OutcomeInfo    SyncOutcome = "info"
)

type SyncLogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    string      `json:"action"`
	Outcome   SyncOutcome `json:"outcome"`
	Detail    string      `json:"detail"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	OwnerID     string `json:"owner_id"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated caller. OwnerID scopes every remote store row.
type Actor struct {
	Username string
	OwnerID  string
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	OwnerID   string    `json:"owner_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
