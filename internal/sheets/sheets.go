// Package sheets moves whole entity collections to and from a
// spreadsheet-backed HTTP endpoint through a selectable transport strategy.
//
// There is one endpoint URL per entity group. Imports are GET requests with an
// action query parameter; exports and syncs POST a JSON object keyed by the
// group name. Every response is a JSON envelope carrying a success flag and
// either a message, a data payload or an error string.
package sheets

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bizdash/backend/internal/domain"
)

type Group string

const (
	GroupTransactions Group = "transactions"
	GroupCustomers    Group = "customers"
	// GroupInventory is the combined products+suppliers endpoint.
	GroupInventory Group = "inventory"
)

func Groups() []Group {
	return []Group{GroupTransactions, GroupCustomers, GroupInventory}
}

func ParseGroup(raw string) (Group, error) {
	switch g := Group(strings.ToLower(strings.TrimSpace(raw))); g {
	case GroupTransactions, GroupCustomers, GroupInventory:
		return g, nil
	case "products", "suppliers":
		return GroupInventory, nil
	}
	return "", fmt.Errorf("unknown entity group %q", raw)
}

type Action string

const (
	ActionTest   Action = "test"
	ActionImport Action = "import"
	ActionExport Action = "export"
	ActionSync   Action = "sync"
)

type Strategy string

const (
	StrategyDirect  Strategy = "direct"
	StrategyProxy   Strategy = "proxy"
	StrategyNoCORS  Strategy = "no-cors"
	StrategyNoCache Strategy = "no-cache"
	StrategyJSONP   Strategy = "jsonp"
	StrategyIframe  Strategy = "iframe"
	StrategyXHR     Strategy = "xhr"
)

func Strategies() []Strategy {
	return []Strategy{StrategyDirect, StrategyProxy, StrategyNoCORS, StrategyNoCache, StrategyJSONP, StrategyIframe, StrategyXHR}
}

func ParseStrategy(raw string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Strategies() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransport, raw)
}

var (
	ErrUnknownTransport = errors.New("unknown transport strategy")
	ErrJSONPBody        = errors.New("jsonp transport cannot carry a request body")
	ErrCORSBlocked      = errors.New("response is missing a matching Access-Control-Allow-Origin header")
	ErrOpaqueResponse   = errors.New("opaque response: the no-cors transport cannot read results")
	ErrNoEndpoint       = errors.New("no endpoint configured for group")
	ErrNoMessage        = errors.New("no correlated message received from frame")
)

// Error is the single rejected outcome every transport failure is normalized to.
type Error struct {
	Op         string
	Strategy   Strategy
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s via %s failed", e.Op, e.Strategy)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Inventory is the payload of the combined products+suppliers group.
type Inventory struct {
	Products  []domain.Product  `json:"products"`
	Suppliers []domain.Supplier `json:"suppliers"`
}

type transactionsPayload struct {
	Transactions []domain.Transaction `json:"transactions"`
}

type customersPayload struct {
	Customers []domain.Customer `json:"customers"`
}
