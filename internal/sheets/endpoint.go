package sheets

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/reconcile"
)

// Sheet is the spreadsheet's stored rows, one tab per entity kind.
type Sheet struct {
	mu           sync.Mutex
	transactions []domain.Transaction
	customers    []domain.Customer
	products     []domain.Product
	suppliers    []domain.Supplier
}

func NewSheet() *Sheet {
	return &Sheet{}
}

func (s *Sheet) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction{}, s.transactions...)
}

func (s *Sheet) SetTransactions(items []domain.Transaction) {
	s.mu.Lock()
	s.transactions = append([]domain.Transaction{}, items...)
	s.mu.Unlock()
}

func (s *Sheet) Customers() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Customer{}, s.customers...)
}

func (s *Sheet) SetCustomers(items []domain.Customer) {
	s.mu.Lock()
	s.customers = append([]domain.Customer{}, items...)
	s.mu.Unlock()
}

func (s *Sheet) Inventory() Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Inventory{
		Products:  append([]domain.Product{}, s.products...),
		Suppliers: append([]domain.Supplier{}, s.suppliers...),
	}
}

func (s *Sheet) SetInventory(inv Inventory) {
	s.mu.Lock()
	s.products = append([]domain.Product{}, inv.Products...)
	s.suppliers = append([]domain.Supplier{}, inv.Suppliers...)
	s.mu.Unlock()
}

var callbackName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

var framePage = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html><body><script>
window.parent.postMessage({{.}}, "*");
</script></body></html>
`))

// Endpoint serves one entity group the way the spreadsheet's web-app script
// does: test, import, export (overwrite) and sync (posted rows win, stored
// rows fill gaps, result overwrites storage). Answers are plain JSON, a JSONP
// callback invocation when a callback parameter is present, or a page that
// posts a message to its parent when an iframeId is present. Failures are
// reported with success=false and HTTP 200, as the script platform does.
type Endpoint struct {
	group       Group
	sheet       *Sheet
	allowOrigin string
}

// NewEndpoint builds the handler. An empty allowOrigin sends no CORS grant.
func NewEndpoint(group Group, sheet *Sheet, allowOrigin string) *Endpoint {
	return &Endpoint{group: group, sheet: sheet, allowOrigin: allowOrigin}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.allowOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", e.allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	query := r.URL.Query()
	act := Action(query.Get("action"))
	callback := query.Get("callback")
	frameID := query.Get("iframeId")

	var payload []byte
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err != nil {
				e.respond(w, callback, frameID, envelope{Error: "invalid form body"})
				return
			}
			payload = []byte(r.PostForm.Get("payload"))
			if id := r.PostForm.Get("iframeId"); id != "" {
				frameID = id
			}
		} else {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBytes))
			if err != nil {
				e.respond(w, callback, frameID, envelope{Error: "unreadable body"})
				return
			}
			payload = body
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	e.respond(w, callback, frameID, e.run(act, payload))
}

func (e *Endpoint) run(act Action, payload []byte) envelope {
	switch act {
	case ActionTest:
		return envelope{Success: true, Message: fmt.Sprintf("connection ok (%s)", e.group)}
	case ActionImport:
		var data any
		switch e.group {
		case GroupTransactions:
			data = e.sheet.Transactions()
		case GroupCustomers:
			data = e.sheet.Customers()
		case GroupInventory:
			data = e.sheet.Inventory()
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return envelope{Error: err.Error()}
		}
		return envelope{Success: true, Data: raw}
	case ActionExport, ActionSync:
		if len(payload) == 0 {
			return envelope{Error: "missing payload"}
		}
		count, err := e.write(act, payload)
		if err != nil {
			return envelope{Error: err.Error()}
		}
		verb := "exported"
		if act == ActionSync {
			verb = "synced"
		}
		return envelope{Success: true, Message: fmt.Sprintf("%s %d %s rows", verb, count, e.group)}
	}
	return envelope{Error: fmt.Sprintf("unknown action %q", act)}
}

func (e *Endpoint) write(act Action, payload []byte) (int, error) {
	merge := act == ActionSync
	switch e.group {
	case GroupTransactions:
		var in transactionsPayload
		if err := json.Unmarshal(payload, &in); err != nil {
			return 0, fmt.Errorf("invalid payload: %v", err)
		}
		rows := in.Transactions
		if merge {
			rows = reconcile.Merge(rows, e.sheet.Transactions())
		}
		e.sheet.SetTransactions(rows)
		return len(rows), nil
	case GroupCustomers:
		var in customersPayload
		if err := json.Unmarshal(payload, &in); err != nil {
			return 0, fmt.Errorf("invalid payload: %v", err)
		}
		rows := in.Customers
		if merge {
			rows = reconcile.Merge(rows, e.sheet.Customers())
		}
		e.sheet.SetCustomers(rows)
		return len(rows), nil
	case GroupInventory:
		var in Inventory
		if err := json.Unmarshal(payload, &in); err != nil {
			return 0, fmt.Errorf("invalid payload: %v", err)
		}
		if merge {
			stored := e.sheet.Inventory()
			in.Products = reconcile.Merge(in.Products, stored.Products)
			in.Suppliers = reconcile.Merge(in.Suppliers, stored.Suppliers)
		}
		e.sheet.SetInventory(in)
		return len(in.Products) + len(in.Suppliers), nil
	}
	return 0, fmt.Errorf("unknown group %q", e.group)
}

func (e *Endpoint) respond(w http.ResponseWriter, callback string, frameID string, env envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch {
	case callback != "":
		if !callbackName.MatchString(callback) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":false,"error":"invalid callback name"}`))
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprintf(w, "%s(%s);", callback, raw)
	case frameID != "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = framePage.Execute(w, frameMessage{IframeID: frameID, Data: raw})
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}
}
