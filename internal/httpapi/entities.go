package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// collectionRoute serves GET (list) and POST (create) for one entity kind.
func collectionRoute[T any](w http.ResponseWriter, r *http.Request, key string, list func() []T, create func(context.Context, T) (T, error)) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{key + "s": list()})
	case http.MethodPost:
		var item T
		if err := decodeJSON(r, &item); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := create(r.Context(), item)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{key: created})
	default:
		writeMethodNotAllowed(w)
	}
}

// itemRoute serves PATCH and DELETE on /<prefix>/{id}.
func itemRoute[T any, P any](w http.ResponseWriter, r *http.Request, prefix string, key string, update func(context.Context, string, P) (T, bool, error), remove func(context.Context, string) bool) {
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s id required", key))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var patch P
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, found, err := update(r.Context(), id, patch)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("%s %s not found", key, id))
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{key: updated})
	case http.MethodDelete:
		if !remove(r.Context(), id) {
			writeError(w, http.StatusNotFound, errors.New(key+" "+id+" not found"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	collectionRoute(w, r, "transaction", a.service.Transactions, a.service.CreateTransaction)
}

func (a *API) handleTransactionItem(w http.ResponseWriter, r *http.Request) {
	itemRoute(w, r, "/api/v1/transactions/", "transaction", a.service.UpdateTransaction, a.service.DeleteTransaction)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	collectionRoute(w, r, "customer", a.service.Customers, a.service.CreateCustomer)
}

func (a *API) handleCustomerItem(w http.ResponseWriter, r *http.Request) {
	itemRoute(w, r, "/api/v1/customers/", "customer", a.service.UpdateCustomer, a.service.DeleteCustomer)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	collectionRoute(w, r, "product", a.service.Products, a.service.CreateProduct)
}

func (a *API) handleProductItem(w http.ResponseWriter, r *http.Request) {
	itemRoute(w, r, "/api/v1/products/", "product", a.service.UpdateProduct, a.service.DeleteProduct)
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	collectionRoute(w, r, "supplier", a.service.Suppliers, a.service.CreateSupplier)
}

func (a *API) handleSupplierItem(w http.ResponseWriter, r *http.Request) {
	itemRoute(w, r, "/api/v1/suppliers/", "supplier", a.service.UpdateSupplier, a.service.DeleteSupplier)
}
