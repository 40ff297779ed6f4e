// Package banktest provides an in-memory resource backend for tests.
package banktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// Backend is an httptest server that speaks the resource backend's REST
// routes over in-memory collections.
type Backend struct {
	*httptest.Server

	mu           sync.Mutex
	customers    []model.Customer
	products     []model.Product
	purchases    []model.Purchase
	transactions []model.Transaction
	calls        []string
	nextID       int

	// Intercept, when set, runs before routing. A non-zero status is written
	// back with an empty body and the request goes no further.
	Intercept func(r *http.Request) int
}

// NewBackend starts a Backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// AddCustomers seeds customer records.
func (b *Backend) AddCustomers(cs ...model.Customer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.customers = append(b.customers, cs...)
}

// AddProducts seeds product records.
func (b *Backend) AddProducts(ps ...model.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products = append(b.products, ps...)
}

// AddPurchases seeds purchase records.
func (b *Backend) AddPurchases(ps ...model.Purchase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purchases = append(b.purchases, ps...)
}

// Purchases returns a snapshot of stored purchases.
func (b *Backend) Purchases() []model.Purchase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Purchase(nil), b.purchases...)
}

// Transactions returns a snapshot of stored transactions.
func (b *Backend) Transactions() []model.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Transaction(nil), b.transactions...)
}

// Calls returns the "METHOD /path?query" lines received so far.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CountCalls returns how many received calls start with prefix.
func (b *Backend) CountCalls(prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	line := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		line += "?" + r.URL.RawQuery
	}
	b.mu.Lock()
	b.calls = append(b.calls, line)
	b.mu.Unlock()

	if b.Intercept != nil {
		if status := b.Intercept(r); status != 0 {
			w.WriteHeader(status)
			return
		}
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	b.mu.Lock()
	defer b.mu.Unlock()

	switch parts[0] {
	case "customers":
		serveCollection(b, w, r, parts[1:], &b.customers, func(c model.Customer, key string) bool { return c.DocNumber == key },
			map[string]func(model.Customer, string) bool{
				"just": func(c model.Customer, v string) bool { return c.ID == v },
				"type": func(c model.Customer, v string) bool { return string(c.CustomerType) == v },
			}, "cus", func(c *model.Customer, id string) { c.ID = id })
	case "products":
		serveCollection(b, w, r, parts[1:], &b.products, func(p model.Product, key string) bool { return p.ProductCategory == key },
			nil, "prd", func(p *model.Product, id string) { p.ID = id })
	case "purchases":
		serveCollection(b, w, r, parts[1:], &b.purchases, func(p model.Purchase, key string) bool { return p.ID == key },
			map[string]func(model.Purchase, string) bool{
				"customer": func(p model.Purchase, v string) bool { return p.CustomerID == v },
			}, "pur", func(p *model.Purchase, id string) { p.ID = id })
	case "transactions":
		serveCollection(b, w, r, parts[1:], &b.transactions, func(t model.Transaction, key string) bool { return t.ID == key },
			nil, "txn", func(t *model.Transaction, id string) { t.ID = id })
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// serveCollection handles one collection's routes. The caller holds b.mu.
func serveCollection[T interface{ RecordID() string }](
	b *Backend,
	w http.ResponseWriter,
	r *http.Request,
	rest []string,
	store *[]T,
	byKey func(T, string) bool,
	filters map[string]func(T, string) bool,
	idPrefix string,
	setID func(*T, string),
) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		writeJSON(w, http.StatusOK, *store)

	case r.Method == http.MethodGet && len(rest) == 1:
		for _, rec := range *store {
			if byKey(rec, rest[0]) {
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	case r.Method == http.MethodGet && len(rest) == 2:
		match, ok := filters[rest[0]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		out := []T{}
		for _, rec := range *store {
			if match(rec, rest[1]) {
				out = append(out, rec)
			}
		}
		if rest[0] == "just" {
			// Single-record filter: an object or an empty body.
			if len(out) == 0 {
				w.WriteHeader(http.StatusOK)
				return
			}
			writeJSON(w, http.StatusOK, out[0])
			return
		}
		writeJSON(w, http.StatusOK, out)

	case r.Method == http.MethodPost && len(rest) == 0:
		var rec T
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.nextID++
		setID(&rec, fmt.Sprintf("%s-%d", idPrefix, b.nextID))
		*store = append(*store, rec)
		writeJSON(w, http.StatusCreated, rec)

	case r.Method == http.MethodPut && len(rest) == 0:
		id := r.URL.Query().Get("id")
		var rec T
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for i := range *store {
			if (*store)[i].RecordID() == id {
				(*store)[i] = rec
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	case r.Method == http.MethodDelete && len(rest) == 1:
		for i, rec := range *store {
			if rec.RecordID() == rest[0] {
				*store = append((*store)[:i], (*store)[i+1:]...)
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("banktest writeJSON: " + err.Error())
	}
}
