package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/httpclient"
	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/internal/rate"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// Backend collection names.
const (
	CollectionProducts     = "products"
	CollectionCustomers    = "customers"
	CollectionPurchases    = "purchases"
	CollectionTransactions = "transactions"
)

// Filter fields understood by the backend.
const (
	FilterCustomerID         = "just"
	FilterCustomerType       = "type"
	FilterPurchaseByCustomer = "customer"
)

// BackendConfig locates the resource backend.
type BackendConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key,omitempty"`
}

// ConfigResolver supplies the backend location per request so a rotated
// secret is picked up without a restart.
type ConfigResolver interface {
	Resolve(ctx context.Context) (BackendConfig, error)
}

// StaticResolver serves a fixed BackendConfig, typically from the environment.
type StaticResolver BackendConfig

// Resolve implements ConfigResolver.
func (s StaticResolver) Resolve(context.Context) (BackendConfig, error) {
	return BackendConfig(s), nil
}

// Record is implemented by every record type stored on the backend.
type Record interface {
	model.Customer | model.Product | model.Purchase | model.Transaction
	RecordID() string
}

// ClientOptions tunes the outbound HTTP behaviour.
type ClientOptions struct {
	Timeout  time.Duration
	RetryMax int
}

// Client wraps low-level HTTP communication with the resource backend.
type Client struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	resolver ConfigResolver

	Products     *Resource[model.Product]
	Customers    *Resource[model.Customer]
	Purchases    *Resource[model.Purchase]
	Transactions *Resource[model.Transaction]
}

// NewClient constructs a backend client. rateMgr may be nil to disable limiting.
func NewClient(logger *zap.Logger, resolver ConfigResolver, rateMgr *rate.Manager, opts ClientOptions) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, opts.RetryMax, "bank", func(status int, body []byte) error {
		logger.Warn("bank.client_error",
			zap.Int("status", status),
			zap.String("body", string(body)))

		switch status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: backend returned %d", ErrNotFound, status)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: backend returned %d: %s", ErrValidation, status, strings.TrimSpace(string(body)))
		default:
			return fmt.Errorf("backend returned %d: %s", status, strings.TrimSpace(string(body)))
		}
	}).WithObserver(func(req *http.Request, status int, elapsed time.Duration) {
		collection, _ := req.Context().Value(collectionKey{}).(string)
		metrics.ObserveRemote(collection, req.Method, status, elapsed)
	})

	c := &Client{
		logger:   logger,
		exec:     exec,
		resolver: resolver,
	}
	c.Products = &Resource[model.Product]{client: c, collection: CollectionProducts}
	c.Customers = &Resource[model.Customer]{client: c, collection: CollectionCustomers}
	c.Purchases = &Resource[model.Purchase]{client: c, collection: CollectionPurchases}
	c.Transactions = &Resource[model.Transaction]{client: c, collection: CollectionTransactions}
	return c
}

type collectionKey struct{}

// Resource is the generic CRUD client for one backend collection.
type Resource[T Record] struct {
	client     *Client
	collection string
}

// GetAll lists every record of the collection.
// GET /{collection}
func (r *Resource[T]) GetAll(ctx context.Context) ([]T, error) {
	var out records[T]
	if _, err := r.do(ctx, http.MethodGet, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOne fetches the record stored under key. An absent record is (nil, nil).
// GET /{collection}/{key}
func (r *Resource[T]) GetOne(ctx context.Context, key string) (*T, error) {
	var out records[T]
	_, err := r.do(ctx, http.MethodGet, []string{key}, nil, &out)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// GetByFilter lists the records whose field equals value. No match is an empty slice.
// GET /{collection}/{field}/{value}
func (r *Resource[T]) GetByFilter(ctx context.Context, field, value string) ([]T, error) {
	var out records[T]
	if _, err := r.do(ctx, http.MethodGet, []string{field, value}, nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []T{}, nil
		}
		return nil, err
	}
	if out == nil {
		return []T{}, nil
	}
	return out, nil
}

// Create persists record and returns the backend's version of it.
// POST /{collection}
func (r *Resource[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	var out records[T]
	decoded, err := r.do(ctx, http.MethodPost, nil, record, &out)
	if err != nil {
		return zero, err
	}
	if !decoded || len(out) == 0 {
		return zero, fmt.Errorf("%w: create %s returned no record", ErrRemoteUnavailable, r.collection)
	}
	return out[0], nil
}

// Update replaces the record identified by record.RecordID(). An absent
// record is (nil, nil).
// PUT /{collection}?id={id}
func (r *Resource[T]) Update(ctx context.Context, record T) (*T, error) {
	id := record.RecordID()
	if strings.TrimSpace(id) == "" {
		return nil, invalid("%s update requires an id", r.collection)
	}
	var out records[T]
	_, err := r.doURL(ctx, http.MethodPut, nil, url.Values{"id": {id}}, record, &out)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// Delete removes the record stored under id and returns it. An absent record is (nil, nil).
// DELETE /{collection}/{id}
func (r *Resource[T]) Delete(ctx context.Context, id string) (*T, error) {
	var out records[T]
	_, err := r.do(ctx, http.MethodDelete, []string{id}, nil, &out)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *Resource[T]) do(ctx context.Context, method string, segments []string, body, out any) (bool, error) {
	return r.doURL(ctx, method, segments, nil, body, out)
}

func (r *Resource[T]) doURL(ctx context.Context, method string, segments []string, query url.Values, body, out any) (bool, error) {
	cfg, err := r.client.resolver.Resolve(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: resolve backend: %w", ErrRemoteUnavailable, err)
	}

	target := strings.TrimRight(cfg.BaseURL, "/") + "/" + r.collection
	for _, s := range segments {
		target += "/" + url.PathEscape(s)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode %s: %w", r.collection, err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx = context.WithValue(ctx, collectionKey{}, r.collection)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return false, fmt.Errorf("build %s request: %w", r.collection, err)
	}
	setHeaders(req, cfg.APIKey)

	decoded, err := r.client.exec.DoJSON(ctx, req, r.collection, out)
	if errors.Is(err, httpclient.ErrUnavailable) {
		return false, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return decoded, err
}

// setHeaders sets the headers required for backend requests.
func setHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// records decodes either a JSON array or a single JSON object, since the
// backend answers single-record routes with whichever it has at hand.
type records[T any] []T

func (rs *records[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*rs = nil
		return nil
	}
	if b[0] == '[' {
		var list []T
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*rs = list
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*rs = records[T]{one}
	return nil
}
