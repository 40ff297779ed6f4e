package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/bank"
	"github.com/Checker-Finance/bank-gateway/internal/bank/banktest"
	"github.com/Checker-Finance/bank-gateway/internal/store"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// ─── Fixtures ─────────────────────────────────────────────────────────────────

type testEnv struct {
	app     *fiber.App
	backend *banktest.Backend
	journal *store.HybridStore
}

// newTestEnv wires the real engine and client against an in-memory backend,
// with the journal on miniredis.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	b := banktest.NewBackend(t)
	b.AddCustomers(
		model.Customer{ID: "c1", DocNumber: "123", Name: "Ana", CustomerType: model.CustomerTypeIndividual},
		model.Customer{ID: "c2", DocNumber: "456", Name: "Acme", CustomerType: model.CustomerTypeBusiness},
	)
	b.AddProducts(model.Product{ID: "p1", ProductCategory: "SAVINGS_ACCOUNT", ProductType: "PASSIVE"})
	b.AddPurchases(
		model.Purchase{ID: "pa", CustomerID: "c1"},
		model.Purchase{ID: "pb", CustomerID: "c1"},
	)

	client := bank.NewClient(zap.NewNop(), bank.StaticResolver{BaseURL: b.URL}, nil, bank.ClientOptions{})
	engine := bank.NewEngine(zap.NewNop(), client)

	mr := miniredis.RunT(t)
	st, err := store.NewHybrid(mr.Addr(), "", 0, time.Hour, "", store.PGPoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	app := fiber.New()
	RegisterRoutes(app, zap.NewNop(), map[string]HealthChecker{"store": st}, ResourcesFrom(client),
		NewOperationHandler(zap.NewNop(), engine, st))

	return &testEnv{app: app, backend: b, journal: st}
}

// newStubApp mounts the routes over a stub engine and no journal.
func newStubApp(engine Engine) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, zap.NewNop(), nil, Resources{}, NewOperationHandler(zap.NewNop(), engine, nil))
	return app
}

// ─── Stub engine ──────────────────────────────────────────────────────────────

type stubEngine struct {
	grantFn     func(ctx context.Context, doc, category string) bank.Stream[model.Purchase]
	purchasesFn func(ctx context.Context, customerID string) ([]model.Purchase, error)
}

func (s *stubEngine) GrantProduct(ctx context.Context, doc, category string) bank.Stream[model.Purchase] {
	return s.grantFn(ctx, doc, category)
}

func (s *stubEngine) Deposit(context.Context, string, string, float64) bank.Stream[model.Transaction] {
	return failingStream[model.Transaction](errors.New("not implemented"))
}

func (s *stubEngine) Withdraw(context.Context, string, string, float64) bank.Stream[model.Transaction] {
	return failingStream[model.Transaction](errors.New("not implemented"))
}

func (s *stubEngine) CustomerPurchases(ctx context.Context, customerID string) ([]model.Purchase, error) {
	return s.purchasesFn(ctx, customerID)
}

func failingStream[T any](err error) bank.Stream[T] {
	return func(yield func(bank.Item[T], error) bool) {
		var zero bank.Item[T]
		yield(zero, err)
	}
}

// ─── HTTP helpers ─────────────────────────────────────────────────────────────

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

type purchaseResponse = OperationResponse[model.Purchase]
type transactionResponse = OperationResponse[model.Transaction]

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// ndjsonLines splits a streamed body into its JSON lines.
func ndjsonLines(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		lines = append(lines, m)
	}
	require.NoError(t, sc.Err())
	return lines
}
