package bank

import (
	"context"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/bank-gateway/internal/bank/banktest"
	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// ─── GrantProduct ─────────────────────────────────────────────────────────────

func TestEngine_GrantProduct_Scenario(t *testing.T) {
	b := banktest.NewBackend(t)
	b.AddCustomers(model.Customer{ID: "C1", DocNumber: "DOC123", Name: "Ana", CustomerType: model.CustomerTypeIndividual})
	b.AddProducts(model.Product{ID: "P1", ProductCategory: "SAVINGS_ACCOUNT", ProductType: "SAVINGS"})
	e := newTestEngine(t, b)

	items, err := Collect(e.GrantProduct(context.Background(), "DOC123", "SAVINGS_ACCOUNT"))
	require.NoError(t, err)
	require.Len(t, items, 2)

	preview := items[0]
	assert.Equal(t, PhasePreview, preview.Phase)
	assert.Equal(t, "C1", preview.Record.CustomerID)
	assert.Equal(t, "INDIVIDUAL", preview.Record.CustomerType)
	assert.Equal(t, "Ana", preview.Record.CustomerName)
	assert.Equal(t, "SAVINGS_ACCOUNT", preview.Record.ProductCategory)
	assert.Empty(t, preview.Record.ProductID)
	assert.Empty(t, preview.Record.ProductType)
	assert.Empty(t, preview.Record.ID)

	persisted := items[1]
	assert.Equal(t, PhasePersisted, persisted.Phase)
	assert.Equal(t, "C1", persisted.Record.CustomerID)
	assert.Equal(t, "INDIVIDUAL", persisted.Record.CustomerType)
	assert.Equal(t, "Ana", persisted.Record.CustomerName)
	assert.Equal(t, "P1", persisted.Record.ProductID)
	assert.Equal(t, "SAVINGS", persisted.Record.ProductType)
	assert.Equal(t, "SAVINGS_ACCOUNT", persisted.Record.ProductCategory)
	assert.NotEmpty(t, persisted.Record.ID)

	stored := b.Purchases()
	require.Len(t, stored, 1)
	assert.Equal(t, persisted.Record.ID, stored[0].ID)
}

func TestEngine_GrantProduct_CategoryPassedThroughVerbatim(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddProducts(model.Product{ID: "p9", ProductCategory: "savings_account", ProductType: "PASSIVE"})
	e := newTestEngine(t, b)

	items, err := Collect(e.GrantProduct(context.Background(), "123", " savings_account "))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "savings_account", items[0].Record.ProductCategory)
	assert.Equal(t, "p9", items[1].Record.ProductID)
	assert.Contains(t, b.Calls(), "GET /products/savings_account")
	assert.NotContains(t, b.Calls(), "GET /products/SAVINGS_ACCOUNT")
}

func TestEngine_GrantProduct_CustomerNotFound(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	e := newTestEngine(t, b)

	items, err := Collect(e.GrantProduct(context.Background(), "nope", "SAVINGS_ACCOUNT"))
	require.ErrorIs(t, err, ErrCustomerNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, items)
	assert.Zero(t, b.CountCalls("GET /products"))
	assert.Zero(t, b.CountCalls("POST"))
}

func TestEngine_GrantProduct_ProductNotFoundAfterPreview(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	e := newTestEngine(t, b)

	items, err := Collect(e.GrantProduct(context.Background(), "123", "MORTGAGE"))
	require.ErrorIs(t, err, ErrProductNotFound)
	require.Len(t, items, 1)
	assert.Equal(t, PhasePreview, items[0].Phase)
	assert.Empty(t, b.Purchases())
}

func TestEngine_GrantProduct_IncompleteProduct(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddProducts(model.Product{ID: "p9", ProductCategory: "LEASING"})
	e := newTestEngine(t, b)

	items, err := Collect(e.GrantProduct(context.Background(), "123", "LEASING"))
	require.ErrorIs(t, err, ErrIncompleteRecord)
	assert.Contains(t, err.Error(), "productType")
	assert.Len(t, items, 1)
	assert.Empty(t, b.Purchases())
}

func TestEngine_GrantProduct_Validation(t *testing.T) {
	b := banktest.NewBackend(t)
	e := newTestEngine(t, b)

	_, err := Collect(e.GrantProduct(context.Background(), " ", "SAVINGS_ACCOUNT"))
	require.ErrorIs(t, err, ErrValidation)

	_, err = Collect(e.GrantProduct(context.Background(), "123", ""))
	require.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, b.Calls())
}

func TestEngine_GrantProduct_StopAfterPreview(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	e := newTestEngine(t, b)

	var seen []Item[model.Purchase]
	for item, err := range e.GrantProduct(context.Background(), "123", "SAVINGS_ACCOUNT") {
		require.NoError(t, err)
		seen = append(seen, item)
		break
	}

	require.Len(t, seen, 1)
	assert.Zero(t, b.CountCalls("GET /products"))
	assert.Empty(t, b.Purchases())
}

func TestEngine_GrantProduct_BackendDown(t *testing.T) {
	b := banktest.NewBackend(t)
	b.Intercept = func(r *http.Request) int { return http.StatusServiceUnavailable }
	e := newTestEngine(t, b)

	items, err := Collect(e.GrantProduct(context.Background(), "123", "SAVINGS_ACCOUNT"))
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Empty(t, items)
}

func TestEngine_GrantProduct_Notifies(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	n := &recordingNotifier{name: "rec"}
	e := newTestEngine(t, b, n)

	ctx := WithOperationID(context.Background(), "op-1")
	items, err := Collect(e.GrantProduct(ctx, "123", "CREDIT_CARD"))
	require.NoError(t, err)

	events := n.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "op-1", events[0].OperationID)
	assert.Equal(t, model.OperationGrantProduct, events[0].Operation)
	assert.Equal(t, model.EventPurchaseGranted, events[0].EventType)
	assert.Equal(t, items[1].Record.ID, events[0].RecordID)
	assert.Equal(t, "c1", events[0].CustomerID)
}

func TestEngine_NotifierFailureDoesNotAlterStream(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	bad := &recordingNotifier{name: "bad", err: errBoom}
	good := &recordingNotifier{name: "good"}
	e := newTestEngine(t, b, bad, good)

	items, err := Collect(e.GrantProduct(context.Background(), "123", "SAVINGS_ACCOUNT"))
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Len(t, bad.Events(), 1)
	assert.Len(t, good.Events(), 1)
}

// stalledNotifier blocks until its context ends, like a sink waiting on a
// pool connection or broker flow control.
type stalledNotifier struct{ calls int }

func (n *stalledNotifier) Name() string { return "stalled" }

func (n *stalledNotifier) Notify(ctx context.Context, _ model.OperationEvent) error {
	n.calls++
	<-ctx.Done()
	return ctx.Err()
}

func notifierErrors(t *testing.T, name string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.NotifierErrors.WithLabelValues(name).Write(&m))
	return m.GetCounter().GetValue()
}

func TestEngine_Deposit_StalledNotifierTimesOut(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(
		model.Purchase{ID: "pa", CustomerID: "c1"},
		model.Purchase{ID: "pb", CustomerID: "c1"},
	)
	stalled := &stalledNotifier{}
	good := &recordingNotifier{name: "good"}
	e := newTestEngine(t, b, stalled, good).WithNotifyTimeout(20 * time.Millisecond)
	before := notifierErrors(t, "stalled")

	done := make(chan struct{})
	var items []Item[model.Transaction]
	var err error
	go func() {
		defer close(done)
		items, err = Collect(e.Deposit(context.Background(), "c1", "pa", 10))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deposit blocked on a stalled notifier")
	}
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 2, stalled.calls)
	assert.Len(t, good.Events(), 2)
	assert.Equal(t, before+2, notifierErrors(t, "stalled"))
}

func TestEngine_WithNotifyTimeout_IgnoresNonPositive(t *testing.T) {
	e := NewEngine(nil, nil).WithNotifyTimeout(0)
	assert.Equal(t, DefaultNotifyTimeout, e.notifyTimeout)
	assert.Equal(t, time.Second, e.WithNotifyTimeout(time.Second).notifyTimeout)
}

// ─── Deposit / Withdraw ──────────────────────────────────────────────────────

func TestEngine_Deposit_Scenario(t *testing.T) {
	b := banktest.NewBackend(t)
	b.AddCustomers(model.Customer{ID: "C1", DocNumber: "DOC123", Name: "Ana"})
	b.AddPurchases(
		model.Purchase{ID: "PU1", CustomerID: "C1"},
		model.Purchase{ID: "PU2", CustomerID: "C1"},
		model.Purchase{ID: "PU3", CustomerID: "C2"},
	)
	e := newTestEngine(t, b)

	items, err := Collect(e.Deposit(context.Background(), "C1", "PU1", 100))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, PhasePreview, items[0].Phase)
	assert.Equal(t, model.Transaction{CustomerID: "C1", TransactionType: model.TransactionDeposit, Amount: 100}, items[0].Record)

	wantPurchases := []string{"PU1", "PU2"}
	for i, item := range items[1:] {
		assert.Equal(t, PhasePersisted, item.Phase)
		assert.Equal(t, "C1", item.Record.CustomerID)
		assert.Equal(t, model.TransactionDeposit, item.Record.TransactionType)
		assert.Equal(t, 100.0, item.Record.Amount)
		assert.Equal(t, wantPurchases[i], item.Record.PurchaseID)
		assert.NotEmpty(t, item.Record.ID)
	}
	assert.NotEqual(t, items[1].Record.ID, items[2].Record.ID)
	assert.Len(t, b.Transactions(), 2)
}

// purchaseId is required but does not narrow the fan-out: every purchase the
// customer holds receives a transaction, including ones other than the named
// purchase.
func TestEngine_Deposit_FansOutOverAllPurchasesIgnoringPurchaseID(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(
		model.Purchase{ID: "pa", CustomerID: "c1"},
		model.Purchase{ID: "pb", CustomerID: "c1"},
		model.Purchase{ID: "pc", CustomerID: "c1"},
	)
	e := newTestEngine(t, b)

	items, err := Collect(e.Deposit(context.Background(), "c1", "pb", 5))
	require.NoError(t, err)
	require.Len(t, items, 4)

	var got []string
	for _, tx := range b.Transactions() {
		got = append(got, tx.PurchaseID)
	}
	assert.Equal(t, []string{"pa", "pb", "pc"}, got)
}

func TestEngine_Withdraw_TagsWithdrawal(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(model.Purchase{ID: "pa", CustomerID: "c2"}, model.Purchase{ID: "pb", CustomerID: "c2"})
	e := newTestEngine(t, b)

	items, err := Collect(e.Withdraw(context.Background(), "c2", "pa", 42.5))
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, model.TransactionWithdrawal, item.Record.TransactionType)
		assert.Equal(t, 42.5, item.Record.Amount)
	}
}

func TestEngine_Deposit_NoPurchasesEmitsOnlyPreview(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	e := newTestEngine(t, b)

	items, err := Collect(e.Deposit(context.Background(), "c1", "x", 1))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, PhasePreview, items[0].Phase)
	assert.Empty(t, b.Transactions())
}

func TestEngine_Deposit_CustomerNotFound(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	e := newTestEngine(t, b)

	for _, run := range []func() Stream[model.Transaction]{
		func() Stream[model.Transaction] { return e.Deposit(context.Background(), "ghost", "p", 1) },
		func() Stream[model.Transaction] { return e.Withdraw(context.Background(), "ghost", "p", 1) },
	} {
		items, err := Collect(run())
		require.ErrorIs(t, err, ErrCustomerNotFound)
		assert.Empty(t, items)
	}
	assert.Contains(t, b.Calls(), "GET /customers/just/ghost")
	assert.Zero(t, b.CountCalls("GET /purchases"))
}

func TestEngine_Deposit_Validation(t *testing.T) {
	b := banktest.NewBackend(t)
	e := newTestEngine(t, b)

	tests := []struct {
		name       string
		customerID string
		purchaseID string
		amount     float64
	}{
		{"empty customer", "", "p", 1},
		{"empty purchase", "c1", "  ", 1},
		{"nan amount", "c1", "p", math.NaN()},
		{"infinite amount", "c1", "p", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Collect(e.Deposit(context.Background(), tt.customerID, tt.purchaseID, tt.amount))
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, items)
		})
	}
	assert.Empty(t, b.Calls())
}

func TestEngine_Deposit_PurchaseWithoutIDFails(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(model.Purchase{ID: "pa", CustomerID: "c1"}, model.Purchase{CustomerID: "c1"})
	e := newTestEngine(t, b)

	items, err := Collect(e.Deposit(context.Background(), "c1", "pa", 1))
	require.ErrorIs(t, err, ErrIncompleteRecord)
	assert.Len(t, items, 2)
	assert.Len(t, b.Transactions(), 1)
}

func TestEngine_Deposit_StopMidFanOut(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(
		model.Purchase{ID: "pa", CustomerID: "c1"},
		model.Purchase{ID: "pb", CustomerID: "c1"},
		model.Purchase{ID: "pc", CustomerID: "c1"},
	)
	e := newTestEngine(t, b)

	persisted := 0
	for item, err := range e.Deposit(context.Background(), "c1", "pa", 1) {
		require.NoError(t, err)
		if item.Phase == PhasePersisted {
			persisted++
			break
		}
	}

	assert.Equal(t, 1, persisted)
	assert.Equal(t, 1, b.CountCalls("POST /transactions"))
}

func TestEngine_Deposit_CreateFailureTruncates(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(model.Purchase{ID: "pa", CustomerID: "c1"}, model.Purchase{ID: "pb", CustomerID: "c1"})
	posts := 0
	b.Intercept = func(r *http.Request) int {
		if r.Method == http.MethodPost {
			posts++
			if posts == 2 {
				return http.StatusInternalServerError
			}
		}
		return 0
	}
	e := newTestEngine(t, b)

	items, err := Collect(e.Deposit(context.Background(), "c1", "pa", 1))
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	require.Len(t, items, 2)
	assert.Equal(t, "pa", items[1].Record.PurchaseID)
	assert.Equal(t, 2, b.CountCalls("POST /transactions"))
}

func TestEngine_Deposit_CanceledContextStopsFanOut(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(model.Purchase{ID: "pa", CustomerID: "c1"}, model.Purchase{ID: "pb", CustomerID: "c1"})
	e := newTestEngine(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotErr error
	for item, err := range e.Deposit(ctx, "c1", "pa", 1) {
		if err != nil {
			gotErr = err
			break
		}
		if item.Phase == PhasePersisted {
			cancel()
		}
	}

	require.ErrorIs(t, gotErr, context.Canceled)
	assert.Equal(t, 1, b.CountCalls("POST /transactions"))
}

func TestEngine_Deposit_NotifiesPerTransaction(t *testing.T) {
	b := banktest.NewBackend(t)
	seedBank(b)
	b.AddPurchases(model.Purchase{ID: "pa", CustomerID: "c1"}, model.Purchase{ID: "pb", CustomerID: "c1"})
	n := &recordingNotifier{name: "rec"}
	e := newTestEngine(t, b, n)

	_, err := Collect(e.Withdraw(WithOperationID(context.Background(), "op-w"), "c1", "pa", 3))
	require.NoError(t, err)

	events := n.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, model.OperationWithdraw, ev.Operation)
		assert.Equal(t, model.EventTransactionRecorded, ev.EventType)
		assert.Equal(t, "op-w", ev.OperationID)
		assert.True(t, strings.HasPrefix(ev.RecordID, "txn-"))
	}
}

// ─── CustomerPurchases ───────────────────────────────────────────────────────

func TestEngine_CustomerPurchases(t *testing.T) {
	b := banktest.NewBackend(t)
	b.AddPurchases(model.Purchase{ID: "pa", CustomerID: "c1"}, model.Purchase{ID: "pb", CustomerID: "c2"})
	e := newTestEngine(t, b)

	ps, err := e.CustomerPurchases(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "pa", ps[0].ID)

	_, err = e.CustomerPurchases(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestOperationIDFrom(t *testing.T) {
	assert.Empty(t, OperationIDFrom(context.Background()))
	assert.Equal(t, "abc", OperationIDFrom(WithOperationID(context.Background(), "abc")))
}
