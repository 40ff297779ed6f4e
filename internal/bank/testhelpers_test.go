package bank

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/bank/banktest"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

func newTestClient(t *testing.T, b *banktest.Backend) *Client {
	t.Helper()
	return NewClient(zap.NewNop(), StaticResolver{BaseURL: b.URL}, nil, ClientOptions{RetryMax: 1})
}

func newTestEngine(t *testing.T, b *banktest.Backend, notifiers ...Notifier) *Engine {
	t.Helper()
	return NewEngine(zap.NewNop(), newTestClient(t, b), notifiers...)
}

// seedBank loads the records used by the end-to-end scenarios.
func seedBank(b *banktest.Backend) {
	b.AddCustomers(
		model.Customer{ID: "c1", DocNumber: "123", Name: "Ana", CustomerType: model.CustomerTypeIndividual},
		model.Customer{ID: "c2", DocNumber: "456", Name: "Acme", CustomerType: model.CustomerTypeBusiness},
	)
	b.AddProducts(
		model.Product{ID: "p1", ProductCategory: "SAVINGS_ACCOUNT", ProductType: "PASSIVE"},
		model.Product{ID: "p2", ProductCategory: "CREDIT_CARD", ProductType: "ACTIVE"},
	)
}

// recordingNotifier captures delivered events.
type recordingNotifier struct {
	mu     sync.Mutex
	name   string
	err    error
	events []model.OperationEvent
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(_ context.Context, ev model.OperationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Events() []model.OperationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.OperationEvent(nil), n.events...)
}

var errBoom = errors.New("boom")
