package bank

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// Notifier receives an event for every record a composite operation persists.
// Delivery failures are logged and never alter the operation's stream.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev model.OperationEvent) error
}

type operationIDKey struct{}

// WithOperationID tags ctx with the id of the composite operation being run.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// OperationIDFrom returns the operation id carried by ctx, or "".
func OperationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(operationIDKey{}).(string)
	return id
}

// DefaultNotifyTimeout bounds a single notifier delivery.
const DefaultNotifyTimeout = 5 * time.Second

// Engine composes backend calls into the grant-product, deposit, and withdraw
// operations. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	logger        *zap.Logger
	client        *Client
	notifiers     []Notifier
	notifyTimeout time.Duration
}

// NewEngine constructs an Engine over client.
func NewEngine(logger *zap.Logger, client *Client, notifiers ...Notifier) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:        logger,
		client:        client,
		notifiers:     notifiers,
		notifyTimeout: DefaultNotifyTimeout,
	}
}

// WithNotifyTimeout sets how long each notifier may take per event.
// Non-positive values keep the current timeout.
func (e *Engine) WithNotifyTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.notifyTimeout = d
	}
	return e
}

// GrantProduct records that the customer identified by customerDocNumber now
// holds a product of productCategory.
//
// The stream carries a preview purchase built from the customer alone, then
// the purchase as persisted by the backend. A missing customer fails before
// anything is emitted; a missing product fails after the preview.
func (e *Engine) GrantProduct(ctx context.Context, customerDocNumber, productCategory string) Stream[model.Purchase] {
	return func(yield func(Item[model.Purchase], error) bool) {
		docNumber := strings.TrimSpace(customerDocNumber)
		category := strings.TrimSpace(productCategory)
		if docNumber == "" {
			fail(yield, invalid("customerDocNumber is required"))
			return
		}
		if category == "" {
			fail(yield, invalid("productCategory is required"))
			return
		}

		log := e.logger.With(
			zap.String("operation_id", OperationIDFrom(ctx)),
			zap.String("customer_doc_number", docNumber),
			zap.String("product_category", category))
		log.Info("bank.grant_product.start")

		customer, err := e.client.Customers.GetOne(ctx, docNumber)
		if err != nil {
			fail(yield, fmt.Errorf("lookup customer: %w", err))
			return
		}
		if customer == nil {
			fail(yield, fmt.Errorf("%w: doc number %q", ErrCustomerNotFound, docNumber))
			return
		}

		tallied := TallyProduct(*customer, category)
		log.Debug("bank.grant_product.customer_tallied",
			zap.String("customer_id", tallied.ID),
			zap.Int("owned_passive", tallied.OwnedPassiveProductsQty),
			zap.Int("owned_active", tallied.OwnedActiveProductsQty))

		preview := model.Purchase{
			CustomerID:      tallied.ID,
			CustomerType:    string(tallied.CustomerType),
			CustomerName:    tallied.Name,
			ProductCategory: category,
		}
		if !yield(Preview(preview), nil) {
			log.Info("bank.grant_product.abandoned")
			return
		}

		product, err := e.client.Products.GetOne(ctx, category)
		if err != nil {
			fail(yield, fmt.Errorf("lookup product: %w", err))
			return
		}
		if product == nil {
			fail(yield, fmt.Errorf("%w: category %q", ErrProductNotFound, category))
			return
		}

		complete := preview
		complete.ProductID = product.ID
		complete.ProductType = product.ProductType
		if err := checkPurchase(complete); err != nil {
			fail(yield, err)
			return
		}

		created, err := e.client.Purchases.Create(ctx, complete)
		if err != nil {
			fail(yield, fmt.Errorf("create purchase: %w", err))
			return
		}
		log.Info("bank.grant_product.persisted", zap.String("purchase_id", created.ID))
		e.notify(ctx, model.NewPurchaseEvent(OperationIDFrom(ctx), created))

		yield(Persisted(created), nil)
	}
}

// Deposit records a deposit of amount for the customer. See moveMoney.
func (e *Engine) Deposit(ctx context.Context, customerID, purchaseID string, amount float64) Stream[model.Transaction] {
	return e.moveMoney(ctx, model.OperationDeposit, model.TransactionDeposit, customerID, purchaseID, amount)
}

// Withdraw records a withdrawal of amount for the customer. See moveMoney.
func (e *Engine) Withdraw(ctx context.Context, customerID, purchaseID string, amount float64) Stream[model.Transaction] {
	return e.moveMoney(ctx, model.OperationWithdraw, model.TransactionWithdrawal, customerID, purchaseID, amount)
}

// moveMoney emits a preview transaction for the customer, then creates one
// transaction per purchase the customer holds, in backend order. purchaseID
// must be present but does not narrow the fan-out.
func (e *Engine) moveMoney(
	ctx context.Context,
	op model.Operation,
	txType model.TransactionType,
	customerID, purchaseID string,
	amount float64,
) Stream[model.Transaction] {
	return func(yield func(Item[model.Transaction], error) bool) {
		customerID := strings.TrimSpace(customerID)
		if customerID == "" {
			fail(yield, invalid("customerId is required"))
			return
		}
		if strings.TrimSpace(purchaseID) == "" {
			fail(yield, invalid("purchaseId is required"))
			return
		}
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			fail(yield, invalid("amount must be a finite number"))
			return
		}

		log := e.logger.With(
			zap.String("operation_id", OperationIDFrom(ctx)),
			zap.String("operation", string(op)),
			zap.String("customer_id", customerID))
		log.Info("bank.transaction.start", zap.Float64("amount", amount))

		matches, err := e.client.Customers.GetByFilter(ctx, FilterCustomerID, customerID)
		if err != nil {
			fail(yield, fmt.Errorf("lookup customer: %w", err))
			return
		}
		if len(matches) == 0 {
			fail(yield, fmt.Errorf("%w: id %q", ErrCustomerNotFound, customerID))
			return
		}
		customer := matches[0]

		stub := model.Transaction{
			CustomerID:      customer.ID,
			TransactionType: txType,
			Amount:          amount,
		}
		if stub.CustomerID == "" {
			stub.CustomerID = customerID
		}
		if !yield(Preview(stub), nil) {
			log.Info("bank.transaction.abandoned")
			return
		}

		purchases, err := e.client.Purchases.GetByFilter(ctx, FilterPurchaseByCustomer, customerID)
		if err != nil {
			fail(yield, fmt.Errorf("list purchases: %w", err))
			return
		}
		log.Debug("bank.transaction.fan_out", zap.Int("purchases", len(purchases)))

		for _, p := range purchases {
			if err := ctx.Err(); err != nil {
				fail(yield, err)
				return
			}

			tx := stub
			tx.PurchaseID = p.ID
			if err := checkTransaction(tx); err != nil {
				fail(yield, err)
				return
			}

			created, err := e.client.Transactions.Create(ctx, tx)
			if err != nil {
				fail(yield, fmt.Errorf("create transaction for purchase %q: %w", p.ID, err))
				return
			}
			log.Info("bank.transaction.persisted",
				zap.String("purchase_id", p.ID),
				zap.String("transaction_id", created.ID))
			e.notify(ctx, model.NewTransactionEvent(OperationIDFrom(ctx), op, created))

			if !yield(Persisted(created), nil) {
				log.Info("bank.transaction.abandoned")
				return
			}
		}
		log.Info("bank.transaction.complete", zap.Int("persisted", len(purchases)))
	}
}

// CustomerPurchases lists the purchases held by the customer.
func (e *Engine) CustomerPurchases(ctx context.Context, customerID string) ([]model.Purchase, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, invalid("customerId is required")
	}
	purchases, err := e.client.Purchases.GetByFilter(ctx, FilterPurchaseByCustomer, customerID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

// notify dispatches ev to every notifier. The record is already persisted, so
// delivery runs even if the caller has gone away, but each notifier gets at
// most notifyTimeout.
func (e *Engine) notify(ctx context.Context, ev model.OperationEvent) {
	base := context.WithoutCancel(ctx)
	for _, n := range e.notifiers {
		nctx, cancel := context.WithTimeout(base, e.notifyTimeout)
		err := n.Notify(nctx, ev)
		cancel()
		if err != nil {
			metrics.IncNotifierError(n.Name())
			e.logger.Warn("bank.notify_failed",
				zap.String("notifier", n.Name()),
				zap.String("operation_id", ev.OperationID),
				zap.String("event_type", ev.EventType),
				zap.String("record_id", ev.RecordID),
				zap.Error(err))
		}
	}
}

func checkPurchase(p model.Purchase) error {
	fields := []struct{ name, value string }{
		{"customerId", p.CustomerID},
		{"customerType", p.CustomerType},
		{"customerName", p.CustomerName},
		{"productId", p.ProductID},
		{"productType", p.ProductType},
		{"productCategory", p.ProductCategory},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: purchase missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return nil
}

func checkTransaction(t model.Transaction) error {
	var missing []string
	if t.CustomerID == "" {
		missing = append(missing, "customerId")
	}
	if t.PurchaseID == "" {
		missing = append(missing, "purchaseId")
	}
	if t.TransactionType == "" {
		missing = append(missing, "transactionType")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: transaction missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return nil
}
