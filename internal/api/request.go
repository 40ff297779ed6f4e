package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// GrantProductRequest carries the grant-product query parameters.
type GrantProductRequest struct {
	CustomerDocNumber string `query:"customerDocNumber"`
	ProductCategory   string `query:"productCategory"`
}

// Validate checks that GrantProductRequest has all required fields.
func (r *GrantProductRequest) Validate() error {
	if strings.TrimSpace(r.CustomerDocNumber) == "" {
		return fmt.Errorf("customerDocNumber is required")
	}
	if strings.TrimSpace(r.ProductCategory) == "" {
		return fmt.Errorf("productCategory is required")
	}
	return nil
}

// TransactionRequest carries the deposit and withdraw query parameters.
// Amount is kept as text until Validate parses it.
type TransactionRequest struct {
	CustomerID string `query:"customerId"`
	PurchaseID string `query:"purchaseId"`
	Amount     string `query:"amount"`

	amount decimal.Decimal
}

// Validate checks required fields and parses Amount as a decimal number.
func (r *TransactionRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("customerId is required")
	}
	if strings.TrimSpace(r.PurchaseID) == "" {
		return fmt.Errorf("purchaseId is required")
	}
	if strings.TrimSpace(r.Amount) == "" {
		return fmt.Errorf("amount is required")
	}
	amt, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return fmt.Errorf("amount must be a number: %q", r.Amount)
	}
	r.amount = amt
	return nil
}

// AmountFloat returns the validated amount as the backend's float representation.
func (r *TransactionRequest) AmountFloat() float64 {
	return r.amount.InexactFloat64()
}

func (r *TransactionRequest) params() map[string]string {
	return map[string]string{
		"customerId": r.CustomerID,
		"purchaseId": r.PurchaseID,
		"amount":     r.amount.String(),
	}
}

func (r *GrantProductRequest) params() map[string]string {
	return map[string]string{
		"customerDocNumber": r.CustomerDocNumber,
		"productCategory":   r.ProductCategory,
	}
}
