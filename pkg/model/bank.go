package model

import "time"

// CustomerType classifies the holder of a customer record.
type CustomerType string

const (
	CustomerTypeIndividual CustomerType = "INDIVIDUAL"
	CustomerTypeBusiness   CustomerType = "BUSINESS"
)

// TransactionType tags a transaction as money in or money out.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// Customer is a bank customer as stored by the resource backend.
// The passive counter keeps the backend's wire spelling.
type Customer struct {
	ID                      string       `json:"id,omitempty"`
	CustomerType            CustomerType `json:"customerType,omitempty"`
	Name                    string       `json:"name,omitempty"`
	DocType                 string       `json:"docType,omitempty"`
	DocNumber               string       `json:"docNumber,omitempty"`
	CreatedAt               *time.Time   `json:"createdAt,omitempty"`
	Address                 string       `json:"address,omitempty"`
	PhoneNumber             string       `json:"phoneNumber,omitempty"`
	State                   string       `json:"state,omitempty"`
	Email                   string       `json:"email,omitempty"`
	IMEIMobilePhoneNumber   string       `json:"imeiMobilePhoneNumber,omitempty"`
	LastModifiedAt          *time.Time   `json:"lastModifiedAt,omitempty"`
	OwnedPassiveProductsQty int          `json:"ownedPasiveProductsQty"`
	OwnedActiveProductsQty  int          `json:"ownedActiveProductsQty"`
}

// Product is a product offered by the bank, keyed by category on the backend.
type Product struct {
	ID              string     `json:"id,omitempty"`
	ProductType     string     `json:"productType,omitempty"`
	ProductCategory string     `json:"productCategory,omitempty"`
	State           string     `json:"state,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

// Purchase links a customer to a product they hold. Policy fields are owned
// by the backend and pass through this service untouched.
type Purchase struct {
	ID              string     `json:"id,omitempty"`
	CustomerID      string     `json:"customerId,omitempty"`
	CustomerType    string     `json:"customerType,omitempty"`
	CustomerName    string     `json:"customerName,omitempty"`
	ProductID       string     `json:"productId,omitempty"`
	ProductType     string     `json:"productType,omitempty"`
	ProductCategory string     `json:"productCategory,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	State           string     `json:"state,omitempty"`
	AccountNo       string     `json:"accountNo,omitempty"`
	Balance         *float64   `json:"balance,omitempty"`

	HasCommissionPerMaintenance              *bool    `json:"hasCommissionPerMaintenance,omitempty"`
	CommissionPerMaintenancePercentage       *float64 `json:"commissionPerMaintenancePercentage,omitempty"`
	HasTransactionLimitPerMonth              *bool    `json:"hasTransactionLimitPerMonth,omitempty"`
	TransactionLimitPerMonthNumber           *int     `json:"transactionLimitPerMonthNumber,omitempty"`
	MaxQtyOfCreditsAllowed                   *int     `json:"maxQtyOfCreditsAllowed,omitempty"`
	CreditLimitAmount                        *float64 `json:"creditLimitAmount,omitempty"`
	TransactionsMadeByCustomerInCurrentMonth *int     `json:"transactionsMadeByCustomerInCurrentMonth,omitempty"`
	PurchaseSource                           string   `json:"purchaseSource,omitempty"`
}

// Transaction records money moved against a purchase.
type Transaction struct {
	ID              string          `json:"id,omitempty"`
	CustomerID      string          `json:"customerId,omitempty"`
	PurchaseID      string          `json:"purchaseId,omitempty"`
	Source          string          `json:"source,omitempty"`
	TransactionType TransactionType `json:"transactionType,omitempty"`
	EmittedAt       *time.Time      `json:"emittedAt,omitempty"`
	Amount          float64         `json:"amount"`
	State           string          `json:"state,omitempty"`
}

// RecordID returns the backend key used for updates and deletes.
func (c Customer) RecordID() string { return c.ID }

// RecordID returns the backend key used for updates and deletes.
func (p Product) RecordID() string { return p.ID }

// RecordID returns the backend key used for updates and deletes.
func (p Purchase) RecordID() string { return p.ID }

// RecordID returns the backend key used for updates and deletes.
func (t Transaction) RecordID() string { return t.ID }
