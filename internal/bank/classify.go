package bank

import (
	"strings"

	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// Passive product categories: accounts that hold customer funds without
// extending credit. Every other category counts as active.
const (
	CategorySavingsAccount   = "SAVINGS_ACCOUNT"
	CategoryCheckingAccount  = "CHECKING_ACCOUNT"
	CategoryFixedTermAccount = "FIXED_TERM_ACCOUNT"
)

// IsPassiveCategory reports whether category names a passive product. The
// match is case-insensitive.
func IsPassiveCategory(category string) bool {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case CategorySavingsAccount, CategoryCheckingAccount, CategoryFixedTermAccount:
		return true
	default:
		return false
	}
}

// TallyProduct returns a copy of c with the owned-product counter for
// category incremented. The input is left untouched and nothing is written
// back to the backend.
func TallyProduct(c model.Customer, category string) model.Customer {
	if IsPassiveCategory(category) {
		c.OwnedPassiveProductsQty++
	} else {
		c.OwnedActiveProductsQty++
	}
	return c
}
