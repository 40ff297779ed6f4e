package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

func TestIsPassiveCategory(t *testing.T) {
	tests := []struct {
		category string
		want     bool
	}{
		{"SAVINGS_ACCOUNT", true},
		{"CHECKING_ACCOUNT", true},
		{"FIXED_TERM_ACCOUNT", true},
		{"savings_account", true},
		{" Checking_Account ", true},
		{"CREDIT_CARD", false},
		{"PERSONAL_LOAN", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPassiveCategory(tt.category))
		})
	}
}

func TestTallyProduct(t *testing.T) {
	c := model.Customer{ID: "c1", OwnedPassiveProductsQty: 1, OwnedActiveProductsQty: 2}

	passive := TallyProduct(c, "savings_account")
	assert.Equal(t, 2, passive.OwnedPassiveProductsQty)
	assert.Equal(t, 2, passive.OwnedActiveProductsQty)

	active := TallyProduct(c, "CREDIT_CARD")
	assert.Equal(t, 1, active.OwnedPassiveProductsQty)
	assert.Equal(t, 3, active.OwnedActiveProductsQty)

	// input is a value and stays untouched
	assert.Equal(t, 1, c.OwnedPassiveProductsQty)
	assert.Equal(t, 2, c.OwnedActiveProductsQty)
}
