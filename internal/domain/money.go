package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT minor units (paise/cents) to avoid floating point errors.
type Money struct {
	Amount   int64  `json:"amount"`   // minor units
	Currency string `json:"currency"` // ISO 4217
}

// NewMoney creates a Money value from minor units.
// Negative amounts are rejected; Money is always a magnitude, direction lives on the ledger entry.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, fmt.Errorf("%w: amount must be non-negative, got %d", ErrInvalidAmount, amount)
	}
	if currency == "" {
		return Money{}, fmt.Errorf("%w: currency is required", ErrInvalidAmount)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewGatewayMoney creates a Money value destined for the payment gateway,
// enforcing the gateway's stated minimum charge in minor units.
func NewGatewayMoney(amount int64, currency string, gatewayMin int64) (Money, error) {
	m, err := NewMoney(amount, currency)
	if err != nil {
		return Money{}, err
	}
	if amount < gatewayMin {
		return Money{}, fmt.Errorf("%w: amount %d below gateway minimum %d", ErrInvalidAmount, amount, gatewayMin)
	}
	return m, nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Add returns the sum of two amounts in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract returns m minus other. A negative result fails with
// ErrInsufficientFunds rather than clamping to zero; clamping would hide bugs.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	if m.Amount < other.Amount {
		return Money{}, fmt.Errorf("%w: %d < %d", ErrInsufficientFunds, m.Amount, other.Amount)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// ToDecimal converts the int64 minor units to a shopspring/decimal.Decimal major-unit value.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(100))
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}
