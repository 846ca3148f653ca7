/*
Package ledger provides the core cashbook model shared by every engine.

PURPOSE:
  This package contains the domain-agnostic building blocks for the
  accounting core: a decimal Money value, the immutable CashbookEntry
  record, the Cashbook container, and the narrow Store interface the
  engines persist through. Posting, reconciliation, and reporting all
  depend on this package and never on each other.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: An immutable amount-with-currency value
  - RoundMoney: THE canonical rounding rule (half away from zero, 2dp)

DESIGN PRINCIPLES:
  1. Immutability: Money values are never mutated, operations return new values
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Currency safety: Mixing currencies is an error, never a silent coercion
  4. One rounding rule: Posting arithmetic and reconciliation tolerance
     checks share RoundMoney so the two can never drift apart

USAGE:
  price := ledger.NewMoney(decimal.NewFromFloat(19.995), "USD")
  rounded := price.Round()                  // 20.00 USD
  total, err := rounded.Add(tax)            // err if tax is not USD

SEE ALSO:
  - entry.go: CashbookEntry and Cashbook
  - errors.go: CurrencyMismatchError and friends
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Immutable amount with currency
// =============================================================================

// DefaultCurrency is used when an event or entry does not name one.
const DefaultCurrency = "USD"

// Money is an immutable decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}
}

func NewMoneyFromFloat(amount float64, currency string) Money {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// MustParseMoney parses "123.45" into Money. Panics on malformed input;
// intended for constants and tests only.
func MustParseMoney(s, currency string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("ledger: bad money literal %q: %v", s, err))
	}
	return NewMoney(d, currency)
}

// Add returns a + b. Fails if the currencies differ.
func (m Money) Add(b Money) (Money, error) {
	if err := m.sameCurrency(b); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(b.Amount), Currency: m.Currency}, nil
}

// Sub returns a - b. Fails if the currencies differ.
func (m Money) Sub(b Money) (Money, error) {
	if err := m.sameCurrency(b); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(b.Amount), Currency: m.Currency}, nil
}

func (m Money) Neg() Money  { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }
func (m Money) Abs() Money  { return Money{Amount: m.Amount.Abs(), Currency: m.Currency} }
func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Round applies the canonical rounding rule to this value.
func (m Money) Round() Money {
	return Money{Amount: RoundMoney(m.Amount), Currency: m.Currency}
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

func (m Money) sameCurrency(b Money) error {
	if m.Currency != b.Currency {
		return &CurrencyMismatchError{Left: m.Currency, Right: b.Currency}
	}
	return nil
}

// =============================================================================
// ROUNDING - The single source of truth
// =============================================================================

// RoundMoney rounds to 2 fractional digits using round-half-away-from-zero:
// 1.005 -> 1.01, -1.005 -> -1.01, 1.004 -> 1.00.
//
// INVARIANT: every tolerance comparison in this repository goes through this
// function. Do NOT substitute decimal.RoundBank (banker's rounding): half-even
// would disagree with posting arithmetic on exact .005 boundaries.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// AmountTolerance is the maximum rounded-amount difference for two entries to
// be treated as the same settlement.
var AmountTolerance = decimal.NewFromFloat(0.01)

// WithinAmountTolerance reports whether two amounts match after canonical
// rounding, within AmountTolerance.
func WithinAmountTolerance(a, b decimal.Decimal) bool {
	diff := RoundMoney(a).Sub(RoundMoney(b)).Abs()
	return diff.LessThanOrEqual(AmountTolerance)
}
