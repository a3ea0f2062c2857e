package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	salaryMaxDigits     = 10
	salaryDecimalPlaces = 2
)

var (
	// ErrSalaryTooPrecise is returned for amounts with more than two
	// fractional digits; values are never silently rounded.
	ErrSalaryTooPrecise = fmt.Errorf("ensure that there are no more than %d decimal places", salaryDecimalPlaces)
	// ErrSalaryTooLarge is returned when the amount exceeds the
	// numeric(10,2) column capacity.
	ErrSalaryTooLarge = fmt.Errorf("ensure that there are no more than %d digits in total", salaryMaxDigits)
)

// Salary is a fixed-precision money amount (10 digits total, 2 fractional).
// JSON output is always a two-decimal string, e.g. "75000.00".
type Salary struct {
	dec decimal.Decimal
}

// NewSalary validates d against the fixed precision and wraps it.
func NewSalary(d decimal.Decimal) (Salary, error) {
	if !d.Equal(d.Truncate(salaryDecimalPlaces)) {
		return Salary{}, ErrSalaryTooPrecise
	}
	limit := decimal.New(1, salaryMaxDigits-salaryDecimalPlaces)
	if d.Abs().Cmp(limit) >= 0 {
		return Salary{}, ErrSalaryTooLarge
	}
	return Salary{dec: d}, nil
}

// SalaryFromString parses a decimal string such as "75000" or "85000.50".
func SalaryFromString(s string) (Salary, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Salary{}, errors.New("a valid number is required")
	}
	return NewSalary(d)
}

// Decimal exposes the underlying decimal value.
func (s Salary) Decimal() decimal.Decimal {
	return s.dec
}

// Equal reports whether two salaries are numerically equal.
func (s Salary) Equal(other Salary) bool {
	return s.dec.Equal(other.dec)
}

// String renders the amount with exactly two fractional digits.
func (s Salary) String() string {
	return s.dec.StringFixed(salaryDecimalPlaces)
}

// MarshalJSON renders the amount as a fixed two-decimal string.
func (s Salary) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON number or a decimal string.
func (s *Salary) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return errors.New("a valid number is required")
	}
	parsed, err := NewSalary(d)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
