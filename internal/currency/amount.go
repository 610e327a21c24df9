// Package currency holds the fixed-point money type used for invoice totals and
// the normalizer that turns free-form Indonesian/plain money text into it.
package currency

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Amount carries.
const Scale = 2

// StoragePrecision is the numeric(p,2) precision of money columns.
const StoragePrecision = 20

// Amount is an exact monetary value with two fractional digits.
// The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Amount{}

// FromDecimal rounds d to two fractional digits.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Scale)}
}

// FromInt returns a whole-unit amount.
func FromInt(units int64) Amount {
	return FromDecimal(decimal.NewFromInt(units))
}

// MustParse normalizes raw and panics on failure. Intended for constants and tests.
func MustParse(raw string) Amount {
	a, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// String renders the canonical form, e.g. "56489562.78".
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount         { return Amount{d: a.d.Neg()} }
func (a Amount) Abs() Amount         { return Amount{d: a.d.Abs()} }

// Div divides by an integer divisor and rounds back to two digits.
func (a Amount) Div(divisor int64) Amount {
	return FromDecimal(a.d.Div(decimal.NewFromInt(divisor)))
}

func (a Amount) Cmp(b Amount) int              { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool           { return a.d.Equal(b.d) }
func (a Amount) GreaterThan(b Amount) bool     { return a.d.GreaterThan(b.d) }
func (a Amount) IsZero() bool                  { return a.d.IsZero() }
func (a Amount) IsNegative() bool              { return a.d.IsNegative() }
func (a Amount) LessThanOrEqual(b Amount) bool { return a.d.LessThanOrEqual(b.d) }

// FitsPrecision reports whether a can be stored in a numeric(precision,2) column.
func (a Amount) FitsPrecision(precision int) bool {
	limit := decimal.New(1, int32(precision-Scale))
	return a.d.Abs().LessThan(limit)
}

// MarshalJSON emits the canonical string so clients never see binary floats.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON string (any recognized money format) or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Zero
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := Normalize(raw)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return &ParseError{Input: string(data), Reason: "not a number"}
	}
	*a = FromDecimal(d)
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(value any) error {
	if value == nil {
		*a = Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	*a = FromDecimal(d)
	return nil
}

// MaxStorable is the largest total a numeric(20,2) column holds.
var MaxStorable = MustParse("999999999999999999.99")
