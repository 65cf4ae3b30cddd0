package skinmatch

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Cents is a price in minor currency units
type Cents int64

// ErrInvalidPrice is returned for price ceilings that are negative or not finite
var ErrInvalidPrice = errors.New("invalid price")

// CentsFromDollars converts a dollar amount to cents, rounding half away from
// zero. Amounts outside the int64 range saturate and NaN is zero.
func CentsFromDollars(dollars float64) Cents {
	cents := math.Round(dollars * 100)
	switch {
	case math.IsNaN(cents):
		return 0
	case cents >= math.MaxInt64:
		return math.MaxInt64
	case cents <= math.MinInt64:
		return math.MinInt64
	}
	return Cents(cents)
}

// PriceCeiling converts a user supplied maximum price in dollars
func PriceCeiling(dollars float64) (Cents, error) {
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, fmt.Errorf("%w: %v is not a finite amount", ErrInvalidPrice, dollars)
	}
	if dollars < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPrice)
	}
	return CentsFromDollars(dollars), nil
}

// Dollars formats the amount without a currency symbol, e.g. "15.00"
func (c Cents) Dollars() string {
	sign := ""
	v := uint64(c)
	if c < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (c Cents) Float() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	return "$" + c.Dollars()
}

// Product is the canonical product record regardless of where it was loaded from
type Product struct {
	ID          string
	Name        string
	Description string
	Tags        []string // concern tags, vocabulary casing where known
	Images      []string
	URL         string
	Price       Cents
}

// Image returns the first image reference, if any
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p Product) StringIndent(indent string) string {
	var sb strings.Builder
	sb.WriteString(indent)
	sb.WriteString(p.Name)
	sb.WriteString(" (")
	sb.WriteString(p.Price.String())
	sb.WriteRune(')')
	if len(p.Tags) > 0 {
		sb.WriteRune('\n')
		sb.WriteString(indent + "  concerns: ")
		sb.WriteString(strings.Join(p.Tags, ", "))
	}
	if p.Description != "" {
		sb.WriteRune('\n')
		sb.WriteString(indent + "  ")
		sb.WriteString(strings.TrimSpace(strings.ReplaceAll(p.Description, "\n", " ")))
	}
	return sb.String()
}

func (p Product) String() string {
	return p.StringIndent("")
}
