// Package types provides common type aliases and utilities.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in whole Rials.
// Charges, penalties and ledger entries are always integral.
type Amount int64

func (a Amount) Int64() int64 { return int64(a) }

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) IsPositive() bool { return a > 0 }

func (a Amount) IsNegative() bool { return a < 0 }

func (a Amount) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(a)) }

// String formats the amount with thousands separators (1,200,000).
func (a Amount) String() string {
	s := strconv.FormatInt(int64(a), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// AmountOrZero dereferences an optional coefficient, treating nil as zero.
func AmountOrZero(a *Amount) Amount {
	if a == nil {
		return 0
	}
	return *a
}

// FloorAmount truncates a non-negative decimal to whole Rials.
func FloorAmount(d decimal.Decimal) Amount {
	return Amount(d.Floor().IntPart())
}

// Area is a floor area in square meters.
// Uses decimal.Decimal to avoid floating-point errors in rate multiplication.
type Area = decimal.Decimal

// NewAreaFromString parses an area such as "85.5".
func NewAreaFromString(s string) (Area, error) {
	s = strings.TrimSpace(NormalizeDigits(s))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse area %q: %w", s, err)
	}
	return d, nil
}

// MustArea creates an Area from a string, panics on error.
// Use only for constants and tests.
func MustArea(s string) Area {
	d, err := NewAreaFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Percent is a rate such as 2 (meaning 2%).
type Percent = decimal.Decimal

// MustPercent creates a Percent from a string, panics on error.
// Use only for constants and tests.
func MustPercent(s string) Percent {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NormalizeDigits maps Persian and Arabic-Indic digits to ASCII.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}
		return r
	}, s)
}

// ParseCount parses a people count typed into a form.
// Anything that is not a non-negative integer yields 0.
func ParseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(NormalizeDigits(s)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
