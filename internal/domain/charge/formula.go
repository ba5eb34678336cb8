// Package charge computes maintenance charges, late penalties and the
// per-unit unified charge lifecycle.
package charge

import (
	"fmt"

	"github.com/shopspring/decimal"

	"condo/internal/core/apperror"
	"condo/internal/core/types"
)

// Kind is the billing formula tag stored on a charge definition.
type Kind string

const (
	KindFix           Kind = "fix"
	KindArea          Kind = "area"
	KindPerson        Kind = "person"
	KindFixPerson     Kind = "fix_person"
	KindFixArea       Kind = "fix_area"
	KindPersonArea    Kind = "person_area"
	KindFixPersonArea Kind = "fix_person_area"
	KindFixVariable   Kind = "fix_variable"
)

// AllKinds lists every billing formula.
var AllKinds = []Kind{
	KindFix,
	KindArea,
	KindPerson,
	KindFixPerson,
	KindFixArea,
	KindPersonArea,
	KindFixPersonArea,
	KindFixVariable,
}

// Coefficients are the optional amounts a definition may carry.
// A nil coefficient counts as zero.
type Coefficients struct {
	FixAmount                *types.Amount `db:"fix_amount" json:"fixAmount,omitempty"`
	AreaAmount               *types.Amount `db:"area_amount" json:"areaAmount,omitempty"`
	PersonAmount             *types.Amount `db:"person_amount" json:"personAmount,omitempty"`
	FixChargeAmount          *types.Amount `db:"fix_charge_amount" json:"fixChargeAmount,omitempty"`
	UnitFixAmount            *types.Amount `db:"unit_fix_amount" json:"unitFixAmount,omitempty"`
	UnitVariablePersonAmount *types.Amount `db:"unit_variable_person_amount" json:"unitVariablePersonAmount,omitempty"`
	UnitVariableAreaAmount   *types.Amount `db:"unit_variable_area_amount" json:"unitVariableAreaAmount,omitempty"`
}

// each calls fn for every coefficient with its wire name.
func (c Coefficients) each(fn func(name string, v *types.Amount)) {
	fn("fixAmount", c.FixAmount)
	fn("areaAmount", c.AreaAmount)
	fn("personAmount", c.PersonAmount)
	fn("fixChargeAmount", c.FixChargeAmount)
	fn("unitFixAmount", c.UnitFixAmount)
	fn("unitVariablePersonAmount", c.UnitVariablePersonAmount)
	fn("unitVariableAreaAmount", c.UnitVariableAreaAmount)
}

// UnitSnapshot is the part of a unit a formula reads.
type UnitSnapshot struct {
	Area        types.Area
	PeopleCount int
}

// Formula is a billing formula. The set of implementations is closed.
type Formula interface {
	Kind() Kind
	// Calculate returns the base charge for one unit. It is total and never negative.
	Calculate(u UnitSnapshot) types.Amount
	sealed()
}

// FixFormula: fix_amount.
type FixFormula struct {
	FixAmount types.Amount
}

// AreaFormula: area × area_amount.
type AreaFormula struct {
	AreaAmount types.Amount
}

// PersonFormula: people_count × person_amount.
type PersonFormula struct {
	PersonAmount types.Amount
}

// FixPersonFormula: fix_charge_amount + people_count × person_amount.
type FixPersonFormula struct {
	FixChargeAmount types.Amount
	PersonAmount    types.Amount
}

// FixAreaFormula: fix_charge_amount + area × area_amount.
type FixAreaFormula struct {
	FixChargeAmount types.Amount
	AreaAmount      types.Amount
}

// PersonAreaFormula: area × area_amount + people_count × person_amount.
type PersonAreaFormula struct {
	AreaAmount   types.Amount
	PersonAmount types.Amount
}

// FixPersonAreaFormula: fix_charge_amount + area × area_amount + people_count × person_amount.
type FixPersonAreaFormula struct {
	FixChargeAmount types.Amount
	AreaAmount      types.Amount
	PersonAmount    types.Amount
}

// FixVariableFormula: unit_fix_amount + people_count × unit_variable_person_amount
// + area × unit_variable_area_amount.
type FixVariableFormula struct {
	UnitFixAmount            types.Amount
	UnitVariablePersonAmount types.Amount
	UnitVariableAreaAmount   types.Amount
}

func (FixFormula) Kind() Kind           { return KindFix }
func (AreaFormula) Kind() Kind          { return KindArea }
func (PersonFormula) Kind() Kind        { return KindPerson }
func (FixPersonFormula) Kind() Kind     { return KindFixPerson }
func (FixAreaFormula) Kind() Kind       { return KindFixArea }
func (PersonAreaFormula) Kind() Kind    { return KindPersonArea }
func (FixPersonAreaFormula) Kind() Kind { return KindFixPersonArea }
func (FixVariableFormula) Kind() Kind   { return KindFixVariable }

func (FixFormula) sealed()           {}
func (AreaFormula) sealed()          {}
func (PersonFormula) sealed()        {}
func (FixPersonFormula) sealed()     {}
func (FixAreaFormula) sealed()       {}
func (PersonAreaFormula) sealed()    {}
func (FixPersonAreaFormula) sealed() {}
func (FixVariableFormula) sealed()   {}

func (f FixFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(f.FixAmount)
}

func (f AreaFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(byArea(u, f.AreaAmount))
}

func (f PersonFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(byPerson(u, f.PersonAmount))
}

func (f FixPersonFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(f.FixChargeAmount + byPerson(u, f.PersonAmount))
}

func (f FixAreaFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(f.FixChargeAmount + byArea(u, f.AreaAmount))
}

func (f PersonAreaFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(byArea(u, f.AreaAmount) + byPerson(u, f.PersonAmount))
}

func (f FixPersonAreaFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(f.FixChargeAmount + byArea(u, f.AreaAmount) + byPerson(u, f.PersonAmount))
}

func (f FixVariableFormula) Calculate(u UnitSnapshot) types.Amount {
	return nonNegative(f.UnitFixAmount + byPerson(u, f.UnitVariablePersonAmount) + byArea(u, f.UnitVariableAreaAmount))
}

// byArea multiplies a per-square-meter rate by the unit area, truncated to whole Rials.
func byArea(u UnitSnapshot, rate types.Amount) types.Amount {
	if rate == 0 || u.Area.IsZero() {
		return 0
	}
	return types.FloorAmount(u.Area.Mul(decimal.NewFromInt(int64(rate))))
}

func byPerson(u UnitSnapshot, rate types.Amount) types.Amount {
	return types.Amount(int64(u.PeopleCount) * int64(rate))
}

func nonNegative(a types.Amount) types.Amount {
	if a < 0 {
		return 0
	}
	return a
}

// formulas maps each kind to its constructor. Built once; never mutated.
var formulas = func() map[Kind]func(Coefficients) Formula {
	z := types.AmountOrZero
	return map[Kind]func(Coefficients) Formula{
		KindFix: func(c Coefficients) Formula {
			return FixFormula{FixAmount: z(c.FixAmount)}
		},
		KindArea: func(c Coefficients) Formula {
			return AreaFormula{AreaAmount: z(c.AreaAmount)}
		},
		KindPerson: func(c Coefficients) Formula {
			return PersonFormula{PersonAmount: z(c.PersonAmount)}
		},
		KindFixPerson: func(c Coefficients) Formula {
			return FixPersonFormula{FixChargeAmount: z(c.FixChargeAmount), PersonAmount: z(c.PersonAmount)}
		},
		KindFixArea: func(c Coefficients) Formula {
			return FixAreaFormula{FixChargeAmount: z(c.FixChargeAmount), AreaAmount: z(c.AreaAmount)}
		},
		KindPersonArea: func(c Coefficients) Formula {
			return PersonAreaFormula{AreaAmount: z(c.AreaAmount), PersonAmount: z(c.PersonAmount)}
		},
		KindFixPersonArea: func(c Coefficients) Formula {
			return FixPersonAreaFormula{
				FixChargeAmount: z(c.FixChargeAmount),
				AreaAmount:      z(c.AreaAmount),
				PersonAmount:    z(c.PersonAmount),
			}
		},
		KindFixVariable: func(c Coefficients) Formula {
			return FixVariableFormula{
				UnitFixAmount:            z(c.UnitFixAmount),
				UnitVariablePersonAmount: z(c.UnitVariablePersonAmount),
				UnitVariableAreaAmount:   z(c.UnitVariableAreaAmount),
			}
		},
	}
}()

// IsValid reports whether k names a known formula.
func (k Kind) IsValid() bool {
	_, ok := formulas[k]
	return ok
}

// ParseFormula resolves a kind tag and its coefficients into a Formula.
// An unknown tag is a configuration error; it never yields a zero charge.
func ParseFormula(kind Kind, c Coefficients) (Formula, error) {
	build, ok := formulas[kind]
	if !ok {
		return nil, apperror.NewConfiguration(fmt.Sprintf("unknown charge kind %q", kind)).
			WithDetail("kind", string(kind))
	}
	return build(c), nil
}

// Calculate computes the base charge of a unit under the given formula tag.
func Calculate(kind Kind, c Coefficients, u UnitSnapshot) (types.Amount, error) {
	f, err := ParseFormula(kind, c)
	if err != nil {
		return 0, err
	}
	return f.Calculate(u), nil
}
