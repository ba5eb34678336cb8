package charge

import (
	"context"
	"strings"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/entity"
	"condo/internal/core/id"
	"condo/internal/core/types"
)

// Definition configures one billing cycle: formula, extras and late terms.
// A definition is immutable once created; a new cycle gets a new definition.
type Definition struct {
	ID        id.ID  `db:"id" json:"id"`
	ManagerID id.ID  `db:"manager_id" json:"managerId"`
	HouseID   *id.ID `db:"house_id" json:"houseId,omitempty"`
	Title     string `db:"title" json:"title"`
	Kind      Kind   `db:"kind" json:"kind"`

	Coefficients

	OtherCostAmount types.Amount `db:"other_cost_amount" json:"otherCostAmount"`
	Civil           types.Amount `db:"civil" json:"civil"`

	PaymentDeadlineDate   *time.Time    `db:"payment_deadline_date" json:"paymentDeadlineDate,omitempty"`
	PaymentPenaltyPercent types.Percent `db:"payment_penalty_percent" json:"paymentPenaltyPercent"`

	Details   string    `db:"details" json:"details,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewDefinition creates a definition owned by managerID.
func NewDefinition(managerID id.ID, title string, kind Kind) *Definition {
	return &Definition{
		ID:        id.New(),
		ManagerID: managerID,
		Title:     title,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate implements entity.Validatable.
func (d *Definition) Validate(ctx context.Context) error {
	if strings.TrimSpace(d.Title) == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	if !d.Kind.IsValid() {
		return apperror.NewFieldValidation("kind", "unknown charge kind").WithDetail("kind", string(d.Kind))
	}

	var verr *apperror.AppError
	d.Coefficients.each(func(name string, v *types.Amount) {
		if v != nil && v.IsNegative() {
			if verr == nil {
				verr = apperror.NewValidation("coefficients must not be negative")
			}
			verr.WithField(name, "must not be negative")
		}
	})
	if verr != nil {
		return verr
	}

	if d.OtherCostAmount.IsNegative() {
		return apperror.NewFieldValidation("otherCostAmount", "must not be negative")
	}
	if d.Civil.IsNegative() {
		return apperror.NewFieldValidation("civil", "must not be negative")
	}
	if d.PaymentPenaltyPercent.IsNegative() || d.PaymentPenaltyPercent.GreaterThan(hundred) {
		return apperror.NewFieldValidation("paymentPenaltyPercent", "must be between 0 and 100")
	}
	return nil
}

// Formula resolves the definition's billing formula.
func (d *Definition) Formula() (Formula, error) {
	return ParseFormula(d.Kind, d.Coefficients)
}

// UnifiedCharge is one billing-cycle obligation of one unit.
//
// TotalChargeMonth always equals BaseCharge + PenaltyAmount + OtherCostAmount + Civil.
// Once IsPaid is set, the penalty is frozen at the paid date.
type UnifiedCharge struct {
	entity.BaseEntity

	ManagerID    id.ID  `db:"manager_id" json:"managerId"`
	UnitID       id.ID  `db:"unit_id" json:"unitId"`
	DefinitionID id.ID  `db:"definition_id" json:"definitionId"`
	Kind         Kind   `db:"kind" json:"kind"`
	Title        string `db:"title" json:"title"`

	BaseCharge       types.Amount `db:"base_charge" json:"baseCharge"`
	PenaltyAmount    types.Amount `db:"penalty_amount" json:"penaltyAmount"`
	OtherCostAmount  types.Amount `db:"other_cost_amount" json:"otherCostAmount"`
	Civil            types.Amount `db:"civil" json:"civil"`
	TotalChargeMonth types.Amount `db:"total_charge_month" json:"totalChargeMonth"`

	IsPaid               bool       `db:"is_paid" json:"isPaid"`
	PaidAt               *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	TransactionReference *string    `db:"transaction_reference" json:"transactionReference,omitempty"`
	PaymentAuthority     *string    `db:"payment_authority" json:"-"`

	PaymentDeadlineDate *time.Time    `db:"payment_deadline_date" json:"paymentDeadlineDate,omitempty"`
	PenaltyPercent      types.Percent `db:"penalty_percent" json:"penaltyPercent"`
}

// NewUnifiedCharge issues a charge of def for a unit with the given base amount.
func NewUnifiedCharge(def *Definition, unitID id.ID, base types.Amount, issuedAt time.Time) *UnifiedCharge {
	c := &UnifiedCharge{
		BaseEntity:          entity.NewBaseEntity(),
		ManagerID:           def.ManagerID,
		UnitID:              unitID,
		DefinitionID:        def.ID,
		Kind:                def.Kind,
		Title:               def.Title,
		BaseCharge:          base,
		OtherCostAmount:     def.OtherCostAmount,
		Civil:               def.Civil,
		PaymentDeadlineDate: def.PaymentDeadlineDate,
		PenaltyPercent:      def.PaymentPenaltyPercent,
	}
	c.RecomputePenalty(issuedAt)
	return c
}

// OpensSession reports whether authority is the gateway session last opened
// for this charge.
func (c *UnifiedCharge) OpensSession(authority string) bool {
	return c.PaymentAuthority != nil && *c.PaymentAuthority == authority
}

// CheckDate is the day lateness is measured at: the paid date once paid,
// otherwise ref.
func (c *UnifiedCharge) CheckDate(ref time.Time) time.Time {
	if c.IsPaid && c.PaidAt != nil {
		return *c.PaidAt
	}
	return ref
}

// RecomputePenalty refreshes PenaltyAmount and TotalChargeMonth as of ref
// and reports whether either value changed. Idempotent for a fixed ref.
func (c *UnifiedCharge) RecomputePenalty(ref time.Time) bool {
	penalty := ComputePenalty(c.BaseCharge, c.PaymentDeadlineDate, c.PenaltyPercent, c.CheckDate(ref))
	total := c.BaseCharge + penalty + c.OtherCostAmount + c.Civil

	changed := penalty != c.PenaltyAmount || total != c.TotalChargeMonth
	c.PenaltyAmount = penalty
	c.TotalChargeMonth = total
	return changed
}

// MarkPaid moves the charge to its terminal paid state. The paid date is the
// calendar day of paidAt in paidAt's own location.
//
// Paying again with the same reference is a no-op (applied=false). Paying again
// with a different reference fails with CHARGE_ALREADY_PAID.
func (c *UnifiedCharge) MarkPaid(reference string, paidAt time.Time) (applied bool, err error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return false, apperror.NewFieldValidation("reference", "transaction reference is required")
	}
	if c.IsPaid {
		if c.TransactionReference != nil && *c.TransactionReference == reference {
			return false, nil
		}
		return false, apperror.NewChargeAlreadyPaid(c.ID.String())
	}

	paid := types.Date(paidAt)
	c.IsPaid = true
	c.PaidAt = &paid
	c.TransactionReference = &reference
	c.RecomputePenalty(paid)
	c.Touch()
	return true, nil
}
