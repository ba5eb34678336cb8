package dto

import (
	"strings"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/charge"
)

// CreateDefinitionRequest is the body of POST /charges/definitions.
type CreateDefinitionRequest struct {
	ManagerID *id.ID      `json:"managerId"` // admin only
	HouseID   *id.ID      `json:"houseId"`
	Title     string      `json:"title" binding:"required,max=128"`
	Kind      charge.Kind `json:"kind" binding:"required"`

	charge.Coefficients

	OtherCostAmount       int64         `json:"otherCostAmount" binding:"gte=0"`
	Civil                 int64         `json:"civil" binding:"gte=0"`
	PaymentDeadlineDate   string        `json:"paymentDeadlineDate"`
	PaymentPenaltyPercent types.Percent `json:"paymentPenaltyPercent"`
	Details               string        `json:"details"`
}

// ToEntity builds the definition for managerID.
func (r *CreateDefinitionRequest) ToEntity(managerID id.ID) (*charge.Definition, error) {
	def := charge.NewDefinition(managerID, strings.TrimSpace(r.Title), r.Kind)
	def.HouseID = r.HouseID
	def.Coefficients = r.Coefficients
	def.OtherCostAmount = types.Amount(r.OtherCostAmount)
	def.Civil = types.Amount(r.Civil)
	def.PaymentPenaltyPercent = r.PaymentPenaltyPercent
	def.Details = r.Details

	if r.PaymentDeadlineDate != "" {
		deadline, err := types.ParseDate(r.PaymentDeadlineDate)
		if err != nil {
			return nil, apperror.NewFieldValidation("paymentDeadlineDate", "date must look like YYYY-MM-DD")
		}
		def.PaymentDeadlineDate = &deadline
	}
	return def, nil
}

// IssueRequest is the body of POST /charges/definitions/:id/issue.
// An empty list issues to every active unit of the definition's manager.
type IssueRequest struct {
	UnitIDs []id.ID `json:"unitIds"`
}

// PreviewRequest is the body of POST /charges/preview.
type PreviewRequest struct {
	Kind charge.Kind `json:"kind" binding:"required"`

	charge.Coefficients

	Area        string `json:"area"`
	PeopleCount int    `json:"peopleCount" binding:"gte=0"`
}

// Snapshot returns the hypothetical unit.
func (r *PreviewRequest) Snapshot() (charge.UnitSnapshot, error) {
	area, err := types.NewAreaFromString(r.Area)
	if err != nil || area.IsNegative() {
		return charge.UnitSnapshot{}, apperror.NewFieldValidation("area", "area must be a non-negative number")
	}
	return charge.UnitSnapshot{Area: area, PeopleCount: r.PeopleCount}, nil
}
