package handlers

import (
	"github.com/gin-gonic/gin"

	"condo/internal/domain/charge"
	"condo/internal/domain/fund"
	"condo/internal/domain/unitupdate"
	"condo/internal/infrastructure/http/v1/dto"
)

// UnitHandler serves unit saves and the per-unit read views.
type UnitHandler struct {
	*BaseHandler
	units   *unitupdate.Service
	ledger  *fund.Ledger
	charges charge.UnifiedChargeRepository
}

// NewUnitHandler creates a unit handler.
func NewUnitHandler(base *BaseHandler, units *unitupdate.Service, ledger *fund.Ledger, charges charge.UnifiedChargeRepository) *UnitHandler {
	return &UnitHandler{BaseHandler: base, units: units, ledger: ledger, charges: charges}
}

// List returns one page of the caller's units.
// GET /api/v1/units
func (h *UnitHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	managerID, err := q.Manager()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.units.List(c.Request.Context(), managerID, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Create saves a new unit.
// POST /api/v1/units
func (h *UnitHandler) Create(c *gin.Context) {
	var form unitupdate.UnitForm
	if !h.BindJSON(c, &form) {
		return
	}

	unit, err := h.units.Create(c.Request.Context(), &form)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, unit)
}

// Get returns one unit.
// GET /api/v1/units/:id
func (h *UnitHandler) Get(c *gin.Context) {
	unitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	unit, err := h.units.Get(c.Request.Context(), unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, unit)
}

// Update applies the submitted form to a unit.
// PUT /api/v1/units/:id
func (h *UnitHandler) Update(c *gin.Context) {
	unitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var form unitupdate.UnitForm
	if !h.BindJSON(c, &form) {
		return
	}

	unit, err := h.units.Update(c.Request.Context(), unitID, &form)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, unit)
}

// DeactivateRenter ends the active tenancy today.
// POST /api/v1/units/:id/renter/deactivate
func (h *UnitHandler) DeactivateRenter(c *gin.Context) {
	unitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	unit, err := h.units.DeactivateRenter(c.Request.Context(), unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, unit)
}

// History returns the residence ledger.
// GET /api/v1/units/:id/history
func (h *UnitHandler) History(c *gin.Context) {
	unitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	items, err := h.units.History(c.Request.Context(), unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.HistoryResponse{Items: items})
}

// Fund returns the ledger balance and entries.
// GET /api/v1/units/:id/fund
func (h *UnitHandler) Fund(c *gin.Context) {
	ctx := c.Request.Context()
	unitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if _, err := h.units.Get(ctx, unitID); err != nil {
		h.Error(c, err)
		return
	}

	st, err := h.ledger.Statement(ctx, unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewFundResponse(st))
}

// Charges returns the unit's unpaid charges.
// GET /api/v1/units/:id/charges
func (h *UnitHandler) Charges(c *gin.Context) {
	ctx := c.Request.Context()
	unitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if _, err := h.units.Get(ctx, unitID); err != nil {
		h.Error(c, err)
		return
	}

	items, err := h.charges.ListUnpaidByUnit(ctx, unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewChargesResponse(items))
}
