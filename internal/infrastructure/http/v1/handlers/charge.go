package handlers

import (
	"github.com/gin-gonic/gin"

	"condo/internal/core/security"
	"condo/internal/domain/charge"
	"condo/internal/infrastructure/http/v1/dto"
)

// ChargeHandler serves charge definitions, issuance and previews.
type ChargeHandler struct {
	*BaseHandler
	charges *charge.Service
}

// NewChargeHandler creates a charge handler.
func NewChargeHandler(base *BaseHandler, charges *charge.Service) *ChargeHandler {
	return &ChargeHandler{BaseHandler: base, charges: charges}
}

// CreateDefinition stores a billing-cycle definition.
// POST /api/v1/charges/definitions
func (h *ChargeHandler) CreateDefinition(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateDefinitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	managerID, err := security.GetScope(ctx).ActingManager(req.ManagerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	def, err := req.ToEntity(managerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.charges.CreateDefinition(ctx, def); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, def)
}

// GetDefinition returns one definition.
// GET /api/v1/charges/definitions/:id
func (h *ChargeHandler) GetDefinition(c *gin.Context) {
	defID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	def, err := h.charges.GetDefinition(c.Request.Context(), defID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, def)
}

// Issue creates the unified charges of a definition.
// POST /api/v1/charges/definitions/:id/issue
func (h *ChargeHandler) Issue(c *gin.Context) {
	defID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.IssueRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.charges.Issue(c.Request.Context(), defID, req.UnitIDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Preview computes the base charge of a hypothetical unit.
// POST /api/v1/charges/preview
func (h *ChargeHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	snapshot, err := req.Snapshot()
	if err != nil {
		h.Error(c, err)
		return
	}

	preview, err := h.charges.Preview(req.Kind, req.Coefficients, snapshot)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, preview)
}
