package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"condo/internal/core/apperror"
	"condo/internal/core/types"
	"condo/internal/domain/charge"
	"condo/internal/infrastructure/http/v1/dto"
)

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	*BaseHandler
	sweeper *charge.Sweeper
	loc     *time.Location
	now     func() time.Time
}

// NewAdminHandler creates an admin handler. "Today" is taken in loc.
func NewAdminHandler(base *BaseHandler, sweeper *charge.Sweeper, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{BaseHandler: base, sweeper: sweeper, loc: loc, now: time.Now}
}

// Sweep runs the penalty sweep for a date, today by default.
// POST /api/v1/admin/penalties/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	var req dto.SweepRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	today := types.DateIn(h.now(), h.loc)
	if req.Date != "" {
		d, err := types.ParseDate(req.Date)
		if err != nil {
			h.Error(c, apperror.NewFieldValidation("date", "date must look like YYYY-MM-DD"))
			return
		}
		today = d
	}

	result, err := h.sweeper.Run(c.Request.Context(), today)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
