package handler

import (
	"net/http"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/dto"
	"dp-canteen-service/internal/middleware"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/service"

	"github.com/labstack/echo/v4"
)

// PickupHandler serves the counter scanner: verify previews, confirm consumes.
type PickupHandler struct {
	pickupService service.PickupService
}

func NewPickupHandler(pickupService service.PickupService) *PickupHandler {
	return &PickupHandler{
		pickupService: pickupService,
	}
}

// scannerScope resolves which canteen the scanning staff member may redeem for.
func scannerScope(c echo.Context) (model.Actor, *uint, error) {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return actor, nil, err
	}
	if !actor.IsStaff() {
		return actor, nil, apperror.New(apperror.KindForbidden, "only canteen staff can scan pickup tokens")
	}
	if actor.Role == model.RoleManager && actor.ManagedCanteenID == nil {
		return actor, nil, apperror.New(apperror.KindForbidden, "no canteen assigned to this manager")
	}
	return actor, actor.ScopeCanteenID(), nil
}

func (h *PickupHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	_, scope, err := scannerScope(c)
	if err != nil {
		return err
	}

	var req dto.PickupScanRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.pickupService.Verify(ctx, req.Token, scope)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.VerifyPickupResponse{
		Valid:     true,
		Order:     dto.NewOrderResponse(res.Order),
		Amount:    res.Payload.Amount,
		ExpiresAt: res.Payload.ExpiresAt,
	})
}

func (h *PickupHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	actor, scope, err := scannerScope(c)
	if err != nil {
		return err
	}

	var req dto.PickupScanRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.pickupService.Confirm(ctx, req.Token, scope, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}
