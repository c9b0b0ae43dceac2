package handler

import (
	"net/http"
	"time"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/dto"
	"dp-canteen-service/internal/middleware"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService  service.OrderService
	pickupService service.PickupService
}

func NewOrderHandler(orderService service.OrderService, pickupService service.PickupService) *OrderHandler {
	return &OrderHandler{
		orderService:  orderService,
		pickupService: pickupService,
	}
}

func (h *OrderHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var req dto.CreateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orderService.Create(ctx, actor, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var q dto.OrderListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return apperror.Wrap(apperror.KindValidation, "malformed query", err)
	}

	orders, err := h.orderService.ListForUser(ctx, actor, model.OrderStatus(q.Status))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderListResponse(orders))
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.Get(ctx, actor, c.Param("ref"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.Cancel(ctx, actor, c.Param("ref"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var req dto.UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orderService.Transition(ctx, actor, c.Param("ref"), req.Status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) PickupToken(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	ref := c.Param("ref")
	token, err := h.pickupService.FetchToken(ctx, actor, ref)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.PickupTokenResponse{
		OrderRef:  ref,
		Token:     token.Payload,
		ExpiresAt: token.ExpiresAt,
	})
}

// ManagerList is the canteen order queue: a manager sees their canteen, an admin sees all.
func (h *OrderHandler) ManagerList(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var q dto.OrderListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return apperror.Wrap(apperror.KindValidation, "malformed query", err)
	}

	var day *time.Time
	if q.Date != "" {
		d, err := time.Parse(time.DateOnly, q.Date)
		if err != nil {
			return apperror.Validation("date must look like 2026-01-31")
		}
		day = &d
	}

	orders, err := h.orderService.ListForCanteen(ctx, actor, model.OrderStatus(q.Status), day)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderListResponse(orders))
}
