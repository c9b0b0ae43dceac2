package handler

import (
	"net/http"

	"dp-canteen-service/internal/dto"
	"dp-canteen-service/internal/middleware"
	"dp-canteen-service/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) Initiate(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var req dto.InitiatePaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	payment, err := h.paymentService.Initiate(ctx, actor, req.OrderRef, req.Method)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewPaymentResponse(payment, req.OrderRef))
}

func (h *PaymentHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var req dto.ConfirmPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.paymentService.Confirm(ctx, actor, req.OrderRef, req.ExternalTxnID, req.Outcome)
	if err != nil {
		return err
	}

	resp := &dto.ConfirmPaymentResponse{
		Payment: dto.NewPaymentResponse(res.Payment, res.Order.OrderRef),
		Order:   dto.NewOrderResponse(res.Order),
	}
	if res.Token != nil {
		resp.PickupToken = &dto.PickupTokenResponse{
			OrderRef:  res.Order.OrderRef,
			Token:     res.Token.Payload,
			ExpiresAt: res.Token.ExpiresAt,
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	payment, order, err := h.paymentService.GetByRef(ctx, actor, c.Param("ref"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewPaymentResponse(payment, order.OrderRef))
}
