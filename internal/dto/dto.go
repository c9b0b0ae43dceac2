package dto

import (
	"time"

	"dp-canteen-service/internal/model"
)

type OrderItem struct {
	MenuItemID   uint   `json:"menu_item_id" validate:"required"`
	Quantity     int32  `json:"quantity" validate:"required,min=1,max=50"`
	Instructions string `json:"instructions" validate:"max=255"`
}

type CreateOrderRequest struct {
	CanteenID    uint         `json:"canteen_id" validate:"required"`
	Items        []*OrderItem `json:"items" validate:"required,min=1,dive,required"`
	Instructions string       `json:"instructions" validate:"max=500"`
}

type UpdateStatusRequest struct {
	Status model.OrderStatus `json:"status" validate:"required"`
}

type OrderListQuery struct {
	Status string `query:"status"`
	Date   string `query:"date"` // YYYY-MM-DD, manager listing only
}

type InitiatePaymentRequest struct {
	OrderRef string              `json:"order_ref" validate:"required"`
	Method   model.PaymentMethod `json:"method" validate:"required,oneof=upi cash other"`
}

type ConfirmPaymentRequest struct {
	OrderRef      string               `json:"order_ref" validate:"required"`
	ExternalTxnID string               `json:"external_txn_id" validate:"max=255"`
	Outcome       model.PaymentOutcome `json:"outcome" validate:"required,oneof=success failed"`
}

type PickupScanRequest struct {
	Token string `json:"token" validate:"required"`
}

type OrderLineResponse struct {
	MenuItemID   uint   `json:"menu_item_id"`
	ItemName     string `json:"item_name"`
	UnitPrice    string `json:"unit_price"`
	Quantity     int32  `json:"quantity"`
	LineTotal    string `json:"line_total"`
	Instructions string `json:"instructions,omitempty"`
}

type OrderResponse struct {
	OrderRef         string               `json:"order_ref"`
	UserID           string               `json:"user_id"`
	CanteenID        uint                 `json:"canteen_id"`
	Status           model.OrderStatus    `json:"status"`
	Subtotal         string               `json:"subtotal"`
	Tax              string               `json:"tax"`
	Total            string               `json:"total"`
	Instructions     string               `json:"instructions,omitempty"`
	PickupConsumed   bool                 `json:"pickup_consumed"`
	PickupConsumedAt *time.Time           `json:"pickup_consumed_at,omitempty"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
	ConfirmedAt      *time.Time           `json:"confirmed_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	Lines            []*OrderLineResponse `json:"lines"`
}

func NewOrderResponse(o *model.Order) *OrderResponse {
	lines := make([]*OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = &OrderLineResponse{
			MenuItemID:   l.MenuItemID,
			ItemName:     l.ItemName,
			UnitPrice:    l.UnitPrice.StringFixed(2),
			Quantity:     l.Quantity,
			LineTotal:    l.LineTotal().StringFixed(2),
			Instructions: l.Instructions,
		}
	}

	return &OrderResponse{
		OrderRef:         o.OrderRef,
		UserID:           o.UserID,
		CanteenID:        o.CanteenID,
		Status:           o.Status,
		Subtotal:         o.Subtotal.StringFixed(2),
		Tax:              o.Tax.StringFixed(2),
		Total:            o.Total.StringFixed(2),
		Instructions:     o.Instructions,
		PickupConsumed:   o.PickupConsumed,
		PickupConsumedAt: o.PickupConsumedAt,
		PaidAt:           o.PaidAt,
		ConfirmedAt:      o.ConfirmedAt,
		CompletedAt:      o.CompletedAt,
		CreatedAt:        o.CreatedAt,
		Lines:            lines,
	}
}

func NewOrderListResponse(orders []*model.Order) []*OrderResponse {
	resp := make([]*OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = NewOrderResponse(o)
	}
	return resp
}

type PaymentResponse struct {
	PaymentRef    string              `json:"payment_ref"`
	OrderRef      string              `json:"order_ref,omitempty"`
	Amount        string              `json:"amount"`
	Status        model.PaymentStatus `json:"status"`
	Method        model.PaymentMethod `json:"method"`
	ExternalTxnID string              `json:"external_txn_id,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func NewPaymentResponse(p *model.Payment, orderRef string) *PaymentResponse {
	return &PaymentResponse{
		PaymentRef:    p.PaymentRef,
		OrderRef:      orderRef,
		Amount:        p.Amount.StringFixed(2),
		Status:        p.Status,
		Method:        p.Method,
		ExternalTxnID: p.ExternalTxnID,
		CompletedAt:   p.CompletedAt,
		CreatedAt:     p.CreatedAt,
	}
}

type PickupTokenResponse struct {
	OrderRef  string    `json:"order_ref"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ConfirmPaymentResponse struct {
	Payment     *PaymentResponse     `json:"payment"`
	Order       *OrderResponse       `json:"order"`
	PickupToken *PickupTokenResponse `json:"pickup_token,omitempty"`
}

type VerifyPickupResponse struct {
	Valid     bool           `json:"valid"`
	Order     *OrderResponse `json:"order"`
	Amount    string         `json:"amount"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
