package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/dto"
	"dp-canteen-service/internal/events"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/observability"
	"dp-canteen-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderService interface {
	Create(ctx context.Context, actor model.Actor, req *dto.CreateOrderRequest) (*model.Order, error)
	Get(ctx context.Context, actor model.Actor, orderRef string) (*model.Order, error)
	ListForUser(ctx context.Context, actor model.Actor, status model.OrderStatus) ([]*model.Order, error)
	ListForCanteen(ctx context.Context, actor model.Actor, status model.OrderStatus, day *time.Time) ([]*model.Order, error)
	Transition(ctx context.Context, actor model.Actor, orderRef string, target model.OrderStatus) (*model.Order, error)
	Cancel(ctx context.Context, actor model.Actor, orderRef string) (*model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	catalogRepo repository.CatalogRepository
	publisher   events.Publisher
	clock       Clock
	tax         model.TaxFunc
	logger      *zap.Logger
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	catalogRepo repository.CatalogRepository,
	publisher events.Publisher,
	clock Clock,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		publisher:   publisher,
		clock:       clock,
		tax:         model.ZeroTax,
		logger:      logger,
	}
}

func (s *orderServiceImpl) Create(ctx context.Context, actor model.Actor, req *dto.CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperror.Validation("an order needs at least one item")
	}

	itemIDs := make([]uint, 0, len(req.Items))
	for _, item := range req.Items {
		if item == nil || item.Quantity <= 0 {
			return nil, apperror.Validation("item quantity must be positive")
		}
		itemIDs = append(itemIDs, item.MenuItemID)
	}

	canteen, err := s.catalogRepo.FindCanteen(ctx, req.CanteenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Validation("canteen %d does not exist", req.CanteenID)
		}
		return nil, apperror.Internal("load canteen", err)
	}
	if !canteen.IsActive {
		return nil, apperror.Validation("canteen %d is not taking orders", req.CanteenID)
	}

	menuItems, err := s.catalogRepo.FindMenuItems(ctx, itemIDs)
	if err != nil {
		return nil, apperror.Internal("load menu items", err)
	}
	byID := make(map[uint]*model.MenuItem, len(menuItems))
	for _, m := range menuItems {
		byID[m.ID] = m
	}

	now := s.clock.Now()
	order := &model.Order{
		OrderRef:     newOrderRef(now),
		UserID:       actor.UserID,
		CanteenID:    canteen.ID,
		Status:       model.OrderStatusPending,
		Instructions: req.Instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        make([]model.OrderLine, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		m, ok := byID[item.MenuItemID]
		if !ok {
			return nil, apperror.Validation("menu item %d does not exist", item.MenuItemID)
		}
		if !m.Orderable(canteen.ID) {
			return nil, apperror.Validation("%s is not available at this canteen", m.Name).
				WithDetail("menu_item_id", m.ID)
		}

		order.Lines = append(order.Lines, model.OrderLine{
			MenuItemID:   m.ID,
			ItemName:     m.Name,
			UnitPrice:    m.Price,
			Quantity:     item.Quantity,
			Instructions: item.Instructions,
			CreatedAt:    now,
		})
	}
	order.RecomputeTotals(s.tax)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, apperror.Internal("store order", err)
	}

	observability.OrdersCreated.WithLabelValues(strconv.FormatUint(uint64(order.CanteenID), 10)).Inc()
	s.logger.Info("order created",
		zap.String("order_ref", order.OrderRef),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)))
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderCreated, order, actor.UserID, now))

	return order, nil
}

func (s *orderServiceImpl) Get(ctx context.Context, actor model.Actor, orderRef string) (*model.Order, error) {
	return s.load(ctx, nil, actor, orderRef)
}

// load hides orders the actor may not see behind NotFound.
func (s *orderServiceImpl) load(ctx context.Context, tx *gorm.DB, actor model.Actor, orderRef string) (*model.Order, error) {
	order, err := s.orderRepo.FindByRef(ctx, tx, orderRef)
	if err != nil {
		return nil, lookupErr(err, "order")
	}
	if !actor.CanAccess(order) {
		return nil, apperror.NotFound("order")
	}
	return order, nil
}

func (s *orderServiceImpl) ListForUser(ctx context.Context, actor model.Actor, status model.OrderStatus) ([]*model.Order, error) {
	if status != "" && !status.Valid() {
		return nil, apperror.Validation("unknown status %q", status)
	}

	orders, err := s.orderRepo.List(ctx, repository.OrderFilter{UserID: actor.UserID, Status: status})
	if err != nil {
		return nil, apperror.Internal("list orders", err)
	}
	return orders, nil
}

func (s *orderServiceImpl) ListForCanteen(ctx context.Context, actor model.Actor, status model.OrderStatus, day *time.Time) ([]*model.Order, error) {
	if !actor.IsStaff() {
		return nil, apperror.New(apperror.KindForbidden, "only canteen staff can list canteen orders")
	}
	if status != "" && !status.Valid() {
		return nil, apperror.Validation("unknown status %q", status)
	}

	filter := repository.OrderFilter{Status: status, CreatedOn: day}
	if !actor.IsAdmin() {
		if actor.ManagedCanteenID == nil {
			return nil, apperror.New(apperror.KindForbidden, "no canteen assigned to this manager")
		}
		filter.CanteenID = actor.ManagedCanteenID
	}

	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("list orders", err)
	}
	return orders, nil
}

// Transition applies a staff-driven status change. Payment and pickup drive
// their own edges; paid in particular is only ever set by a payment confirmation.
func (s *orderServiceImpl) Transition(ctx context.Context, actor model.Actor, orderRef string, target model.OrderStatus) (*model.Order, error) {
	if !target.Valid() {
		return nil, apperror.Validation("unknown status %q", target)
	}
	if target == model.OrderStatusCancelled {
		return s.Cancel(ctx, actor, orderRef)
	}
	if !actor.IsStaff() {
		return nil, apperror.New(apperror.KindForbidden, "only canteen staff can change order status")
	}

	var order *model.Order
	var from model.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.load(ctx, tx, actor, orderRef)
		if err != nil {
			return err
		}

		from = order.Status
		if target == model.OrderStatusPaid || !from.CanTransitionTo(target) {
			return apperror.InvalidTransition(string(from), string(target))
		}

		return s.advance(ctx, tx, order, target)
	})
	if err != nil {
		return nil, storeErr(err, "transition order")
	}

	observability.OrderTransitions.WithLabelValues(string(from), string(target)).Inc()
	s.logger.Info("order status changed",
		zap.String("order_ref", order.OrderRef),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor.UserID))
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderStatusChanged, order, actor.UserID, s.clock.Now()))

	return order, nil
}

// Cancel is allowed from pending or paid. Whether the actor may cancel is decided by CanAccess.
func (s *orderServiceImpl) Cancel(ctx context.Context, actor model.Actor, orderRef string) (*model.Order, error) {
	var order *model.Order
	var from model.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.load(ctx, tx, actor, orderRef)
		if err != nil {
			return err
		}

		from = order.Status
		if !from.CanTransitionTo(model.OrderStatusCancelled) {
			return apperror.InvalidTransition(string(from), string(model.OrderStatusCancelled))
		}

		return s.advance(ctx, tx, order, model.OrderStatusCancelled)
	})
	if err != nil {
		return nil, storeErr(err, "cancel order")
	}

	observability.OrderTransitions.WithLabelValues(string(from), string(model.OrderStatusCancelled)).Inc()
	s.logger.Info("order cancelled",
		zap.String("order_ref", order.OrderRef),
		zap.String("from", string(from)),
		zap.String("actor", actor.UserID))
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderCancelled, order, actor.UserID, s.clock.Now()))

	return order, nil
}

// advance writes order.Status -> target and mirrors the change on the in-memory order.
func (s *orderServiceImpl) advance(ctx context.Context, tx *gorm.DB, order *model.Order, target model.OrderStatus) error {
	now := s.clock.Now()
	err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, order.Status, target, now)
	if errors.Is(err, repository.ErrStale) {
		return apperror.InvalidTransition(string(order.Status), string(target)).
			WithDetail("reason", "order changed concurrently")
	}
	if err != nil {
		return err
	}

	applyStatus(order, target, now)
	return nil
}

func applyStatus(order *model.Order, target model.OrderStatus, at time.Time) {
	order.Status = target
	order.UpdatedAt = at
	switch target {
	case model.OrderStatusPaid:
		order.PaidAt = &at
	case model.OrderStatusConfirmed:
		order.ConfirmedAt = &at
	case model.OrderStatusCompleted:
		order.CompletedAt = &at
	}
}
