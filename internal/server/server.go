package server

import (
	"context"
	"net/http"

	"dp-canteen-service/internal/handler"
	appmw "dp-canteen-service/internal/middleware"
	"dp-canteen-service/internal/model"
	"dp-canteen-service/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	echo           *echo.Echo
	logger         *zap.Logger
	jwtSecret      string
	scanLimiter    middleware.RateLimiterStore
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
	pickupHandler  *handler.PickupHandler
	adminHandler   *handler.AdminHandler
}

func NewServer(
	logger *zap.Logger,
	jwtSecret string,
	scanLimiter middleware.RateLimiterStore,
	orderService service.OrderService,
	paymentService service.PaymentService,
	pickupService service.PickupService,
	catalogService service.CatalogService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID))
			return nil
		},
	}))
	e.Use(middleware.CORS())
	e.Use(appmw.Metrics())

	s := &Server{
		echo:           e,
		logger:         logger,
		jwtSecret:      jwtSecret,
		scanLimiter:    scanLimiter,
		orderHandler:   handler.NewOrderHandler(orderService, pickupService),
		paymentHandler: handler.NewPaymentHandler(paymentService),
		pickupHandler:  handler.NewPickupHandler(pickupService),
		adminHandler:   handler.NewAdminHandler(catalogService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := api.Group("", appmw.JWTAuth(s.jwtSecret))
	staff := appmw.RequireRole(model.RoleManager, model.RoleAdmin)

	// -------- orders --------
	orders := authed.Group("/orders")
	orders.POST("", s.orderHandler.Create)
	orders.GET("", s.orderHandler.List)
	orders.GET("/:ref", s.orderHandler.Get)
	orders.POST("/:ref/cancel", s.orderHandler.Cancel)
	orders.POST("/:ref/status", s.orderHandler.UpdateStatus, staff)
	orders.GET("/:ref/pickup-token", s.orderHandler.PickupToken)

	authed.GET("/manager/orders", s.orderHandler.ManagerList, staff)

	// -------- payments --------
	payments := authed.Group("/payments")
	payments.POST("/initiate", s.paymentHandler.Initiate)
	payments.POST("/confirm", s.paymentHandler.Confirm)
	payments.GET("/:ref", s.paymentHandler.Get)

	// -------- pickup counter --------
	pickup := authed.Group("/pickup", staff, appmw.ScanRateLimit(s.scanLimiter))
	pickup.POST("/verify", s.pickupHandler.Verify)
	pickup.POST("/confirm", s.pickupHandler.Confirm)

	// -------- admin --------
	admin := authed.Group("/admin", appmw.RequireRole(model.RoleAdmin))
	admin.DELETE("/canteens/:id", s.adminHandler.DeleteCanteen)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	s.logger.Info("starting HTTP server", zap.String("addr", address))
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
