package handler

import (
	"net/http"
	"strconv"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/middleware"
	"dp-canteen-service/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	catalogService service.CatalogService
}

func NewAdminHandler(catalogService service.CatalogService) *AdminHandler {
	return &AdminHandler{
		catalogService: catalogService,
	}
}

func (h *AdminHandler) DeleteCanteen(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return apperror.Validation("canteen id must be a positive integer")
	}

	if err := h.catalogService.DeleteCanteen(ctx, actor, uint(id)); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
