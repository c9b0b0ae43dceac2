package handler

import (
	"errors"
	"net/http"
	"strings"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/dto"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders every error as {code, message, details} with the status of its kind.
// Internal causes are logged, never returned to the client.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := toResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("write error response", zap.Error(err))
		}
	}
}

func toResponse(err error) (int, dto.ErrorResponse) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == apperror.KindInternal {
			return appErr.Kind.Status, dto.ErrorResponse{Code: appErr.Kind.Code, Message: "internal server error"}
		}
		return appErr.Kind.Status, dto.ErrorResponse{
			Code:    appErr.Kind.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, dto.ErrorResponse{
			Code:    httpCode(httpErr.Code),
			Message: strings.ToLower(http.StatusText(httpErr.Code)),
		}
	}

	return http.StatusInternalServerError, dto.ErrorResponse{Code: apperror.KindInternal.Code, Message: "internal server error"}
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return apperror.KindNotFound.Code
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnauthorized:
		return apperror.KindUnauthorized.Code
	case http.StatusTooManyRequests:
		return apperror.KindRateLimited.Code
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	}
	if status < http.StatusInternalServerError {
		return apperror.KindValidation.Code
	}
	return apperror.KindInternal.Code
}

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Wrap(apperror.KindValidation, "invalid request", err)
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return apperror.Wrap(apperror.KindValidation, "invalid request", err).WithDetail("fields", fields)
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperror.Wrap(apperror.KindValidation, "malformed request body", err)
	}
	return c.Validate(req)
}
