// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/hopgate/app/dto"
	"github.com/amirphl/hopgate/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ClientSignals extracts the visitor signals recorded with attribution events
type ClientSignals struct {
	// ProxyHeader names the header carrying the client IP; empty means use the socket address
	ProxyHeader string
}

// IP returns the client IP or nil when none is available.
// With a proxy header configured, a missing header means no IP.
func (s ClientSignals) IP(c fiber.Ctx) *string {
	if s.ProxyHeader == "" {
		return utils.NonEmpty(c.IP())
	}
	value := c.Get(s.ProxyHeader)
	if first, _, found := strings.Cut(value, ","); found {
		value = first
	}
	return utils.NonEmpty(value)
}

func (s ClientSignals) UserAgent(c fiber.Ctx) *string {
	return utils.NonEmpty(c.Get(fiber.HeaderUserAgent))
}

func (s ClientSignals) Referer(c fiber.Ctx) *string {
	return utils.NonEmpty(c.Get(fiber.HeaderReferer))
}

func ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext builds a context detached from the connection, carrying the
// request values the flows and logger read. Callers must call the cancel function.
func createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration, ip *string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.GetRespHeader(fiber.HeaderXRequestID))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get(fiber.HeaderUserAgent))
	if ip != nil {
		ctx = context.WithValue(ctx, utils.IPAddressKey, *ip)
	}
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "number", "numeric":
		return err.Field() + " must contain only digits"
	case "partner_code":
		return fmt.Sprintf("%s must be 1-%d letters, digits, '_' or '-'", err.Field(), utils.MaxPartnerCodeLength)
	default:
		return err.Field() + " is invalid"
	}
}
