// Package middleware holds the echo middleware shared by the de-identification
// API: request IDs, request logging, panic recovery, and rate limiting. None
// of these middlewares log or buffer request bodies, which carry PHI.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header used to propagate request IDs.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an identifier for log correlation. An
// incoming X-Request-ID is preserved so callers can trace a record through
// the mask/remap round trip.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}
