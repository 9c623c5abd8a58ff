package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentPatronID returns a string form of the authenticated patron's
// ID for rate-limit key building, or "anon" for unauthenticated
// requests.  JWTAuth stores the raw claim, which decodes as float64
// from JSON, so several types are accepted.
func currentPatronID(c echo.Context) string {
	v := c.Get("patron_id")
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		return fmt.Sprintf("%.0f", t)
	case uint64:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	}
	return "anon"
}
