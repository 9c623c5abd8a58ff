package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openshelf/circulation/internal/circulation"
)

// getPatronID extracts the patron id stored in the context by the JWT
// middleware and converts it to uint64.
func getPatronID(c echo.Context) (uint64, error) {
	v := c.Get("patron_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid patron_id in context")
}

// pathID parses the named path parameter as a positive uint64.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// engineError maps circulation engine outcomes to HTTP responses.
// Validation problems are 400, policy rejections 409 (blocked patrons
// 403), stale identifiers 404 and transient storage failures 503 with
// a retry hint, per the engine's error taxonomy.
func engineError(c echo.Context, err error) error {
	var limit *circulation.LimitExceededError
	if errors.As(err, &limit) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":      "limit_exceeded",
			"message":    limit.Error(),
			"borrowed":   limit.Borrowed,
			"limit":      limit.Limit,
			"can_borrow": limit.CanBorrow,
		})
	}
	var unavailable *circulation.ItemsUnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "items_unavailable",
			"message":     unavailable.Error(),
			"unavailable": unavailable.ItemIDs,
		})
	}

	switch {
	case errors.Is(err, circulation.ErrPatronBlocked):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "patron_blocked", "message": err.Error()})
	case errors.Is(err, circulation.ErrEmptyBasket),
		errors.Is(err, circulation.ErrInvalidDuration):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, circulation.ErrItemNotFound),
		errors.Is(err, circulation.ErrPatronNotFound),
		errors.Is(err, circulation.ErrLoanNotFound),
		errors.Is(err, circulation.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, circulation.ErrItemUnavailable),
		errors.Is(err, circulation.ErrNotLoaned),
		errors.Is(err, circulation.ErrDuplicateReservation),
		errors.Is(err, circulation.ErrNotReady),
		errors.Is(err, circulation.ErrAlreadyRenewed),
		errors.Is(err, circulation.ErrReservationPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "rejected", "message": err.Error()})
	case circulation.IsTransient(err):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "transient", "message": "temporary storage failure, retry the request", "retryable": true})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
}
