package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openshelf/circulation/internal/basket"
	"github.com/openshelf/circulation/internal/circulation"
	"github.com/openshelf/circulation/internal/queue"
	"github.com/openshelf/circulation/internal/repository"
	queuepub "github.com/openshelf/circulation/internal/service"
)

// CirculationHandler serves the patron-facing circulation endpoints:
// checkout, reservations, renewal and the personal loan and
// reservation views.
type CirculationHandler struct {
	Engine       *circulation.Engine
	Baskets      basket.Store
	Loans        *repository.LoanRepo
	Reservations *repository.ReservationRepo
	Items        *repository.ItemRepo
}

func NewCirculationHandler(eng *circulation.Engine, baskets basket.Store,
	loans *repository.LoanRepo, res *repository.ReservationRepo, items *repository.ItemRepo) *CirculationHandler {
	return &CirculationHandler{Engine: eng, Baskets: baskets, Loans: loans, Reservations: res, Items: items}
}

type checkoutReq struct {
	DurationDays int `json:"duration_days"`
}

// Checkout converts the caller's basket into loans, all or nothing.
func (h *CirculationHandler) Checkout(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	bk := h.Baskets.ForSession(strconv.FormatUint(patronID, 10))
	res, err := h.Engine.Checkout(ctx, bk, patronID, req.DurationDays)
	if err != nil {
		return engineError(c, err)
	}

	// Event publishing is best effort; checkout already committed.
	go h.publishCheckout(patronID, res)

	return c.JSON(http.StatusCreated, res)
}

func (h *CirculationHandler) publishCheckout(patronID uint64, res circulation.CheckoutResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i, itemID := range res.ItemIDs {
		ev := queue.CirculationEvent{
			Kind:       queue.KindLoanCheckedOut,
			PatronID:   patronID,
			ItemID:     itemID,
			DueAt:      res.DueAt.Format(time.RFC3339),
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		}
		if i < len(res.LoanIDs) {
			ev.LoanID = res.LoanIDs[i]
		}
		if it, err := h.Items.GetByID(ctx, itemID); err == nil {
			ev.ItemTitle = it.Title
		}
		_ = queuepub.PublishCirculationEvent(ctx, ev)
	}
}

// Reserve places a hold on a loaned item for the caller.
func (h *CirculationHandler) Reserve(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.Reserve(ctx, itemID, patronID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, reservationViewOf(res))
}

type extendReq struct {
	Days int `json:"days"`
}

// Extend renews the caller's own open loan once, pushing the due date
// out by the requested number of days.
func (h *CirculationHandler) Extend(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loanID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req extendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	newDue, err := h.Engine.Extend(ctx, loanID, patronID, req.Days)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"loan_id": loanID, "due_at": newDue})
}

// MyLoans lists the caller's loans, newest first, open and closed.
func (h *CirculationHandler) MyLoans(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Loans.ListByPatron(ctx, patronID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := loanViews(rows)
	return c.JSON(http.StatusOK, echo.Map{"loans": out, "count": len(out)})
}

// MyReservations lists the caller's active reservations.
func (h *CirculationHandler) MyReservations(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Reservations.ListActiveByPatron(ctx, patronID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := reservationViews(rows)
	return c.JSON(http.StatusOK, echo.Map{"reservations": out, "count": len(out)})
}

// CancelMyReservation cancels one of the caller's own reservations.
// Ownership is checked against the caller's active list so patrons
// cannot cancel each other's holds.
func (h *CirculationHandler) CancelMyReservation(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	mine, err := h.Reservations.ListActiveByPatron(ctx, patronID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	owned := false
	for _, r := range mine {
		if r.ID == resID {
			owned = true
			break
		}
	}
	if !owned {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}

	if err := h.Engine.CancelReservation(ctx, resID); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
