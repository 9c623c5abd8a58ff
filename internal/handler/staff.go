package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openshelf/circulation/internal/circulation"
	"github.com/openshelf/circulation/internal/model"
	"github.com/openshelf/circulation/internal/queue"
	"github.com/openshelf/circulation/internal/repository"
	queuepub "github.com/openshelf/circulation/internal/service"
)

// StaffHandler serves the desk workflows: the open-loan roster,
// return processing, pickup finalization, the reservation roster and
// patron administration.
type StaffHandler struct {
	Engine       *circulation.Engine
	Loans        *repository.LoanRepo
	Reservations *repository.ReservationRepo
	Patrons      *repository.PatronRepo
	Items        *repository.ItemRepo
}

func NewStaffHandler(eng *circulation.Engine, loans *repository.LoanRepo,
	res *repository.ReservationRepo, patrons *repository.PatronRepo, items *repository.ItemRepo) *StaffHandler {
	return &StaffHandler{Engine: eng, Loans: loans, Reservations: res, Patrons: patrons, Items: items}
}

// OpenLoans lists open loans ordered by due date, filtered by a ?q=
// substring over item title and patron name, and ?overdue=true to
// show only loans past due.
func (h *StaffHandler) OpenLoans(c echo.Context) error {
	q := repository.LoanSearchQuery{
		Query:   strings.TrimSpace(c.QueryParam("q")),
		Overdue: c.QueryParam("overdue") == "true",
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Loans.ListOpen(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := loanViews(rows)
	return c.JSON(http.StatusOK, echo.Map{"loans": out, "count": len(out)})
}

// ReturnLoan processes a return at the desk.  When the item has a
// reservation queue the head reservation is activated and the
// response says who to shelve the item for.
func (h *StaffHandler) ReturnLoan(c echo.Context) error {
	loanID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Return(ctx, loanID)
	if err != nil {
		return engineError(c, err)
	}

	go h.publishReturn(res)

	body := echo.Map{
		"loan_id":     res.LoanID,
		"item_id":     res.ItemID,
		"patron_id":   res.PatronID,
		"returned_at": res.ReturnedAt,
		"new_state":   res.NewState,
	}
	if res.Activated != nil {
		body["activated_reservation"] = reservationViewOf(*res.Activated)
	}
	return c.JSON(http.StatusOK, body)
}

func (h *StaffHandler) publishReturn(res circulation.ReturnResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	title := ""
	if it, err := h.Items.GetByID(ctx, res.ItemID); err == nil {
		title = it.Title
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_ = queuepub.PublishCirculationEvent(ctx, queue.CirculationEvent{
		Kind:       queue.KindLoanReturned,
		PatronID:   res.PatronID,
		ItemID:     res.ItemID,
		ItemTitle:  title,
		LoanID:     res.LoanID,
		OccurredAt: now,
	})
	if res.Activated != nil {
		ev := queue.CirculationEvent{
			Kind:          queue.KindReservationActivated,
			PatronID:      res.Activated.PatronID,
			ItemID:        res.ItemID,
			ItemTitle:     title,
			ReservationID: res.Activated.ID,
			PickupBy:      res.Activated.ExpiresAt.Format(time.RFC3339),
			OccurredAt:    now,
		}
		if p, err := h.Patrons.GetByID(ctx, res.Activated.PatronID); err == nil {
			ev.PatronEmail = p.Email
		}
		_ = queuepub.PublishCirculationEvent(ctx, ev)
	}
}

// ListReservations lists all active reservations grouped by item,
// queue order within each item.
func (h *StaffHandler) ListReservations(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Reservations.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := reservationViews(rows)
	return c.JSON(http.StatusOK, echo.Map{"reservations": out, "count": len(out)})
}

// FinalizePickup converts an activated reservation into a loan when
// the patron collects the item at the desk.
func (h *StaffHandler) FinalizePickup(c echo.Context) error {
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.FinalizePickup(ctx, resID)
	if err != nil {
		return engineError(c, err)
	}

	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		_ = queuepub.PublishCirculationEvent(pctx, queue.CirculationEvent{
			Kind:          queue.KindPickupFinalized,
			PatronID:      res.PatronID,
			ItemID:        res.ItemID,
			LoanID:        res.LoanID,
			ReservationID: resID,
			DueAt:         res.DueAt.Format(time.RFC3339),
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}()

	return c.JSON(http.StatusCreated, res)
}

// CancelReservation cancels any reservation, used for expired pickup
// windows and patron requests made at the desk.  Expiry is manual;
// nothing sweeps reservations in the background.
func (h *StaffHandler) CancelReservation(c echo.Context) error {
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.CancelReservation(ctx, resID); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PatronDetail returns a patron's account with their loan history and
// a recount of open loans, so staff can spot counter drift.
func (h *StaffHandler) PatronDetail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Patrons.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "patron not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	loans, err := h.Loans.ListByPatron(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	openCount, err := h.Patrons.CountOpenLoans(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"patron":          patronViewOf(p),
		"loans":           loanViews(loans),
		"open_loans":      openCount,
		"counter_in_sync": openCount == p.BorrowedCount,
	})
}

type patronStatusReq struct {
	Role         string `json:"role"`
	Blocked      bool   `json:"blocked"`
	PenaltyCents int64  `json:"penalty_cents"`
}

// UpdatePatronStatus is the admin endpoint for role changes, blocking
// and penalty adjustments.
func (h *StaffHandler) UpdatePatronStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req patronStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	switch req.Role {
	case model.RolePatron, model.RoleStaff, model.RoleAdmin:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	if req.PenaltyCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "penalty_cents must be >= 0"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Patrons.UpdateStatus(ctx, id, req.Role, req.Blocked, req.PenaltyCents); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "patron not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
