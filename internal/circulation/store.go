package circulation

import (
	"context"
	"time"

	"github.com/openshelf/circulation/internal/model"
)

// Store is the persistence boundary of the engine.  The SQL
// implementation lives in internal/repository; tests use an in-memory
// implementation with the same transactional semantics.
type Store interface {
	// Item reads a single item outside any transaction.
	Item(ctx context.Context, itemID uint64) (model.Item, error)
	// InTx runs fn inside one serializable transaction.  When fn
	// returns an error every change made through tx is rolled back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the row operations the coordinators compose.  All reads
// named ForUpdate lock the row for the remainder of the transaction
// so state checks and the writes they guard cannot interleave with a
// concurrent operation on the same rows.
type Tx interface {
	// ItemForUpdate locks and returns an item, or ErrItemNotFound.
	ItemForUpdate(ctx context.Context, itemID uint64) (model.Item, error)
	// SetItemState writes the item's circulation state.
	SetItemState(ctx context.Context, itemID uint64, state model.ItemState) error

	// PatronForUpdate locks and returns a patron, or ErrPatronNotFound.
	PatronForUpdate(ctx context.Context, patronID uint64) (model.Patron, error)
	// AddToBorrowedCount adjusts the patron's open-loan counter.
	AddToBorrowedCount(ctx context.Context, patronID uint64, delta int) error

	// InsertLoan stores a new loan and fills in its generated ID.
	InsertLoan(ctx context.Context, loan *model.Loan) error
	// OpenLoanForUpdate locks and returns a loan that has no return
	// date yet.  Closed or unknown loans report ErrLoanNotFound.
	OpenLoanForUpdate(ctx context.Context, loanID uint64) (model.Loan, error)
	// CloseLoan sets the actual-return timestamp.
	CloseLoan(ctx context.Context, loanID uint64, returnedAt time.Time) error
	// RenewLoan extends the due date and marks the loan renewed.
	RenewLoan(ctx context.Context, loanID uint64, dueAt time.Time) error

	// InsertReservation stores a new reservation and fills in its
	// generated ID.
	InsertReservation(ctx context.Context, res *model.Reservation) error
	// ActiveReservationQueue locks and returns the item's active
	// reservations oldest-first, ties broken by ascending id.
	ActiveReservationQueue(ctx context.Context, itemID uint64) ([]model.Reservation, error)
	// HasActiveReservation reports whether the patron already holds
	// an active reservation on the item.
	HasActiveReservation(ctx context.Context, itemID, patronID uint64) (bool, error)
	// ReservationForUpdate locks and returns an active reservation,
	// or ErrReservationNotFound.
	ReservationForUpdate(ctx context.Context, reservationID uint64) (model.Reservation, error)
	// DeactivateReservation takes the reservation out of its queue.
	DeactivateReservation(ctx context.Context, reservationID uint64) error
	// SetReservationExpiry moves the reservation's pickup deadline.
	SetReservationExpiry(ctx context.Context, reservationID uint64, expiresAt time.Time) error
}
