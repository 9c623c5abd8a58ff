// Package circulation implements the circulation engine: the state
// machine governing item availability and the transactional rules
// that move items between loans, reservations and the shelf.  The
// web layer calls into this package after authenticating the patron;
// no role checks happen here.
package circulation

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the engine.  Handlers translate these
// into user-facing responses; none of them leaves any state behind.
var (
	// ErrPatronBlocked rejects checkout for a blocked account.
	ErrPatronBlocked = errors.New("patron is blocked")
	// ErrEmptyBasket rejects checkout of an empty basket.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrInvalidDuration rejects a loan period outside {7,14,30}
	// days, or a non-positive renewal extension.
	ErrInvalidDuration = errors.New("invalid loan duration")
	// ErrItemUnavailable rejects adding a non-available item to a
	// basket.
	ErrItemUnavailable = errors.New("item is not available")
	// ErrItemNotFound marks a stale or unknown item identifier.
	ErrItemNotFound = errors.New("item not found")
	// ErrPatronNotFound marks a stale or unknown patron identifier.
	ErrPatronNotFound = errors.New("patron not found")
	// ErrLoanNotFound marks a loan that does not exist, is already
	// closed, or is not owned by the requesting patron.
	ErrLoanNotFound = errors.New("open loan not found")
	// ErrReservationNotFound marks a reservation that does not exist
	// or is no longer active.
	ErrReservationNotFound = errors.New("active reservation not found")
	// ErrNotLoaned rejects reserving an item that is not out on loan;
	// an available item should simply be checked out.
	ErrNotLoaned = errors.New("item is not on loan")
	// ErrDuplicateReservation rejects a second active reservation by
	// the same patron on the same item.
	ErrDuplicateReservation = errors.New("patron already holds an active reservation for this item")
	// ErrNotReady rejects pickup of a reservation whose item is not
	// waiting at the desk for that patron.
	ErrNotReady = errors.New("reservation is not ready for pickup")
	// ErrAlreadyRenewed rejects a second renewal of the same loan.
	ErrAlreadyRenewed = errors.New("loan was already renewed once")
	// ErrReservationPending rejects renewal while the loan's item has
	// an active reservation queue.
	ErrReservationPending = errors.New("item has a pending reservation")
)

// LimitExceededError rejects a checkout that would push the patron
// past the open-loan limit.  CanBorrow reports how many more items
// the patron could still borrow (zero when already at the limit).
type LimitExceededError struct {
	Borrowed  int
	Limit     int
	CanBorrow int
}

func (e *LimitExceededError) Error() string {
	if e.CanBorrow <= 0 {
		return fmt.Sprintf("borrowing limit of %d reached", e.Limit)
	}
	return fmt.Sprintf("basket exceeds borrowing limit: %d loans open, can borrow %d more", e.Borrowed, e.CanBorrow)
}

// ItemsUnavailableError rejects a whole checkout batch because at
// least one basket item is no longer available.  No partial checkout
// is ever performed.
type ItemsUnavailableError struct {
	ItemIDs []uint64
}

func (e *ItemsUnavailableError) Error() string {
	return fmt.Sprintf("%d basket item(s) are no longer available", len(e.ItemIDs))
}

// TransientError wraps a storage or transaction failure.  The whole
// operation was rolled back and may be retried by the caller; the
// engine never retries internally.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient storage failure: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable storage failure as
// opposed to a policy rejection or a not-found condition.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// terminal reports whether err is one of the engine's own typed
// outcomes.  Anything else bubbling out of a transaction is a
// storage problem and gets wrapped as transient.
func terminal(err error) bool {
	switch {
	case errors.Is(err, ErrPatronBlocked),
		errors.Is(err, ErrEmptyBasket),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrItemUnavailable),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrPatronNotFound),
		errors.Is(err, ErrLoanNotFound),
		errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrNotLoaned),
		errors.Is(err, ErrDuplicateReservation),
		errors.Is(err, ErrNotReady),
		errors.Is(err, ErrAlreadyRenewed),
		errors.Is(err, ErrReservationPending):
		return true
	}
	var limit *LimitExceededError
	var unavailable *ItemsUnavailableError
	return errors.As(err, &limit) || errors.As(err, &unavailable)
}
