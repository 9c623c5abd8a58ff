package circulation

import (
	"context"
	"time"

	"github.com/openshelf/circulation/internal/basket"
	"github.com/openshelf/circulation/internal/model"
)

// Circulation policy constants.
const (
	// MaxOpenLoans is the per-patron limit of simultaneously open
	// loans.
	MaxOpenLoans = 5
	// PickupLoanDays is the standard duration of a loan created by
	// pickup finalization.
	PickupLoanDays = 14
	// PickupWindowDays is how long an activated reservation waits at
	// the desk after a return.
	PickupWindowDays = 2
	// ReservationTTLDays is the initial validity of a new
	// reservation.
	ReservationTTLDays = 3
)

// loanDurations enumerates the selectable checkout periods in days.
var loanDurations = map[int]bool{7: true, 14: true, 30: true}

// Clock abstracts time.Now so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Engine coordinates every circulation operation.  Each exported
// method runs its multi-step effect inside one transaction scoped to
// the affected rows; on failure all changes are rolled back and the
// error reports whether a retry makes sense (see TransientError).
type Engine struct {
	store Store
	clock Clock
}

// NewEngine returns an engine bound to the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, clock: realClock{}}
}

// AddToBasket puts an available item into the session basket.  The
// availability check is a courtesy read: checkout re-validates every
// item inside its transaction, so a stale basket entry can never
// produce a loan.
func (e *Engine) AddToBasket(ctx context.Context, bk basket.Basket, itemID uint64) error {
	item, err := e.store.Item(ctx, itemID)
	if err != nil {
		if terminal(err) {
			return err
		}
		return &TransientError{Err: err}
	}
	if item.State != model.ItemAvailable {
		return ErrItemUnavailable
	}
	return bk.Add(ctx, itemID)
}

// inTx runs fn through the store and classifies the outcome: the
// engine's own typed errors pass through untouched, anything else is
// a storage failure wrapped as retryable.
func (e *Engine) inTx(ctx context.Context, fn func(tx Tx) error) error {
	err := e.store.InTx(ctx, fn)
	if err == nil || terminal(err) {
		return err
	}
	return &TransientError{Err: err}
}

// dayDuration converts whole days to a time.Duration.
func dayDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
