package circulation

import (
	"context"
	"time"
)

// Extend renews an open loan by the given number of days.  The loan
// must belong to the requesting patron; loans of other patrons are
// indistinguishable from missing ones and report ErrLoanNotFound.
// Renewal is refused while any active reservation exists for the
// loan's item, regardless of renewal count, and a loan can be renewed
// at most once, ever.  No availability or limit check applies.
func (e *Engine) Extend(ctx context.Context, loanID, patronID uint64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	var newDue time.Time
	err := e.inTx(ctx, func(tx Tx) error {
		loan, err := tx.OpenLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.PatronID != patronID {
			return ErrLoanNotFound
		}
		queue, err := tx.ActiveReservationQueue(ctx, loan.ItemID)
		if err != nil {
			return err
		}
		if len(queue) > 0 {
			return ErrReservationPending
		}
		if loan.Renewed {
			return ErrAlreadyRenewed
		}
		newDue = loan.DueAt.Add(dayDuration(days))
		return tx.RenewLoan(ctx, loan.ID, newDue)
	})
	if err != nil {
		return time.Time{}, err
	}
	return newDue, nil
}
