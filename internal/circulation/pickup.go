package circulation

import (
	"context"
	"time"

	"github.com/openshelf/circulation/internal/model"
)

// PickupResult reports the loan created by a finalized pickup.
type PickupResult struct {
	LoanID   uint64    `json:"loan_id"`
	ItemID   uint64    `json:"item_id"`
	PatronID uint64    `json:"patron_id"`
	DueAt    time.Time `json:"due_at"`
}

// FinalizePickup converts an activated reservation into a loan with
// the standard PickupLoanDays duration.  The reservation must be
// active, its item must be waiting at the desk, and it must be the
// head of the item's queue; anything else reports ErrNotReady so the
// desk can refresh its view.  The reservation is deactivated, never
// deleted.
func (e *Engine) FinalizePickup(ctx context.Context, reservationID uint64) (PickupResult, error) {
	var result PickupResult
	err := e.inTx(ctx, func(tx Tx) error {
		res, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			if err == ErrReservationNotFound {
				return ErrNotReady
			}
			return err
		}
		item, err := tx.ItemForUpdate(ctx, res.ItemID)
		if err != nil {
			return err
		}
		if item.State != model.ItemReadyForPickup {
			return ErrNotReady
		}
		queue, err := tx.ActiveReservationQueue(ctx, res.ItemID)
		if err != nil {
			return err
		}
		// The return that parked the item extended the head's pickup
		// window; only that patron may collect it.
		if len(queue) == 0 || queue[0].ID != res.ID {
			return ErrNotReady
		}

		now := e.clock.Now()
		loan := &model.Loan{
			PatronID:     res.PatronID,
			ItemID:       res.ItemID,
			CheckedOutAt: now,
			DueAt:        now.Add(dayDuration(PickupLoanDays)),
		}
		if err := tx.InsertLoan(ctx, loan); err != nil {
			return err
		}
		if err := tx.SetItemState(ctx, res.ItemID, model.ItemLoaned); err != nil {
			return err
		}
		if err := tx.DeactivateReservation(ctx, res.ID); err != nil {
			return err
		}
		if err := tx.AddToBorrowedCount(ctx, res.PatronID, 1); err != nil {
			return err
		}
		result = PickupResult{
			LoanID:   loan.ID,
			ItemID:   res.ItemID,
			PatronID: res.PatronID,
			DueAt:    loan.DueAt,
		}
		return nil
	})
	if err != nil {
		return PickupResult{}, err
	}
	return result, nil
}
