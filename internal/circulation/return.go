package circulation

import (
	"context"
	"time"

	"github.com/openshelf/circulation/internal/model"
)

// ReturnResult reports what a return did to the item: its new state
// and, when the reservation queue was non-empty, the head reservation
// that was activated for pickup.
type ReturnResult struct {
	LoanID     uint64             `json:"loan_id"`
	ItemID     uint64             `json:"item_id"`
	PatronID   uint64             `json:"patron_id"`
	ReturnedAt time.Time          `json:"returned_at"`
	NewState   model.ItemState    `json:"new_state"`
	Activated  *model.Reservation `json:"activated_reservation,omitempty"`
}

// Return closes an open loan and decides where the item goes next.
// With an empty reservation queue the item becomes available again;
// otherwise it is held at the desk and the oldest active reservation
// gets a fresh pickup window of PickupWindowDays.  Activation does
// not fulfil the reservation: it stays active until the patron
// actually picks the item up.  A loan that is already closed is not
// matched by the open-loan lookup and reports ErrLoanNotFound.
func (e *Engine) Return(ctx context.Context, loanID uint64) (ReturnResult, error) {
	var result ReturnResult
	err := e.inTx(ctx, func(tx Tx) error {
		loan, err := tx.OpenLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		if err := tx.CloseLoan(ctx, loan.ID, now); err != nil {
			return err
		}
		if err := tx.AddToBorrowedCount(ctx, loan.PatronID, -1); err != nil {
			return err
		}

		result = ReturnResult{
			LoanID:     loan.ID,
			ItemID:     loan.ItemID,
			PatronID:   loan.PatronID,
			ReturnedAt: now,
		}

		queue, err := tx.ActiveReservationQueue(ctx, loan.ItemID)
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			result.NewState = model.ItemAvailable
			return tx.SetItemState(ctx, loan.ItemID, model.ItemAvailable)
		}

		head := queue[0]
		expiresAt := now.Add(dayDuration(PickupWindowDays))
		if err := tx.SetReservationExpiry(ctx, head.ID, expiresAt); err != nil {
			return err
		}
		if err := tx.SetItemState(ctx, loan.ItemID, model.ItemReadyForPickup); err != nil {
			return err
		}
		head.ExpiresAt = expiresAt
		result.NewState = model.ItemReadyForPickup
		result.Activated = &head
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	return result, nil
}
