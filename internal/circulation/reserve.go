package circulation

import (
	"context"

	"github.com/openshelf/circulation/internal/model"
)

// Reserve places a claim on an item that is currently out on loan.
// Reserving an available item reports ErrNotLoaned (the patron should
// just check it out) and a patron may hold at most one active
// reservation per item.  Creating a reservation never changes the
// item's state; only the return workflow does that.
func (e *Engine) Reserve(ctx context.Context, itemID, patronID uint64) (model.Reservation, error) {
	var created model.Reservation
	err := e.inTx(ctx, func(tx Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.State != model.ItemLoaned {
			return ErrNotLoaned
		}
		exists, err := tx.HasActiveReservation(ctx, itemID, patronID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateReservation
		}

		now := e.clock.Now()
		res := &model.Reservation{
			PatronID:   patronID,
			ItemID:     itemID,
			ReservedAt: now,
			ExpiresAt:  now.Add(dayDuration(ReservationTTLDays)),
			Active:     true,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		created = *res
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return created, nil
}

// CancelReservation deactivates a reservation.  There is no automatic
// expiry sweep: staff cancel stale reservations through this
// operation.  Inactive or unknown reservations report
// ErrReservationNotFound.  Cancelling the head reservation of an item
// waiting at the desk hands the item to the next patron in the queue,
// or back to the shelf when the queue is empty.
func (e *Engine) CancelReservation(ctx context.Context, reservationID uint64) error {
	return e.inTx(ctx, func(tx Tx) error {
		res, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		item, err := tx.ItemForUpdate(ctx, res.ItemID)
		if err != nil {
			return err
		}
		if err := tx.DeactivateReservation(ctx, reservationID); err != nil {
			return err
		}
		if item.State != model.ItemReadyForPickup {
			return nil
		}

		queue, err := tx.ActiveReservationQueue(ctx, res.ItemID)
		if err != nil {
			return err
		}
		// The cancelled reservation was not necessarily the head.
		if len(queue) > 0 {
			head := queue[0]
			return tx.SetReservationExpiry(ctx, head.ID, e.clock.Now().Add(dayDuration(PickupWindowDays)))
		}
		return tx.SetItemState(ctx, res.ItemID, model.ItemAvailable)
	})
}
