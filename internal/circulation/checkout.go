package circulation

import (
	"context"
	"time"

	"github.com/openshelf/circulation/internal/basket"
	"github.com/openshelf/circulation/internal/model"
)

// CheckoutResult reports a successful multi-item checkout.
type CheckoutResult struct {
	LoanIDs   []uint64  `json:"loan_ids"`
	ItemIDs   []uint64  `json:"item_ids"`
	LoanCount int       `json:"loan_count"`
	DueAt     time.Time `json:"due_at"`
}

// Checkout converts the basket into loans, all-or-nothing.
// Preconditions are checked in order, first failure wins: the patron
// is not blocked, the basket is non-empty, the limit of MaxOpenLoans
// is respected for the whole batch, and every basket item is still
// available.  The limit check uses the borrowed count read under lock
// inside the same transaction, so two concurrent checkouts cannot
// push a patron past the limit.  The basket is cleared only after the
// transaction committed.
func (e *Engine) Checkout(ctx context.Context, bk basket.Basket, patronID uint64, durationDays int) (CheckoutResult, error) {
	if !loanDurations[durationDays] {
		return CheckoutResult{}, ErrInvalidDuration
	}
	itemIDs, err := bk.List(ctx)
	if err != nil {
		return CheckoutResult{}, &TransientError{Err: err}
	}

	var result CheckoutResult
	err = e.inTx(ctx, func(tx Tx) error {
		patron, err := tx.PatronForUpdate(ctx, patronID)
		if err != nil {
			return err
		}
		if patron.Blocked {
			return ErrPatronBlocked
		}
		if len(itemIDs) == 0 {
			return ErrEmptyBasket
		}
		if patron.BorrowedCount >= MaxOpenLoans {
			return &LimitExceededError{Borrowed: patron.BorrowedCount, Limit: MaxOpenLoans}
		}
		if patron.BorrowedCount+len(itemIDs) > MaxOpenLoans {
			return &LimitExceededError{
				Borrowed:  patron.BorrowedCount,
				Limit:     MaxOpenLoans,
				CanBorrow: MaxOpenLoans - patron.BorrowedCount,
			}
		}

		// Lock every basket item before writing anything so the
		// batch either passes availability as a whole or not at all.
		items := make([]model.Item, 0, len(itemIDs))
		var unavailable []uint64
		for _, id := range itemIDs {
			item, err := tx.ItemForUpdate(ctx, id)
			if err != nil {
				if err == ErrItemNotFound {
					unavailable = append(unavailable, id)
					continue
				}
				return err
			}
			if item.State != model.ItemAvailable {
				unavailable = append(unavailable, id)
				continue
			}
			items = append(items, item)
		}
		if len(unavailable) > 0 {
			return &ItemsUnavailableError{ItemIDs: unavailable}
		}

		now := e.clock.Now()
		dueAt := now.Add(dayDuration(durationDays))
		for _, item := range items {
			loan := &model.Loan{
				PatronID:     patronID,
				ItemID:       item.ID,
				CheckedOutAt: now,
				DueAt:        dueAt,
			}
			if err := tx.InsertLoan(ctx, loan); err != nil {
				return err
			}
			if err := tx.SetItemState(ctx, item.ID, model.ItemLoaned); err != nil {
				return err
			}
			result.LoanIDs = append(result.LoanIDs, loan.ID)
			result.ItemIDs = append(result.ItemIDs, item.ID)
		}
		if err := tx.AddToBorrowedCount(ctx, patronID, len(items)); err != nil {
			return err
		}
		result.LoanCount = len(items)
		result.DueAt = dueAt
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	// The loans exist either way; a failed clear only leaves a stale
	// basket behind, which the next AddToBasket or view will surface.
	_ = bk.Clear(ctx)
	return result, nil
}
