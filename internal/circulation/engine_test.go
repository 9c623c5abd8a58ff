package circulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/circulation/internal/basket"
	"github.com/openshelf/circulation/internal/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *memStore) *Engine {
	e := NewEngine(store)
	e.clock = fixedClock{t: testNow}
	return e
}

func newBasket(t *testing.T, ids ...uint64) basket.Basket {
	t.Helper()
	bk := basket.NewMemoryStore().ForSession("test")
	for _, id := range ids {
		require.NoError(t, bk.Add(context.Background(), id))
	}
	return bk
}

func TestAddToBasket(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addItem(2, model.ItemLoaned)
	eng := newTestEngine(store)
	bk := newBasket(t)

	require.NoError(t, eng.AddToBasket(ctx, bk, 1))
	assert.ErrorIs(t, eng.AddToBasket(ctx, bk, 1), basket.ErrAlreadyInBasket)
	assert.ErrorIs(t, eng.AddToBasket(ctx, bk, 2), ErrItemUnavailable)
	assert.ErrorIs(t, eng.AddToBasket(ctx, bk, 99), ErrItemNotFound)

	ids, err := bk.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)
}

func TestCheckoutSuccess(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addItem(2, model.ItemAvailable)
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)
	bk := newBasket(t, 1, 2)

	res, err := eng.Checkout(ctx, bk, 10, 14)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LoanCount)
	assert.Len(t, res.LoanIDs, 2)
	assert.Equal(t, testNow.Add(14*24*time.Hour), res.DueAt)

	assert.Equal(t, model.ItemLoaned, store.items[1].State)
	assert.Equal(t, model.ItemLoaned, store.items[2].State)
	assert.Equal(t, 2, store.patrons[10].BorrowedCount)

	ids, err := bk.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "basket is cleared after commit")
}

func TestCheckoutInvalidDuration(t *testing.T) {
	store := newMemStore()
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)

	for _, days := range []int{0, 1, 10, 15, 31, -7} {
		_, err := eng.Checkout(context.Background(), newBasket(t), 10, days)
		assert.ErrorIs(t, err, ErrInvalidDuration, "days=%d", days)
	}
}

func TestCheckoutEmptyBasket(t *testing.T) {
	store := newMemStore()
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)

	_, err := eng.Checkout(context.Background(), newBasket(t), 10, 7)
	assert.ErrorIs(t, err, ErrEmptyBasket)
}

func TestCheckoutBlockedPatron(t *testing.T) {
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, true)
	eng := newTestEngine(store)

	_, err := eng.Checkout(context.Background(), newBasket(t, 1), 10, 7)
	assert.ErrorIs(t, err, ErrPatronBlocked)
	assert.Equal(t, model.ItemAvailable, store.items[1].State)
}

func TestCheckoutLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("at limit", func(t *testing.T) {
		store := newMemStore()
		store.addItem(1, model.ItemAvailable)
		store.addPatron(10, 5, false)
		eng := newTestEngine(store)

		_, err := eng.Checkout(ctx, newBasket(t, 1), 10, 7)
		var limit *LimitExceededError
		require.ErrorAs(t, err, &limit)
		assert.Equal(t, 5, limit.Borrowed)
		assert.Equal(t, 0, limit.CanBorrow)
		assert.Equal(t, "borrowing limit of 5 reached", limit.Error())
	})

	t.Run("basket too large", func(t *testing.T) {
		store := newMemStore()
		store.addItem(1, model.ItemAvailable)
		store.addItem(2, model.ItemAvailable)
		store.addPatron(10, 4, false)
		eng := newTestEngine(store)
		bk := newBasket(t, 1, 2)

		_, err := eng.Checkout(ctx, bk, 10, 7)
		var limit *LimitExceededError
		require.ErrorAs(t, err, &limit)
		assert.Equal(t, 4, limit.Borrowed)
		assert.Equal(t, 1, limit.CanBorrow)
		assert.Contains(t, limit.Error(), "can borrow 1 more")

		// Nothing was written and the basket survives.
		assert.Equal(t, 4, store.patrons[10].BorrowedCount)
		assert.Empty(t, store.loans)
		ids, err := bk.List(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})

	t.Run("exactly fills limit", func(t *testing.T) {
		store := newMemStore()
		store.addItem(1, model.ItemAvailable)
		store.addPatron(10, 4, false)
		eng := newTestEngine(store)

		res, err := eng.Checkout(ctx, newBasket(t, 1), 10, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, res.LoanCount)
		assert.Equal(t, 5, store.patrons[10].BorrowedCount)
	})
}

func TestCheckoutAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addItem(2, model.ItemLoaned)
	store.addItem(3, model.ItemWithdrawn)
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)
	bk := newBasket(t, 1, 2, 3, 4) // 4 does not exist

	_, err := eng.Checkout(ctx, bk, 10, 7)
	var unavailable *ItemsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ElementsMatch(t, []uint64{2, 3, 4}, unavailable.ItemIDs)

	assert.Empty(t, store.loans, "no loan is created for the available item")
	assert.Equal(t, model.ItemAvailable, store.items[1].State)
	assert.Equal(t, 0, store.patrons[10].BorrowedCount)

	ids, err := bk.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 4, "basket is kept on failure")
}

func TestCheckoutRollsBackOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	store.failCall = "AddToBorrowedCount"
	store.failErr = errors.New("connection reset")
	eng := newTestEngine(store)

	_, err := eng.Checkout(ctx, newBasket(t, 1), 10, 7)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	// The loan insert and state change before the failure are undone.
	assert.Empty(t, store.loans)
	assert.Equal(t, model.ItemAvailable, store.items[1].State)
	assert.Equal(t, 0, store.patrons[10].BorrowedCount)
}

func TestCheckoutTransientStoreError(t *testing.T) {
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	store.failNext = errors.New("deadlock")
	eng := newTestEngine(store)

	_, err := eng.Checkout(context.Background(), newBasket(t, 1), 10, 7)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(ErrPatronBlocked))
}

// checkoutOne is a test helper that borrows one item for a patron.
func checkoutOne(t *testing.T, eng *Engine, itemID, patronID uint64) uint64 {
	t.Helper()
	res, err := eng.Checkout(context.Background(), newBasket(t, itemID), patronID, 14)
	require.NoError(t, err)
	require.Len(t, res.LoanIDs, 1)
	return res.LoanIDs[0]
}

func TestReturnWithoutQueue(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)
	loanID := checkoutOne(t, eng, 1, 10)

	res, err := eng.Return(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemAvailable, res.NewState)
	assert.Nil(t, res.Activated)
	assert.Equal(t, model.ItemAvailable, store.items[1].State)
	assert.Equal(t, 0, store.patrons[10].BorrowedCount)

	// A closed loan cannot be returned again.
	_, err = eng.Return(ctx, loanID)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestReturnActivatesOldestReservation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false) // borrower
	store.addPatron(20, 0, false) // reserves first
	store.addPatron(30, 0, false) // reserves second
	eng := newTestEngine(store)
	loanID := checkoutOne(t, eng, 1, 10)

	resA, err := eng.Reserve(ctx, 1, 20)
	require.NoError(t, err)
	// Later reservation, same fixed clock: the tie breaks by id.
	resB, err := eng.Reserve(ctx, 1, 30)
	require.NoError(t, err)

	ret, err := eng.Return(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemReadyForPickup, ret.NewState)
	require.NotNil(t, ret.Activated)
	assert.Equal(t, resA.ID, ret.Activated.ID)
	assert.Equal(t, testNow.Add(2*24*time.Hour), ret.Activated.ExpiresAt)

	// The second reservation stays queued with its original expiry.
	assert.True(t, store.reservations[resB.ID].Active)
	assert.Equal(t, resB.ExpiresAt, store.reservations[resB.ID].ExpiresAt)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addItem(2, model.ItemLoaned)
	store.addPatron(20, 0, false)
	eng := newTestEngine(store)

	_, err := eng.Reserve(ctx, 1, 20)
	assert.ErrorIs(t, err, ErrNotLoaned)

	res, err := eng.Reserve(ctx, 2, 20)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, testNow, res.ReservedAt)
	assert.Equal(t, testNow.Add(3*24*time.Hour), res.ExpiresAt)
	assert.Equal(t, model.ItemLoaned, store.items[2].State, "reserving never changes item state")

	_, err = eng.Reserve(ctx, 2, 20)
	assert.ErrorIs(t, err, ErrDuplicateReservation)

	_, err = eng.Reserve(ctx, 99, 20)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestFinalizePickup(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	store.addPatron(20, 0, false)
	store.addPatron(30, 0, false)
	eng := newTestEngine(store)
	loanID := checkoutOne(t, eng, 1, 10)

	resA, err := eng.Reserve(ctx, 1, 20)
	require.NoError(t, err)
	resB, err := eng.Reserve(ctx, 1, 30)
	require.NoError(t, err)

	// Not ready before the return parks the item.
	_, err = eng.FinalizePickup(ctx, resA.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = eng.Return(ctx, loanID)
	require.NoError(t, err)

	// Only the head of the queue may pick up.
	_, err = eng.FinalizePickup(ctx, resB.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	pick, err := eng.FinalizePickup(ctx, resA.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), pick.PatronID)
	assert.Equal(t, testNow.Add(14*24*time.Hour), pick.DueAt)
	assert.Equal(t, model.ItemLoaned, store.items[1].State)
	assert.False(t, store.reservations[resA.ID].Active, "fulfilled reservation is deactivated, not deleted")
	assert.Equal(t, 1, store.patrons[20].BorrowedCount)

	// The same reservation cannot be picked up twice.
	_, err = eng.FinalizePickup(ctx, resA.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	store.addPatron(20, 0, false)
	store.addPatron(30, 0, false)
	eng := newTestEngine(store)
	loanID := checkoutOne(t, eng, 1, 10)

	resA, err := eng.Reserve(ctx, 1, 20)
	require.NoError(t, err)
	resB, err := eng.Reserve(ctx, 1, 30)
	require.NoError(t, err)

	_, err = eng.Return(ctx, loanID)
	require.NoError(t, err)

	// Cancelling the activated head hands the item to the next patron.
	require.NoError(t, eng.CancelReservation(ctx, resA.ID))
	assert.Equal(t, model.ItemReadyForPickup, store.items[1].State)
	assert.Equal(t, testNow.Add(2*24*time.Hour), store.reservations[resB.ID].ExpiresAt)

	// Cancelling the last reservation frees the item.
	require.NoError(t, eng.CancelReservation(ctx, resB.ID))
	assert.Equal(t, model.ItemAvailable, store.items[1].State)

	assert.ErrorIs(t, eng.CancelReservation(ctx, resA.ID), ErrReservationNotFound)
	assert.ErrorIs(t, eng.CancelReservation(ctx, 99), ErrReservationNotFound)
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)
	loanID := checkoutOne(t, eng, 1, 10)
	firstDue := store.loans[loanID].DueAt

	_, err := eng.Extend(ctx, loanID, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = eng.Extend(ctx, loanID, 99, 7)
	assert.ErrorIs(t, err, ErrLoanNotFound, "another patron's loan looks missing")

	newDue, err := eng.Extend(ctx, loanID, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, firstDue.Add(7*24*time.Hour), newDue)
	assert.True(t, store.loans[loanID].Renewed)

	_, err = eng.Extend(ctx, loanID, 10, 7)
	assert.ErrorIs(t, err, ErrAlreadyRenewed)
	assert.Equal(t, newDue, store.loans[loanID].DueAt, "due date unchanged by rejected renewal")
}

func TestExtendBlockedByReservation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addPatron(10, 0, false)
	store.addPatron(20, 0, false)
	eng := newTestEngine(store)
	loanID := checkoutOne(t, eng, 1, 10)

	_, err := eng.Reserve(ctx, 1, 20)
	require.NoError(t, err)

	_, err = eng.Extend(ctx, loanID, 10, 7)
	assert.ErrorIs(t, err, ErrReservationPending)

	// Renew first, then reserve: the pending reservation still wins
	// over the already-renewed rejection.
	store2 := newMemStore()
	store2.addItem(1, model.ItemAvailable)
	store2.addPatron(10, 0, false)
	store2.addPatron(20, 0, false)
	eng2 := newTestEngine(store2)
	loanID2 := checkoutOne(t, eng2, 1, 10)
	_, err = eng2.Extend(ctx, loanID2, 10, 7)
	require.NoError(t, err)
	_, err = eng2.Reserve(ctx, 1, 20)
	require.NoError(t, err)
	_, err = eng2.Extend(ctx, loanID2, 10, 7)
	assert.ErrorIs(t, err, ErrReservationPending)
}

func TestBorrowedCountMatchesOpenLoans(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addItem(1, model.ItemAvailable)
	store.addItem(2, model.ItemAvailable)
	store.addItem(3, model.ItemAvailable)
	store.addPatron(10, 0, false)
	eng := newTestEngine(store)

	openLoans := func() int {
		n := 0
		for _, l := range store.loans {
			if l.PatronID == 10 && l.ReturnedAt == nil {
				n++
			}
		}
		return n
	}

	res, err := eng.Checkout(ctx, newBasket(t, 1, 2, 3), 10, 7)
	require.NoError(t, err)
	assert.Equal(t, openLoans(), store.patrons[10].BorrowedCount)

	_, err = eng.Return(ctx, res.LoanIDs[0])
	require.NoError(t, err)
	assert.Equal(t, openLoans(), store.patrons[10].BorrowedCount)

	_, err = eng.Return(ctx, res.LoanIDs[1])
	require.NoError(t, err)
	assert.Equal(t, openLoans(), store.patrons[10].BorrowedCount)
	assert.Equal(t, 1, store.patrons[10].BorrowedCount)
}
