package circulation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openshelf/circulation/internal/model"
)

// memStore is an in-memory Store with the same transactional
// semantics as the SQL implementation: a transaction sees and mutates
// live data under one lock, and every change is rolled back when the
// transaction function fails.
type memStore struct {
	mu           sync.Mutex
	items        map[uint64]model.Item
	patrons      map[uint64]model.Patron
	loans        map[uint64]model.Loan
	reservations map[uint64]model.Reservation
	nextLoanID   uint64
	nextResID    uint64
	failNext     error  // injected storage failure for the next InTx
	failCall     string // Tx method name that fails mid-transaction
	failErr      error
}

func newMemStore() *memStore {
	return &memStore{
		items:        map[uint64]model.Item{},
		patrons:      map[uint64]model.Patron{},
		loans:        map[uint64]model.Loan{},
		reservations: map[uint64]model.Reservation{},
	}
}

func (s *memStore) addItem(id uint64, state model.ItemState) {
	s.items[id] = model.Item{ID: id, Title: "item", State: state}
}

func (s *memStore) addPatron(id uint64, borrowed int, blocked bool) {
	s.patrons[id] = model.Patron{ID: id, BorrowedCount: borrowed, Blocked: blocked}
}

func (s *memStore) Item(ctx context.Context, itemID uint64) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}
	return it, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	items        map[uint64]model.Item
	patrons      map[uint64]model.Patron
	loans        map[uint64]model.Loan
	reservations map[uint64]model.Reservation
	nextLoanID   uint64
	nextResID    uint64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		items:        make(map[uint64]model.Item, len(s.items)),
		patrons:      make(map[uint64]model.Patron, len(s.patrons)),
		loans:        make(map[uint64]model.Loan, len(s.loans)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
		nextLoanID:   s.nextLoanID,
		nextResID:    s.nextResID,
	}
	for k, v := range s.items {
		snap.items[k] = v
	}
	for k, v := range s.patrons {
		snap.patrons[k] = v
	}
	for k, v := range s.loans {
		snap.loans[k] = v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.items = snap.items
	s.patrons = snap.patrons
	s.loans = snap.loans
	s.reservations = snap.reservations
	s.nextLoanID = snap.nextLoanID
	s.nextResID = snap.nextResID
}

type memTx struct{ s *memStore }

func (t *memTx) ItemForUpdate(ctx context.Context, itemID uint64) (model.Item, error) {
	it, ok := t.s.items[itemID]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}
	return it, nil
}

func (t *memTx) SetItemState(ctx context.Context, itemID uint64, state model.ItemState) error {
	it, ok := t.s.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	it.State = state
	t.s.items[itemID] = it
	return nil
}

func (t *memTx) PatronForUpdate(ctx context.Context, patronID uint64) (model.Patron, error) {
	p, ok := t.s.patrons[patronID]
	if !ok {
		return model.Patron{}, ErrPatronNotFound
	}
	return p, nil
}

func (t *memTx) AddToBorrowedCount(ctx context.Context, patronID uint64, delta int) error {
	if t.s.failCall == "AddToBorrowedCount" {
		return t.s.failErr
	}
	p, ok := t.s.patrons[patronID]
	if !ok {
		return ErrPatronNotFound
	}
	p.BorrowedCount += delta
	t.s.patrons[patronID] = p
	return nil
}

func (t *memTx) InsertLoan(ctx context.Context, loan *model.Loan) error {
	t.s.nextLoanID++
	loan.ID = t.s.nextLoanID
	t.s.loans[loan.ID] = *loan
	return nil
}

func (t *memTx) OpenLoanForUpdate(ctx context.Context, loanID uint64) (model.Loan, error) {
	l, ok := t.s.loans[loanID]
	if !ok || l.ReturnedAt != nil {
		return model.Loan{}, ErrLoanNotFound
	}
	return l, nil
}

func (t *memTx) CloseLoan(ctx context.Context, loanID uint64, returnedAt time.Time) error {
	l, ok := t.s.loans[loanID]
	if !ok {
		return ErrLoanNotFound
	}
	l.ReturnedAt = &returnedAt
	t.s.loans[loanID] = l
	return nil
}

func (t *memTx) RenewLoan(ctx context.Context, loanID uint64, dueAt time.Time) error {
	l, ok := t.s.loans[loanID]
	if !ok {
		return ErrLoanNotFound
	}
	l.DueAt = dueAt
	l.Renewed = true
	t.s.loans[loanID] = l
	return nil
}

func (t *memTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	t.s.nextResID++
	res.ID = t.s.nextResID
	t.s.reservations[res.ID] = *res
	return nil
}

func (t *memTx) ActiveReservationQueue(ctx context.Context, itemID uint64) ([]model.Reservation, error) {
	var queue []model.Reservation
	for _, r := range t.s.reservations {
		if r.ItemID == itemID && r.Active {
			queue = append(queue, r)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].ReservedAt.Equal(queue[j].ReservedAt) {
			return queue[i].ReservedAt.Before(queue[j].ReservedAt)
		}
		return queue[i].ID < queue[j].ID
	})
	return queue, nil
}

func (t *memTx) HasActiveReservation(ctx context.Context, itemID, patronID uint64) (bool, error) {
	for _, r := range t.s.reservations {
		if r.ItemID == itemID && r.PatronID == patronID && r.Active {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, reservationID uint64) (model.Reservation, error) {
	r, ok := t.s.reservations[reservationID]
	if !ok || !r.Active {
		return model.Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

func (t *memTx) DeactivateReservation(ctx context.Context, reservationID uint64) error {
	r, ok := t.s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	r.Active = false
	t.s.reservations[reservationID] = r
	return nil
}

func (t *memTx) SetReservationExpiry(ctx context.Context, reservationID uint64, expiresAt time.Time) error {
	r, ok := t.s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	r.ExpiresAt = expiresAt
	t.s.reservations[reservationID] = r
	return nil
}
