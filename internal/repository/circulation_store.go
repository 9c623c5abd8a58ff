package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/openshelf/circulation/internal/circulation"
	"github.com/openshelf/circulation/internal/model"
)

// CirculationStore is the SQL implementation of circulation.Store.
// Every engine operation runs inside one serializable transaction and
// reads the rows it is about to mutate with SELECT ... FOR UPDATE, so
// a state check and the write it guards cannot interleave with a
// concurrent operation on the same item, loan or patron.  A unique
// constraint alone would not do: the item state machine has more than
// two states.
type CirculationStore struct {
	db *sql.DB
}

// NewCirculationStore returns a store bound to the given database.
func NewCirculationStore(db *sql.DB) *CirculationStore { return &CirculationStore{db: db} }

// Item reads one item outside any transaction.  Used for the
// courtesy availability check when filling a basket.
func (s *CirculationStore) Item(ctx context.Context, itemID uint64) (model.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID))
	if err == sql.ErrNoRows {
		return model.Item{}, circulation.ErrItemNotFound
	}
	return it, err
}

// InTx runs fn inside a serializable transaction, rolling back on any
// error.  The commit error is returned as-is; the engine classifies
// it as transient.
func (s *CirculationStore) InTx(ctx context.Context, fn func(tx circulation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&circTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// circTx implements circulation.Tx over one open *sql.Tx.
type circTx struct {
	tx *sql.Tx
}

func (t *circTx) ItemForUpdate(ctx context.Context, itemID uint64) (model.Item, error) {
	it, err := scanItem(t.tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ? FOR UPDATE`, itemID))
	if err == sql.ErrNoRows {
		return model.Item{}, circulation.ErrItemNotFound
	}
	return it, err
}

func (t *circTx) SetItemState(ctx context.Context, itemID uint64, state model.ItemState) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE items SET state = ? WHERE id = ?`, state, itemID)
	return err
}

func (t *circTx) PatronForUpdate(ctx context.Context, patronID uint64) (model.Patron, error) {
	p, err := scanPatron(t.tx.QueryRowContext(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE id = ? FOR UPDATE`, patronID))
	if err == sql.ErrNoRows {
		return model.Patron{}, circulation.ErrPatronNotFound
	}
	return p, err
}

func (t *circTx) AddToBorrowedCount(ctx context.Context, patronID uint64, delta int) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE patrons SET borrowed_count = borrowed_count + ? WHERE id = ?`, delta, patronID)
	return err
}

func (t *circTx) InsertLoan(ctx context.Context, loan *model.Loan) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO loans (patron_id, item_id, checked_out_at, due_at, renewed) VALUES (?, ?, ?, ?, ?)`,
		loan.PatronID, loan.ItemID, loan.CheckedOutAt, loan.DueAt, loan.Renewed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	loan.ID = uint64(id)
	return nil
}

func (t *circTx) OpenLoanForUpdate(ctx context.Context, loanID uint64) (model.Loan, error) {
	var l model.Loan
	var returnedAt sql.NullTime
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, patron_id, item_id, checked_out_at, due_at, returned_at, renewed
		 FROM loans WHERE id = ? AND returned_at IS NULL FOR UPDATE`, loanID).
		Scan(&l.ID, &l.PatronID, &l.ItemID, &l.CheckedOutAt, &l.DueAt, &returnedAt, &l.Renewed)
	if err == sql.ErrNoRows {
		return model.Loan{}, circulation.ErrLoanNotFound
	}
	if err != nil {
		return model.Loan{}, err
	}
	if returnedAt.Valid {
		at := returnedAt.Time
		l.ReturnedAt = &at
	}
	return l, nil
}

func (t *circTx) CloseLoan(ctx context.Context, loanID uint64, returnedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE loans SET returned_at = ? WHERE id = ? AND returned_at IS NULL`, returnedAt, loanID)
	return err
}

func (t *circTx) RenewLoan(ctx context.Context, loanID uint64, dueAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE loans SET due_at = ?, renewed = 1 WHERE id = ?`, dueAt, loanID)
	return err
}

func (t *circTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	r, err := t.tx.ExecContext(ctx,
		`INSERT INTO reservations (patron_id, item_id, reserved_at, expires_at, active) VALUES (?, ?, ?, ?, ?)`,
		res.PatronID, res.ItemID, res.ReservedAt, res.ExpiresAt, res.Active)
	if err != nil {
		return err
	}
	id, err := r.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

func (t *circTx) ActiveReservationQueue(ctx context.Context, itemID uint64) ([]model.Reservation, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, patron_id, item_id, reserved_at, expires_at, active
		 FROM reservations WHERE item_id = ? AND active = 1
		 ORDER BY reserved_at ASC, id ASC FOR UPDATE`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queue []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.PatronID, &r.ItemID, &r.ReservedAt, &r.ExpiresAt, &r.Active); err != nil {
			return nil, err
		}
		queue = append(queue, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return queue, nil
}

func (t *circTx) HasActiveReservation(ctx context.Context, itemID, patronID uint64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE item_id = ? AND patron_id = ? AND active = 1`,
		itemID, patronID).Scan(&n)
	return n > 0, err
}

func (t *circTx) ReservationForUpdate(ctx context.Context, reservationID uint64) (model.Reservation, error) {
	var r model.Reservation
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, patron_id, item_id, reserved_at, expires_at, active
		 FROM reservations WHERE id = ? AND active = 1 FOR UPDATE`, reservationID).
		Scan(&r.ID, &r.PatronID, &r.ItemID, &r.ReservedAt, &r.ExpiresAt, &r.Active)
	if err == sql.ErrNoRows {
		return model.Reservation{}, circulation.ErrReservationNotFound
	}
	return r, err
}

func (t *circTx) DeactivateReservation(ctx context.Context, reservationID uint64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET active = 0 WHERE id = ?`, reservationID)
	return err
}

func (t *circTx) SetReservationExpiry(ctx context.Context, reservationID uint64, expiresAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET expires_at = ? WHERE id = ?`, expiresAt, reservationID)
	return err
}
