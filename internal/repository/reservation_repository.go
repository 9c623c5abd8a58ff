package repository

import (
	"context"
	"database/sql"

	"github.com/openshelf/circulation/internal/model"
)

// ReservationRepo provides the read side of the reservation queue:
// the staff roster and per-item / per-patron views.  Creation,
// activation and deactivation run through the circulation engine's
// transactions only.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationRow is the roster representation of a reservation with
// item and patron context resolved.
type ReservationRow struct {
	model.Reservation
	ItemTitle   string
	ItemState   model.ItemState
	PatronEmail string
}

const reservationRowQuery = `SELECT r.id, r.patron_id, r.item_id, r.reserved_at, r.expires_at, r.active,
		i.title, i.state, p.email
	FROM reservations r
	JOIN items i ON i.id = r.item_id
	JOIN patrons p ON p.id = r.patron_id`

// ListActive returns every active reservation grouped by item and
// ordered FIFO within each item, which is exactly the queue the desk
// works through.
func (r *ReservationRepo) ListActive(ctx context.Context) ([]ReservationRow, error) {
	rows, err := r.db.QueryContext(ctx,
		reservationRowQuery+` WHERE r.active = 1 ORDER BY r.item_id ASC, r.reserved_at ASC, r.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservationRows(rows)
}

// ListActiveByItem returns the item's active queue oldest-first.
func (r *ReservationRepo) ListActiveByItem(ctx context.Context, itemID uint64) ([]ReservationRow, error) {
	rows, err := r.db.QueryContext(ctx,
		reservationRowQuery+` WHERE r.active = 1 AND r.item_id = ? ORDER BY r.reserved_at ASC, r.id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservationRows(rows)
}

// ListActiveByPatron returns the patron's active reservations
// oldest-first.
func (r *ReservationRepo) ListActiveByPatron(ctx context.Context, patronID uint64) ([]ReservationRow, error) {
	rows, err := r.db.QueryContext(ctx,
		reservationRowQuery+` WHERE r.active = 1 AND r.patron_id = ? ORDER BY r.reserved_at ASC, r.id ASC`, patronID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservationRows(rows)
}

func collectReservationRows(rows *sql.Rows) ([]ReservationRow, error) {
	out := make([]ReservationRow, 0)
	for rows.Next() {
		var row ReservationRow
		if err := rows.Scan(&row.ID, &row.PatronID, &row.ItemID, &row.ReservedAt, &row.ExpiresAt,
			&row.Active, &row.ItemTitle, &row.ItemState, &row.PatronEmail); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
