package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openshelf/circulation/internal/model"
)

// LoanRepo provides the read side of the loan ledger: the staff
// roster of open loans and a patron's own loan history.  Loans are
// created, closed and renewed exclusively through the circulation
// engine's transactions.
type LoanRepo struct {
	db *sql.DB
}

// NewLoanRepo returns a new LoanRepo bound to the given database.
func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

// LoanSearchQuery filters the staff roster of open loans.  Query is
// matched as a substring against the item title and the patron's
// first and last name; Overdue keeps only loans past their due date.
type LoanSearchQuery struct {
	Query   string
	Overdue bool
}

// LoanRow is the roster representation of a loan with item and patron
// context resolved.
type LoanRow struct {
	model.Loan
	ItemTitle   string
	PatronEmail string
	PatronName  string
}

// ListOpen returns open loans ordered by due date ascending, so the
// most urgent returns come first.
func (r *LoanRepo) ListOpen(ctx context.Context, q LoanSearchQuery) ([]LoanRow, error) {
	where := []string{"l.returned_at IS NULL"}
	args := []any{}
	if q.Overdue {
		where = append(where, "l.due_at < UTC_TIMESTAMP()")
	}
	if q.Query != "" {
		needle := "%" + strings.ToLower(q.Query) + "%"
		where = append(where, "(LOWER(i.title) LIKE ? OR LOWER(p.first_name) LIKE ? OR LOWER(p.last_name) LIKE ?)")
		args = append(args, needle, needle, needle)
	}

	query := `SELECT l.id, l.patron_id, l.item_id, l.checked_out_at, l.due_at, l.returned_at, l.renewed,
			i.title, p.email, CONCAT(p.first_name, ' ', p.last_name)
		FROM loans l
		JOIN items i ON i.id = l.item_id
		JOIN patrons p ON p.id = l.patron_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY l.due_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoanRows(rows)
}

// ListByPatron returns the patron's loans newest-first, open and
// closed alike.
func (r *LoanRepo) ListByPatron(ctx context.Context, patronID uint64) ([]LoanRow, error) {
	const query = `SELECT l.id, l.patron_id, l.item_id, l.checked_out_at, l.due_at, l.returned_at, l.renewed,
			i.title, p.email, CONCAT(p.first_name, ' ', p.last_name)
		FROM loans l
		JOIN items i ON i.id = l.item_id
		JOIN patrons p ON p.id = l.patron_id
		WHERE l.patron_id = ?
		ORDER BY l.checked_out_at DESC`
	rows, err := r.db.QueryContext(ctx, query, patronID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoanRows(rows)
}

func collectLoanRows(rows *sql.Rows) ([]LoanRow, error) {
	out := make([]LoanRow, 0)
	for rows.Next() {
		var row LoanRow
		var returnedAt sql.NullTime
		if err := rows.Scan(&row.ID, &row.PatronID, &row.ItemID, &row.CheckedOutAt, &row.DueAt,
			&returnedAt, &row.Renewed, &row.ItemTitle, &row.PatronEmail, &row.PatronName); err != nil {
			return nil, err
		}
		if returnedAt.Valid {
			t := returnedAt.Time
			row.ReturnedAt = &t
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
