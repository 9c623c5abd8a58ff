package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openshelf/circulation/internal/model"
	"github.com/openshelf/circulation/internal/utils"
)

// PatronRepo provides account access to the patrons table: creation
// at registration, lookups for login and the admin status updates
// (role, blocked flag, penalty balance).  The borrowed_count column
// is never touched here; it belongs to the circulation transactions.
type PatronRepo struct{ DB *sql.DB }

// NewPatronRepo returns a new PatronRepo bound to the given database.
func NewPatronRepo(db *sql.DB) *PatronRepo { return &PatronRepo{DB: db} }

const patronColumns = `id, email, password_hash, first_name, last_name, role, borrowed_count, blocked, penalty_cents, created_at, updated_at`

func scanPatron(row interface{ Scan(...any) error }) (model.Patron, error) {
	var p model.Patron
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName,
		&p.Role, &p.BorrowedCount, &p.Blocked, &p.PenaltyCents, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a patron with a bcrypt-hashed password and returns
// the generated ID.  Duplicate emails report ErrEmailExists.
func (r *PatronRepo) Create(ctx context.Context, email, password, firstName, lastName, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO patrons (email, password_hash, first_name, last_name, role) VALUES (?,?,?,?,?)`,
		email, hash, firstName, lastName, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a patron by normalized email.
func (r *PatronRepo) GetByEmail(ctx context.Context, email string) (model.Patron, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanPatron(r.DB.QueryRowContext(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE email = ? LIMIT 1`, email))
}

// GetByID fetches a patron by id.
func (r *PatronRepo) GetByID(ctx context.Context, id uint64) (model.Patron, error) {
	return scanPatron(r.DB.QueryRowContext(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE id = ? LIMIT 1`, id))
}

// UpdateStatus applies the admin-managed fields: role, blocked flag
// and penalty balance.  The penalty is tracked only; nothing in this
// service computes or charges it.
func (r *PatronRepo) UpdateStatus(ctx context.Context, id uint64, role string, blocked bool, penaltyCents int64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE patrons SET role = ?, blocked = ?, penalty_cents = ? WHERE id = ?`,
		role, blocked, penaltyCents, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CountOpenLoans recomputes the patron's open loans by scan.  It is
// the verification counterpart of the denormalized borrowed_count and
// is only used on staff detail views, never in the checkout path.
func (r *PatronRepo) CountOpenLoans(ctx context.Context, id uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE patron_id = ? AND returned_at IS NULL`, id).Scan(&n)
	return n, err
}
