package repository

import (
	"context"
	"database/sql"

	"github.com/openshelf/circulation/internal/model"
)

// CategoryRepo manages the self-referential category tree.  Parent
// assignment is validated for cycles on write instead of relying on
// the foreign key alone, and deletion is restricted while children or
// items still reference the category.
type CategoryRepo struct {
	db *sql.DB
}

// NewCategoryRepo returns a new CategoryRepo bound to the given database.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// CategoryRow is the listing representation of a category with its
// parent's name resolved.
type CategoryRow struct {
	model.Category
	ParentName *string
}

// List returns all categories ordered by name, each with the parent
// name resolved when present.
func (r *CategoryRepo) List(ctx context.Context) ([]CategoryRow, error) {
	const q = `SELECT c.id, c.name, c.parent_id, c.created_at, p.name
		FROM categories c
		LEFT JOIN categories p ON p.id = c.parent_id
		ORDER BY c.name ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CategoryRow, 0)
	for rows.Next() {
		var row CategoryRow
		var parentID sql.NullInt64
		var parentName sql.NullString
		if err := rows.Scan(&row.ID, &row.Name, &parentID, &row.CreatedAt, &parentName); err != nil {
			return nil, err
		}
		if parentID.Valid {
			pid := uint64(parentID.Int64)
			row.ParentID = &pid
		}
		if parentName.Valid {
			pn := parentName.String
			row.ParentName = &pn
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches one category; sql.ErrNoRows when it does not exist.
func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (model.Category, error) {
	var c model.Category
	var parentID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, created_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &parentID, &c.CreatedAt)
	if err != nil {
		return model.Category{}, err
	}
	if parentID.Valid {
		pid := uint64(parentID.Int64)
		c.ParentID = &pid
	}
	return c, nil
}

// Create inserts a category.  A non-nil parent must exist.
func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	if c.ParentID != nil {
		if _, err := r.GetByID(ctx, *c.ParentID); err != nil {
			return err
		}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, parent_id) VALUES (?, ?)`,
		c.Name, nullableID(c.ParentID))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// Update renames a category and/or moves it under a new parent.  The
// new parent may not be the category itself or any of its
// descendants; such moves report ErrConflict.
func (r *CategoryRepo) Update(ctx context.Context, c model.Category) error {
	if c.ParentID != nil {
		if *c.ParentID == c.ID {
			return ErrConflict
		}
		cyclic, err := r.isDescendant(ctx, *c.ParentID, c.ID)
		if err != nil {
			return err
		}
		if cyclic {
			return ErrConflict
		}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, parent_id = ? WHERE id = ?`,
		c.Name, nullableID(c.ParentID), c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a category.  It fails with ErrConflict while child
// categories or items still reference it.
func (r *CategoryRepo) Delete(ctx context.Context, id uint64) error {
	var refs int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM categories WHERE parent_id = ?) + (SELECT COUNT(*) FROM items WHERE category_id = ?)`,
		id, id).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// isDescendant walks the parent chain upward from candidate and
// reports whether ancestor appears on it.  The walk is bounded by the
// table size, so an accidentally pre-existing cycle cannot hang it.
func (r *CategoryRepo) isDescendant(ctx context.Context, candidate, ancestor uint64) (bool, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
		return false, err
	}
	current := candidate
	for steps := 0; steps <= total; steps++ {
		if current == ancestor {
			return true, nil
		}
		var parent sql.NullInt64
		err := r.db.QueryRowContext(ctx,
			`SELECT parent_id FROM categories WHERE id = ?`, current).Scan(&parent)
		if err != nil {
			return false, err
		}
		if !parent.Valid {
			return false, nil
		}
		current = uint64(parent.Int64)
	}
	return true, nil
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}
