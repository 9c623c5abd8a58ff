package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openshelf/circulation/internal/model"
)

// ItemRepo provides catalog access to the items table.  Everything
// here either reads item rows or performs staff catalog maintenance;
// circulation state transitions never happen through this type, they
// belong to the CirculationStore.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// DB exposes the underlying handle for callers that need to open a
// transaction spanning several repositories.
func (r *ItemRepo) DB() *sql.DB { return r.db }

const itemColumns = `id, title, author, isbn, tag, category_id, state, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.Title, &it.Author, &it.ISBN, &it.Tag, &it.CategoryID, &it.State, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// Create inserts a new item.  New items always start available.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO items (title, author, isbn, tag, category_id, state) VALUES (?, ?, ?, ?, ?, ?)`,
		it.Title, it.Author, it.ISBN, it.Tag, it.CategoryID, model.ItemAvailable)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	it.State = model.ItemAvailable
	return nil
}

// GetByID fetches one item; sql.ErrNoRows when it does not exist.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (model.Item, error) {
	return scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
}

// Delete removes an item that never circulated.  Items referenced by
// loan or reservation history must be withdrawn instead; deleting
// them reports ErrConflict so the record trail stays intact.
func (r *ItemRepo) Delete(ctx context.Context, id uint64) error {
	var refs int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM loans WHERE item_id = ?) + (SELECT COUNT(*) FROM reservations WHERE item_id = ?)`,
		id, id).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
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

// Withdraw marks an item as permanently out of circulation.  Only an
// available item can be withdrawn; anything mid-circulation reports
// ErrConflict and must finish its loan or pickup first.
func (r *ItemRepo) Withdraw(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET state = ? WHERE id = ? AND state = ?`,
		model.ItemWithdrawn, id, model.ItemAvailable)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing item from one in the wrong state.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// ItemSearchQuery carries the catalog browse filters: an optional
// category and a free-text needle matched as a substring against
// title, author, tag and ISBN.
type ItemSearchQuery struct {
	CategoryID uint64
	Query      string
}

// ItemRow is the browse representation of an item, carrying the
// category name alongside the item fields.
type ItemRow struct {
	model.Item
	CategoryName string
}

// Search lists catalog items ordered by title.  Matching is plain
// substring matching; there is no ranking.
func (r *ItemRepo) Search(ctx context.Context, q ItemSearchQuery) ([]ItemRow, error) {
	where := []string{"1=1"}
	args := []any{}
	if q.CategoryID > 0 {
		where = append(where, "i.category_id = ?")
		args = append(args, q.CategoryID)
	}
	if q.Query != "" {
		needle := "%" + strings.ToLower(q.Query) + "%"
		where = append(where, "(LOWER(i.title) LIKE ? OR LOWER(i.author) LIKE ? OR LOWER(i.tag) LIKE ? OR i.isbn LIKE ?)")
		args = append(args, needle, needle, needle, needle)
	}

	query := `SELECT i.id, i.title, i.author, i.isbn, i.tag, i.category_id, i.state, i.created_at, i.updated_at, c.name
		FROM items i
		JOIN categories c ON c.id = i.category_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY i.title ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ItemRow, 0)
	for rows.Next() {
		var row ItemRow
		if err := rows.Scan(&row.ID, &row.Title, &row.Author, &row.ISBN, &row.Tag,
			&row.CategoryID, &row.State, &row.CreatedAt, &row.UpdatedAt, &row.CategoryName); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
