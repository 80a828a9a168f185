package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// GroupDB is the post_groups table.
type GroupDB struct {
	conn *sql.DB
}

var _ repository.GroupRepository = (*GroupDB)(nil)

// Create inserts a group. A slug that is already taken is a Conflict.
func (g *GroupDB) Create(ctx context.Context, group *model.Group) error {
	res, err := g.conn.ExecContext(ctx,
		`INSERT INTO post_groups (title, slug, description) VALUES (?, ?, ?)`,
		group.Title, group.Slug, group.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("group", group.Slug)
		}
		return fmt.Errorf("sqlite: inserting group %q: %w", group.Slug, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new group id: %w", err)
	}
	group.ID = id
	return nil
}

func (g *GroupDB) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	row := g.conn.QueryRowContext(ctx,
		`SELECT id, title, slug, description FROM post_groups WHERE id = ?`, id)
	return scanGroup(row, strconv.FormatInt(id, 10))
}

// GetBySlug resolves the URL key of a group page.
func (g *GroupDB) GetBySlug(ctx context.Context, slug string) (*model.Group, error) {
	row := g.conn.QueryRowContext(ctx,
		`SELECT id, title, slug, description FROM post_groups WHERE slug = ?`, slug)
	return scanGroup(row, slug)
}

// List returns every group ordered by title, for the post form's select box
// and the admin page.
func (g *GroupDB) List(ctx context.Context) ([]model.Group, error) {
	rows, err := g.conn.QueryContext(ctx,
		`SELECT id, title, slug, description FROM post_groups ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.Group, 0)
	for rows.Next() {
		var grp model.Group
		if err := rows.Scan(&grp.ID, &grp.Title, &grp.Slug, &grp.Description); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group row: %w", err)
		}
		groups = append(groups, grp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating group rows: %w", err)
	}
	return groups, nil
}

// Delete removes the group; its posts stay, with group_id set to NULL.
func (g *GroupDB) Delete(ctx context.Context, id int64) error {
	result, err := g.conn.ExecContext(ctx, `DELETE FROM post_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting group %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("group", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanGroup(row *sql.Row, key string) (*model.Group, error) {
	var grp model.Group
	if err := row.Scan(&grp.ID, &grp.Title, &grp.Slug, &grp.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("group", key)
		}
		return nil, fmt.Errorf("sqlite: getting group %s: %w", key, err)
	}
	return &grp, nil
}
