package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// FollowDB is the follows table. UNIQUE(user_id, author_id) is the only
// thing standing between two concurrent follow clicks and a duplicate row.
type FollowDB struct {
	conn *sql.DB
}

var _ repository.FollowRepository = (*FollowDB)(nil)

// Create inserts the pair. An existing pair is reported as a Conflict.
func (f *FollowDB) Create(ctx context.Context, follow *model.Follow) error {
	res, err := f.conn.ExecContext(ctx,
		`INSERT INTO follows (user_id, author_id) VALUES (?, ?)`,
		follow.UserID, follow.AuthorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("follow", fmt.Sprintf("%d:%d", follow.UserID, follow.AuthorID))
		}
		return fmt.Errorf("sqlite: inserting follow %d->%d: %w", follow.UserID, follow.AuthorID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new follow id: %w", err)
	}
	follow.ID = id
	return nil
}

// Delete removes the pair and reports whether a row existed.
func (f *FollowDB) Delete(ctx context.Context, userID, authorID int64) (bool, error) {
	result, err := f.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE user_id = ? AND author_id = ?`, userID, authorID)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting follow %d->%d: %w", userID, authorID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (f *FollowDB) Exists(ctx context.Context, userID, authorID int64) (bool, error) {
	var exists bool
	err := f.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE user_id = ? AND author_id = ?)`,
		userID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow %d->%d: %w", userID, authorID, err)
	}
	return exists, nil
}

func (f *FollowDB) CountFollowers(ctx context.Context, authorID int64) (int, error) {
	return f.count(ctx, `SELECT COUNT(*) FROM follows WHERE author_id = ?`, authorID)
}

func (f *FollowDB) CountFollowing(ctx context.Context, userID int64) (int, error) {
	return f.count(ctx, `SELECT COUNT(*) FROM follows WHERE user_id = ?`, userID)
}

func (f *FollowDB) count(ctx context.Context, query string, id int64) (int, error) {
	var n int
	if err := f.conn.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting follows for %d: %w", id, err)
	}
	return n, nil
}
