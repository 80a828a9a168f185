package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// CommentDB is the comments table.
type CommentDB struct {
	conn *sql.DB
}

var _ repository.CommentRepository = (*CommentDB)(nil)

const commentSelect = `
	SELECT c.id, c.text, c.author_id, c.post_id, c.created_at,
	       u.username, u.first_name, u.last_name
	FROM comments c
	JOIN users u ON u.id = c.author_id`

func (c *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	res, err := c.conn.ExecContext(ctx,
		`INSERT INTO comments (text, author_id, post_id, created_at) VALUES (?, ?, ?, ?)`,
		comment.Text, comment.AuthorID, comment.PostID, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting comment on post %d: %w", comment.PostID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new comment id: %w", err)
	}
	comment.ID = id
	return nil
}

func (c *CommentDB) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	row := c.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id)

	comment, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting comment %d: %w", id, err)
	}
	return comment, nil
}

// Update only rewrites the text.
func (c *CommentDB) Update(ctx context.Context, comment *model.Comment) error {
	result, err := c.conn.ExecContext(ctx,
		`UPDATE comments SET text = ? WHERE id = ?`, comment.Text, comment.ID)
	if err != nil {
		return fmt.Errorf("sqlite: updating comment %d: %w", comment.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", strconv.FormatInt(comment.ID, 10))
	}
	return nil
}

func (c *CommentDB) Delete(ctx context.Context, id int64) error {
	result, err := c.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", strconv.FormatInt(id, 10))
	}
	return nil
}

// ListByPost returns the comments under a post, oldest first.
func (c *CommentDB) ListByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := c.conn.QueryContext(ctx,
		commentSelect+` WHERE c.post_id = ? ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for post %d: %w", postID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comment rows: %w", err)
	}
	return comments, nil
}

func scanComment(row rowScanner) (*model.Comment, error) {
	var (
		comment model.Comment
		author  model.User
	)
	err := row.Scan(
		&comment.ID,
		&comment.Text,
		&comment.AuthorID,
		&comment.PostID,
		&comment.CreatedAt,
		&author.Username,
		&author.FirstName,
		&author.LastName,
	)
	if err != nil {
		return nil, err
	}
	author.ID = comment.AuthorID
	comment.Author = &author
	return &comment, nil
}
