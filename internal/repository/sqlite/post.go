package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// PostDB is the posts table. Reads join the author and the optional group
// so templates never need a second query per row.
type PostDB struct {
	conn *sql.DB
}

var _ repository.PostRepository = (*PostDB)(nil)

const postSelect = `
	SELECT p.id, p.text, p.author_id, p.group_id, p.image, p.created_at,
	       u.username, u.first_name, u.last_name,
	       g.id, g.title, g.slug, g.description
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id`

// Create inserts a post and fills in ID and CreatedAt.
func (p *PostDB) Create(ctx context.Context, post *model.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	res, err := p.conn.ExecContext(ctx,
		`INSERT INTO posts (text, author_id, group_id, image, created_at) VALUES (?, ?, ?, ?, ?)`,
		post.Text,
		post.AuthorID,
		groupParam(post.GroupID),
		post.Image,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new post id: %w", err)
	}
	post.ID = id
	return nil
}

// GetByID retrieves a post with its author and group.
// Returns apperror.ErrNotFound if no post exists with that ID.
func (p *PostDB) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	row := p.conn.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return post, nil
}

// Update writes the editable fields: text, group and image. Author and
// creation time never change.
func (p *PostDB) Update(ctx context.Context, post *model.Post) error {
	result, err := p.conn.ExecContext(ctx,
		`UPDATE posts SET text = ?, group_id = ?, image = ? WHERE id = ?`,
		post.Text,
		groupParam(post.GroupID),
		post.Image,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(post.ID, 10))
	}
	return nil
}

// Delete removes a post and, through the foreign key, its comments.
func (p *PostDB) Delete(ctx context.Context, id int64) error {
	result, err := p.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	return nil
}

// List returns one page of posts matching filter, newest first. Posts
// sharing a timestamp fall back to the higher ID first so paging is stable.
func (p *PostDB) List(ctx context.Context, filter repository.PostFilter, opts repository.ListOptions) ([]model.Post, error) {
	where, args := postWhere(filter)

	query := postSelect + where + ` ORDER BY p.created_at DESC, p.id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := p.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating post rows: %w", err)
	}
	return posts, nil
}

// Count returns how many posts match filter; the paginator needs it to
// clamp the requested page before List runs.
func (p *PostDB) Count(ctx context.Context, filter repository.PostFilter) (int, error) {
	where, args := postWhere(filter)

	var n int
	err := p.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts p`+where, args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return n, nil
}

// postWhere turns a filter into a WHERE clause over the "p" alias.
func postWhere(filter repository.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.AuthorID != 0 {
		conds = append(conds, `p.author_id = ?`)
		args = append(args, filter.AuthorID)
	}
	if filter.GroupID != 0 {
		conds = append(conds, `p.group_id = ?`)
		args = append(args, filter.GroupID)
	}
	if filter.FollowedBy != 0 {
		conds = append(conds, `p.author_id IN (SELECT author_id FROM follows WHERE user_id = ?)`)
		args = append(args, filter.FollowedBy)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		conds = append(conds, `p.text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(s)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		post    model.Post
		author  model.User
		groupID sql.NullInt64
		gID     sql.NullInt64
		gTitle  sql.NullString
		gSlug   sql.NullString
		gDesc   sql.NullString
	)
	err := row.Scan(
		&post.ID,
		&post.Text,
		&post.AuthorID,
		&groupID,
		&post.Image,
		&post.CreatedAt,
		&author.Username,
		&author.FirstName,
		&author.LastName,
		&gID,
		&gTitle,
		&gSlug,
		&gDesc,
	)
	if err != nil {
		return nil, err
	}

	author.ID = post.AuthorID
	post.Author = &author

	if groupID.Valid {
		id := groupID.Int64
		post.GroupID = &id
	}
	if gID.Valid {
		post.Group = &model.Group{
			ID:          gID.Int64,
			Title:       gTitle.String,
			Slug:        gSlug.String,
			Description: gDesc.String,
		}
	}
	return &post, nil
}

func groupParam(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return nullInt64(*id)
}
