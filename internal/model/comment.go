package model

// Comment is a reply to a post. Both the author and the post cascade.
type Comment struct {
	ID       int64  `json:"id"       db:"id"`
	Text     string `json:"text"     db:"text"`
	AuthorID int64  `json:"authorId" db:"author_id"`
	PostID   int64  `json:"postId"   db:"post_id"`
	Created

	Author *User `json:"author,omitempty" db:"-"`
}

// Follow is a directed relation: UserID follows AuthorID and sees the
// author's posts in their feed. The (UserID, AuthorID) pair is unique.
type Follow struct {
	ID       int64 `json:"id"       db:"id"`
	UserID   int64 `json:"userId"   db:"user_id"`
	AuthorID int64 `json:"authorId" db:"author_id"`
}
