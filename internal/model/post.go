package model

// PostPreviewLength is how many characters String() keeps.
const PostPreviewLength = 15

// Post is a blog entry. Author is mandatory; Group is optional and becomes
// nil when its group is deleted. Image holds the media key relative to the
// media root (e.g. "posts/5f1c….png"), empty when the post has no image.
type Post struct {
	ID       int64  `json:"id"       db:"id"`
	Text     string `json:"text"     db:"text"`
	AuthorID int64  `json:"authorId" db:"author_id"`
	GroupID  *int64 `json:"groupId"  db:"group_id"`
	Image    string `json:"image"    db:"image"`
	Created

	// Populated by repository joins, not stored on the row.
	Author *User  `json:"author,omitempty" db:"-"`
	Group  *Group `json:"group,omitempty"  db:"-"`
}

// String returns the first PostPreviewLength characters of the text.
func (p *Post) String() string {
	r := []rune(p.Text)
	if len(r) > PostPreviewLength {
		return string(r[:PostPreviewLength])
	}
	return p.Text
}

// InGroup reports whether the post is tagged to group id.
func (p *Post) InGroup(id int64) bool {
	return p.GroupID != nil && *p.GroupID == id
}
