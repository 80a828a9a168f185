package model

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxGroupTitleLength bounds Group.Title.
const MaxGroupTitleLength = 200

// Group is a named community a post may optionally belong to.
// The slug is unique and used as the URL key: /group/{slug}/.
type Group struct {
	ID          int64  `json:"id"          db:"id"`
	Title       string `json:"title"       db:"title"       validate:"required,max=200"`
	Slug        string `json:"slug"        db:"slug"        validate:"required,max=50,slug"`
	Description string `json:"description" db:"description" validate:"required"`
}

func (g *Group) String() string {
	return g.Title
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func groupValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks the struct tags on the group.
func (g *Group) Validate() error {
	return groupValidator().Struct(g)
}
