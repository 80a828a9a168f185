// Package form holds the explicit input structs behind every HTML form.
//
// Each struct lists only the fields a user may write; anything else on the
// request (an author, a post id) is ignored because there is nowhere to put
// it. Validate returns nil or an *apperror.AppError carrying one message
// per field, keyed by the form field name.
package form

import (
	"errors"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/sakif/yatube/internal/apperror"
)

const msgRequired = "This field is required."

// required is validation.Required with the message the templates show.
var required = validation.Required.Error(msgRequired)

// PostInput is the create/edit post form. The image travels separately as a
// multipart file.
type PostInput struct {
	Text       string `json:"text"`
	Group      string `json:"group"`
	ClearImage bool   `json:"image-clear"`
}

// Clean trims the free-text fields the way the browser user expects.
func (in *PostInput) Clean() {
	in.Text = strings.TrimSpace(in.Text)
	in.Group = strings.TrimSpace(in.Group)
}

func (in PostInput) Validate() error {
	return fieldErrors(validation.ValidateStruct(&in,
		validation.Field(&in.Text, required),
		validation.Field(&in.Group, is.Digit.Error("Select a valid choice.")),
	))
}

// GroupID returns the selected group, or nil when none was chosen.
// Call it only after Validate succeeded.
func (in PostInput) GroupID() *int64 {
	if in.Group == "" {
		return nil
	}
	id, err := strconv.ParseInt(in.Group, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

type CommentInput struct {
	Text string `json:"text"`
}

func (in *CommentInput) Clean() {
	in.Text = strings.TrimSpace(in.Text)
}

func (in CommentInput) Validate() error {
	return fieldErrors(validation.ValidateStruct(&in,
		validation.Field(&in.Text, required),
	))
}

// GroupInput is the staff-only create group form.
type GroupInput struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func (in *GroupInput) Clean() {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Description = strings.TrimSpace(in.Description)
}

func (in GroupInput) Validate() error {
	return fieldErrors(validation.ValidateStruct(&in,
		validation.Field(&in.Title, required, validation.RuneLength(1, 200).Error("Ensure this value has at most 200 characters.")),
		validation.Field(&in.Slug, required,
			validation.RuneLength(1, 50).Error("Ensure this value has at most 50 characters."),
			validation.Match(slugPattern).Error("Enter a valid slug consisting of letters, numbers, underscores or hyphens."),
		),
		validation.Field(&in.Description, required),
	))
}

// fieldErrors converts ozzo's per-field map into the shared error type.
// Anything that is not a validation.Errors (a rule blew up) is passed on.
func fieldErrors(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	fields := make(map[string]string, len(errs))
	for name, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		fields[name] = fieldErr.Error()
	}
	if len(fields) == 0 {
		return nil
	}
	return apperror.Invalid(fields)
}
