package form

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	MaxUsernameLength = 150
	MinPasswordLength = 8
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// SignupInput is the registration form.
type SignupInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Clean trims everything except the passwords.
func (in *SignupInput) Clean() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
}

func (in SignupInput) Validate() error {
	return fieldErrors(validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.RuneLength(0, 150)),
		validation.Field(&in.LastName, validation.RuneLength(0, 150)),
		validation.Field(&in.Username, required,
			validation.RuneLength(1, MaxUsernameLength).Error("Ensure this value has at most 150 characters."),
			validation.Match(usernamePattern).Error("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."),
		),
		validation.Field(&in.Email, is.EmailFormat.Error("Enter a valid email address.")),
		validation.Field(&in.Password1, required, validation.By(passwordRule(in.Username, in.Email, in.FirstName, in.LastName))),
		validation.Field(&in.Password2, required, validation.By(func(value interface{}) error {
			if value.(string) != in.Password1 {
				return errors.New("The two password fields didn't match.")
			}
			return nil
		})),
	))
}

// LoginInput is the login form. Next is the page to return to afterwards.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

func (in *LoginInput) Clean() {
	in.Username = strings.TrimSpace(in.Username)
}

func (in LoginInput) Validate() error {
	return fieldErrors(validation.ValidateStruct(&in,
		validation.Field(&in.Username, required),
		validation.Field(&in.Password, required),
	))
}

// PasswordChangeInput is the change password form. Username and Email are
// filled in by the service so the new password can be checked against them.
type PasswordChangeInput struct {
	OldPassword  string `json:"old_password"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
	Username     string `json:"-"`
	Email        string `json:"-"`
}

func (in PasswordChangeInput) Validate() error {
	return fieldErrors(validation.ValidateStruct(&in,
		validation.Field(&in.OldPassword, required),
		validation.Field(&in.NewPassword1, required, validation.By(passwordRule(in.Username, in.Email))),
		validation.Field(&in.NewPassword2, required, validation.By(func(value interface{}) error {
			if value.(string) != in.NewPassword1 {
				return errors.New("The two password fields didn't match.")
			}
			return nil
		})),
	))
}

// SafeNext returns next when it is a local path, otherwise fallback.
// "//host" is protocol-relative and would leave the site.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	return next
}

// minPasswordScore is the lowest zxcvbn score (0..4) a new password may
// have. Dictionary words, keyboard walks and anything built from the
// account's own name or email score below it.
const minPasswordScore = 2

// passwordRule checks a new password against the account it belongs to.
func passwordRule(userInputs ...string) validation.RuleFunc {
	return func(value interface{}) error {
		password, _ := value.(string)
		if password == "" {
			return nil
		}
		if utf8.RuneCountInString(password) < MinPasswordLength {
			return errors.New("This password is too short. It must contain at least 8 characters.")
		}
		if isNumeric(password) {
			return errors.New("This password is entirely numeric.")
		}
		if zxcvbn.PasswordStrength(password, passwordHints(userInputs)).Score < minPasswordScore {
			return errors.New("This password is too common or too similar to your personal information.")
		}
		return nil
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// passwordHints expands the account fields into the words zxcvbn should
// treat as known: each field, plus the local part of an email.
func passwordHints(fields []string) []string {
	hints := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f == "" {
			continue
		}
		hints = append(hints, f)
		if local, _, ok := strings.Cut(f, "@"); ok && local != "" {
			hints = append(hints, local)
		}
	}
	return hints
}
