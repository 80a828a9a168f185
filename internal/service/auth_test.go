package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/model"
)

// newTestAuthService returns an AuthService on fake storage. bcrypt runs at
// its minimum cost so the suite stays fast.
func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	repo := &fakeUserRepo{store: newStore()}
	svc := NewAuthService(repo, ts, auth.NewPasswordServiceForTest(bcrypt.MinCost), testLogger())
	return svc, repo, ts
}

func validSignup() form.SignupInput {
	return form.SignupInput{
		FirstName: "Leo",
		LastName:  "Tolstoy",
		Username:  "leo",
		Email:     "leo@example.com",
		Password1: "war-and-peace-1869",
		Password2: "war-and-peace-1869",
	}
}

func TestSignup(t *testing.T) {
	svc, repo, ts := newTestAuthService(t)

	result, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	assert.NotZero(t, result.User.ID)
	assert.Equal(t, "Leo Tolstoy", result.User.FullName())
	assert.NotEqual(t, "war-and-peace-1869", result.User.PasswordHash, "password must be hashed")

	id, err := ts.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, id)

	stored, err := repo.GetByUsername(context.Background(), "leo")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))
}

func TestSignup_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *form.SignupInput)
		wantField string
	}{
		{name: "username taken", mutate: func(in *form.SignupInput) {}, wantField: "username"},
		{name: "passwords differ", mutate: func(in *form.SignupInput) { in.Password2 = "something-else-99" }, wantField: "password2"},
		{name: "bad username", mutate: func(in *form.SignupInput) { in.Username = "no spaces" }, wantField: "username"},
		{name: "short password", mutate: func(in *form.SignupInput) { in.Password1, in.Password2 = "a1", "a1" }, wantField: "password1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestAuthService(t)
			_, err := svc.Signup(context.Background(), validSignup())
			require.NoError(t, err)

			in := validSignup()
			tt.mutate(&in)
			_, err = svc.Signup(context.Background(), in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Contains(t, apperror.FieldErrors(err), tt.wantField)
		})
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), form.LoginInput{Username: " leo ", Password: "war-and-peace-1869"})
	require.NoError(t, err)
	assert.Equal(t, "leo", result.User.Username)
	assert.NotEmpty(t, result.Token)
}

func TestLogin_Rejected(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &model.User{Username: "octocat", GitHubID: 42}))

	tests := []struct {
		name string
		in   form.LoginInput
	}{
		{name: "wrong password", in: form.LoginInput{Username: "leo", Password: "anna-karenina-1877"}},
		{name: "unknown user", in: form.LoginInput{Username: "nobody", Password: "war-and-peace-1869"}},
		{name: "GitHub-only account", in: form.LoginInput{Username: "octocat", Password: "anything-at-all"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, msgBadLogin, apperror.FieldErrors(err)["__all__"])
		})
	}

	_, err = svc.Login(context.Background(), form.LoginInput{})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, apperror.FieldErrors(err), "username")
	assert.Contains(t, apperror.FieldErrors(err), "password")
}

func TestLogin_RepositoryError(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	repo.getErr = errDB

	_, err := svc.Login(context.Background(), form.LoginInput{Username: "leo", Password: "x"})
	assert.ErrorIs(t, err, errDB)
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}

func TestChangePassword(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	signed, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	user := signed.User

	err = svc.ChangePassword(context.Background(), user, form.PasswordChangeInput{
		OldPassword:  "war-and-peace-1869",
		NewPassword1: "anna-karenina-1877",
		NewPassword2: "anna-karenina-1877",
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.PasswordHash, user.PasswordHash)

	_, err = svc.Login(context.Background(), form.LoginInput{Username: "leo", Password: "war-and-peace-1869"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = svc.Login(context.Background(), form.LoginInput{Username: "leo", Password: "anna-karenina-1877"})
	assert.NoError(t, err)
}

func TestChangePassword_Errors(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	signed, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	githubOnly := &model.User{Username: "octocat", GitHubID: 42}
	require.NoError(t, repo.Create(context.Background(), githubOnly))

	valid := form.PasswordChangeInput{
		OldPassword:  "war-and-peace-1869",
		NewPassword1: "anna-karenina-1877",
		NewPassword2: "anna-karenina-1877",
	}

	tests := []struct {
		name      string
		user      *model.User
		mutate    func(in *form.PasswordChangeInput)
		wantField string
	}{
		{name: "wrong old password", user: signed.User, mutate: func(in *form.PasswordChangeInput) { in.OldPassword = "war-and-peace-1870" }, wantField: "old_password"},
		{name: "weak new password", user: signed.User, mutate: func(in *form.PasswordChangeInput) { in.NewPassword1, in.NewPassword2 = "leo12345", "leo12345" }, wantField: "new_password1"},
		{name: "new passwords differ", user: signed.User, mutate: func(in *form.PasswordChangeInput) { in.NewPassword2 = "anna-karenina-1878" }, wantField: "new_password2"},
		{name: "GitHub-only account", user: githubOnly, mutate: func(*form.PasswordChangeInput) {}, wantField: "old_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.user.PasswordHash
			in := valid
			tt.mutate(&in)

			err := svc.ChangePassword(context.Background(), tt.user, in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Contains(t, apperror.FieldErrors(err), tt.wantField)
			assert.Equal(t, before, tt.user.PasswordHash)
		})
	}

	err = svc.ChangePassword(context.Background(), nil, valid)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	svc, _, ts := newTestAuthService(t)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:    42,
		Login: "octocat",
		Name:  "Mona Lisa Octocat",
		Email: "octocat@github.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "octocat", result.User.Username)
	assert.Equal(t, int64(42), result.User.GitHubID)
	assert.Equal(t, "Mona", result.User.FirstName)
	assert.Equal(t, "Lisa Octocat", result.User.LastName)

	id, err := ts.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, id)
}

func TestLoginOrRegisterGitHub_ExistingUserGetsUpdatedEmail(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", Email: "old@github.com"})
	require.NoError(t, err)

	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", Email: "new@github.com"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	stored, err := repo.GetByID(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@github.com", stored.Email)
}

func TestLoginOrRegisterGitHub_UsernameTaken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, form.SignupInput{
		Username:  "octocat",
		Password1: "war-and-peace-1869",
		Password2: "war-and-peace-1869",
	})
	require.NoError(t, err)

	result, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, "octocat-1", result.User.Username)
}

func TestLoginOrRegisterGitHub_Errors(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), nil)
	assert.Error(t, err)

	repo.getErr = errDB
	_, err = svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x"})
	assert.ErrorIs(t, err, errDB)
}

func TestGithubUsername(t *testing.T) {
	assert.Equal(t, "octo-cat", githubUsername(&auth.GitHubUser{ID: 1, Login: "octo-cat"}))
	assert.Equal(t, "github7", githubUsername(&auth.GitHubUser{ID: 7, Login: "!!!"}))

	long := githubUsername(&auth.GitHubUser{ID: 1, Login: strings.Repeat("a", 200)})
	assert.Len(t, long, form.MaxUsernameLength-4)
}

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	got, err := svc.GetUserByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "leo", got.Username)

	_, err = svc.GetUserByID(ctx, 0)
	assert.Error(t, err)

	_, err = svc.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
