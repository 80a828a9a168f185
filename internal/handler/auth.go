package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler manages signup, password login, logout and the optional
// GitHub OAuth flow. The session itself is a JWT in an HttpOnly cookie.
type AuthHandler struct {
	*Site
	accounts      *service.AuthService
	tokens        *auth.TokenService
	github        *auth.GitHubProvider // nil when GitHub login is not configured
	secureCookies bool
}

func NewAuthHandler(
	site *Site,
	accounts *service.AuthService,
	tokens *auth.TokenService,
	github *auth.GitHubProvider,
	secureCookies bool,
) *AuthHandler {
	return &AuthHandler{
		Site:          site,
		accounts:      accounts,
		tokens:        tokens,
		github:        github,
		secureCookies: secureCookies,
	}
}

// HandleSignup shows and processes the registration form. A new account is
// logged in straight away.
//
// HTTP: GET, POST /auth/signup/
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	if r.Method != http.MethodPost {
		h.Render(w, req, http.StatusOK, "signup", View{"Form": form.SignupInput{}})
		return
	}

	in := form.SignupInput{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}

	result, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		if fields := formErrors(err); fields != nil {
			in.Password1, in.Password2 = "", ""
			h.Render(w, req, http.StatusOK, "signup", View{"Form": in, "Errors": fields})
			return
		}
		h.Fail(w, req, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.tokens.TTL(), h.secureCookies)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogin shows and processes the login form, then returns the user to
// ?next= when it is a local path.
//
// HTTP: GET, POST /auth/login/
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	if r.Method != http.MethodPost {
		h.Render(w, req, http.StatusOK, "login", View{
			"Form":   form.LoginInput{Next: r.URL.Query().Get("next")},
			"GitHub": h.github != nil,
		})
		return
	}

	in := form.LoginInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
		Next:     r.PostFormValue("next"),
	}

	result, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		if fields := formErrors(err); fields != nil {
			in.Password = ""
			h.Render(w, req, http.StatusOK, "login", View{
				"Form":   in,
				"Errors": fields,
				"GitHub": h.github != nil,
			})
			return
		}
		h.Fail(w, req, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.tokens.TTL(), h.secureCookies)
	http.Redirect(w, r, form.SafeNext(in.Next, "/"), http.StatusFound)
}

// HandleLogout clears the session cookie. The token stays technically
// valid until it expires, but the browser no longer has it.
//
// HTTP: GET, POST /auth/logout/
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	auth.ClearSessionCookie(w, h.secureCookies)

	// The page itself must render as anonymous.
	req.User = nil
	h.Render(w, req, http.StatusOK, "logged_out", nil)
}

// HandlePasswordChange shows and processes the change password form for
// the logged in user. The session cookie stays valid afterwards.
//
// HTTP: GET, POST /auth/password_change/
func (h *AuthHandler) HandlePasswordChange(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	user := h.RequireUser(w, req)
	if user == nil {
		return
	}

	if r.Method != http.MethodPost {
		h.Render(w, req, http.StatusOK, "password_change", nil)
		return
	}

	in := form.PasswordChangeInput{
		OldPassword:  r.PostFormValue("old_password"),
		NewPassword1: r.PostFormValue("new_password1"),
		NewPassword2: r.PostFormValue("new_password2"),
	}
	if err := h.accounts.ChangePassword(r.Context(), user, in); err != nil {
		if fields := formErrors(err); fields != nil {
			h.Render(w, req, http.StatusOK, "password_change", View{"Errors": fields})
			return
		}
		h.Fail(w, req, err)
		return
	}

	http.Redirect(w, r, "/auth/password_change/done/", http.StatusFound)
}

// HandlePasswordChangeDone confirms a successful password change.
//
// HTTP: GET /auth/password_change/done/
func (h *AuthHandler) HandlePasswordChangeDone(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	if h.RequireUser(w, req) == nil {
		return
	}
	h.Render(w, req, http.StatusOK, "password_change_done", nil)
}

// HandleGitHubLogin redirects to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state value goes into a short-lived cookie; the callback only
// proceeds when GitHub hands the same value back.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.NotFound(w, r)
		return
	}

	state := auth.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find or create the local account
//  4. Set the session cookie and go home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.NotFound(w, r)
		return
	}
	req := h.Request(r)

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie", slog.String("requestID", req.RequestID))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("requestID", req.RequestID))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, LoginURL, http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.ServerError(w, req, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.tokens.TTL(), h.secureCookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
