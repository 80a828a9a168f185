// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data: composition instead of
// inheritance: the shared creation timestamp is an embedded struct.
package model

import "time"

// Created is embedded by every entity that records when it was created.
type Created struct {
	CreatedAt time.Time `json:"created" db:"created_at"`
}

// User represents a registered account.
//
// Accounts come from the signup form (username + password) or from GitHub
// OAuth. GitHubID is zero for password-only accounts; the column is NULL in
// that case so the UNIQUE constraint only applies to linked accounts.
type User struct {
	ID           int64  `json:"id"        db:"id"`
	Username     string `json:"username"  db:"username"`
	Email        string `json:"email"     db:"email"`
	FirstName    string `json:"firstName" db:"first_name"`
	LastName     string `json:"lastName"  db:"last_name"`
	PasswordHash string `json:"-"         db:"password_hash"`
	GitHubID     int64  `json:"githubId"  db:"github_id"`
	IsStaff      bool   `json:"isStaff"   db:"is_staff"`
	Created
}

// FullName returns "First Last", or the username when no name was given.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

func (u *User) String() string {
	return u.Username
}
