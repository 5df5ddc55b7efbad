// Package auth signs dashboard users in and manages their profile. Two
// authenticators are provided: Local keeps bcrypt accounts in the content
// store, Firebase delegates to Firebase Authentication.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/eringen/bandsite/content"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrNotAdmin is returned when a signed-in user lacks the admin claim.
	ErrNotAdmin = errors.New("auth: admin privileges required")
)

// DeniedMessage is shown to users who sign in without the admin claim.
const DeniedMessage = "Access denied. Admin privileges required."

// MinPasswordLength matches the Firebase Authentication minimum.
const MinPasswordLength = 6

// Credential is the result of a successful sign-in.
type Credential struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	Admin       bool
}

// Authenticator exchanges email and password for a Credential and edits
// the signed-in user's account.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (Credential, error)
	Lookup(ctx context.Context, uid string) (Credential, error)
	UpdateProfile(ctx context.Context, uid, displayName, photoURL string) error
	ChangePassword(ctx context.Context, uid, current, next string) error
}

// ValidatePasswordChange checks a change-password form without touching
// any backend.
func ValidatePasswordChange(current, next, confirm string) error {
	switch {
	case current == "" || next == "" || confirm == "":
		return content.Invalid("Please fill in all password fields")
	case next != confirm:
		return content.Invalid("New passwords do not match")
	case len(next) < MinPasswordLength:
		return content.Invalid("New password must be at least 6 characters")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
