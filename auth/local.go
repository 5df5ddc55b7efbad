package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/bandsite/store"
)

// CollectionAdmins holds Local accounts.
const CollectionAdmins = "admins"

// Local authenticates against bcrypt hashes stored in the content store.
type Local struct {
	store store.Store
	cost  int
}

// NewLocal returns a Local authenticator on st.
func NewLocal(st store.Store) *Local {
	return &Local{store: st, cost: 12}
}

// EnsureAccount creates the account for email, or resets its password and
// admin flag if it already exists.
func (l *Local) EnsureAccount(ctx context.Context, email, password string, admin bool) (Credential, error) {
	email = NormalizeEmail(email)
	if email == "" || len(password) < MinPasswordLength {
		return Credential{}, fmt.Errorf("auth: email and a password of at least %d characters are required", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}
	doc, err := l.byEmail(ctx, email)
	switch {
	case err == nil:
		err = l.store.Update(ctx, CollectionAdmins, doc.ID, store.Record{
			"passwordHash": string(hash),
			"admin":        admin,
		})
		if err != nil {
			return Credential{}, err
		}
		return l.Lookup(ctx, doc.ID)
	case errors.Is(err, ErrInvalidCredentials):
		id, err := l.store.Create(ctx, CollectionAdmins, store.Record{
			"email":        email,
			"passwordHash": string(hash),
			"admin":        admin,
			"displayName":  "",
			"photoURL":     "",
			"createdAt":    store.ServerTimestamp,
		})
		if err != nil {
			return Credential{}, err
		}
		return Credential{UID: id, Email: email, Admin: admin}, nil
	default:
		return Credential{}, err
	}
}

// SignIn checks the password for email.
func (l *Local) SignIn(ctx context.Context, email, password string) (Credential, error) {
	doc, err := l.byEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return Credential{}, err
	}
	if err := checkHash(doc.Data, password); err != nil {
		return Credential{}, err
	}
	return credential(doc), nil
}

// Lookup returns the current account state for uid.
func (l *Local) Lookup(ctx context.Context, uid string) (Credential, error) {
	doc, err := l.store.Get(ctx, CollectionAdmins, uid)
	if errors.Is(err, store.ErrNotFound) {
		return Credential{}, ErrInvalidCredentials
	}
	if err != nil {
		return Credential{}, err
	}
	return credential(doc), nil
}

// UpdateProfile sets the display name and, when non-empty, the photo URL.
func (l *Local) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) error {
	patch := store.Record{"displayName": displayName}
	if photoURL != "" {
		patch["photoURL"] = photoURL
	}
	err := l.store.Update(ctx, CollectionAdmins, uid, patch)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	return err
}

// ChangePassword replaces the password after re-checking the current one.
func (l *Local) ChangePassword(ctx context.Context, uid, current, next string) error {
	doc, err := l.store.Get(ctx, CollectionAdmins, uid)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if err := checkHash(doc.Data, current); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), l.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return l.store.Update(ctx, CollectionAdmins, uid, store.Record{"passwordHash": string(hash)})
}

func (l *Local) byEmail(ctx context.Context, email string) (store.Document, error) {
	docs, err := l.store.List(ctx, CollectionAdmins, &store.Query{
		Where: &store.Filter{Field: "email", Op: store.Eq, Value: email},
		Limit: 1,
	})
	if err != nil {
		return store.Document{}, err
	}
	if len(docs) == 0 {
		return store.Document{}, ErrInvalidCredentials
	}
	return docs[0], nil
}

func checkHash(rec store.Record, password string) error {
	hash, _ := rec["passwordHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func credential(doc store.Document) Credential {
	c := Credential{UID: doc.ID}
	c.Email, _ = doc.Data["email"].(string)
	c.DisplayName, _ = doc.Data["displayName"].(string)
	c.PhotoURL, _ = doc.Data["photoURL"].(string)
	c.Admin, _ = doc.Data["admin"].(bool)
	return c
}
