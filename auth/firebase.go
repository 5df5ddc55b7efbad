package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Firebase signs users in with the Identity Toolkit password endpoint and
// reads the admin custom claim from the verified ID token.
type Firebase struct {
	client   *fbauth.Client
	identity *identitytoolkit.Service
}

// NewFirebase returns a Firebase authenticator. apiKey is the project's web
// API key, required by the password sign-in endpoint.
func NewFirebase(ctx context.Context, client *fbauth.Client, apiKey string) (*Firebase, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("FIREBASE_API_KEY is required")
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit client: %w", err)
	}
	return &Firebase{client: client, identity: svc}, nil
}

// SignIn verifies email and password and decodes the resulting ID token.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (Credential, error) {
	idToken, err := f.verifyPassword(ctx, NormalizeEmail(email), password)
	if err != nil {
		return Credential{}, err
	}
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Credential{}, fmt.Errorf("verify id token: %w", err)
	}
	cred := Credential{UID: token.UID}
	cred.Admin, _ = token.Claims["admin"].(bool)
	cred.Email, _ = token.Claims["email"].(string)
	cred.DisplayName, _ = token.Claims["name"].(string)
	cred.PhotoURL, _ = token.Claims["picture"].(string)
	return cred, nil
}

// Lookup reads the user record and its custom claims.
func (f *Firebase) Lookup(ctx context.Context, uid string) (Credential, error) {
	u, err := f.client.GetUser(ctx, uid)
	if fbauth.IsUserNotFound(err) {
		return Credential{}, ErrInvalidCredentials
	}
	if err != nil {
		return Credential{}, fmt.Errorf("get user: %w", err)
	}
	cred := Credential{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
	cred.Admin, _ = u.CustomClaims["admin"].(bool)
	return cred, nil
}

// UpdateProfile sets the display name and, when non-empty, the photo URL.
func (f *Firebase) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) error {
	params := (&fbauth.UserToUpdate{}).DisplayName(displayName)
	if photoURL != "" {
		params = params.PhotoURL(photoURL)
	}
	if _, err := f.client.UpdateUser(ctx, uid, params); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// ChangePassword re-authenticates with current before setting next.
func (f *Firebase) ChangePassword(ctx context.Context, uid, current, next string) error {
	u, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if _, err := f.verifyPassword(ctx, u.Email, current); err != nil {
		return err
	}
	if _, err := f.client.UpdateUser(ctx, uid, (&fbauth.UserToUpdate{}).Password(next)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// GrantAdmin sets the admin custom claim on the user with email.
func (f *Firebase) GrantAdmin(ctx context.Context, email string) (Credential, error) {
	u, err := f.client.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return Credential{}, fmt.Errorf("get user by email: %w", err)
	}
	claims := u.CustomClaims
	if claims == nil {
		claims = map[string]interface{}{}
	}
	claims["admin"] = true
	if err := f.client.SetCustomUserClaims(ctx, u.UID, claims); err != nil {
		return Credential{}, fmt.Errorf("set custom claims: %w", err)
	}
	return Credential{UID: u.UID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL, Admin: true}, nil
}

func (f *Firebase) verifyPassword(ctx context.Context, email, password string) (string, error) {
	resp, err := f.identity.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("verify password: %w", err)
	}
	return resp.IdToken, nil
}
