package bandsite

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/auth"
	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/dashboard"
	"github.com/eringen/bandsite/views"
)

func (a *App) handleLoginPage(c echo.Context) error {
	if IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	page := views.LoginPage{CSRF: CsrfToken(c)}
	if c.QueryParam("denied") != "" {
		page.Error = auth.DeniedMessage
	}
	return Render(c, views.Login(page))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	page := views.LoginPage{
		CSRF:  CsrfToken(c),
		Email: strings.TrimSpace(c.FormValue("email")),
	}
	if !a.loginLimiter.Check(ip) {
		page.Error = "Too many failed attempts. Please try again later"
		return RenderStatus(c, http.StatusTooManyRequests, views.Login(page))
	}
	password := c.FormValue("password")
	if page.Email == "" || password == "" {
		page.Error = "Please fill in all fields"
		return RenderStatus(c, http.StatusBadRequest, views.Login(page))
	}

	cred, err := a.Deps.Auth.SignIn(c.Request().Context(), page.Email, password)
	if err == nil && !cred.Admin {
		err = auth.ErrNotAdmin
	}
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrNotAdmin):
		a.loginLimiter.Record(ip)
		a.log.Warn("login_denied", "email", page.Email, "ip", ip)
		page.Error = auth.DeniedMessage
		return RenderStatus(c, http.StatusForbidden, views.Login(page))
	case errors.Is(err, auth.ErrInvalidCredentials):
		a.loginLimiter.Record(ip)
		a.log.Info("login_failed", "email", page.Email, "ip", ip)
		page.Error = "Invalid email or password"
		return RenderStatus(c, http.StatusUnauthorized, views.Login(page))
	default:
		a.log.Error("login_error", "email", page.Email, "error", err)
		page.Error = "Sign-in is unavailable. Please try again later"
		return RenderStatus(c, http.StatusServiceUnavailable, views.Login(page))
	}

	if err := setAdminSession(c, cred); err != nil {
		return err
	}
	a.log.Info("login", "uid", cred.UID, "email", cred.Email)
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleLogout(c echo.Context) error {
	if u, ok := currentUser(c); ok {
		a.registry.Drop(u.SID)
	}
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/login/")
}

func (a *App) handleProfilePage(c echo.Context) error {
	ctrl := a.controller(c)
	page := views.ProfilePage{
		CSRF:         CsrfToken(c),
		User:         a.userInfo(c),
		NotifyMillis: ctrl.Notifier.TTL().Milliseconds(),
	}
	if n, ok := ctrl.Notifier.Take(); ok {
		page.Notification = &n
	}
	return Render(c, views.Profile(page))
}

func (a *App) handleProfileUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	u := userFrom(c)
	ctrl := a.controller(c)
	fail := func(err error) error {
		if content.IsValidation(err) {
			ctrl.Notifier.Show(dashboard.Error, err.Error())
		} else {
			a.log.Error("profile_update_failed", "uid", u.UID, "error", err)
			ctrl.Notifier.Show(dashboard.Error, "Error updating profile: "+err.Error())
		}
		return c.Redirect(http.StatusSeeOther, "/admin/profile/")
	}

	current, err := a.Deps.Auth.Lookup(ctx, u.UID)
	if err != nil {
		return fail(err)
	}
	files, cleanup, err := formFiles(c, "profileImage")
	defer cleanup()
	if err != nil {
		return fail(err)
	}
	photoURL := current.PhotoURL
	if files.Has("profileImage") {
		photoURL, err = a.Deps.Client.UploadProfileImage(ctx, u.UID, files["profileImage"][0])
		if err != nil {
			return fail(err)
		}
	}
	displayName := strings.TrimSpace(c.FormValue("displayName"))
	if err := a.Deps.Auth.UpdateProfile(ctx, u.UID, displayName, photoURL); err != nil {
		return fail(err)
	}
	ctrl.Notifier.Show(dashboard.Success, "Profile updated successfully")
	return c.Redirect(http.StatusSeeOther, "/admin/profile/")
}

func (a *App) handlePasswordChange(c echo.Context) error {
	u := userFrom(c)
	ctrl := a.controller(c)
	current := c.FormValue("currentPassword")
	next := c.FormValue("newPassword")

	err := auth.ValidatePasswordChange(current, next, c.FormValue("confirmPassword"))
	if err == nil {
		err = a.Deps.Auth.ChangePassword(c.Request().Context(), u.UID, current, next)
	}
	switch {
	case err == nil:
		a.log.Info("password_changed", "uid", u.UID)
		ctrl.Notifier.Show(dashboard.Success, "Password updated successfully")
	case errors.Is(err, auth.ErrInvalidCredentials):
		ctrl.Notifier.Show(dashboard.Error, "Current password is incorrect")
	case content.IsValidation(err):
		ctrl.Notifier.Show(dashboard.Error, err.Error())
	default:
		a.log.Error("password_change_failed", "uid", u.UID, "error", err)
		ctrl.Notifier.Show(dashboard.Error, "Error updating password: "+err.Error())
	}
	return c.Redirect(http.StatusSeeOther, "/admin/profile/")
}
