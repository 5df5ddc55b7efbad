package bandsite

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/dashboard"
	"github.com/eringen/bandsite/store"
	"github.com/eringen/bandsite/views"
)

// panelOps binds a dashboard panel to its repository.
type panelOps struct {
	title string
	noun  string
	blank func() any
	load  func(ctx context.Context, id string) (any, error)
	// save parses the form and adds (id == "") or updates the entity. The
	// parsed entity is returned so a failed form can be shown again.
	save   func(c echo.Context, id string) (any, error)
	remove func(ctx context.Context, id string) error
}

func entityOps[T any](repo *content.Repository[T], title string, parse func(echo.Context) (T, error)) panelOps {
	var fields []string
	for _, s := range repo.Kind().Slots {
		fields = append(fields, s.Field)
	}
	ops := panelOps{
		title: title,
		noun:  repo.Kind().Noun,
		blank: func() any {
			var v T
			return v
		},
		load: func(ctx context.Context, id string) (any, error) {
			return repo.Get(ctx, id)
		},
		remove: repo.Remove,
	}
	if parse == nil {
		return ops
	}
	ops.save = func(c echo.Context, id string) (any, error) {
		v, err := parse(c)
		if err != nil {
			return v, err
		}
		files, cleanup, err := formFiles(c, fields...)
		defer cleanup()
		if err != nil {
			return v, err
		}
		ctx := c.Request().Context()
		if id == "" {
			_, err = repo.Add(ctx, v, files)
			return v, err
		}
		return v, repo.Update(ctx, id, v, files)
	}
	return ops
}

func (a *App) buildPanels() map[string]panelOps {
	r := a.Deps.Repos
	return map[string]panelOps{
		dashboard.PanelSongs:     entityOps(r.Songs.Repository, "Music", songForm),
		dashboard.PanelGallery:   entityOps(r.Gallery, "Gallery", galleryForm),
		dashboard.PanelProducts:  entityOps(r.Products, "Store", productForm),
		dashboard.PanelEvents:    entityOps(r.Events.Repository, "Events", eventForm),
		dashboard.PanelMembers:   entityOps(r.Members, "Members", memberForm),
		dashboard.PanelAuditions: entityOps[content.AuditionRequest](r.Auditions.Repository, "Auditions", nil),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *App) controller(c echo.Context) *dashboard.Controller {
	return a.registry.Get(userFrom(c).SID)
}

// panelParam resolves the :panel route parameter.
func (a *App) panelParam(c echo.Context) (string, panelOps, *dashboard.Panel, error) {
	name := c.Param("panel")
	ops, ok := a.panels[name]
	if !ok {
		return "", panelOps{}, nil, echo.NewHTTPError(http.StatusNotFound)
	}
	p, _ := a.controller(c).Panel(name)
	return name, ops, p, nil
}

func (a *App) panelView(c echo.Context, name, query string) views.PanelView {
	p, _ := a.controller(c).Panel(name)
	ctx := c.Request().Context()
	_ = p.EnsureLoaded(ctx)
	pv := views.PanelView{
		Name:     name,
		Title:    a.panels[name].title,
		State:    p.State().String(),
		Busy:     p.Busy(),
		Query:    query,
		Items:    p.Filter(query),
		LoadErr:  p.RefreshErr(),
		FormOpen: p.State() == dashboard.FormOpen,
	}
	if pv.FormOpen {
		pv.Form = a.panels[name].blank()
	}
	return pv
}

// renderPanel answers a panel request: the panel fragment for htmx, a
// redirect back to the dashboard otherwise. A pending notification is
// swapped in out of band.
func (a *App) renderPanel(c echo.Context, pv views.PanelView) error {
	if !isHTMX(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/#panel-"+pv.Name)
	}
	ctrl := a.controller(c)
	data := views.PanelData{
		PanelView:    pv,
		CSRF:         CsrfToken(c),
		NotifyMillis: ctrl.Notifier.TTL().Milliseconds(),
	}
	if n, ok := ctrl.Notifier.Take(); ok {
		data.Notification = &n
	}
	return Render(c, views.Panel(data))
}

func (a *App) userInfo(c echo.Context) views.UserInfo {
	u := userFrom(c)
	info := views.UserInfo{UID: u.UID, Email: u.Email}
	cred, err := a.Deps.Auth.Lookup(c.Request().Context(), u.UID)
	if err != nil {
		a.log.Warn("user_lookup_failed", "uid", u.UID, "error", err)
		return info
	}
	info.DisplayName = cred.DisplayName
	info.PhotoURL = cred.PhotoURL
	if cred.Email != "" {
		info.Email = cred.Email
	}
	return info
}

func (a *App) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	ctrl := a.controller(c)

	page := views.DashboardPage{
		CSRF:         CsrfToken(c),
		User:         a.userInfo(c),
		NotifyMillis: ctrl.Notifier.TTL().Milliseconds(),
		Settings:     a.Deps.Repos.Settings.Get(ctx),
		Auditions:    auditionsEnabled(c),
	}
	ov, err := ctrl.Overview(ctx)
	if err != nil {
		a.log.Error("dashboard_overview_failed", "error", err)
		page.OverviewErr = err
	}
	page.Overview = ov
	for _, name := range dashboard.PanelNames {
		page.Panels = append(page.Panels, a.panelView(c, name, ""))
	}
	if n, ok := ctrl.Notifier.Take(); ok {
		page.Notification = &n
	}
	return Render(c, views.Dashboard(page))
}

func (a *App) handlePanelSearch(c echo.Context) error {
	name, _, p, err := a.panelParam(c)
	if err != nil {
		return err
	}
	if !p.Search.Wait(c.Request().Context()) {
		// A newer keystroke superseded this request.
		return c.NoContent(http.StatusNoContent)
	}
	return Render(c, views.PanelList(a.panelView(c, name, c.QueryParam("q"))))
}

func (a *App) handlePanelNew(c echo.Context) error {
	name, ops, p, err := a.panelParam(c)
	if err != nil {
		return err
	}
	if ops.save == nil {
		return echo.NewHTTPError(http.StatusMethodNotAllowed)
	}
	if err := p.Open(); err != nil {
		a.controller(c).Notifier.Show(dashboard.Info, "Please wait for the current submission to finish")
	}
	pv := a.panelView(c, name, "")
	pv.Form = ops.blank()
	return a.renderPanel(c, pv)
}

func (a *App) handlePanelEdit(c echo.Context) error {
	name, ops, p, err := a.panelParam(c)
	if err != nil {
		return err
	}
	if ops.save == nil {
		return echo.NewHTTPError(http.StatusMethodNotAllowed)
	}
	id := c.Param("id")
	item, err := ops.load(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if err != nil {
		return err
	}
	if err := p.Open(); err != nil {
		a.controller(c).Notifier.Show(dashboard.Info, "Please wait for the current submission to finish")
	}
	pv := a.panelView(c, name, "")
	pv.Form = item
	pv.EditID = id
	return a.renderPanel(c, pv)
}

func (a *App) handlePanelClose(c echo.Context) error {
	name, _, p, err := a.panelParam(c)
	if err != nil {
		return err
	}
	p.Close()
	return a.renderPanel(c, a.panelView(c, name, ""))
}

func (a *App) handlePanelSave(c echo.Context) error {
	name, ops, _, err := a.panelParam(c)
	if err != nil {
		return err
	}
	if ops.save == nil {
		return echo.NewHTTPError(http.StatusMethodNotAllowed)
	}
	id := strings.TrimSpace(c.FormValue("id"))
	out := dashboard.Outcome{
		Success: capitalize(ops.noun) + " added successfully",
		Failure: "Error adding " + ops.noun,
	}
	if id != "" {
		out = dashboard.Outcome{
			Success: capitalize(ops.noun) + " updated successfully",
			Failure: "Error updating " + ops.noun,
		}
	}

	var form any
	ctx := c.Request().Context()
	err = a.controller(c).Submit(ctx, name, out, func(context.Context) error {
		v, err := ops.save(c, id)
		form = v
		return err
	})
	if err == nil {
		a.log.Info("content_saved", "panel", name, "id", id)
		a.Deps.Cache.Invalidate(ctx)
		return a.renderPanel(c, a.panelView(c, name, ""))
	}
	if !content.IsValidation(err) {
		a.log.Error("content_save_failed", "panel", name, "id", id, "error", err)
	}
	pv := a.panelView(c, name, "")
	pv.Form = form
	pv.EditID = id
	pv.FormOpen = true
	return a.renderPanel(c, pv)
}

func (a *App) handlePanelDelete(c echo.Context) error {
	name, ops, _, err := a.panelParam(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	out := dashboard.Outcome{
		Success: capitalize(ops.noun) + " deleted successfully",
		Failure: "Error deleting " + ops.noun,
	}
	ctx := c.Request().Context()
	err = a.controller(c).Submit(ctx, name, out, func(ctx context.Context) error {
		return ops.remove(ctx, id)
	})
	if err != nil {
		a.log.Error("content_delete_failed", "panel", name, "id", id, "error", err)
	} else {
		a.Deps.Cache.Invalidate(ctx)
	}
	return a.renderPanel(c, a.panelView(c, name, ""))
}

func (a *App) handleAuditionStatus(c echo.Context) error {
	id := c.Param("id")
	status := c.FormValue("status")
	out := dashboard.Outcome{
		Success: "Audition status updated successfully",
		Failure: "Error updating audition status",
	}
	ctx := c.Request().Context()
	err := a.controller(c).Submit(ctx, dashboard.PanelAuditions, out, func(ctx context.Context) error {
		return a.Deps.Repos.Auditions.UpdateStatus(ctx, id, status)
	})
	if err != nil && !content.IsValidation(err) {
		a.log.Error("audition_status_failed", "id", id, "status", status, "error", err)
	}
	return a.renderPanel(c, a.panelView(c, dashboard.PanelAuditions, ""))
}

func (a *App) handleSettingsUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	ctrl := a.controller(c)
	settings := a.Deps.Repos.Settings

	files, cleanup, err := formFiles(c, "heroVideo")
	defer cleanup()
	if err != nil {
		return err
	}
	var video *content.File
	if files.Has("heroVideo") {
		video = &files["heroVideo"][0]
	}

	patch := settingsPatch(c, settings.Get(ctx))
	if _, err := settings.Update(ctx, patch, video); err != nil {
		if content.IsValidation(err) {
			ctrl.Notifier.Show(dashboard.Error, err.Error())
		} else {
			a.log.Error("settings_update_failed", "error", err)
			ctrl.Notifier.Show(dashboard.Error, "Error saving website content: "+err.Error())
		}
		return c.Redirect(http.StatusSeeOther, "/admin/#settings")
	}
	a.Deps.Cache.Invalidate(ctx)
	ctrl.Notifier.Show(dashboard.Success, "Website content saved successfully")
	return c.Redirect(http.StatusSeeOther, "/admin/#settings")
}

// handleAuditionsVisibility stores the auditions nav flag in this browser.
func (a *App) handleAuditionsVisibility(c echo.Context) error {
	ck := &http.Cookie{
		Name:     auditionsCookie,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	msg := "Auditions link hidden on this browser"
	if c.FormValue("enabled") != "" {
		ck.Value = "true"
		ck.Expires = a.now().Add(365 * 24 * time.Hour)
		msg = "Auditions link shown on this browser"
	} else {
		ck.MaxAge = -1
	}
	c.SetCookie(ck)
	a.controller(c).Notifier.Show(dashboard.Info, msg)
	return c.Redirect(http.StatusSeeOther, "/admin/#settings")
}
