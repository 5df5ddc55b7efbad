package bandsite

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/notify"
	"github.com/eringen/bandsite/views"
)

// auditionsCookie remembers, per browser, whether the auditions page is
// linked from the navigation. It is hidden unless set to "true".
const auditionsCookie = "auditionsEnabled"

func auditionsEnabled(c echo.Context) bool {
	ck, err := c.Cookie(auditionsCookie)
	return err == nil && ck.Value == "true"
}

func (a *App) site(c echo.Context) views.Site {
	path := c.Request().URL.Path
	return views.Site{
		Name:             a.Config.Name,
		URL:              a.Config.URL,
		Settings:         a.renderer.Settings(c.Request().Context()),
		AuditionsEnabled: auditionsEnabled(c),
		Path:             path,
		CSRF:             CsrfToken(c),
		Meta: views.PageMeta{
			URL:    BuildURL(a.Config.URL, path),
			OGType: "website",
		},
	}
}

func (a *App) handleHome(c echo.Context) error {
	site := a.site(c)
	site.Meta.Description = site.Settings.HeroSubtitle
	return Render(c, views.Home(a.renderer.Home(c.Request().Context(), site)))
}

func (a *App) handleMusic(c echo.Context) error {
	return Render(c, views.Music(a.renderer.Music(c.Request().Context(), a.sectionSite(c, "music"))))
}

func (a *App) handleGallery(c echo.Context) error {
	return Render(c, views.Gallery(a.renderer.Gallery(c.Request().Context(), a.sectionSite(c, "gallery"))))
}

func (a *App) handleMerch(c echo.Context) error {
	return Render(c, views.Merch(a.renderer.Merch(c.Request().Context(), a.sectionSite(c, "merch"))))
}

func (a *App) handleEvents(c echo.Context) error {
	return Render(c, views.Events(a.renderer.Events(c.Request().Context(), a.sectionSite(c, "events"))))
}

func (a *App) handleMembers(c echo.Context) error {
	return Render(c, views.Members(a.renderer.Members(c.Request().Context(), a.sectionSite(c, "members"))))
}

// sectionSite titles a page after its configured section.
func (a *App) sectionSite(c echo.Context, key string) views.Site {
	site := a.site(c)
	sec := site.Settings.Sections[key]
	site.Meta.Title = sec.Title
	site.Meta.Description = sec.Description
	return site
}

func (a *App) auditionsPage(c echo.Context) views.AuditionsPage {
	site := a.sectionSite(c, "auditions")
	return views.AuditionsPage{Site: site, Section: site.Settings.Sections["auditions"]}
}

func (a *App) handleAuditions(c echo.Context) error {
	return Render(c, views.Auditions(a.auditionsPage(c)))
}

func (a *App) handleAuditionSubmit(c echo.Context) error {
	page := a.auditionsPage(c)
	page.Form = auditionForm(c)

	render := func(code int) error {
		if isHTMX(c) {
			// htmx only swaps 2xx responses.
			return RenderStatus(c, http.StatusOK, views.AuditionsForm(page))
		}
		return RenderStatus(c, code, views.Auditions(page))
	}

	if !a.auditionLimiter.Allow(c.RealIP()) {
		page.Error = "Too many submissions. Please try again later."
		return render(http.StatusTooManyRequests)
	}

	files, cleanup, err := formFiles(c, "video", "audio", "sheetMusic")
	defer cleanup()
	if err != nil {
		page.Error = "Could not read the uploaded files. Please try again."
		return render(http.StatusBadRequest)
	}

	ctx := c.Request().Context()
	id, err := a.Deps.Repos.Auditions.Submit(ctx, page.Form, files)
	if err != nil {
		if content.IsValidation(err) {
			page.Error = err.Error()
			return render(http.StatusUnprocessableEntity)
		}
		a.log.Error("audition_submit_failed", "email", page.Form.Email, "error", err)
		page.Error = "Error submitting audition request. Please try again later."
		return render(http.StatusInternalServerError)
	}
	a.log.Info("audition_submitted", "id", id, "instrument", page.Form.Instrument)

	if a.Config.AdminEmail != "" {
		notify.SendAsync(a.Deps.Mailer, notify.AuditionAlert(a.Config.AdminEmail, page.Form))
	}

	page.Sent = true
	page.Form = content.AuditionRequest{}
	return render(http.StatusOK)
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.now().Format("2006-01-02"))
}

func (a *App) handleFeed(c echo.Context) error {
	ctx := c.Request().Context()
	region := a.renderer.upcoming(ctx)
	if region.Failed() {
		return region.Err
	}
	return a.renderRSS(c, a.renderer.Settings(ctx), region.Items)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	sitemap := strings.TrimSuffix(BuildURL(a.Config.URL), "/") + "/sitemap.xml"
	robots := "User-agent: *\nDisallow: /admin/\nSitemap: " + sitemap + "\n"
	return c.String(http.StatusOK, robots)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.log.Error("server_error", "method", c.Request().Method, "uri", c.Request().RequestURI, "error", err)
		_ = RenderStatus(c, code, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
