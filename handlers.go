package kransite

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// apiError is the uniform error body of every JSON endpoint.
type apiError struct {
	Error string `json:"error"`
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, apiError{Error: msg})
}

// --- Public content endpoints ---

func (a *App) handleServices(c echo.Context) error {
	return c.JSON(http.StatusOK, emptyAsList(a.Content.Services()))
}

func (a *App) handleCatalog(c echo.Context) error {
	category := c.QueryParam("category")
	return c.JSON(http.StatusOK, emptyAsList(a.Content.CatalogItems(category)))
}

func (a *App) handleCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, emptyAsList(a.Content.CatalogCategories()))
}

func (a *App) handleCatalogItem(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	item := a.Content.CatalogItem(id)
	if item == nil {
		return fail(c, http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, item)
}

func (a *App) handleContacts(c echo.Context) error {
	return c.JSON(http.StatusOK, emptyAsList(a.Content.Contacts(c.QueryParam("type"))))
}

func (a *App) handleContent(c echo.Context) error {
	sections := a.Content.Sections(c.QueryParam("page"), c.QueryParam("section"), c.QueryParam("key"))
	return c.JSON(http.StatusOK, emptyAsList(sections))
}

func (a *App) handleContentByKey(c echo.Context) error {
	section := a.Content.SectionByKey(c.Param("key"))
	if section == nil {
		return fail(c, http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, section)
}

func (a *App) handleVideos(c echo.Context) error {
	return c.JSON(http.StatusOK, emptyAsList(a.Content.Videos()))
}

// emptyAsList keeps nil slices serializing as [] instead of null, so
// the pages can always iterate the response.
func emptyAsList[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// --- Pages and site chrome ---

func (a *App) handleIndex(c echo.Context) error {
	return c.File(a.staticDir + "/index.html")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

// handleRobots generates robots.txt dynamically using the site URL.
func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /admin/\n\nSitemap: %s/sitemap.xml\n", a.Config.URL)
	return c.String(http.StatusOK, body)
}

func (a *App) handleAdminPage(c echo.Context) error {
	return c.File(a.staticDir + "/admin/index.html")
}

func (a *App) handleAdminLoginPage(c echo.Context) error {
	if IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return c.File(a.staticDir + "/admin/login.html")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	path := c.Request().URL.Path
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/admin/api/") {
		msg := http.StatusText(code)
		if ok {
			if s, isString := he.Message.(string); isString {
				msg = s
			}
		}
		_ = fail(c, code, msg)
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
