package kransite

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Admin JSON API. Every handler here sits behind requireAdmin except
// login and session. Error strings follow the fixed taxonomy the admin
// UI shows ("failed to load/save/delete X"); underlying errors are
// logged, never leaked.

// --- Session ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	CSRF          string `json:"csrf,omitempty"`
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Check(c.RealIP()) {
		return fail(c, http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	user, err := a.authenticate(req.Email, req.Password)
	if err != nil {
		if err == ErrInvalidCredentials {
			a.loginLimiter.Record(c.RealIP())
			return fail(c, http.StatusUnauthorized, "invalid email or password")
		}
		c.Logger().Errorf("login: %v", err)
		return fail(c, http.StatusInternalServerError, "unexpected error, try again")
	}
	if err := setAdminSession(c, user.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, Email: user.Email})
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{})
}

// handleAdminSession reports the session state so the admin pages can
// settle their own unknown/authenticated/unauthenticated transition.
// The CSRF token rides along for the SPA to echo on mutations.
func (a *App) handleAdminSession(c echo.Context) error {
	if !IsAdmin(c) {
		return c.JSON(http.StatusOK, sessionResponse{CSRF: CsrfToken(c)})
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, Email: SessionEmail(c), CSRF: CsrfToken(c)})
}

// --- Shared plumbing ---

func parseID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// categoryFilter maps the category query param to a category id.
// Empty and "all" are equivalent and mean "no filter".
func categoryFilter(c echo.Context) int64 {
	v := c.QueryParam("category")
	if v == "" || v == "all" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// confirmedDelete enforces the confirmation contract: without
// confirm=true no store call is made at all.
func confirmedDelete(c echo.Context) bool {
	return c.QueryParam("confirm") == "true"
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// --- Services ---

func (a *App) handleAdminListServices(c echo.Context) error {
	services, err := a.Store.ListServices(categoryFilter(c), c.QueryParam("q"))
	if err != nil {
		c.Logger().Errorf("list services: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load services")
	}
	return c.JSON(http.StatusOK, emptyAsList(services))
}

func (a *App) handleAdminCreateService(c echo.Context) error {
	var e Service
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if err := a.Store.CreateService(&e); err != nil {
		c.Logger().Errorf("create service: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to save service")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, e)
}

func (a *App) handleAdminUpdateService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	prev, err := a.Store.GetService(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "not found")
		}
		c.Logger().Errorf("load service %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to load services")
	}
	var e Service
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if err := a.Store.UpdateService(id, &e); err != nil {
		c.Logger().Errorf("update service %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to save service")
	}
	a.cleanupReplacedImage(prev.ImageURL, e.ImageURL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, e)
}

func (a *App) handleAdminDeleteService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	prev, _ := a.Store.GetService(id)
	if err := a.Store.DeleteService(id); err != nil {
		c.Logger().Errorf("delete service %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete service")
	}
	a.Storage.RemoveURL(prev.ImageURL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

// --- Catalog items ---

func (a *App) handleAdminListCatalog(c echo.Context) error {
	items, err := a.Store.ListCatalogItems(categoryFilter(c), c.QueryParam("q"))
	if err != nil {
		c.Logger().Errorf("list catalog: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load catalog items")
	}
	return c.JSON(http.StatusOK, emptyAsList(items))
}

func (a *App) handleAdminCreateCatalogItem(c echo.Context) error {
	var e CatalogItem
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if err := a.Store.CreateCatalogItem(&e); err != nil {
		c.Logger().Errorf("create catalog item: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to save catalog item")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, e)
}

func (a *App) handleAdminUpdateCatalogItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	prev, err := a.Store.GetCatalogItem(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "not found")
		}
		c.Logger().Errorf("load catalog item %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to load catalog items")
	}
	var e CatalogItem
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if err := a.Store.UpdateCatalogItem(id, &e); err != nil {
		c.Logger().Errorf("update catalog item %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to save catalog item")
	}
	a.cleanupReplacedImage(prev.ImageURL, e.ImageURL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, e)
}

func (a *App) handleAdminDeleteCatalogItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	prev, _ := a.Store.GetCatalogItem(id)
	if err := a.Store.DeleteCatalogItem(id); err != nil {
		c.Logger().Errorf("delete catalog item %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete catalog item")
	}
	a.Storage.RemoveURL(prev.ImageURL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

// --- Categories ---

func (a *App) handleAdminListCategories(c echo.Context) error {
	categories, err := a.Store.ListCategories(c.QueryParam("q"))
	if err != nil {
		c.Logger().Errorf("list categories: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load categories")
	}
	return c.JSON(http.StatusOK, emptyAsList(categories))
}

func (a *App) handleAdminCreateCategory(c echo.Context) error {
	var e Category
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}
	if err := a.Store.CreateCategory(&e); err != nil {
		if err == ErrDuplicateName {
			return fail(c, http.StatusConflict, "a category with this name already exists")
		}
		c.Logger().Errorf("create category: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to save category")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, e)
}

func (a *App) handleAdminUpdateCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var e Category
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}
	if err := a.Store.UpdateCategory(id, &e); err != nil {
		switch err {
		case sql.ErrNoRows:
			return fail(c, http.StatusNotFound, "not found")
		case ErrDuplicateName:
			return fail(c, http.StatusConflict, "a category with this name already exists")
		}
		c.Logger().Errorf("update category %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to save category")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, e)
}

// handleAdminDeleteCategory removes a category only; services and
// catalog items that referenced it keep a dangling category_id.
func (a *App) handleAdminDeleteCategory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	if err := a.Store.DeleteCategory(id); err != nil {
		c.Logger().Errorf("delete category %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete category")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

// --- Contacts ---

func (a *App) handleAdminListContacts(c echo.Context) error {
	contacts, err := a.Store.ListContacts(c.QueryParam("type"))
	if err != nil {
		c.Logger().Errorf("list contacts: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load contacts")
	}
	return c.JSON(http.StatusOK, emptyAsList(contacts))
}

func (a *App) handleAdminCreateContact(c echo.Context) error {
	var e Contact
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Value = strings.TrimSpace(e.Value)
	if e.Type == "" || e.Value == "" {
		return fail(c, http.StatusBadRequest, "type and value are required")
	}
	if err := a.Store.CreateContact(&e); err != nil {
		c.Logger().Errorf("create contact: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to save contact")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, e)
}

func (a *App) handleAdminUpdateContact(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var e Contact
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Value = strings.TrimSpace(e.Value)
	if e.Type == "" || e.Value == "" {
		return fail(c, http.StatusBadRequest, "type and value are required")
	}
	if err := a.Store.UpdateContact(id, &e); err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "not found")
		}
		c.Logger().Errorf("update contact %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to save contact")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, e)
}

func (a *App) handleAdminDeleteContact(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	if err := a.Store.DeleteContact(id); err != nil {
		c.Logger().Errorf("delete contact %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete contact")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

// --- Content sections ---

func (a *App) handleAdminListContent(c echo.Context) error {
	sections, err := a.Store.ListContentSections(c.QueryParam("page"), c.QueryParam("section"), c.QueryParam("key"))
	if err != nil {
		c.Logger().Errorf("list content: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load content")
	}
	return c.JSON(http.StatusOK, emptyAsList(sections))
}

func (a *App) handleAdminCreateContent(c echo.Context) error {
	var e ContentSection
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if e.Section == "" && e.Key == "" {
		return fail(c, http.StatusBadRequest, "section or key is required")
	}
	if err := a.Store.CreateContentSection(&e); err != nil {
		c.Logger().Errorf("create content: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to save content")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, e)
}

func (a *App) handleAdminUpdateContent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	prev, err := a.Store.GetContentSection(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "not found")
		}
		c.Logger().Errorf("load content %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to load content")
	}
	var e ContentSection
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if e.Section == "" && e.Key == "" {
		return fail(c, http.StatusBadRequest, "section or key is required")
	}
	if err := a.Store.UpdateContentSection(id, &e); err != nil {
		c.Logger().Errorf("update content %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to save content")
	}
	a.cleanupReplacedImage(prev.ImageURL, e.ImageURL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, e)
}

func (a *App) handleAdminDeleteContent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	prev, _ := a.Store.GetContentSection(id)
	if err := a.Store.DeleteContentSection(id); err != nil {
		c.Logger().Errorf("delete content %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete content")
	}
	a.Storage.RemoveURL(prev.ImageURL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

// --- Videos ---

func (a *App) handleAdminListVideos(c echo.Context) error {
	videos, err := a.Store.ListVideos(false)
	if err != nil {
		c.Logger().Errorf("list videos: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load videos")
	}
	return c.JSON(http.StatusOK, emptyAsList(videos))
}

func validVideoKind(kind string) bool {
	switch kind {
	case "file", "url", "youtube":
		return true
	}
	return false
}

func (a *App) handleAdminCreateVideo(c echo.Context) error {
	var e Video
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if !validVideoKind(e.Kind) {
		return fail(c, http.StatusBadRequest, "kind must be file, url or youtube")
	}
	if err := a.Store.CreateVideo(&e); err != nil {
		c.Logger().Errorf("create video: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to save video")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, e)
}

func (a *App) handleAdminUpdateVideo(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var e Video
	if err := c.Bind(&e); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if !validVideoKind(e.Kind) {
		return fail(c, http.StatusBadRequest, "kind must be file, url or youtube")
	}
	if err := a.Store.UpdateVideo(id, &e); err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "not found")
		}
		c.Logger().Errorf("update video %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to save video")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, e)
}

func (a *App) handleAdminDeleteVideo(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	prev, _ := a.Store.GetVideo(id)
	if err := a.Store.DeleteVideo(id); err != nil {
		c.Logger().Errorf("delete video %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete video")
	}
	if prev.Kind == "file" {
		a.Storage.RemoveURL(prev.Source)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

// cleanupReplacedImage removes the previous storage object after a row
// write that changed its image URL. Best-effort: the row write already
// succeeded, so a failed cleanup only leaves a stray object behind.
func (a *App) cleanupReplacedImage(oldURL, newURL string) {
	if oldURL == "" || oldURL == newURL {
		return
	}
	a.Storage.RemoveURL(oldURL)
}
