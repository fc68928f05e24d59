package kransite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	a := New(SiteConfig{
		URL:           "https://example.com",
		DatabasePath:  filepath.Join(dir, "site.db"),
		StorageDir:    filepath.Join(dir, "storage"),
		SessionSecret: "test-session-secret",
		AdminEmail:    "admin@example.com",
		AdminPassword: "correct horse",
	}, WithStaticDir(filepath.Join(dir, "public")))
	if err := a.init(); err != nil {
		t.Fatalf("failed to init app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// testClient drives the app through its HTTP surface, carrying cookies
// and the CSRF token between requests the way a browser would.
type testClient struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
	csrf    string
}

func newTestClient(t *testing.T, a *App) *testClient {
	return &testClient{t: t, app: a, cookies: make(map[string]*http.Cookie)}
}

func (tc *testClient) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	tc.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tc.csrf != "" {
		req.Header.Set("X-CSRF-Token", tc.csrf)
	}
	for _, cookie := range tc.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	tc.app.Echo.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		tc.cookies[cookie.Name] = cookie
	}
	return rec
}

func (tc *testClient) getJSON(target string, out any) *httptest.ResponseRecorder {
	tc.t.Helper()
	rec := tc.do(http.MethodGet, target, nil, "")
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			tc.t.Fatalf("failed to decode %s response: %v", target, err)
		}
	}
	return rec
}

func (tc *testClient) postJSON(target string, payload any) *httptest.ResponseRecorder {
	tc.t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		tc.t.Fatalf("failed to marshal payload: %v", err)
	}
	return tc.do(http.MethodPost, target, bytes.NewReader(body), "application/json")
}

func (tc *testClient) putJSON(target string, payload any) *httptest.ResponseRecorder {
	tc.t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		tc.t.Fatalf("failed to marshal payload: %v", err)
	}
	return tc.do(http.MethodPut, target, bytes.NewReader(body), "application/json")
}

// fetchCSRF primes the CSRF cookie and token from the session endpoint,
// like the admin pages do on load.
func (tc *testClient) fetchCSRF() {
	tc.t.Helper()
	var sess sessionResponse
	rec := tc.getJSON("/admin/api/session", &sess)
	if rec.Code != http.StatusOK {
		tc.t.Fatalf("session endpoint status = %d", rec.Code)
	}
	if sess.CSRF == "" {
		tc.t.Fatal("session endpoint returned no CSRF token")
	}
	tc.csrf = sess.CSRF
}

func (tc *testClient) login(email, password string) *httptest.ResponseRecorder {
	tc.t.Helper()
	tc.fetchCSRF()
	return tc.postJSON("/admin/api/login", loginRequest{Email: email, Password: password})
}

func (tc *testClient) mustLogin() {
	tc.t.Helper()
	rec := tc.login("admin@example.com", "correct horse")
	if rec.Code != http.StatusOK {
		tc.t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestAdminAPIRequiresSession(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	rec := tc.do(http.MethodGet, "/admin/api/services", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var e apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" {
		t.Errorf("body = %s, want a JSON error", rec.Body)
	}
}

func TestAdminPageRedirectsAnonymous(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	rec := tc.do(http.MethodGet, "/admin/", nil, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/login/" {
		t.Errorf("Location = %q, want /admin/login/", loc)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	rec := tc.login("admin@example.com", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var e apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if e.Error != "invalid email or password" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	tc.mustLogin()

	var sess sessionResponse
	tc.getJSON("/admin/api/session", &sess)
	if !sess.Authenticated || sess.Email != "admin@example.com" {
		t.Errorf("session = %+v, want authenticated admin", sess)
	}

	if rec := tc.do(http.MethodGet, "/admin/api/services", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("admin API status = %d after login, want 200", rec.Code)
	}

	if rec := tc.postJSON("/admin/api/logout", nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := tc.do(http.MethodGet, "/admin/api/services", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("admin API status = %d after logout, want 401", rec.Code)
	}
}

func TestLogoutCookieCannotBeReplayed(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	if rec := tc.postJSON("/admin/api/logout", nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	replayed := tc.cookies["admin_session"]
	if replayed == nil {
		t.Fatal("logout response set no session cookie")
	}

	// A client that ignores the cookie expiry and presents the
	// logout-response cookie again must still be anonymous.
	req := httptest.NewRequest(http.MethodGet, "/admin/api/services", nil)
	req.AddCookie(replayed)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d with replayed logout cookie, want 401", rec.Code)
	}
}

func TestLoginEmailNormalized(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	rec := tc.login("  ADMIN@Example.Com  ", "correct horse")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for normalized email", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	tc.fetchCSRF()
	for i := 0; i < 5; i++ {
		rec := tc.postJSON("/admin/api/login", loginRequest{Email: "admin@example.com", Password: "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}
	rec := tc.postJSON("/admin/api/login", loginRequest{Email: "admin@example.com", Password: "correct horse"})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d after repeated failures, want 429", rec.Code)
	}
}

func TestCSRFRequiredOnAdminMutations(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	// No CSRF cookie or token fetched.
	body, _ := json.Marshal(loginRequest{Email: "admin@example.com", Password: "correct horse"})
	rec := tc.do(http.MethodPost, "/admin/api/login", bytes.NewReader(body), "application/json")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d without CSRF token, want 403", rec.Code)
	}
}

func TestServiceCRUDOverHTTP(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	rec := tc.postJSON("/admin/api/services", Service{Title: "Монтаж кранов", SortOrder: 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created Service
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode created service: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created service has no id")
	}

	created.Title = "Монтаж и пусконаладка"
	rec = tc.putJSON(fmt.Sprintf("/admin/api/services/%d", created.ID), created)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}

	var services []Service
	tc.getJSON("/admin/api/services", &services)
	if len(services) != 1 || services[0].Title != "Монтаж и пусконаладка" {
		t.Errorf("services = %+v", services)
	}

	// The public API sees the change because mutations invalidate the cache.
	var public []Service
	tc.getJSON("/api/services", &public)
	if len(public) != 1 || public[0].Title != "Монтаж и пусконаладка" {
		t.Errorf("public services = %+v", public)
	}
}

func TestCreateServiceRequiresTitle(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	rec := tc.postJSON("/admin/api/services", Service{Title: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for blank title, want 400", rec.Code)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	rec := tc.postJSON("/admin/api/services", Service{Title: "Удаляемая услуга"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created Service
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = tc.do(http.MethodDelete, fmt.Sprintf("/admin/api/services/%d", created.ID), nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete without confirm status = %d, want 400", rec.Code)
	}
	if _, err := a.Store.GetService(created.ID); err != nil {
		t.Fatal("service should survive an unconfirmed delete")
	}

	rec = tc.do(http.MethodDelete, fmt.Sprintf("/admin/api/services/%d?confirm=true", created.ID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed delete status = %d, body %s", rec.Code, rec.Body)
	}
	if _, err := a.Store.GetService(created.ID); err == nil {
		t.Error("service should be gone after a confirmed delete")
	}
}

func TestDuplicateCategoryConflict(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	if rec := tc.postJSON("/admin/api/categories", Category{Name: "Тали"}); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	rec := tc.postJSON("/admin/api/categories", Category{Name: "Тали"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}

	var categories []Category
	tc.getJSON("/admin/api/categories", &categories)
	if len(categories) != 1 {
		t.Errorf("categories count = %d, want 1", len(categories))
	}
}

func TestAdminCatalogCategoryAllEqualsNoFilter(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	for _, title := range []string{"Кран первый", "Кран второй"} {
		if rec := tc.postJSON("/admin/api/catalog", CatalogItem{Title: title}); rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	var plain, all []CatalogItem
	tc.getJSON("/admin/api/catalog", &plain)
	tc.getJSON("/admin/api/catalog?category=all", &all)
	if len(plain) != 2 || len(all) != 2 {
		t.Errorf("counts = %d and %d, want both 2", len(plain), len(all))
	}
}

func TestUpdateReplacedImageCleanedUp(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	oldURL, err := a.Storage.Save(BucketImages, "services/old.jpg", []byte("old"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec := tc.postJSON("/admin/api/services", Service{Title: "Со старой картинкой", ImageURL: oldURL})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created Service
	json.Unmarshal(rec.Body.Bytes(), &created)

	created.ImageURL = "https://example.com/storage/images/services/new.jpg"
	if rec := tc.putJSON(fmt.Sprintf("/admin/api/services/%d", created.ID), created); rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	oldFile := filepath.Join(a.Storage.Root(), "images", "services", "old.jpg")
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("replaced image object should be removed")
	}
}

func TestImageUploadAndDelete(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "crane.png")
	if err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	fw.Write(encodeTestImage(t, 320, 240))
	mw.WriteField("description", "Козловой кран на площадке")
	mw.Close()

	rec := tc.do(http.MethodPost, "/admin/api/images", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var img ImageFile
	if err := json.Unmarshal(rec.Body.Bytes(), &img); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	if !strings.Contains(img.URL, "/storage/images/library/") {
		t.Errorf("URL = %q, want a library object URL", img.URL)
	}
	if !strings.HasSuffix(img.URL, ".jpg") {
		t.Errorf("URL = %q, want re-encoded as JPEG", img.URL)
	}

	bucket, key, ok := a.Storage.ObjectPath(img.URL)
	if !ok {
		t.Fatalf("upload URL %q does not resolve to storage", img.URL)
	}
	file := filepath.Join(a.Storage.Root(), bucket, filepath.FromSlash(key))
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("uploaded object missing: %v", err)
	}

	rec = tc.do(http.MethodDelete, fmt.Sprintf("/admin/api/images/%d?confirm=true", img.ID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("object should be removed with its metadata row")
	}
}

func TestStagedUpload(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "hero.png")
	fw.Write(encodeTestImage(t, 320, 240))
	mw.WriteField("prefix", "content")
	mw.Close()

	rec := tc.do(http.MethodPost, "/admin/api/uploads/images", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(resp.URL, "/storage/images/content/") {
		t.Errorf("URL = %q, want the requested prefix", resp.URL)
	}

	rec = tc.do(http.MethodPost, "/admin/api/uploads/nosuch", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown bucket status = %d, want 400", rec.Code)
	}
}

func TestPublicEndpointsReturnEmptyLists(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	for _, target := range []string{"/api/services", "/api/catalog", "/api/categories", "/api/contacts", "/api/content", "/api/videos"} {
		rec := tc.do(http.MethodGet, target, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", target, rec.Code)
			continue
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("%s body = %s, want []", target, body)
		}
	}
}

func TestPublicCatalogItemNotFound(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	rec := tc.do(http.MethodGet, "/api/catalog/12345", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec = tc.do(http.MethodGet, "/api/catalog/abc", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for bad id, want 400", rec.Code)
	}
}

func TestPublicVideosHideInactive(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	if rec := tc.postJSON("/admin/api/videos", Video{Title: "Скрытое", Kind: "youtube", Source: "abc", Active: false}); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	if rec := tc.postJSON("/admin/api/videos", Video{Title: "Видимое", Kind: "youtube", Source: "def", Active: true}); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	var adminList []Video
	tc.getJSON("/admin/api/videos", &adminList)
	if len(adminList) != 2 {
		t.Errorf("admin videos count = %d, want 2", len(adminList))
	}

	var public []Video
	tc.getJSON("/api/videos", &public)
	if len(public) != 1 || public[0].Title != "Видимое" {
		t.Errorf("public videos = %+v, want only the active one", public)
	}
}

func TestRobotsBlocksAdmin(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)

	rec := tc.do(http.MethodGet, "/robots.txt", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Disallow: /admin/") {
		t.Errorf("robots.txt should exclude the admin area, got %s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "https://example.com/sitemap.xml") {
		t.Errorf("robots.txt should point at the sitemap, got %s", rec.Body)
	}
}

func TestSitemapListsCatalogItems(t *testing.T) {
	a := newTestApp(t)
	tc := newTestClient(t, a)
	tc.mustLogin()

	rec := tc.postJSON("/admin/api/catalog", CatalogItem{Title: "Кран мостовой"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var item CatalogItem
	json.Unmarshal(rec.Body.Bytes(), &item)

	rec = tc.do(http.MethodGet, "/sitemap.xml", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := fmt.Sprintf("https://example.com/catalog/%d/", item.ID)
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("sitemap should contain %s, got %s", want, rec.Body)
	}
}
