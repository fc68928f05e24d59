package kransite

import (
	"strconv"
	"testing"
	"time"
)

func setupTestContent(t *testing.T) (*Store, *Content) {
	t.Helper()
	s := setupTestStore(t)
	return s, NewContent(NewContentCache(s, time.Minute))
}

func seedCatalog(t *testing.T, s *Store) (Category, []CatalogItem) {
	t.Helper()
	cat := Category{Name: "Мостовые краны"}
	if err := s.CreateCategory(&cat); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	items := []CatalogItem{
		{Title: "Кран мостовой 5т", CategoryID: cat.ID},
		{Title: "Кран мостовой 10т", CategoryID: cat.ID},
		{Title: "Таль электрическая"},
	}
	for i := range items {
		if err := s.CreateCatalogItem(&items[i]); err != nil {
			t.Fatalf("CreateCatalogItem failed: %v", err)
		}
	}
	return cat, items
}

func TestCatalogItemsCategoryFilter(t *testing.T) {
	s, ct := setupTestContent(t)
	cat, _ := seedCatalog(t, s)

	all := ct.CatalogItems("")
	if len(all) != 3 {
		t.Fatalf("CatalogItems(\"\") count = %d, want 3", len(all))
	}

	// "all" and the empty string mean the same thing.
	if got := ct.CatalogItems("all"); len(got) != len(all) {
		t.Errorf("CatalogItems(all) count = %d, want %d", len(got), len(all))
	}

	// Filter by id, slug and name all resolve to the same set.
	byID := ct.CatalogItems(strconv.FormatInt(cat.ID, 10))
	bySlug := ct.CatalogItems(cat.Slug)
	byName := ct.CatalogItems("мостовые краны")
	for label, got := range map[string][]CatalogItem{"id": byID, "slug": bySlug, "name": byName} {
		if len(got) != 2 {
			t.Errorf("CatalogItems by %s count = %d, want 2", label, len(got))
		}
	}

	if got := ct.CatalogItems("несуществующая"); len(got) != 0 {
		t.Errorf("CatalogItems(unknown) count = %d, want 0", len(got))
	}
}

func TestCatalogItemLookup(t *testing.T) {
	s, ct := setupTestContent(t)
	_, items := seedCatalog(t, s)

	got := ct.CatalogItem(items[0].ID)
	if got == nil || got.Title != items[0].Title {
		t.Errorf("CatalogItem = %+v, want %q", got, items[0].Title)
	}
	if got := ct.CatalogItem(99999); got != nil {
		t.Errorf("CatalogItem(missing) = %+v, want nil", got)
	}
}

func TestContentSwallowsBackendFailure(t *testing.T) {
	s, ct := setupTestContent(t)

	// Force every subsequent load to fail.
	s.Close()

	if got := ct.Services(); got != nil {
		t.Errorf("Services = %+v, want nil on failure", got)
	}
	if got := ct.CatalogItems(""); got != nil {
		t.Errorf("CatalogItems = %+v, want nil on failure", got)
	}
	if got := ct.CatalogCategories(); got != nil {
		t.Errorf("CatalogCategories = %+v, want nil on failure", got)
	}
	if got := ct.Contacts(""); got != nil {
		t.Errorf("Contacts = %+v, want nil on failure", got)
	}
	if got := ct.Sections("", "", ""); got != nil {
		t.Errorf("Sections = %+v, want nil on failure", got)
	}
	if got := ct.Videos(); got != nil {
		t.Errorf("Videos = %+v, want nil on failure", got)
	}
	if got := ct.CatalogItem(1); got != nil {
		t.Errorf("CatalogItem = %+v, want nil on failure", got)
	}
}

func TestSectionByKey(t *testing.T) {
	s, ct := setupTestContent(t)

	sec := ContentSection{Page: "home", Section: "hero", Key: "hero_title", Title: "Заголовок"}
	if err := s.CreateContentSection(&sec); err != nil {
		t.Fatalf("CreateContentSection failed: %v", err)
	}

	got := ct.SectionByKey("hero_title")
	if got == nil || got.Title != "Заголовок" {
		t.Errorf("SectionByKey = %+v", got)
	}
	if got := ct.SectionByKey("missing"); got != nil {
		t.Errorf("SectionByKey(missing) = %+v, want nil", got)
	}
}

func TestContactsTypeFilter(t *testing.T) {
	s, ct := setupTestContent(t)

	contacts := []Contact{
		{Type: "phone", Value: "+7 900 000-00-00"},
		{Type: "address", Value: "г. Челябинск"},
	}
	for i := range contacts {
		if err := s.CreateContact(&contacts[i]); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
	}

	if got := ct.Contacts(""); len(got) != 2 {
		t.Errorf("Contacts(\"\") count = %d, want 2", len(got))
	}
	got := ct.Contacts("phone")
	if len(got) != 1 || got[0].Value != "+7 900 000-00-00" {
		t.Errorf("Contacts(phone) = %+v", got)
	}
}
