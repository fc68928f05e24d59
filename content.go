package kransite

import (
	"log"
	"strconv"
	"strings"
)

// Content is the read-only query set behind the public endpoints.
//
// Every method swallows store errors: failures are logged and an empty
// slice (list reads) or nil (single-item reads) comes back instead.
// Public pages render an empty state either way, so callers never need
// to distinguish "no data" from "backend failure".
type Content struct {
	cache *ContentCache
}

// NewContent creates the public read API over the given cache.
func NewContent(cache *ContentCache) *Content {
	return &Content{cache: cache}
}

// Services returns all services in display order.
func (ct *Content) Services() []Service {
	services, err := ct.cache.Services()
	if err != nil {
		log.Printf("content: load services: %v", err)
		return nil
	}
	return services
}

// CatalogItems returns catalog items, optionally filtered by category.
// The category argument may be a category id, slug or name; empty and
// "all" are equivalent and match everything.
func (ct *Content) CatalogItems(category string) []CatalogItem {
	items, err := ct.cache.CatalogItems()
	if err != nil {
		log.Printf("content: load catalog: %v", err)
		return nil
	}
	if category == "" || category == "all" {
		return items
	}
	match := ct.categoryMatcher(category)
	var filtered []CatalogItem
	for _, item := range items {
		if match(item.CategoryID, item.Category) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// categoryMatcher resolves a category argument into a predicate over
// (category id, category name).
func (ct *Content) categoryMatcher(category string) func(int64, string) bool {
	if id, err := strconv.ParseInt(category, 10, 64); err == nil {
		return func(catID int64, _ string) bool { return catID == id }
	}
	// Resolve slugs through the category list; fall back to name match.
	var slugID int64
	for _, cat := range ct.CatalogCategories() {
		if cat.Slug == category {
			slugID = cat.ID
			break
		}
	}
	return func(catID int64, name string) bool {
		if slugID != 0 && catID == slugID {
			return true
		}
		return name != "" && strings.EqualFold(name, category)
	}
}

// CatalogCategories returns all categories.
func (ct *Content) CatalogCategories() []Category {
	categories, err := ct.cache.Categories()
	if err != nil {
		log.Printf("content: load categories: %v", err)
		return nil
	}
	return categories
}

// CatalogItem returns a single catalog item, or nil when missing or on
// backend failure.
func (ct *Content) CatalogItem(id int64) *CatalogItem {
	items, err := ct.cache.CatalogItems()
	if err != nil {
		log.Printf("content: load catalog item %d: %v", id, err)
		return nil
	}
	for _, item := range items {
		if item.ID == id {
			return &item
		}
	}
	return nil
}

// Sections returns content slots filtered by any combination of page,
// section and key; empty arguments match everything.
func (ct *Content) Sections(page, section, key string) []ContentSection {
	sections, err := ct.cache.Sections()
	if err != nil {
		log.Printf("content: load sections: %v", err)
		return nil
	}
	var out []ContentSection
	for _, s := range sections {
		if page != "" && s.Page != page {
			continue
		}
		if section != "" && s.Section != section {
			continue
		}
		if key != "" && s.Key != key {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SectionByKey returns the content slot with the given key, or nil.
func (ct *Content) SectionByKey(key string) *ContentSection {
	for _, s := range ct.Sections("", "", key) {
		return &s
	}
	return nil
}

// Contacts returns contacts in display order, optionally filtered by type.
func (ct *Content) Contacts(ctype string) []Contact {
	contacts, err := ct.cache.Contacts()
	if err != nil {
		log.Printf("content: load contacts: %v", err)
		return nil
	}
	if ctype == "" {
		return contacts
	}
	var filtered []Contact
	for _, c := range contacts {
		if c.Type == ctype {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// Videos returns active videos in display order.
func (ct *Content) Videos() []Video {
	videos, err := ct.cache.Videos()
	if err != nil {
		log.Printf("content: load videos: %v", err)
		return nil
	}
	return videos
}
