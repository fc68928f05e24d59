package kransite

import (
	"database/sql"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = sql.ErrNoRows

// siteContent is one consistent snapshot of everything the public pages
// read: loaded together so a half-refreshed cache is never observable.
type siteContent struct {
	services   []Service
	items      []CatalogItem
	categories []Category
	contacts   []Contact
	sections   []ContentSection
	videos     []Video
}

// ContentCache is an in-memory TTL cache of public site content.
// Admin mutations invalidate it, so public reads never serve a stale
// snapshot longer than the TTL after an edit.
type ContentCache struct {
	mu      sync.RWMutex
	data    *siteContent
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewContentCache creates a ContentCache backed by the given Store.
func NewContentCache(s *Store, ttl time.Duration) *ContentCache {
	return &ContentCache{store: s, ttl: ttl}
}

func (c *ContentCache) valid() bool {
	return c.data != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.data = nil
	c.mu.Unlock()
}

func (c *ContentCache) load() error {
	if c.valid() {
		return nil
	}
	services, err := c.store.ListServices(0, "")
	if err != nil {
		return err
	}
	items, err := c.store.ListCatalogItems(0, "")
	if err != nil {
		return err
	}
	categories, err := c.store.ListCategories("")
	if err != nil {
		return err
	}
	contacts, err := c.store.ListContacts("")
	if err != nil {
		return err
	}
	sections, err := c.store.ListContentSections("", "", "")
	if err != nil {
		return err
	}
	videos, err := c.store.ListVideos(true)
	if err != nil {
		return err
	}
	c.data = &siteContent{
		services:   services,
		items:      items,
		categories: categories,
		contacts:   contacts,
		sections:   sections,
		videos:     videos,
	}
	c.fetched = time.Now()
	return nil
}

// snapshot returns the cached content after ensuring it is fresh.
// It tries a read lock first; only takes a write lock for a reload.
func (c *ContentCache) snapshot() (*siteContent, error) {
	c.mu.RLock()
	if c.valid() {
		data := c.data
		c.mu.RUnlock()
		return data, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.data, nil
}

// Services returns all services in display order.
func (c *ContentCache) Services() ([]Service, error) {
	data, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return data.services, nil
}

// CatalogItems returns all catalog items with category names joined in.
func (c *ContentCache) CatalogItems() ([]CatalogItem, error) {
	data, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return data.items, nil
}

// Categories returns all categories ordered by name.
func (c *ContentCache) Categories() ([]Category, error) {
	data, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return data.categories, nil
}

// Contacts returns all contacts in display order.
func (c *ContentCache) Contacts() ([]Contact, error) {
	data, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return data.contacts, nil
}

// Sections returns all content slots.
func (c *ContentCache) Sections() ([]ContentSection, error) {
	data, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return data.sections, nil
}

// Videos returns active videos in display order.
func (c *ContentCache) Videos() ([]Video, error) {
	data, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return data.videos, nil
}
