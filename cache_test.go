package kransite

import (
	"testing"
	"time"
)

func TestContentCacheServesSnapshot(t *testing.T) {
	s := setupTestStore(t)
	cache := NewContentCache(s, time.Minute)

	svc := Service{Title: "Монтаж"}
	if err := s.CreateService(&svc); err != nil {
		t.Fatalf("CreateService failed: %v", err)
	}

	services, err := cache.Services()
	if err != nil {
		t.Fatalf("Services failed: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("Services count = %d, want 1", len(services))
	}

	// A write behind the cache is invisible until invalidation.
	more := Service{Title: "Ремонт"}
	if err := s.CreateService(&more); err != nil {
		t.Fatalf("CreateService failed: %v", err)
	}
	services, err = cache.Services()
	if err != nil {
		t.Fatalf("Services failed: %v", err)
	}
	if len(services) != 1 {
		t.Errorf("Services count = %d, want stale snapshot of 1", len(services))
	}

	cache.Invalidate()
	services, err = cache.Services()
	if err != nil {
		t.Fatalf("Services failed: %v", err)
	}
	if len(services) != 2 {
		t.Errorf("Services count = %d after Invalidate, want 2", len(services))
	}
}

func TestContentCacheTTLExpiry(t *testing.T) {
	s := setupTestStore(t)
	cache := NewContentCache(s, 10*time.Millisecond)

	if _, err := cache.Services(); err != nil {
		t.Fatalf("Services failed: %v", err)
	}

	svc := Service{Title: "Новое"}
	if err := s.CreateService(&svc); err != nil {
		t.Fatalf("CreateService failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	services, err := cache.Services()
	if err != nil {
		t.Fatalf("Services failed: %v", err)
	}
	if len(services) != 1 {
		t.Errorf("Services count = %d after TTL expiry, want 1", len(services))
	}
}

func TestContentCacheExcludesInactiveVideos(t *testing.T) {
	s := setupTestStore(t)
	cache := NewContentCache(s, time.Minute)

	videos := []Video{
		{Title: "Активное", Kind: "youtube", Source: "abc", Active: true},
		{Title: "Скрытое", Kind: "youtube", Source: "def", Active: false},
	}
	for i := range videos {
		if err := s.CreateVideo(&videos[i]); err != nil {
			t.Fatalf("CreateVideo failed: %v", err)
		}
	}

	got, err := cache.Videos()
	if err != nil {
		t.Fatalf("Videos failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Активное" {
		t.Errorf("Videos = %+v, want only the active entry", got)
	}
}
