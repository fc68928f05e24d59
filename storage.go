package kransite

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage bucket names. These mirror the object-store buckets the site
// has always used; "img" is the legacy bucket some rows still point at.
const (
	BucketImages = "images"
	BucketImg    = "img"
	BucketVideo  = "video"
)

var storageBuckets = map[string]struct{}{
	BucketImages: {},
	BucketImg:    {},
	BucketVideo:  {},
}

// Storage is a disk-backed object store. Objects live under
// root/<bucket>/<key> and are served publicly under
// <baseURL>/storage/<bucket>/<key>.
type Storage struct {
	root    string
	baseURL string
}

// NewStorage creates the storage layer rooted at root and pre-creates
// the bucket directories.
func NewStorage(root, baseURL string) (*Storage, error) {
	for bucket := range storageBuckets {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &Storage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Root returns the storage root directory, for static file serving.
func (st *Storage) Root() string {
	return st.root
}

// ObjectKey derives a randomized storage key under an entity-specific
// prefix, keeping the original file extension.
func ObjectKey(prefix, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s/%d-%s%s", prefix, time.Now().Unix(), uuid.NewString()[:8], ext)
}

func (st *Storage) objectFile(bucket, key string) (string, error) {
	if _, ok := storageBuckets[bucket]; !ok {
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(st.root, bucket, filepath.FromSlash(key)), nil
}

// Save writes an object and returns its public URL.
func (st *Storage) Save(bucket, key string, data []byte) (string, error) {
	file, err := st.objectFile(bucket, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return "", err
	}
	return st.PublicURL(bucket, key), nil
}

// PublicURL returns the public URL an object is served under.
func (st *Storage) PublicURL(bucket, key string) string {
	return st.baseURL + "/storage/" + bucket + "/" + key
}

// Remove deletes an object. Removing a missing object is not an error.
func (st *Storage) Remove(bucket, key string) error {
	file, err := st.objectFile(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ObjectPath splits a public URL produced by this storage back into
// bucket and key. ok is false for foreign URLs.
func (st *Storage) ObjectPath(rawURL string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(rawURL, st.baseURL+"/storage/")
	if !found {
		// Tolerate absolute-path form, e.g. "/storage/images/x.jpg".
		rest, found = strings.CutPrefix(rawURL, "/storage/")
		if !found {
			return "", "", false
		}
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || key == "" {
		return "", "", false
	}
	if _, known := storageBuckets[bucket]; !known {
		return "", "", false
	}
	return bucket, key, true
}

// RemoveURL deletes the object behind a public URL, best-effort.
// Failures are logged, never surfaced: a stray object in storage is
// preferable to failing the row write that replaced it.
func (st *Storage) RemoveURL(rawURL string) {
	if rawURL == "" {
		return
	}
	bucket, key, ok := st.ObjectPath(rawURL)
	if !ok {
		return
	}
	if err := st.Remove(bucket, key); err != nil {
		log.Printf("storage: remove %s/%s: %v", bucket, key, err)
	}
}
