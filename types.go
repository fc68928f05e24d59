package kransite

// Service is a service offering shown on the public services page and
// edited through the admin CRUD surface.
type Service struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	SortOrder   int    `json:"sort_order"`
	CategoryID  int64  `json:"category_id,omitempty"`
}

// CatalogItem is a piece of crane equipment in the public catalog.
// Category carries the joined category name when the item was read
// through a list query; it is never written back.
type CatalogItem struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url"`
	CategoryID  int64             `json:"category_id,omitempty"`
	Category    string            `json:"category,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`
	Price       string            `json:"price,omitempty"`
}

// Category groups catalog items and services. Deleting a category does
// not cascade; dependents keep a dangling reference.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Contact is one contact channel (phone, email, address, hours, social).
type Contact struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Label     string `json:"label,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// ContentSection is a generic content slot addressed by (page, section, key).
// It backs arbitrary site copy: hero headings, about text, banner images.
type ContentSection struct {
	ID       int64  `json:"id"`
	Page     string `json:"page"`
	Section  string `json:"section"`
	Key      string `json:"key"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ImageFile records an object uploaded to storage, independent of the
// rows that reference its URL.
type ImageFile struct {
	ID          int64  `json:"id"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Filename    string `json:"filename"`
	CreatedAt   string `json:"created_at"`
}

// Video is an embedded or hosted video. Kind is "file", "url" or "youtube";
// Source holds the storage URL, external URL or YouTube id accordingly.
type Video struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Source      string `json:"source"`
	SortOrder   int    `json:"sort_order"`
	Active      bool   `json:"active"`
}

// AdminUser is an admin account. Passwords are stored as bcrypt hashes
// and never serialized.
type AdminUser struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name,omitempty"`
	LastLogin    string `json:"last_login,omitempty"`
}
