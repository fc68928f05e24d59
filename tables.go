package kransite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrDuplicateName is returned when a create/update collides with a
// unique name, currently only category names.
var ErrDuplicateName = errors.New("name already exists")

var serviceTable = table[Service]{
	name:    "services",
	columns: []string{"title", "description", "image_url", "sort_order", "category_id"},
	orderBy: "sort_order, id",
	scan: func(r rowScanner) (Service, error) {
		var e Service
		var cat sql.NullInt64
		err := r.Scan(&e.ID, &e.Title, &e.Description, &e.ImageURL, &e.SortOrder, &cat)
		e.CategoryID = scanNullID(cat)
		return e, err
	},
	values: func(e *Service) []any {
		return []any{e.Title, e.Description, e.ImageURL, e.SortOrder, nullableID(e.CategoryID)}
	},
	setID: func(e *Service, id int64) { e.ID = id },
}

var categoryTable = table[Category]{
	name:    "categories",
	columns: []string{"name", "slug"},
	orderBy: "name COLLATE NOCASE",
	scan: func(r rowScanner) (Category, error) {
		var e Category
		err := r.Scan(&e.ID, &e.Name, &e.Slug)
		return e, err
	},
	values: func(e *Category) []any { return []any{e.Name, e.Slug} },
	setID:  func(e *Category, id int64) { e.ID = id },
}

var contactTable = table[Contact]{
	name:    "contacts",
	columns: []string{"type", "value", "label", "sort_order"},
	orderBy: "sort_order, id",
	scan: func(r rowScanner) (Contact, error) {
		var e Contact
		err := r.Scan(&e.ID, &e.Type, &e.Value, &e.Label, &e.SortOrder)
		return e, err
	},
	values: func(e *Contact) []any { return []any{e.Type, e.Value, e.Label, e.SortOrder} },
	setID:  func(e *Contact, id int64) { e.ID = id },
}

var sectionTable = table[ContentSection]{
	name:    "content_sections",
	columns: []string{"page", "section", "key", "title", "body", "image_url"},
	orderBy: "page, section, key",
	scan: func(r rowScanner) (ContentSection, error) {
		var e ContentSection
		err := r.Scan(&e.ID, &e.Page, &e.Section, &e.Key, &e.Title, &e.Body, &e.ImageURL)
		return e, err
	},
	values: func(e *ContentSection) []any {
		return []any{e.Page, e.Section, e.Key, e.Title, e.Body, e.ImageURL}
	},
	setID: func(e *ContentSection, id int64) { e.ID = id },
}

var imageTable = table[ImageFile]{
	name:    "images",
	columns: []string{"url", "description", "filename", "created_at"},
	orderBy: "created_at DESC, id DESC",
	scan: func(r rowScanner) (ImageFile, error) {
		var e ImageFile
		err := r.Scan(&e.ID, &e.URL, &e.Description, &e.Filename, &e.CreatedAt)
		return e, err
	},
	values: func(e *ImageFile) []any { return []any{e.URL, e.Description, e.Filename, e.CreatedAt} },
	setID:  func(e *ImageFile, id int64) { e.ID = id },
}

var videoTable = table[Video]{
	name:    "videos",
	columns: []string{"title", "description", "kind", "source", "sort_order", "active"},
	orderBy: "sort_order, id",
	scan: func(r rowScanner) (Video, error) {
		var e Video
		var active int
		err := r.Scan(&e.ID, &e.Title, &e.Description, &e.Kind, &e.Source, &e.SortOrder, &active)
		e.Active = active == 1
		return e, err
	},
	values: func(e *Video) []any {
		active := 0
		if e.Active {
			active = 1
		}
		return []any{e.Title, e.Description, e.Kind, e.Source, e.SortOrder, active}
	},
	setID: func(e *Video, id int64) { e.ID = id },
}

var userTable = table[AdminUser]{
	name:    "users",
	columns: []string{"email", "password_hash", "full_name", "last_login"},
	orderBy: "email",
	scan: func(r rowScanner) (AdminUser, error) {
		var e AdminUser
		err := r.Scan(&e.ID, &e.Email, &e.PasswordHash, &e.FullName, &e.LastLogin)
		return e, err
	},
	values: func(e *AdminUser) []any { return []any{e.Email, e.PasswordHash, e.FullName, e.LastLogin} },
	setID:  func(e *AdminUser, id int64) { e.ID = id },
}

// --- Services ---

// ListServices returns services ordered by sort_order, optionally
// filtered by category and by a case-insensitive title substring.
// Substring matching happens in Go because sqlite's lower() folds ASCII
// only and titles here are mostly Cyrillic.
func (s *Store) ListServices(categoryID int64, search string) ([]Service, error) {
	var (
		where string
		args  []any
	)
	if categoryID > 0 {
		where = "category_id = ?"
		args = append(args, categoryID)
	}
	rows, err := listRows(s, serviceTable, where, args...)
	if err != nil {
		return nil, err
	}
	return filterBySearch(rows, search, func(e Service) string { return e.Title }), nil
}

func (s *Store) GetService(id int64) (Service, error)     { return getRow(s, serviceTable, id) }
func (s *Store) CreateService(e *Service) error           { return insertRow(s, serviceTable, e) }
func (s *Store) UpdateService(id int64, e *Service) error { return updateRow(s, serviceTable, id, e) }
func (s *Store) DeleteService(id int64) error             { return deleteRow(s, serviceTable, id) }

// --- Catalog items ---

const catalogSelect = `SELECT ci.id, ci.title, ci.description, ci.image_url, ci.category_id, ci.specs, ci.price, COALESCE(c.name, '')
FROM catalog_items ci LEFT JOIN categories c ON c.id = ci.category_id`

func scanCatalogItem(r rowScanner) (CatalogItem, error) {
	var e CatalogItem
	var cat sql.NullInt64
	var specs string
	err := r.Scan(&e.ID, &e.Title, &e.Description, &e.ImageURL, &cat, &specs, &e.Price, &e.Category)
	if err != nil {
		return e, err
	}
	e.CategoryID = scanNullID(cat)
	e.Specs = decodeSpecs(specs)
	return e, nil
}

// ListCatalogItems returns catalog items with their category name
// joined in, optionally filtered by category id and title substring.
func (s *Store) ListCatalogItems(categoryID int64, search string) ([]CatalogItem, error) {
	q := catalogSelect
	var args []any
	if categoryID > 0 {
		q += " WHERE ci.category_id = ?"
		args = append(args, categoryID)
	}
	q += " ORDER BY ci.title COLLATE NOCASE, ci.id"
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CatalogItem
	for rows.Next() {
		e, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterBySearch(items, search, func(e CatalogItem) string { return e.Title }), nil
}

// GetCatalogItem returns a single catalog item with its category name.
func (s *Store) GetCatalogItem(id int64) (CatalogItem, error) {
	return scanCatalogItem(s.db.QueryRow(catalogSelect+" WHERE ci.id = ?", id))
}

func (s *Store) CreateCatalogItem(e *CatalogItem) error {
	res, err := s.db.Exec(`INSERT INTO catalog_items (title, description, image_url, category_id, specs, price) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.ImageURL, nullableID(e.CategoryID), encodeSpecs(e.Specs), e.Price)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (s *Store) UpdateCatalogItem(id int64, e *CatalogItem) error {
	res, err := s.db.Exec(`UPDATE catalog_items SET title = ?, description = ?, image_url = ?, category_id = ?, specs = ?, price = ? WHERE id = ?`,
		e.Title, e.Description, e.ImageURL, nullableID(e.CategoryID), encodeSpecs(e.Specs), e.Price, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	e.ID = id
	return nil
}

func (s *Store) DeleteCatalogItem(id int64) error {
	_, err := s.db.Exec(`DELETE FROM catalog_items WHERE id = ?`, id)
	return err
}

func encodeSpecs(specs map[string]string) string {
	if len(specs) == 0 {
		return "{}"
	}
	b, err := json.Marshal(specs)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeSpecs(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var specs map[string]string
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil
	}
	return specs
}

// --- Categories ---

func (s *Store) ListCategories(search string) ([]Category, error) {
	rows, err := listRows(s, categoryTable, "")
	if err != nil {
		return nil, err
	}
	return filterBySearch(rows, search, func(e Category) string { return e.Name }), nil
}

func (s *Store) GetCategory(id int64) (Category, error) { return getRow(s, categoryTable, id) }

// CreateCategory inserts a category; a colliding name yields ErrDuplicateName.
func (s *Store) CreateCategory(e *Category) error {
	if e.Slug == "" {
		e.Slug = Slugify(e.Name)
	}
	if err := insertRow(s, categoryTable, e); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (s *Store) UpdateCategory(id int64, e *Category) error {
	if e.Slug == "" {
		e.Slug = Slugify(e.Name)
	}
	if err := updateRow(s, categoryTable, id, e); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

// DeleteCategory removes a category without touching dependents; rows
// referencing it keep their category_id.
func (s *Store) DeleteCategory(id int64) error { return deleteRow(s, categoryTable, id) }

// --- Contacts ---

// ListContacts returns contacts ordered by sort_order, optionally
// filtered by type.
func (s *Store) ListContacts(ctype string) ([]Contact, error) {
	if ctype == "" {
		return listRows(s, contactTable, "")
	}
	return listRows(s, contactTable, "type = ?", ctype)
}

func (s *Store) GetContact(id int64) (Contact, error)     { return getRow(s, contactTable, id) }
func (s *Store) CreateContact(e *Contact) error           { return insertRow(s, contactTable, e) }
func (s *Store) UpdateContact(id int64, e *Contact) error { return updateRow(s, contactTable, id, e) }
func (s *Store) DeleteContact(id int64) error             { return deleteRow(s, contactTable, id) }

// --- Content sections ---

// ListContentSections returns content slots filtered by any combination
// of page, section and key; empty arguments match everything.
func (s *Store) ListContentSections(page, section, key string) ([]ContentSection, error) {
	var (
		where []string
		args  []any
	)
	if page != "" {
		where = append(where, "page = ?")
		args = append(args, page)
	}
	if section != "" {
		where = append(where, "section = ?")
		args = append(args, section)
	}
	if key != "" {
		where = append(where, "key = ?")
		args = append(args, key)
	}
	clause := ""
	for i, w := range where {
		if i > 0 {
			clause += " AND "
		}
		clause += w
	}
	return listRows(s, sectionTable, clause, args...)
}

// GetContentByKey returns the single content slot with the given key,
// or sql.ErrNoRows.
func (s *Store) GetContentByKey(key string) (ContentSection, error) {
	row := s.db.QueryRow(sectionTable.selectClause()+" WHERE key = ?", key)
	return sectionTable.scan(row)
}

func (s *Store) GetContentSection(id int64) (ContentSection, error) { return getRow(s, sectionTable, id) }
func (s *Store) CreateContentSection(e *ContentSection) error       { return insertRow(s, sectionTable, e) }
func (s *Store) UpdateContentSection(id int64, e *ContentSection) error {
	return updateRow(s, sectionTable, id, e)
}
func (s *Store) DeleteContentSection(id int64) error { return deleteRow(s, sectionTable, id) }

// --- Images ---

func (s *Store) ListImages() ([]ImageFile, error)     { return listRows(s, imageTable, "") }
func (s *Store) GetImage(id int64) (ImageFile, error) { return getRow(s, imageTable, id) }
func (s *Store) CreateImage(e *ImageFile) error {
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return insertRow(s, imageTable, e)
}
func (s *Store) DeleteImage(id int64) error { return deleteRow(s, imageTable, id) }

// --- Videos ---

// ListVideos returns videos ordered by sort_order; with activeOnly set,
// inactive entries are excluded.
func (s *Store) ListVideos(activeOnly bool) ([]Video, error) {
	if activeOnly {
		return listRows(s, videoTable, "active = 1")
	}
	return listRows(s, videoTable, "")
}

func (s *Store) GetVideo(id int64) (Video, error)     { return getRow(s, videoTable, id) }
func (s *Store) CreateVideo(e *Video) error           { return insertRow(s, videoTable, e) }
func (s *Store) UpdateVideo(id int64, e *Video) error { return updateRow(s, videoTable, id, e) }
func (s *Store) DeleteVideo(id int64) error           { return deleteRow(s, videoTable, id) }

// --- Users ---

// GetUserByEmail returns the admin account with the given email, or
// sql.ErrNoRows.
func (s *Store) GetUserByEmail(email string) (AdminUser, error) {
	row := s.db.QueryRow(userTable.selectClause()+" WHERE email = ?", email)
	return userTable.scan(row)
}

func (s *Store) CreateUser(e *AdminUser) error { return insertRow(s, userTable, e) }

// CountUsers reports how many admin accounts exist.
func (s *Store) CountUsers() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// TouchUserLogin records a successful sign-in time.
func (s *Store) TouchUserLogin(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET last_login = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// filterBySearch keeps entities whose title-like field contains the
// search string, case-insensitively. An empty search keeps everything.
func filterBySearch[T any](items []T, search string, field func(T) string) []T {
	if search == "" {
		return items
	}
	var out []T
	for _, e := range items {
		if containsFold(field(e), search) {
			out = append(out, e)
		}
	}
	return out
}
