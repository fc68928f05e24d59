package kransite

import (
	"database/sql"
	"strings"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// table maps an entity type onto its sqlite table. Each entity supplies
// only its column list and scan/values functions; the CRUD plumbing
// below is shared by every admin module.
type table[T any] struct {
	name    string
	columns []string                    // column names, id excluded
	orderBy string                      // ORDER BY clause body, may be empty
	scan    func(rowScanner) (T, error) // scans id followed by columns
	values  func(*T) []any              // values matching columns order
	setID   func(*T, int64)
}

func (tb table[T]) selectClause() string {
	return "SELECT id, " + strings.Join(tb.columns, ", ") + " FROM " + tb.name
}

// listRows returns all rows matching the optional WHERE clause, in the
// table's declared order.
func listRows[T any](s *Store, tb table[T], where string, args ...any) ([]T, error) {
	q := tb.selectClause()
	if where != "" {
		q += " WHERE " + where
	}
	if tb.orderBy != "" {
		q += " ORDER BY " + tb.orderBy
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		e, err := tb.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// getRow returns the row with the given id, or sql.ErrNoRows.
func getRow[T any](s *Store, tb table[T], id int64) (T, error) {
	row := s.db.QueryRow(tb.selectClause()+" WHERE id = ?", id)
	return tb.scan(row)
}

// insertRow inserts e and assigns its server-generated id.
func insertRow[T any](s *Store, tb table[T], e *T) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tb.columns)), ", ")
	q := "INSERT INTO " + tb.name + " (" + strings.Join(tb.columns, ", ") + ") VALUES (" + placeholders + ")"
	res, err := s.db.Exec(q, tb.values(e)...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tb.setID(e, id)
	return nil
}

// updateRow writes the full column set of e to the row with the given id.
// sql.ErrNoRows is returned when no such row exists.
func updateRow[T any](s *Store, tb table[T], id int64, e *T) error {
	sets := make([]string, len(tb.columns))
	for i, col := range tb.columns {
		sets[i] = col + " = ?"
	}
	q := "UPDATE " + tb.name + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args := append(tb.values(e), id)
	res, err := s.db.Exec(q, args...)
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
	tb.setID(e, id)
	return nil
}

// deleteRow removes the row with the given id. Deleting a missing row is
// not an error, matching sqlite semantics.
func deleteRow[T any](s *Store, tb table[T], id int64) error {
	_, err := s.db.Exec("DELETE FROM "+tb.name+" WHERE id = ?", id)
	return err
}

// nullableID converts a zero id into NULL for optional foreign keys.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// scanNullID reads an optional foreign key back into an int64, zero for NULL.
func scanNullID(v sql.NullInt64) int64 {
	if v.Valid {
		return v.Int64
	}
	return 0
}
