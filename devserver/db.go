// Package devserver is the bundled REST backend the state layer talks
// to during development and tests. It mimics the generic resource-store
// semantics the client expects: schemaless JSON documents per
// collection, PATCH as a shallow top-level merge, and whole nested
// arrays as the unit of update.
package devserver

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"go-social/utils/errors"
)

// collections is the fixed set of top-level resource tables.
var collections = []string{"users", "posts", "groups"}

// DB stores each entity as a schemaless JSON document keyed by an
// autoincrement id, so no external database daemon is needed.
type DB struct {
	sql *sql.DB
}

func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, table := range collections {
		_, err := conn.Exec(fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, doc TEXT NOT NULL)`, table))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return &DB{sql: conn}, nil
}

func (db *DB) Close() error {
	return db.sql.Close()
}

func validTable(table string) error {
	for _, t := range collections {
		if t == table {
			return nil
		}
	}
	return errors.ErrNotFound
}

// Insert stores the document, assigns its id, and returns the stored
// copy with the id filled in.
func (db *DB) Insert(table string, doc map[string]any) (map[string]any, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	result, err := db.sql.Exec(fmt.Sprintf(`INSERT INTO %s (doc) VALUES ('{}')`, table))
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	if err := db.write(table, id, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (db *DB) Get(table string, id int64) (map[string]any, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	var raw string
	err := db.sql.QueryRow(fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, table), id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (db *DB) List(table string) ([]map[string]any, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	rows, err := db.sql.Query(fmt.Sprintf(`SELECT doc FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Patch merges the partial document over the stored one at the top
// level only: a nested array in the partial replaces the stored array
// wholesale.
func (db *DB) Patch(table string, id int64, partial map[string]any) (map[string]any, error) {
	doc, err := db.Get(table, id)
	if err != nil {
		return nil, err
	}
	for key, value := range partial {
		if key == "id" {
			continue
		}
		doc[key] = value
	}
	if err := db.write(table, id, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (db *DB) Delete(table string, id int64) error {
	if err := validTable(table); err != nil {
		return err
	}
	result, err := db.sql.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (db *DB) write(table string, id int64, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = db.sql.Exec(fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, table), string(data), id)
	return err
}
