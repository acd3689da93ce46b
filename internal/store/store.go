// Package store is the local identity database: the faces enrolled into the
// recognition collection and the event photos each one was spotted in. The
// gallery site reads it through FindFace, PeopleInPhoto and Search.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// WriteOutcome reports what an insert did. Duplicate is the expected
// steady-state outcome when a batch is re-run, not an error.
type WriteOutcome int

const (
	Created WriteOutcome = iota
	Duplicate
)

// Face is one enrolled identity.
type Face struct {
	ID         string
	Name       string
	Class      string
	ExternalID string
	// Compressed, base64-encoded detection payload from the service.
	Metadata string
}

// PhotoFace records one identity spotted in one event photo.
type PhotoFace struct {
	FaceID  string `json:"face_id"`
	Gallery string `json:"gallery"`
	Photo   string `json:"photo"`
}

// Person is the read-side projection used by PeopleInPhoto.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// SearchHit is one photo matched by Search.
type SearchHit struct {
	Gallery string `json:"gallery"`
	Photo   string `json:"photo"`
	Name    string `json:"name"`
}

const DefaultSearchLimit = 50

type Store struct {
	db       *sql.DB
	auditLog string
}

// Open opens the backing SQLite database, creating the schema on first use.
// A failure here is fatal to the run; nothing operates on a partial store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	// The pipelines are strictly sequential; one connection keeps SQLite's
	// locking out of the picture.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// WithAuditLog enables the append-only search audit file.
func (s *Store) WithAuditLog(path string) *Store {
	s.auditLog = path
	return s
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS faces (
			id          TEXT NOT NULL PRIMARY KEY,
			name        TEXT NOT NULL,
			class       TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL UNIQUE,
			metadata    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS photos (
			face_id TEXT NOT NULL,
			gallery TEXT NOT NULL,
			photo   TEXT NOT NULL,
			UNIQUE (face_id, gallery, photo)
		)`,
		`CREATE INDEX IF NOT EXISTS photos_gallery_photo_idx ON photos (gallery, photo)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// FindFace looks up an enrolled face by its service identifier. Returns nil
// when the face is unknown.
func (s *Store) FindFace(id string) (*Face, error) {
	return s.findFace(`SELECT id, name, class, external_id, metadata FROM faces WHERE id = ?`, id)
}

// FindFaceByExternalID looks up an enrolled face by its enrollment key.
// Returns nil when no face has been enrolled under that key.
func (s *Store) FindFaceByExternalID(externalID string) (*Face, error) {
	return s.findFace(`SELECT id, name, class, external_id, metadata FROM faces WHERE external_id = ?`, externalID)
}

func (s *Store) findFace(query, arg string) (*Face, error) {
	var f Face
	err := s.db.QueryRow(query, arg).Scan(&f.ID, &f.Name, &f.Class, &f.ExternalID, &f.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up face %s: %w", arg, err)
	}
	return &f, nil
}

// WriteFace inserts an enrolled face. A uniqueness conflict on the id or the
// external id means the face was enrolled on an earlier run and reports
// Duplicate; any other failure is an error.
func (s *Store) WriteFace(f Face) (WriteOutcome, error) {
	_, err := s.db.Exec(
		`INSERT INTO faces (id, name, class, external_id, metadata) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Class, f.ExternalID, f.Metadata,
	)
	if isUniqueViolation(err) {
		return Duplicate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write face %s: %w", f.ID, err)
	}
	return Created, nil
}

// WritePhoto inserts a face-photo association with the same conflict
// contract as WriteFace, keyed on (face_id, gallery, photo).
func (s *Store) WritePhoto(p PhotoFace) (WriteOutcome, error) {
	_, err := s.db.Exec(
		`INSERT INTO photos (face_id, gallery, photo) VALUES (?, ?, ?)`,
		p.FaceID, p.Gallery, p.Photo,
	)
	if isUniqueViolation(err) {
		return Duplicate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write photo association %s/%s: %w", p.Gallery, p.Photo, err)
	}
	return Created, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// PeopleInPhoto lists everyone recorded in one photo, ordered by name. An
// empty list is a normal answer.
func (s *Store) PeopleInPhoto(gallery, photo string) ([]Person, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.name, f.class
		FROM photos p
		JOIN faces f ON f.id = p.face_id
		WHERE p.gallery = ? AND p.photo = ?
		ORDER BY f.name`, gallery, photo)
	if err != nil {
		return nil, fmt.Errorf("failed to query people in %s/%s: %w", gallery, photo, err)
	}
	defer rows.Close()

	people := make([]Person, 0)
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Class); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}
