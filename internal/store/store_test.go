package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteFace(t *testing.T) {
	s := openTestStore(t)

	face := Face{
		ID:         "5a1f6a22-93c4-4b0e-9d3b-6f2d60f122ab",
		Name:       "Jane Doe",
		Class:      "2027",
		ExternalID: "2024:9:001.jpg",
	}
	outcome, err := s.WriteFace(face)
	if err != nil {
		t.Fatalf("WriteFace failed: %v", err)
	}
	if outcome != Created {
		t.Errorf("expected Created, got %v", outcome)
	}

	outcome, err = s.WriteFace(face)
	if err != nil {
		t.Fatalf("second WriteFace failed: %v", err)
	}
	if outcome != Duplicate {
		t.Errorf("expected Duplicate on re-insert, got %v", outcome)
	}
}

func TestWriteFaceExternalIDConflict(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "2024:9:001.jpg"}); err != nil {
		t.Fatalf("WriteFace failed: %v", err)
	}

	// A different service id for the same enrollment key is still a
	// duplicate, not an error.
	outcome, err := s.WriteFace(Face{ID: "id-2", Name: "Jane Doe", ExternalID: "2024:9:001.jpg"})
	if err != nil {
		t.Fatalf("WriteFace failed: %v", err)
	}
	if outcome != Duplicate {
		t.Errorf("expected Duplicate, got %v", outcome)
	}
}

func TestFindFace(t *testing.T) {
	s := openTestStore(t)

	if face, err := s.FindFace("nope"); err != nil || face != nil {
		t.Errorf("expected nil, nil for unknown id, got %v, %v", face, err)
	}

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", Class: "2027", ExternalID: "x"}); err != nil {
		t.Fatal(err)
	}
	face, err := s.FindFace("id-1")
	if err != nil {
		t.Fatalf("FindFace failed: %v", err)
	}
	if face == nil || face.Name != "Jane Doe" || face.Class != "2027" {
		t.Errorf("unexpected face: %+v", face)
	}
}

func TestFindFaceByExternalID(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "2024:9:001.jpg"}); err != nil {
		t.Fatal(err)
	}

	face, err := s.FindFaceByExternalID("2024:9:001.jpg")
	if err != nil {
		t.Fatalf("FindFaceByExternalID failed: %v", err)
	}
	if face == nil || face.ID != "id-1" {
		t.Errorf("unexpected face: %+v", face)
	}

	if face, err := s.FindFaceByExternalID("2024:9:999.jpg"); err != nil || face != nil {
		t.Errorf("expected nil, nil for unknown key, got %v, %v", face, err)
	}
}

func TestWritePhotoUniqueness(t *testing.T) {
	s := openTestStore(t)

	assoc := PhotoFace{FaceID: "id-1", Gallery: "fall2024", Photo: "IMG001"}
	outcome, err := s.WritePhoto(assoc)
	if err != nil {
		t.Fatalf("WritePhoto failed: %v", err)
	}
	if outcome != Created {
		t.Errorf("expected Created, got %v", outcome)
	}

	outcome, err = s.WritePhoto(assoc)
	if err != nil {
		t.Fatalf("second WritePhoto failed: %v", err)
	}
	if outcome != Duplicate {
		t.Errorf("expected Duplicate, got %v", outcome)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored row, got %d", count)
	}
}

func TestPeopleInPhoto(t *testing.T) {
	s := openTestStore(t)

	faces := []Face{
		{ID: "id-1", Name: "Zoe Last", Class: "2026", ExternalID: "a"},
		{ID: "id-2", Name: "Adam First", Class: "2027", ExternalID: "b"},
	}
	for _, f := range faces {
		if _, err := s.WriteFace(f); err != nil {
			t.Fatal(err)
		}
		if _, err := s.WritePhoto(PhotoFace{FaceID: f.ID, Gallery: "fall2024", Photo: "IMG001"}); err != nil {
			t.Fatal(err)
		}
	}

	people, err := s.PeopleInPhoto("fall2024", "IMG001")
	if err != nil {
		t.Fatalf("PeopleInPhoto failed: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
	if people[0].Name != "Adam First" || people[1].Name != "Zoe Last" {
		t.Errorf("expected ordering by name, got %q then %q", people[0].Name, people[1].Name)
	}

	empty, err := s.PeopleInPhoto("fall2024", "IMG999")
	if err != nil {
		t.Fatalf("PeopleInPhoto failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list for unknown photo, got %d people", len(empty))
	}
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)

	faceID := "5a1f6a22-93c4-4b0e-9d3b-6f2d60f122ab"
	if _, err := s.WriteFace(Face{ID: faceID, Name: "Jane Doe", Class: "2027", ExternalID: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WritePhoto(PhotoFace{FaceID: faceID, Gallery: "fall2024", Photo: "IMG001"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		query   string
		expects int
	}{
		{name: "name substring", query: "jane", expects: 1},
		{name: "name different case", query: "DOE", expects: 1},
		{name: "exact face id", query: faceID, expects: 1},
		{name: "no match", query: "zzz", expects: 0},
		{name: "unknown id shape", query: "00000000-0000-0000-0000-000000000000", expects: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := s.Search(tt.query, 10)
			if err != nil {
				t.Fatalf("Search(%q) failed: %v", tt.query, err)
			}
			if len(hits) != tt.expects {
				t.Fatalf("Search(%q) returned %d hits, want %d", tt.query, len(hits), tt.expects)
			}
			if tt.expects == 1 {
				h := hits[0]
				if h.Gallery != "fall2024" || h.Photo != "IMG001" || h.Name != "Jane Doe" {
					t.Errorf("unexpected hit: %+v", h)
				}
			}
		})
	}
}

func TestSearchDistinctAndLimited(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "a"}); err != nil {
		t.Fatal(err)
	}
	for _, photo := range []string{"IMG001", "IMG002", "IMG003"} {
		if _, err := s.WritePhoto(PhotoFace{FaceID: "id-1", Gallery: "fall2024", Photo: photo}); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := s.Search("jane", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected limit of 2 hits, got %d", len(hits))
	}
}

func TestSearchLikeEscaping(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WritePhoto(PhotoFace{FaceID: "id-1", Gallery: "g", Photo: "p"}); err != nil {
		t.Fatal(err)
	}

	// Wildcards in the query are literals, not patterns.
	hits, err := s.Search("%", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for literal %%, got %d", len(hits))
	}
}

func TestSearchAuditLog(t *testing.T) {
	s := openTestStore(t)
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	s = s.WithAuditLog(auditPath)

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WritePhoto(PhotoFace{FaceID: "id-1", Gallery: "fall2024", Photo: "IMG001"}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Search("jane", 10); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	if !strings.Contains(string(data), `"query":"jane"`) {
		t.Errorf("audit record missing query: %s", data)
	}
	if !strings.Contains(string(data), "IMG001") {
		t.Errorf("audit record missing results: %s", data)
	}
}

func TestSearchAuditLogFailureStillReturnsHits(t *testing.T) {
	s := openTestStore(t)
	// A sink inside a directory that doesn't exist cannot be opened.
	s = s.WithAuditLog(filepath.Join(t.TempDir(), "missing", "audit.log"))

	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WritePhoto(PhotoFace{FaceID: "id-1", Gallery: "fall2024", Photo: "IMG001"}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search("jane", 10)
	if err == nil {
		t.Fatal("expected audit append error")
	}
	if len(hits) != 1 {
		t.Errorf("expected computed hits alongside the error, got %d", len(hits))
	}
}

func TestOpenCreatesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if _, err := s.WriteFace(Face{ID: "id-1", Name: "Jane Doe", ExternalID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s.Close()

	face, err := s.FindFace("id-1")
	if err != nil {
		t.Fatalf("FindFace failed after reopen: %v", err)
	}
	if face == nil {
		t.Error("expected face to survive reopen")
	}
}
