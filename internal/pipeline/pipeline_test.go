package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/snapmatch/snapmatch/internal/console"
	"github.com/snapmatch/snapmatch/internal/recognition"
	"github.com/snapmatch/snapmatch/internal/store"
)

// fakeRecognizer stands in for the AWS client. It counts every call so the
// tests can assert which runs actually spent service calls.
type fakeRecognizer struct {
	collectionExists bool

	ensureCalls int
	detectCalls int
	indexCalls  int
	searchCalls int

	detectResult []recognition.FaceDetail
	detectErr    error
	indexErr     error
	searchResult []recognition.FaceMatch
	searchErr    error

	nextFaceID int
}

func (f *fakeRecognizer) CollectionExists(ctx context.Context) (bool, error) {
	return f.collectionExists, nil
}

func (f *fakeRecognizer) EnsureCollection(ctx context.Context) error {
	f.ensureCalls++
	f.collectionExists = true
	return nil
}

func (f *fakeRecognizer) DetectFaces(ctx context.Context, image []byte) ([]recognition.FaceDetail, error) {
	f.detectCalls++
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.detectResult, nil
}

func (f *fakeRecognizer) IndexFace(ctx context.Context, image []byte, externalID string) (*recognition.FaceRecord, error) {
	f.indexCalls++
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	f.nextFaceID++
	return &recognition.FaceRecord{
		FaceID: fmt.Sprintf("face-%03d", f.nextFaceID),
		Detail: recognition.FaceDetail{
			BoundingBox: recognition.BoundingBox{Left: 0.25, Top: 0.25, Width: 0.5, Height: 0.5},
			Confidence:  99.9,
		},
	}, nil
}

func (f *fakeRecognizer) SearchFacesByImage(ctx context.Context, image []byte) ([]recognition.FaceMatch, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResult, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func quietReporter() *console.Reporter {
	return console.New(&bytes.Buffer{})
}

// writeJPEG writes a small valid photo fixture.
func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
}

// writeIndex writes a tab-separated roster index file. Each row is
// directory, filename, class, last name, first name plus filler columns.
func writeIndex(t *testing.T, dir string, rows [][5]string) string {
	t.Helper()
	var buf bytes.Buffer
	for _, row := range rows {
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%s\tx\tx\tx\tx\tx\n",
			row[0], row[1], row[2], row[3], row[4])
	}
	path := filepath.Join(dir, "Index.txt")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}
	return path
}
