// Package pipeline implements the two batch jobs: enrolling known portraits
// into the face collection and identifying people in event photographs.
// Both are strictly sequential and safe to interrupt and re-run; durable
// progress is a database insert or a sidecar file write, never anything
// half-committed.
package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/snapmatch/snapmatch/internal/console"
	"github.com/snapmatch/snapmatch/internal/recognition"
	"github.com/snapmatch/snapmatch/internal/roster"
	"github.com/snapmatch/snapmatch/internal/store"
)

// Enroller seeds the Identity Store and the recognition collection from a
// roster index file.
type Enroller struct {
	rec      recognition.Recognizer
	store    *store.Store
	reporter *console.Reporter
}

func NewEnroller(rec recognition.Recognizer, st *store.Store, rep *console.Reporter) *Enroller {
	return &Enroller{rec: rec, store: st, reporter: rep}
}

// Run enrolls every row of the index file. Rows already enrolled under the
// same external id are skipped without touching the service, so an aborted
// run can simply be started again. A year of 0 means "take it from the
// index file path". Malformed input (missing photo files, rows the service
// finds no face in) aborts the run; that is bad data to fix, not a
// condition to skip past.
func (e *Enroller) Run(ctx context.Context, indexPath string, year int, classFilter string) error {
	indexPath, err := filepath.Abs(indexPath)
	if err != nil {
		return fmt.Errorf("failed to resolve index path: %w", err)
	}
	if year == 0 {
		year = roster.YearFromPath(indexPath)
	}
	if year == 0 {
		return fmt.Errorf("no year found in %s, pass one explicitly", indexPath)
	}

	entries, err := roster.Read(indexPath)
	if err != nil {
		return err
	}
	if err := e.rec.EnsureCollection(ctx); err != nil {
		return err
	}

	indexDir := filepath.Dir(indexPath)
	for _, entry := range entries {
		cohort := roster.ParseCohort(entry.Class)
		if !cohort.Matches(classFilter) {
			continue
		}
		if err := e.enrollEntry(ctx, indexDir, entry, cohort, year); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enroller) enrollEntry(ctx context.Context, indexDir string, entry roster.Entry, cohort roster.Cohort, year int) error {
	externalID := roster.ExternalID(year, entry.Directory, entry.Filename)

	existing, err := e.store.FindFaceByExternalID(externalID)
	if err != nil {
		return err
	}
	if existing != nil {
		e.reporter.Printf("[yellow]already enrolled[reset] %s (%s)\n", entry.Name(), externalID)
		return nil
	}

	photoPath, err := roster.ResolvePhoto(indexDir, entry)
	if err != nil {
		return err
	}
	img, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("failed to read photo %s: %w", photoPath, err)
	}

	record, err := e.rec.IndexFace(ctx, img, externalID)
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(record.Detail)
	if err != nil {
		return err
	}

	outcome, err := e.store.WriteFace(store.Face{
		ID:         record.FaceID,
		Name:       entry.Name(),
		Class:      cohort.Resolve(year),
		ExternalID: externalID,
		Metadata:   metadata,
	})
	if err != nil {
		return err
	}
	switch outcome {
	case store.Created:
		e.reporter.Printf("[green]added[reset] %s (%s) class %s\n", entry.Name(), externalID, cohort.Resolve(year))
	case store.Duplicate:
		e.reporter.Printf("[yellow]already enrolled[reset] %s (%s)\n", entry.Name(), externalID)
	}
	return nil
}

// encodeMetadata compresses the detection payload for storage. It rides
// along in a TEXT column, so gzip plus base64 keeps it compact and
// printable; nothing in the pipelines ever reads it back.
func encodeMetadata(detail recognition.FaceDetail) (string, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("failed to marshal face detail: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("failed to compress face detail: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress face detail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeMetadata reverses encodeMetadata.
func decodeMetadata(blob string) (recognition.FaceDetail, error) {
	var detail recognition.FaceDetail
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return detail, fmt.Errorf("failed to decode metadata: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return detail, fmt.Errorf("failed to decompress metadata: %w", err)
	}
	defer zr.Close()
	if err := json.NewDecoder(zr).Decode(&detail); err != nil {
		return detail, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return detail, nil
}
