package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"

	"github.com/snapmatch/snapmatch/internal/config"
	"github.com/snapmatch/snapmatch/internal/console"
	"github.com/snapmatch/snapmatch/internal/recognition"
	"github.com/snapmatch/snapmatch/internal/store"
)

// Sidecar artifacts written next to each processed photo. The names cache is
// the commit marker: once it exists the photo is never touched again.
const (
	facesCacheSuffix = ".faces.json"
	namesCacheSuffix = ".names.json"
)

// Identifier recognizes enrolled people in untagged event photographs and
// records the matches in the Identity Store.
type Identifier struct {
	rec      recognition.Recognizer
	store    *store.Store
	reporter *console.Reporter
	cfg      config.IdentifyConfig

	// ShowProgress renders a progress bar for directory runs.
	ShowProgress bool
}

func NewIdentifier(rec recognition.Recognizer, st *store.Store, rep *console.Reporter, cfg config.IdentifyConfig) *Identifier {
	return &Identifier{rec: rec, store: st, reporter: rep, cfg: cfg}
}

// Run identifies people in a single photo, or in every photo directly inside
// a directory (no recursion). The collection must already exist; with
// nothing enrolled there is nothing to match against.
func (id *Identifier) Run(ctx context.Context, path string) error {
	exists, err := id.rec.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("face collection does not exist, run enroll first")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !info.IsDir() {
		return id.processPhoto(ctx, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var photos []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && isPhoto(entry.Name()) {
			photos = append(photos, filepath.Join(path, entry.Name()))
		}
	}

	var bar *progressbar.ProgressBar
	if id.ShowProgress {
		bar = progressbar.NewOptions(len(photos),
			progressbar.OptionSetDescription("Identifying"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}
	for _, photo := range photos {
		if err := id.processPhoto(ctx, photo); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return nil
}

func isPhoto(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// processPhoto runs the per-photo state machine: skip if finalized, detect
// (cached), rank, filter, crop and match each accepted face, then write the
// names cache as the commit point. Detection and decode failures abort the
// batch; per-face match failures are logged and contained.
func (id *Identifier) processPhoto(ctx context.Context, path string) error {
	id.reporter.Printf("[bold]%s[reset]\n", filepath.Base(path))

	namesCache := path + namesCacheSuffix
	if _, err := os.Stat(namesCache); err == nil {
		id.reporter.Printf("  [yellow]already recognized, skipping[reset]\n")
		return nil
	}

	faces, err := id.detectFaces(ctx, path)
	if err != nil {
		return err
	}

	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	sortByProminence(faces)

	// Marshals to [] rather than null when nobody is matched.
	matched := make([]store.PhotoFace, 0)
	accepted := 0
	for i, face := range faces {
		if accepted >= id.cfg.MaxFacesPerPhoto {
			id.reporter.Printf("  [yellow]face limit reached, ignoring %d smaller faces[reset]\n", len(faces)-i)
			break
		}
		if face.Confidence < id.cfg.MinConfidence {
			id.reporter.Printf("  [yellow]face %d skipped, confidence %.1f too low[reset]\n", i+1, face.Confidence)
			continue
		}
		if face.BoundingBox.Width < id.cfg.MinFaceWidth {
			id.reporter.Printf("  [yellow]face %d skipped, width %.3f too small[reset]\n", i+1, face.BoundingBox.Width)
			continue
		}
		accepted++

		crop, err := id.ensureCrop(img, face.BoundingBox, cropArtifactPath(path, accepted))
		if err != nil {
			return err
		}
		assoc, err := id.matchFace(ctx, path, crop)
		if err != nil {
			return err
		}
		if assoc != nil {
			matched = append(matched, *assoc)
		}
	}

	// Commit point: the photo is now permanently processed, even when
	// nobody was matched.
	if err := writeJSONFile(namesCache, matched); err != nil {
		return err
	}
	return nil
}

// detectFaces returns the detected faces for a photo, from the sidecar cache
// when present. A fresh detection result is cached before anything else
// happens so a crash never re-spends the call.
func (id *Identifier) detectFaces(ctx context.Context, path string) ([]recognition.FaceDetail, error) {
	cachePath := path + facesCacheSuffix
	if data, err := os.ReadFile(cachePath); err == nil {
		var faces []recognition.FaceDetail
		if err := json.Unmarshal(data, &faces); err != nil {
			return nil, fmt.Errorf("failed to parse faces cache %s: %w", cachePath, err)
		}
		id.reporter.Printf("  [cyan]already detected %d faces[reset]\n", len(faces))
		return faces, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read faces cache %s: %w", cachePath, err)
	}

	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %s: %w", path, err)
	}
	faces, err := id.rec.DetectFaces(ctx, img)
	if err != nil {
		return nil, err
	}
	if faces == nil {
		faces = []recognition.FaceDetail{}
	}
	if err := writeJSONFile(cachePath, faces); err != nil {
		return nil, err
	}
	id.reporter.Printf("  [cyan]detected %d faces[reset]\n", len(faces))
	return faces, nil
}

// ensureCrop cuts the face out of the source image and persists it next to
// the photo, reusing the artifact from an earlier run when present. Returns
// the JPEG bytes submitted for matching.
func (id *Identifier) ensureCrop(img image.Image, box recognition.BoundingBox, cropPath string) ([]byte, error) {
	if data, err := os.ReadFile(cropPath); err == nil {
		id.reporter.Printf("    [cyan]reusing %s[reset]\n", filepath.Base(cropPath))
		return data, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read face crop %s: %w", cropPath, err)
	}

	cropped := imaging.Crop(img, pixelRect(box, img.Bounds()))
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}
	if err := os.WriteFile(cropPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write face crop %s: %w", cropPath, err)
	}
	id.reporter.Printf("    [cyan]saved %s[reset]\n", filepath.Base(cropPath))
	return buf.Bytes(), nil
}

// matchFace searches the collection for the cropped face and records the
// association. All three outcomes (service error, no match, match) are
// logged; only a store failure propagates.
func (id *Identifier) matchFace(ctx context.Context, photoPath string, crop []byte) (*store.PhotoFace, error) {
	matches, err := id.rec.SearchFacesByImage(ctx, crop)
	if err != nil {
		id.reporter.Printf("    [red]face not matched: %v[reset]\n", err)
		return nil, nil
	}
	if len(matches) == 0 {
		id.reporter.Printf("    [yellow]not identified[reset]\n")
		return nil, nil
	}

	match := matches[0]
	face, err := id.store.FindFace(match.FaceID)
	if err != nil {
		return nil, err
	}
	if face != nil {
		id.reporter.Printf("    [green]identified as %s[reset]\n", face.Name)
	} else {
		// Enrollment may lag identification; record the association
		// anyway and let a later enroll fill in the name.
		id.reporter.Printf("    [green]matched %s (not yet enrolled)[reset]\n", match.FaceID)
	}

	assoc := store.PhotoFace{
		FaceID:  match.FaceID,
		Gallery: filepath.Base(filepath.Dir(photoPath)),
		Photo:   strings.TrimSuffix(filepath.Base(photoPath), filepath.Ext(photoPath)),
	}
	if _, err := id.store.WritePhoto(assoc); err != nil {
		return nil, err
	}
	return &assoc, nil
}

// sortByProminence orders faces largest first, by bounding box width plus
// height, so the quality and count limits apply to the best candidates.
func sortByProminence(faces []recognition.FaceDetail) {
	sort.SliceStable(faces, func(i, j int) bool {
		a, b := faces[i].BoundingBox, faces[j].BoundingBox
		return a.Width+a.Height > b.Width+b.Height
	})
}

// pixelRect converts a fractional bounding box to pixel coordinates, clamped
// to the image bounds.
func pixelRect(box recognition.BoundingBox, bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	x0 := bounds.Min.X + int(box.Left*w)
	y0 := bounds.Min.Y + int(box.Top*h)
	x1 := x0 + int(box.Width*w)
	y1 := y0 + int(box.Height*h)
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// cropArtifactPath names the persisted face crop. It is a JPEG but carries
// no image extension so tooling that scans these directories for photos by
// extension leaves it alone.
func cropArtifactPath(photoPath string, n int) string {
	base := strings.TrimSuffix(filepath.Base(photoPath), filepath.Ext(photoPath))
	return filepath.Join(filepath.Dir(photoPath), fmt.Sprintf("%s_face_%02d", base, n))
}

func writeJSONFile(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
