// Package roster parses the tab-delimited index files that ship with
// portrait-lab photo archives and derives the enrollment keys used to seed
// the face collection.
package roster

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Index files carry ten tab-separated columns and no header row. Only the
// first five matter here; the rest are portrait-lab bookkeeping.
const (
	colDirectory = 0
	colFilename  = 1
	colClass     = 2
	colLastName  = 3
	colFirstName = 4
)

type Entry struct {
	Directory string
	Filename  string
	Class     string
	LastName  string
	FirstName string
}

// Name returns the display name stored with the enrolled face.
func (e Entry) Name() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// Read parses an index file. A row missing the columns we need is a corrupt
// input and fails the whole read.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse index file %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		if len(rec) <= colFirstName {
			return nil, fmt.Errorf("index file %s row %d: expected at least %d columns, got %d",
				path, i+1, colFirstName+1, len(rec))
		}
		entries = append(entries, Entry{
			Directory: strings.TrimSpace(rec[colDirectory]),
			Filename:  strings.TrimSpace(rec[colFilename]),
			Class:     strings.TrimSpace(rec[colClass]),
			LastName:  rec[colLastName],
			FirstName: rec[colFirstName],
		})
	}
	return entries, nil
}

// ResolvePhoto locates the portrait a roster entry refers to. Per-directory
// index files sit next to their photos; master index files sit one level up
// and need the subdirectory prepended. Both layouts are tried.
func ResolvePhoto(indexDir string, e Entry) (string, error) {
	candidates := []string{
		filepath.Join(indexDir, e.Filename),
		filepath.Join(indexDir, e.Directory, e.Filename),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("missing photo file for %q: tried %s", e.Name(), strings.Join(candidates, ", "))
}

// Cohort is the class token from the roster: either a numeric grade that
// resolves to a graduation year, or a free-text group code like "staff".
type Cohort struct {
	grade   int
	label   string
	numeric bool
}

func ParseCohort(token string) Cohort {
	token = strings.TrimSpace(token)
	if grade, err := strconv.Atoi(token); err == nil {
		return Cohort{grade: grade, numeric: true}
	}
	return Cohort{label: strings.ToUpper(token)}
}

// Resolve returns the display string stored with the face: a graduation year
// for students, the upper-cased group code for everyone else.
func (c Cohort) Resolve(year int) string {
	if c.numeric {
		return strconv.Itoa(year + 12 - c.grade)
	}
	return c.label
}

// Matches reports whether the cohort matches an operator-supplied filter
// token. An empty filter matches everything.
func (c Cohort) Matches(filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	if c.numeric {
		return filter == strconv.Itoa(c.grade)
	}
	return strings.EqualFold(filter, c.label)
}

var externalIDJunk = regexp.MustCompile(`[^a-zA-Z0-9_.\-:]`)

// ExternalID builds the idempotency key for an enrolled face. The same
// physical file always yields the same key, regardless of incidental
// whitespace in the roster fields.
func ExternalID(year int, directory, filename string) string {
	id := fmt.Sprintf("%d:%s:%s", year, directory, filename)
	return externalIDJunk.ReplaceAllString(id, "")
}

var yearPattern = regexp.MustCompile(`20\d\d`)

// YearFromPath extracts the school year from a path, typically the season
// directory the index file lives in. The last match wins so deeper
// directories override shallower ones. Returns 0 when no year is present.
func YearFromPath(path string) int {
	matches := yearPattern.FindAllString(path, -1)
	if len(matches) == 0 {
		return 0
	}
	year, _ := strconv.Atoi(matches[len(matches)-1])
	return year
}
