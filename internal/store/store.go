package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/trace"
)

const (
	MetadataFile = "metadata.json"
	EventsFile   = "events.csv"
	// Latest resolves to the most recent run.
	Latest = "latest"

	stampLayout = "20060102_150405"
)

var (
	ErrRunNotFound = errors.New("store: run not found")
	ErrEmptyName   = errors.New("store: empty run name")
	ErrRunExists   = errors.New("store: run already exists")
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store keeps trace runs as directories under a base directory.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

// WithClock replaces the clock used to stamp run directories.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

// RunMetadata describes one stored trace.
type RunMetadata struct {
	ID        string            `json:"id"`
	Run       string            `json:"run"`
	Name      string            `json:"name"`
	Created   time.Time         `json:"created"`
	RayCount  int               `json:"ray_count"`
	Events    int               `json:"events"`
	Seed      int64             `json:"seed"`
	Generator string            `json:"generator,omitempty"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// Run is what Save writes.
type Run struct {
	Name      string
	Payload   []byte
	Dataset   *rays.Dataset
	Seed      int64
	Generator string
	Settings  map[string]string
}

// Save writes a run directory named <name>_<YYYYmmdd_HHMMSS> and returns
// its metadata. An existing run directory is never overwritten.
func (s *Store) Save(r Run) (*RunMetadata, error) {
	name := strings.Trim(unsafeName.ReplaceAllString(r.Name, "-"), "-")
	if name == "" {
		return nil, ErrEmptyName
	}
	created := s.now()
	runID := fmt.Sprintf("%s_%s", name, created.Format(stampLayout))
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.Mkdir(runDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
		}
		return nil, err
	}

	meta := &RunMetadata{
		ID:        uuid.NewString(),
		Run:       runID,
		Name:      name,
		Created:   created,
		RayCount:  r.Dataset.Len(),
		Events:    r.Dataset.EventCount(),
		Seed:      r.Seed,
		Generator: r.Generator,
		Settings:  r.Settings,
	}

	if err := os.WriteFile(filepath.Join(runDir, trace.DefaultFileName), r.Payload, 0o644); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(runDir, MetadataFile), meta); err != nil {
		return nil, err
	}
	if err := writeEvents(filepath.Join(runDir, EventsFile), r.Dataset); err != nil {
		return nil, err
	}
	return meta, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var eventsHeader = []string{"ray", "event", "time", "x", "y", "z", "vx", "vy", "vz", "comp"}

func writeEvents(path string, d *rays.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(eventsHeader); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for i := 0; i < d.Len(); i++ {
		r, _ := d.At(i)
		for j, e := range r.Events {
			row := []string{
				strconv.Itoa(i), strconv.Itoa(j), ff(e.Time),
				ff(e.Position.X), ff(e.Position.Y), ff(e.Position.Z),
				ff(e.Velocity.X), ff(e.Velocity.Y), ff(e.Velocity.Z),
				e.Component,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Created.Equal(runs[j].Created) {
			return runs[i].Run > runs[j].Run
		}
		return runs[i].Created.After(runs[j].Created)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("store: %s: %w", runID, err)
	}
	return &meta, nil
}

// TracePath returns the path of a run's particles.json.
func (s *Store) TracePath(runID string) string {
	return filepath.Join(s.baseDir, runID, trace.DefaultFileName)
}

// Resolve turns a command-line reference into something a trace loader can
// fetch. URLs and existing paths pass through; otherwise ref names a run ID
// or Latest.
func (s *Store) Resolve(ref string) (string, error) {
	if strings.Contains(ref, "://") {
		return ref, nil
	}
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	if ref == Latest {
		runs, err := s.List()
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", fmt.Errorf("%w: store is empty", ErrRunNotFound)
		}
		return s.TracePath(runs[0].Run), nil
	}
	if _, err := s.Load(ref); err != nil {
		return "", err
	}
	return s.TracePath(ref), nil
}
