// Package artifact tracks the files produced and consumed by pipeline stages.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Kind classifies an artifact.
type Kind string

const (
	KindBinary           Kind = "binary"
	KindRawProfile       Kind = "raw-profile"
	KindConvertedProfile Kind = "converted-profile"
	KindLog              Kind = "log"
	KindReport           Kind = "report"
)

var (
	// ErrConflict is returned when an artifact with the same kind and name
	// has already been registered in this run.
	ErrConflict = errors.New("artifact already registered")

	// ErrNotFound is returned by Get for an unknown artifact identity.
	ErrNotFound = errors.New("artifact not found")
)

// Artifact is a named, typed file reference tracked across stages.
// Once registered it is never mutated in place; Invalidate flips the
// validity flag but preserves the underlying file for post-mortem
// inspection.
type Artifact struct {
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Stage     string    `json:"stage,omitempty"`
	Seq       int       `json:"seq"`
	Valid     bool      `json:"valid"`
	CreatedAt time.Time `json:"created_at"`
}

// Store owns artifact lifecycle for a single pipeline run. It is the sole
// writer of artifact validity. All access goes through Put/Get/Invalidate;
// identities (kind+name) are unique per run.
type Store struct {
	root string

	mu   sync.Mutex
	seq  int
	byID map[string]*Artifact
}

// New creates a Store rooted at dir, with artifacts/ and logs/
// subdirectories for store-allocated output paths.
func New(dir string) (*Store, error) {
	for _, sub := range []string{"artifacts", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &Store{root: dir, byID: make(map[string]*Artifact)}, nil
}

// Root returns the run directory the store is rooted at.
func (s *Store) Root() string { return s.root }

// AllocPath returns a store-owned destination path for an artifact a stage
// is about to produce. It does not register anything; the producing stage
// calls Put once the tool has written the file.
func (s *Store) AllocPath(kind Kind, name string) string {
	sub := "artifacts"
	if kind == KindLog {
		sub = "logs"
	}
	return filepath.Join(s.root, sub, fmt.Sprintf("%s-%s", kind, name))
}

// Put registers a produced file under kind+name. Registering the same
// identity twice within one run is an ErrConflict: a stage re-running and
// silently replacing an earlier stage's output would mask its failure.
func (s *Store) Put(kind Kind, name, path, stage string) (*Artifact, error) {
	if name == "" {
		return nil, fmt.Errorf("artifact name is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("artifact file %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key(kind, name)
	if _, exists := s.byID[id]; exists {
		return nil, fmt.Errorf("%s/%s: %w", kind, name, ErrConflict)
	}

	s.seq++
	a := &Artifact{
		Kind:      kind,
		Name:      name,
		Path:      path,
		Stage:     stage,
		Seq:       s.seq,
		Valid:     true,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[id] = a
	return a, nil
}

// Get returns the artifact registered under kind+name, or ErrNotFound.
// Invalid artifacts are still returned; consumers decide what an invalid
// input means for them.
func (s *Store) Get(kind Kind, name string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[key(kind, name)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, name, ErrNotFound)
	}
	return a, nil
}

// GetValid returns the artifact only if it exists and is valid.
func (s *Store) GetValid(kind Kind, name string) (*Artifact, error) {
	a, err := s.Get(kind, name)
	if err != nil {
		return nil, err
	}
	if !a.Valid {
		return nil, fmt.Errorf("%s/%s is invalidated: %w", kind, name, ErrNotFound)
	}
	return a, nil
}

// Invalidate marks an artifact unusable for downstream consumption. The
// underlying file is left on disk.
func (s *Store) Invalidate(a *Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Valid = false
}

// All returns every registered artifact in registration order.
func (s *Store) All() []*Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Artifact, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// WriteManifest writes a JSON manifest of the final artifact set to path.
func (s *Store) WriteManifest(path string) error {
	manifest := struct {
		Root      string      `json:"root"`
		Artifacts []*Artifact `json:"artifacts"`
	}{
		Root:      s.root,
		Artifacts: s.All(),
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling artifact manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact manifest: %w", err)
	}
	return nil
}

func key(kind Kind, name string) string {
	return string(kind) + "/" + name
}
