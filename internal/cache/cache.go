// Package cache keeps the last upstream responses on disk so runs can be
// repeated offline.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// Kind names the upstream a cached response came from.
type Kind string

const (
	KindCelestrak  Kind = "celestrak"
	KindSpaceTrack Kind = "spacetrack"
)

// ErrCacheMiss is returned by Load when nothing was saved for the key.
var ErrCacheMiss = errors.New("no cached response")

// Store reads and writes response files under a single directory.
type Store struct {
	fs      afero.Fs
	dir     string
	metrics *observability.Collector
}

// New returns a store rooted at dir on fs. A nil fs uses the OS filesystem.
func New(fs afero.Fs, dir string, metrics *observability.Collector) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir, metrics: metrics}
}

// Path is the file a response of kind for system is stored in.
func (s *Store) Path(kind Kind, system model.SatelliteSystem) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_response.txt", kind, system))
}

// Save writes text after trimming every line and dropping blank ones.
func (s *Store) Save(kind Kind, system model.SatelliteSystem, text string) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		s.metrics.CacheOperation(string(kind), "save", "error")
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := s.Path(kind, system)
	if err := afero.WriteFile(s.fs, path, []byte(Clean(text)), 0o644); err != nil {
		s.metrics.CacheOperation(string(kind), "save", "error")
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.metrics.CacheOperation(string(kind), "save", "ok")
	return nil
}

// Load returns the saved text, or ErrCacheMiss.
func (s *Store) Load(kind Kind, system model.SatelliteSystem) (string, error) {
	path := s.Path(kind, system)
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		s.metrics.CacheOperation(string(kind), "load", "miss")
		return "", fmt.Errorf("%s: %w", path, ErrCacheMiss)
	}
	if err != nil {
		s.metrics.CacheOperation(string(kind), "load", "error")
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	s.metrics.CacheOperation(string(kind), "load", "hit")
	return string(data), nil
}

// Clean normalises line endings, trims each line and drops empty lines.
// The result ends with a newline unless it is empty.
func Clean(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
