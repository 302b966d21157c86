package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshots persists cache entries as timestamped JSON files so a restart
// within the TTL serves immediately instead of waiting on the upstream.
type Snapshots struct {
	dir      string
	maxFiles int
}

// NewSnapshots creates a snapshot store in dir keeping at most maxFiles.
func NewSnapshots(dir string, maxFiles int) *Snapshots {
	if maxFiles <= 0 {
		maxFiles = 3
	}
	return &Snapshots{dir: dir, maxFiles: maxFiles}
}

// Save writes the entry to a timestamped file and prunes old snapshots.
func (s *Snapshots) Save(e *Entry) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	name := fmt.Sprintf("debris_%d.json", e.FetchedAt.Unix())
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}

	return s.prune()
}

// LoadLatest reads the newest snapshot by the timestamp in its filename.
func (s *Snapshots) LoadLatest() (*Entry, error) {
	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no snapshot files found")
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, latest))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding snapshot file %s: %w", latest, err)
	}
	return &e, nil
}

// listFiles returns snapshot filenames sorted by embedded timestamp,
// oldest first.
func (s *Snapshots) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshot dir: %w", err)
	}

	type stamped struct {
		name string
		ts   int64
	}
	var files []stamped
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "debris_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, "debris_"), ".json")
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, stamped{name: name, ts: ts})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ts < files[j].ts })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

func (s *Snapshots) prune() error {
	files, err := s.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= s.maxFiles {
		return nil
	}

	for _, name := range files[:len(files)-s.maxFiles] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", name, err)
		}
	}
	return nil
}
