package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir is a migration source backed by a directory of .sql files. The
// timestamp prefix in the file names makes lexicographic order chronological.
type Dir struct {
	path string
}

// NewDir returns a source over the given directory.
func NewDir(path string) Dir {
	return Dir{path: path}
}

// Path returns the directory path.
func (d Dir) Path() string {
	return d.path
}

// Files returns the names of all .sql files in ascending order.
func (d Dir) Files() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir %s: %w", d.path, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read loads and parses one migration file by name.
func (d Dir) Read(name string) (Migration, error) {
	body, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return Migration{}, fmt.Errorf("migrate: read %s: %w", name, err)
	}
	return Parse(name, string(body))
}
