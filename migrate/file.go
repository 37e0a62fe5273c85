// Package migrate applies and reverts sequential SQL migration files against
// a PostgreSQL database. Each file carries both directions, split by a
// "-- down" marker, and runs inside its own transaction together with its
// ledger record.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	upMarker   = "-- up"
	downMarker = "-- down"
)

// fileTemplate is the scaffold written by CreateFile.
const fileTemplate = "-- up\n\n\n-- down\n\n"

// Migration is one parsed migration file.
type Migration struct {
	// Name is the file name, including the .sql suffix. It doubles as the
	// ledger key.
	Name string
	// Up is the SQL applied by the forward direction.
	Up string
	// Down is the SQL applied by the reverse direction.
	Down string
}

// Parse splits a migration body into its up and down sections. The body must
// contain exactly one "-- down" marker line; a leading "-- up" marker line is
// stripped from the up section.
func Parse(name, body string) (Migration, error) {
	var up, down []string
	section := &up
	markers := 0
	for _, line := range strings.Split(body, "\n") {
		switch strings.TrimSpace(line) {
		case downMarker:
			markers++
			section = &down
			continue
		case upMarker:
			if len(up) == 0 && section == &up {
				continue
			}
		}
		*section = append(*section, line)
	}
	switch markers {
	case 0:
		return Migration{}, &ParseError{File: name, Err: ErrMissingDownMarker}
	case 1:
	default:
		return Migration{}, &ParseError{File: name, Err: ErrDuplicateDownMarker}
	}
	return Migration{
		Name: name,
		Up:   strings.TrimSpace(strings.Join(up, "\n")),
		Down: strings.TrimSpace(strings.Join(down, "\n")),
	}, nil
}

// CreateFile scaffolds a new migration file in dir, named
// <YYYYMMDDHHMMSSfff>_<slug>.sql, and returns its path. The slug is the
// lowercased name with spaces and hyphens folded to underscores.
func CreateFile(dir, name string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.NewReplacer(" ", "_", "-", "_").Replace(slug)
	if slug == "" {
		return "", fmt.Errorf("migrate: create file: empty name")
	}
	now := time.Now()
	stamp := fmt.Sprintf("%s%03d", now.Format("20060102150405"), now.Nanosecond()/int(time.Millisecond))
	path := filepath.Join(dir, stamp+"_"+slug+".sql")
	if err := os.WriteFile(path, []byte(fileTemplate), 0o644); err != nil {
		return "", fmt.Errorf("migrate: create file: %w", err)
	}
	return path, nil
}
