package telerelay

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const sessionExt = ".session"

// SessionPath returns the session file for the named session in dir.
func SessionPath(dir, name string) string {
	return filepath.Join(dir, name+sessionExt)
}

// SessionExists reports whether the named session file exists in dir.
func SessionExists(dir, name string) bool {
	info, err := os.Stat(SessionPath(dir, name))
	return err == nil && !info.IsDir()
}

// ListSessions returns the names of the session files in dir, sorted.
func ListSessions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), sessionExt); ok && name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
