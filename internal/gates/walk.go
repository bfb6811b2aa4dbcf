package gates

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// taskFile is one task descriptor file discovered under the control
// plane, read but not yet parsed.
type taskFile struct {
	Name string
	Path string // relative to root, for error messages
	Raw  []byte
}

// walkTaskFiles reads every task descriptor (non-README .md file) across
// all five lifecycle folders, in folder order then filename order. Read
// errors are skipped silently here; callers that need to surface them
// (task_hygiene) read the file a second time via their own path.
func walkTaskFiles(root, controlDir string) []taskFile {
	var out []taskFile
	for _, state := range core.LifecycleStates() {
		dir := filepath.Join(root, controlDir, string(state))
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") && e.Name() != "README.md" {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			relPath := filepath.Join(controlDir, string(state), name)
			raw, err := os.ReadFile(filepath.Join(root, controlDir, string(state), name))
			if err != nil {
				continue
			}
			out = append(out, taskFile{Name: name, Path: relPath, Raw: raw})
		}
	}
	return out
}

// joinRoot joins a root with a config-relative path, leaving path alone
// when it is already absolute (configs may point outside root in tests).
func joinRoot(root, path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
