package runner

import (
	"os"
	"path/filepath"
)

// writeFile writes a best-effort log (review output, not a task
// descriptor) to path, creating its parent directory if needed.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
