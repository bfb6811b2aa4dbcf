package gates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

var sha256HexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// rawManifestRequiredKeys are the top-level keys spec.md §3's Raw Manifest
// data model requires on every manifest document.
var rawManifestRequiredKeys = []string{
	"source", "as_of_utc_date", "fetched_at_utc", "command", "files", "environment",
}

// rawManifestFileEntryKeys are the keys required on every entry of a
// manifest's "files" array.
var rawManifestFileEntryKeys = []string{"path", "sha256", "bytes"}

// RawManifestValidityGate validates every *.json file under the raw
// manifest directory against the manifest data model (always on).
type RawManifestValidityGate struct {
	ManifestDir string
}

func (g *RawManifestValidityGate) Name() string { return "raw_manifest_validity" }

func (g *RawManifestValidityGate) Run(_ context.Context, root, _ string) core.GateResult {
	dir := filepath.Join(root, g.ManifestDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return core.GateResult{Gate: g.Name(), Status: core.GatePassed, Message: "no raw manifest directory present"}
		}
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Message: err.Error()}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		problems = append(problems, validateRawManifest(name, raw)...)
	}

	if len(problems) > 0 {
		return core.GateResult{Gate: g.Name(), Status: core.GateFailed, Details: problems}
	}
	return core.GateResult{
		Gate:    g.Name(),
		Status:  core.GatePassed,
		Message: fmt.Sprintf("%d manifests checked", len(names)),
	}
}

func validateRawManifest(name string, raw []byte) []string {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []string{fmt.Sprintf("%s: invalid JSON: %v", name, err)}
	}

	var problems []string
	for _, key := range rawManifestRequiredKeys {
		if _, ok := doc[key]; !ok {
			problems = append(problems, fmt.Sprintf("%s: missing key %q", name, key))
		}
	}

	filesVal, ok := doc["files"]
	if !ok {
		return problems
	}
	files, ok := filesVal.([]any)
	if !ok {
		return append(problems, fmt.Sprintf("%s: \"files\" is not an array", name))
	}
	for i, entryVal := range files {
		entry, ok := entryVal.(map[string]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: files[%d] is not an object", name, i))
			continue
		}
		for _, key := range rawManifestFileEntryKeys {
			if _, ok := entry[key]; !ok {
				problems = append(problems, fmt.Sprintf("%s: files[%d] missing key %q", name, i, key))
			}
		}
		if sum, ok := entry["sha256"].(string); ok {
			if !sha256HexPattern.MatchString(sum) {
				problems = append(problems, fmt.Sprintf("%s: files[%d] sha256 %q is not 64 lowercase hex characters", name, i, sum))
			}
		}
	}
	return problems
}
