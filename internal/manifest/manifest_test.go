package manifest_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/supervisor/internal/manifest"
)

func writeSnapshot(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, "snapshots", "2026-07-15")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("one,two\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.json"), []byte(`{"k":"v"}`), 0o644))
	return dir
}

func TestBuild_InfersAsOfFromDirname(t *testing.T) {
	root := t.TempDir()
	dir := writeSnapshot(t, root)

	doc, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		Source:      "census",
		SnapshotDir: dir,
		Command:     []string{"curl", "-o", "out.csv", "https://example.test/data?x=1"},
		FetchedAt:   time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-07-15", doc.AsOfUTCDate)
	assert.Equal(t, "census", doc.Source)
	require.Len(t, doc.Files, 2)
	assert.Equal(t, "a.csv", doc.Files[0].Path)
	assert.Equal(t, "nested/b.json", doc.Files[1].Path)
	assert.Len(t, doc.Files[0].SHA256, 64)
	assert.NotEmpty(t, doc.Environment["go_version"])
}

func TestBuild_ExplicitAsOfOverridesDirname(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "arbitrary-name")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))

	doc, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		Source:      "s",
		SnapshotDir: dir,
		AsOf:        "2026-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02", doc.AsOfUTCDate)
}

func TestBuild_MissingAsOfAndUninferableDirnameFails(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "arbitrary-name")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		Source:      "s",
		SnapshotDir: dir,
	})
	require.Error(t, err)
}

func TestBuild_SnapshotDirOutsideRepoRootFails(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	_, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		Source:      "s",
		SnapshotDir: outside,
		AsOf:        "2026-01-02",
	})
	require.Error(t, err)
}

func TestBuild_EmptySourceFails(t *testing.T) {
	root := t.TempDir()
	dir := writeSnapshot(t, root)

	_, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		SnapshotDir: dir,
	})
	require.Error(t, err)
}

func TestQuoteCommand_EscapesSpecialCharacters(t *testing.T) {
	out := manifest.QuoteCommand([]string{"curl", "-o", "out.csv", "https://example.test/data?x=1&y=2"})
	assert.Equal(t, `curl -o out.csv 'https://example.test/data?x=1&y=2'`, out)
}

func TestQuoteCommand_EscapesEmbeddedSingleQuote(t *testing.T) {
	out := manifest.QuoteCommand([]string{"echo", "it's"})
	assert.Equal(t, `echo 'it'"'"'s'`, out)
}

func TestDocumentJSON_SortsKeysAndEndsWithNewline(t *testing.T) {
	doc := &manifest.Document{
		Source:       "census",
		AsOfUTCDate:  "2026-07-15",
		FetchedAtUTC: time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC),
		Command:      "curl -o out.csv https://example.test",
		Files: []manifest.FileEntry{
			{Path: "a.csv", SHA256: strings.Repeat("0", 64), Bytes: 12},
		},
		Environment: map[string]string{"go_version": "go1.24.2", "os": "linux"},
	}

	body, err := doc.JSON()
	require.NoError(t, err)
	require.True(t, len(body) > 0)
	assert.Equal(t, byte('\n'), body[len(body)-1])

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "census", raw["source"])
	assert.Equal(t, "2026-07-15", raw["as_of_utc_date"])

	keyOrder := func(data []byte) []string {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		var order []string
		tok, _ := dec.Token() // opening brace
		_ = tok
		for dec.More() {
			keyTok, err := dec.Token()
			require.NoError(t, err)
			order = append(order, keyTok.(string))
			var skip json.RawMessage
			require.NoError(t, dec.Decode(&skip))
		}
		return order
	}
	order := keyOrder(body)
	sorted := append([]string(nil), order...)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1], sorted[i], "top-level keys must be sorted")
	}
}

func TestWrite_DefaultPathAndRoundTripHash(t *testing.T) {
	root := t.TempDir()
	dir := writeSnapshot(t, root)

	doc, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		Source:      "census",
		SnapshotDir: dir,
		Command:     []string{"echo", "hi"},
	})
	require.NoError(t, err)

	path, err := manifest.Write(root, doc, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data", "raw_manifest", "census_2026-07-15.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var parsed struct {
		Files []struct {
			Path   string `json:"path"`
			SHA256 string `json:"sha256"`
			Bytes  int64  `json:"bytes"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	require.Len(t, parsed.Files, 2)
	for _, f := range parsed.Files {
		sum, size, err := manifest.HashFile(filepath.Join(dir, filepath.FromSlash(f.Path)))
		require.NoError(t, err)
		assert.Equal(t, sum, f.SHA256)
		assert.Equal(t, size, f.Bytes)
	}
}

func TestWrite_ExplicitOutPath(t *testing.T) {
	root := t.TempDir()
	dir := writeSnapshot(t, root)

	doc, err := manifest.Build(manifest.BuildOptions{
		RepoRoot:    root,
		Source:      "census",
		SnapshotDir: dir,
	})
	require.NoError(t, err)

	path, err := manifest.Write(root, doc, "custom/out.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "custom", "out.json"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)
}
