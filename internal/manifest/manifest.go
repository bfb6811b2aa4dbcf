// Package manifest builds the content-addressed snapshot manifest
// described by spec.md §3 (Raw Manifest) and §4.8 (Manifest Tool). It
// is an offline utility: given a snapshot directory and the command
// that produced it, it hashes every regular file and emits a single
// JSON document recording what was fetched, when, and how.
//
// The existing raw_manifest_validity gate (internal/gates) is the
// consumer of this package's output; the JSON shape here is built to
// satisfy that gate's schema exactly.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/envinfo"
)

// hashChunkSize is the streaming read size spec.md §4.8 calls for:
// 1 MiB chunks, so a manifest run never holds a whole snapshot file in
// memory at once.
const hashChunkSize = 1 << 20

var asOfDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FileEntry is one hashed file inside a snapshot.
type FileEntry struct {
	Path   string // forward-slash path relative to the snapshot directory
	SHA256 string // lowercase 64-hex digest
	Bytes  int64
}

// Document is a fully populated Raw Manifest, ready to marshal.
type Document struct {
	Source       string
	AsOfUTCDate  string
	FetchedAtUTC time.Time
	Command      string
	Files        []FileEntry
	Environment  map[string]string
}

// BuildOptions describes one make-manifest invocation.
type BuildOptions struct {
	RepoRoot    string
	Source      string
	SnapshotDir string // as given by the caller; resolved against RepoRoot
	AsOf        string // optional; inferred from SnapshotDir's basename if empty
	Command     []string
	FetchedAt   time.Time
}

// Build walks opts.SnapshotDir and assembles the Raw Manifest document.
// It does not write anything; call Write to persist the result.
func Build(opts BuildOptions) (*Document, error) {
	if strings.TrimSpace(opts.Source) == "" {
		return nil, core.ErrManifest("MANIFEST_SOURCE_REQUIRED", "source name cannot be empty")
	}

	resolved, err := ResolveSnapshotDir(opts.RepoRoot, opts.SnapshotDir)
	if err != nil {
		return nil, err
	}

	asOf := opts.AsOf
	if asOf == "" {
		inferred, ok := InferAsOf(resolved)
		if !ok {
			return nil, core.ErrManifest("MANIFEST_AS_OF_REQUIRED",
				fmt.Sprintf("snapshot directory %q basename is not YYYY-MM-DD; pass --as-of explicitly", filepath.Base(resolved)))
		}
		asOf = inferred
	} else if !asOfDatePattern.MatchString(asOf) {
		return nil, core.ErrManifest("MANIFEST_AS_OF_INVALID", fmt.Sprintf("as-of %q is not an ISO-8601 date (YYYY-MM-DD)", asOf))
	}

	files, err := WalkSnapshot(resolved)
	if err != nil {
		return nil, core.ErrManifest("MANIFEST_WALK_FAILED", err.Error())
	}

	fetchedAt := opts.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	return &Document{
		Source:       opts.Source,
		AsOfUTCDate:  asOf,
		FetchedAtUTC: fetchedAt.UTC(),
		Command:      QuoteCommand(opts.Command),
		Files:        files,
		Environment:  envinfo.Collect(),
	}, nil
}

// ResolveSnapshotDir resolves dir against repoRoot and checks that it
// lands inside repoRoot, per spec.md §4.8's "must resolve inside the
// repository root" requirement.
func ResolveSnapshotDir(repoRoot, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", core.ErrManifest("MANIFEST_SNAPSHOT_DIR_REQUIRED", "snapshot directory cannot be empty")
	}
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", core.ErrManifest("MANIFEST_ROOT_UNRESOLVABLE", err.Error())
	}
	candidate := dir
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate, err = filepath.Abs(candidate)
	if err != nil {
		return "", core.ErrManifest("MANIFEST_SNAPSHOT_DIR_UNRESOLVABLE", err.Error())
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", core.ErrManifest("MANIFEST_SNAPSHOT_DIR_OUTSIDE_ROOT",
			fmt.Sprintf("snapshot directory %q does not resolve inside repository root %q", dir, root))
	}

	info, err := os.Stat(candidate)
	if err != nil {
		return "", core.ErrManifest("MANIFEST_SNAPSHOT_DIR_UNREADABLE", err.Error())
	}
	if !info.IsDir() {
		return "", core.ErrManifest("MANIFEST_SNAPSHOT_DIR_NOT_A_DIRECTORY", candidate+" is not a directory")
	}
	return candidate, nil
}

// InferAsOf reports the as-of date implied by a snapshot directory's
// basename, when that basename is itself an ISO-8601 date.
func InferAsOf(snapshotDir string) (string, bool) {
	base := filepath.Base(snapshotDir)
	if asOfDatePattern.MatchString(base) {
		return base, true
	}
	return "", false
}

// WalkSnapshot recursively hashes every regular file under dir and
// returns the entries sorted by path, for a manifest that is
// deterministic regardless of directory-read order.
func WalkSnapshot(dir string) ([]FileEntry, error) {
	var entries []FileEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		sum, size, err := HashFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, FileEntry{
			Path:   filepath.ToSlash(rel),
			SHA256: sum,
			Bytes:  size,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// HashFile streams path through SHA-256 in 1 MiB chunks and returns
// the lowercase hex digest alongside the byte count read.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// QuoteCommand renders argv as a single POSIX shell-quoted string, the
// "shell-quoted invocation string" spec.md §3 asks the command field
// to carry. Each argument that contains anything other than safe
// shell word characters is wrapped in single quotes, with embedded
// single quotes escaped in the usual '"'"' fashion.
func QuoteCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		parts[i] = quoteShellWord(arg)
	}
	return strings.Join(parts, " ")
}

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_./:@%+=,^-]+$`)

func quoteShellWord(s string) string {
	if s != "" && safeShellWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// JSON renders the document per spec.md §4.8: keys sorted
// alphabetically at every level, 2-space indentation, trailing
// newline. Building the document as nested maps rather than marshaling
// a struct directly is what gives the alphabetical ordering — Go's
// encoder sorts map[string]any keys but preserves struct field order.
func (d *Document) JSON() ([]byte, error) {
	files := make([]map[string]any, len(d.Files))
	for i, f := range d.Files {
		files[i] = map[string]any{
			"path":   f.Path,
			"sha256": f.SHA256,
			"bytes":  f.Bytes,
		}
	}
	env := make(map[string]any, len(d.Environment))
	for k, v := range d.Environment {
		env[k] = v
	}

	doc := map[string]any{
		"source":         d.Source,
		"as_of_utc_date": d.AsOfUTCDate,
		"fetched_at_utc": d.FetchedAtUTC.Format(time.RFC3339),
		"command":        d.Command,
		"files":          files,
		"environment":    env,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}

// DefaultOutPath is data/raw_manifest/<source>_<as-of>.json under
// repoRoot, the location spec.md §4.8 writes to absent an explicit
// --out.
func DefaultOutPath(repoRoot, source, asOf string) string {
	return filepath.Join(repoRoot, "data", "raw_manifest", source+"_"+asOf+".json")
}

// Write renders doc and persists it atomically to outPath, or to
// DefaultOutPath(repoRoot, ...) when outPath is empty. It returns the
// path actually written.
func Write(repoRoot string, doc *Document, outPath string) (string, error) {
	path := outPath
	if path == "" {
		path = DefaultOutPath(repoRoot, doc.Source, doc.AsOfUTCDate)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}

	body, err := doc.JSON()
	if err != nil {
		return "", core.ErrManifest("MANIFEST_ENCODE_FAILED", err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", core.ErrManifest("MANIFEST_DIR_CREATE_FAILED", err.Error())
	}
	if err := renameio.WriteFile(path, body, 0o644); err != nil {
		return "", core.ErrManifest("MANIFEST_WRITE_FAILED", err.Error())
	}
	return path, nil
}
