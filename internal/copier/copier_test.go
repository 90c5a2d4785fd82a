package copier

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docmerge/internal/doctree"
	"github.com/google/go-cmp/cmp"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// snapshot maps slash-separated relative paths to file contents; directories
// map to "<dir>".
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out[rel] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestCopy_PreservesRelativeStructure(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{
		"A/docs/index.md":            "# A",
		"A/docs/guides/setup.md":     "setup",
		"A/docs/guides/img/logo.png": "\x89PNG\x00\x01",
		"A/docs/docs/nested.md":      "nested payload",
	})
	if err := os.MkdirAll(filepath.Join(src, "A/docs/empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	c := New(dest, nil)
	res, err := c.Copy(context.Background(), doctree.Match{
		Chain: doctree.Chain{"A"},
		Path:  filepath.Join(src, "A", "docs"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"A":                     "<dir>",
		"A/index.md":            "# A",
		"A/guides":              "<dir>",
		"A/guides/setup.md":     "setup",
		"A/guides/img":          "<dir>",
		"A/guides/img/logo.png": "\x89PNG\x00\x01",
		"A/docs":                "<dir>",
		"A/docs/nested.md":      "nested payload",
		"A/empty":               "<dir>",
	}
	if diff := cmp.Diff(want, snapshot(t, dest)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}

	if res.Target != filepath.Join(dest, "A") {
		t.Errorf("expected target %q, got %q", filepath.Join(dest, "A"), res.Target)
	}
	if res.Files != 4 || res.Dirs != 4 {
		t.Errorf("expected 4 files and 4 dirs, got %d files and %d dirs", res.Files, res.Dirs)
	}
	if res.Bytes != int64(len("# A")+len("setup")+len("\x89PNG\x00\x01")+len("nested payload")) {
		t.Errorf("unexpected byte count %d", res.Bytes)
	}
	if res.Overwrites != 0 {
		t.Errorf("expected no overwrites, got %d", res.Overwrites)
	}
}

func TestCopy_EmptyChainTargetsDestRoot(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "new", "out")
	writeFiles(t, src, map[string]string{"docs/readme.md": "root docs"})

	_, err := New(dest, nil).Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"readme.md": "root docs"}, snapshot(t, dest)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}
}

func TestCopy_LastWriterWins(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{
		"one/docs/shared.md": "from one, and longer",
		"two/docs/shared.md": "from two",
	})
	// An existing file from an earlier run is overwritten without counting
	// as a collision.
	writeFiles(t, dest, map[string]string{"shared.md": "stale"})

	c := New(dest, nil)
	first, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "one", "docs")})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "two", "docs")})
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "shared.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "from two" {
		t.Errorf("expected later copy to win with truncation, got %q", got)
	}
	if first.Overwrites != 0 || second.Overwrites != 1 {
		t.Errorf("expected overwrites 0 then 1, got %d then %d", first.Overwrites, second.Overwrites)
	}
}

func TestCopy_Symlink(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{"docs/real.md": "real"})
	if err := os.Symlink("real.md", filepath.Join(src, "docs", "alias.md")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := New(dest, nil).Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	target, err := os.Readlink(filepath.Join(dest, "alias.md"))
	if err != nil {
		t.Fatalf("expected symlink at destination: %v", err)
	}
	if target != "real.md" {
		t.Errorf("expected link target %q, got %q", "real.md", target)
	}
	if res.Symlinks != 1 || res.Files != 1 {
		t.Errorf("expected 1 file and 1 symlink, got %+v", res)
	}
}

func TestCopy_FileBlockingDirectoryIsCopyError(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{"docs/guides/a.md": "a"})
	writeFiles(t, dest, map[string]string{"guides": "i am a file"})

	_, err := New(dest, nil).Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")})
	var ce *CopyError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CopyError, got %T (%v)", err, err)
	}
	if ce.Op != "mkdir" || ce.Path != filepath.Join(dest, "guides") {
		t.Errorf("expected mkdir failure on %q, got %s %q", filepath.Join(dest, "guides"), ce.Op, ce.Path)
	}
}

func TestCopy_UnreadableSourceFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{"docs/a.md": "a", "docs/secret.md": "s"})
	secret := filepath.Join(src, "docs", "secret.md")
	if err := os.Chmod(secret, 0o000); err != nil {
		t.Fatal(err)
	}

	_, err := New(dest, nil).Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")})
	var ce *CopyError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CopyError, got %v", err)
	}
	if ce.Op != "open" || ce.Path != secret {
		t.Errorf("expected open failure on %q, got %s %q", secret, ce.Op, ce.Path)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("expected fs.ErrPermission, got %v", err)
	}
	// a.md sorts before secret.md and stays copied.
	if _, err := os.Stat(filepath.Join(dest, "a.md")); err != nil {
		t.Errorf("expected earlier file to remain: %v", err)
	}
}

func TestCopy_CancelledContext(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{"docs/a.md": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(dest, nil).Copy(ctx, doctree.Match{Path: filepath.Join(src, "docs")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCopy_SkipsDestinationInsideMatch(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"docs/a.md": "a"})
	dest := filepath.Join(src, "docs", "out")

	c := New(dest, nil)
	for range 2 {
		if _, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if diff := cmp.Diff(map[string]string{"a.md": "a"}, snapshot(t, dest)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}
}

func TestCopy_DirectoryReplacesEarlierFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{
		"one/docs/guide":      "a file named guide",
		"two/docs/guide/x.md": "x",
	})

	c := New(dest, nil)
	if _, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "one", "docs")}); err != nil {
		t.Fatal(err)
	}
	res, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "two", "docs")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"guide": "<dir>", "guide/x.md": "x"}
	if diff := cmp.Diff(want, snapshot(t, dest)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}
	if res.Overwrites != 1 {
		t.Errorf("expected 1 overwrite, got %d", res.Overwrites)
	}
}

func TestCopy_TargetReplacesEarlierFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{
		"docs/guide":          "a file named guide",
		"guide/sub/docs/x.md": "x",
	})

	c := New(dest, nil)
	if _, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")}); err != nil {
		t.Fatal(err)
	}
	// The target dest/guide/sub needs dest/guide to be a directory.
	res, err := c.Copy(context.Background(), doctree.Match{
		Chain: doctree.Chain{"guide", "sub"},
		Path:  filepath.Join(src, "guide", "sub", "docs"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"guide": "<dir>", "guide/sub": "<dir>", "guide/sub/x.md": "x"}
	if diff := cmp.Diff(want, snapshot(t, dest)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}
	if res.Overwrites != 1 {
		t.Errorf("expected 1 overwrite, got %d", res.Overwrites)
	}
}

func TestCopy_FileReplacesEarlierDirectory(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{
		"one/docs/guide/x.md": "x",
		"two/docs/guide":      "a file named guide",
	})

	c := New(dest, nil)
	if _, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "one", "docs")}); err != nil {
		t.Fatal(err)
	}
	res, err := c.Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "two", "docs")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"guide": "a file named guide"}, snapshot(t, dest)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}
	if res.Overwrites != 1 {
		t.Errorf("expected 1 overwrite, got %d", res.Overwrites)
	}
}

func TestCopy_DirectoryFromEarlierRunBlocksFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, src, map[string]string{"docs/guide": "a file named guide"})
	writeFiles(t, dest, map[string]string{"guide/keep.md": "keep"})

	_, err := New(dest, nil).Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")})
	var ce *CopyError
	if !errors.As(err, &ce) || ce.Path != filepath.Join(dest, "guide") {
		t.Fatalf("expected CopyError on %q, got %v", filepath.Join(dest, "guide"), err)
	}
	if _, err := os.Stat(filepath.Join(dest, "guide", "keep.md")); err != nil {
		t.Errorf("directory from an earlier run must be left alone: %v", err)
	}
}

func TestCopy_DeepTree(t *testing.T) {
	const depth = 1000
	src := t.TempDir()
	dest := t.TempDir()
	rel := strings.Repeat("d/", depth) + "f.md"
	writeFiles(t, src, map[string]string{"docs/" + rel: "deep"})

	res, err := New(dest, nil).Copy(context.Background(), doctree.Match{Path: filepath.Join(src, "docs")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dirs != depth || res.Files != 1 || res.Bytes != 4 {
		t.Errorf("expected %d dirs, 1 file, 4 bytes, got %+v", depth, res)
	}
	got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("deep file missing: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("expected %q, got %q", "deep", got)
	}
}
