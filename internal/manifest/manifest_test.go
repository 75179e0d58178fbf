package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func stageFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte("content of "+rel), 0644); err != nil {
		t.Fatalf("Failed to stage %s: %v", rel, err)
	}
}

func TestLoadNormalizesRecordFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgforge-test-manifest-")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	root := filepath.Join(tmpDir, "buildroot")

	// A record file mixing root-prefixed, bare and duplicate entries, the
	// way different install tools write them
	record := root + `/usr/lib/python2.7/site-packages/daemoniser/__init__.py
/usr/lib/python2.7/site-packages/daemoniser/daemon.py

usr/share/doc/python-daemoniser/README
/usr/lib/python2.7/site-packages/daemoniser/daemon.py
`
	recordPath := filepath.Join(tmpDir, "INSTALLED_FILES")
	if err := os.WriteFile(recordPath, []byte(record), 0644); err != nil {
		t.Fatalf("Failed to write record file: %v", err)
	}

	m, err := Load(recordPath, root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{
		"/usr/lib/python2.7/site-packages/daemoniser/__init__.py",
		"/usr/lib/python2.7/site-packages/daemoniser/daemon.py",
		"/usr/share/doc/python-daemoniser/README",
	}
	if len(m) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %v", len(want), len(m), m)
	}
	for i, p := range want {
		if m[i] != p {
			t.Errorf("Entry %d = %q, want %q", i, m[i], p)
		}
	}
}

func TestParseStripsRootOnlyOnPathBoundary(t *testing.T) {
	record := "/tmp/br/usr/lib/mod.py\n/tmp/brick/file.py\n"

	m, err := Parse(strings.NewReader(record), "/tmp/br")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []string{"/usr/lib/mod.py", "/tmp/brick/file.py"}
	if len(m) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %v", len(want), len(m), m)
	}
	for i, p := range want {
		if m[i] != p {
			t.Errorf("Entry %d = %q, want %q", i, m[i], p)
		}
	}

	// A trailing slash on the root changes nothing
	m, err = Parse(strings.NewReader(record), "/tmp/br/")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(m) != 2 || m[0] != "/usr/lib/mod.py" || m[1] != "/tmp/brick/file.py" {
		t.Errorf("Entries with trailing-slash root = %v", m)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgforge-test-manifest-")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	root := filepath.Join(tmpDir, "buildroot")
	files := []string{
		"usr/lib/python2.7/site-packages/daemoniser/__init__.py",
		"usr/lib/python2.7/site-packages/daemoniser/daemon.py",
		"usr/share/doc/python-daemoniser/README",
	}
	for _, f := range files {
		stageFile(t, root, f)
	}

	ctx := context.Background()

	// Collect enumerates exactly the staged tree
	m, err := Collect(ctx, root)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(m) != len(files) {
		t.Fatalf("Collect returned %d entries, want %d", len(m), len(files))
	}

	// A manifest collected from the tree verifies cleanly against it
	result, err := m.Verify(ctx, root)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.OK() {
		t.Fatalf("Round trip should verify, got missing=%v untracked=%v", result.Missing, result.Untracked)
	}

	// Removing a staged file leaves a dangling manifest entry
	if err := os.Remove(filepath.Join(root, files[0])); err != nil {
		t.Fatalf("Failed to remove staged file: %v", err)
	}
	result, err = m.Verify(ctx, root)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "/"+files[0] {
		t.Errorf("Expected one missing entry %q, got %v", "/"+files[0], result.Missing)
	}

	// A staged file the manifest does not list is untracked
	stageFile(t, root, files[0])
	stageFile(t, root, "usr/share/doc/python-daemoniser/CHANGELOG")
	result, err = m.Verify(ctx, root)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(result.Untracked) != 1 || result.Untracked[0] != "/usr/share/doc/python-daemoniser/CHANGELOG" {
		t.Errorf("Expected one untracked entry, got %v", result.Untracked)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgforge-test-manifest-")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := Manifest{"/usr/bin/tool", "/usr/share/doc/tool/README"}
	m = m.Append("/usr/bin/tool") // duplicate, ignored
	m = m.Append("/etc/tool.conf")
	if len(m) != 3 {
		t.Fatalf("Append produced %d entries, want 3", len(m))
	}

	path := filepath.Join(tmpDir, "manifest")
	if err := m.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != len(m) {
		t.Fatalf("Round trip lost entries: %v", loaded)
	}
	for i := range m {
		if loaded[i] != m[i] {
			t.Errorf("Entry %d = %q, want %q", i, loaded[i], m[i])
		}
	}
}
