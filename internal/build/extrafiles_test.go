package build

import (
	"context"
	"sort"
	"strings"
	"testing"

	"pkgforge/internal/archive"
)

const extraFilesDescriptorTOML = `
[package]
name = "python-daemoniser"
version = "0.0.0"
release = "1"

[tool]
command = ["python", "setup.py"]

[stages.prepare]
[stages.build]
[stages.install]
[stages.clean]

[[extra_files]]
src = "docs/*.txt"
dest = "/usr/share/doc/python-daemoniser"
versioned = true

[[extra_files]]
src = "conf/*.conf"
dest = "/etc/daemoniser"
recursive = true
`

func TestExtraFilesStagedIntoArchive(t *testing.T) {
	env := newTestEnv(t)
	d := loadDescriptor(t, env.tmpDir, extraFilesDescriptorTOML)
	makeSourceArchive(t, env.config.SourceDir, "python-daemoniser-0.0.0.tar.gz",
		"python-daemoniser-0.0.0", map[string]string{
			"setup.py":          "setup",
			"docs/README.txt":   "read me",
			"docs/install.txt":  "install notes",
			"docs/image.png":    "not a txt",
			"conf/daemon.conf":  "top level",
			"conf/sub/sub.conf": "nested",
		})

	tool := &fakeTool{files: []string{"/usr/lib/python2.7/site-packages/daemoniser/__init__.py"}}
	result, err := NewRunner(d, tool, nil, env.config).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	a, err := archive.Read(result.ArchivePath)
	if err != nil {
		t.Fatalf("Reading built archive failed: %v", err)
	}

	got := append([]string{}, a.Manifest...)
	sort.Strings(got)
	want := []string{
		// Versioned doc files carry the package version suffix
		"/etc/daemoniser/daemon.conf",
		"/etc/daemoniser/sub.conf",
		"/usr/lib/python2.7/site-packages/daemoniser/__init__.py",
		"/usr/share/doc/python-daemoniser/README.txt.0.0.0",
		"/usr/share/doc/python-daemoniser/install.txt.0.0.0",
	}
	if len(got) != len(want) {
		t.Fatalf("Manifest = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Manifest[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if report := a.Verify(); !report.OK() {
		t.Errorf("Archive round trip failed: missing=%v unlisted=%v", report.MissingPayload, report.Unlisted)
	}
}

func TestExtrasOnlyPackage(t *testing.T) {
	env := newTestEnv(t)
	content := strings.Replace(extraFilesDescriptorTOML, "[stages.build]", "[stages.build]\nskip = true", 1)
	content = strings.Replace(content, "[stages.install]", "[stages.install]\nskip = true", 1)
	d := loadDescriptor(t, env.tmpDir, content)
	makeSourceArchive(t, env.config.SourceDir, "python-daemoniser-0.0.0.tar.gz",
		"python-daemoniser-0.0.0", map[string]string{
			"setup.py":        "setup",
			"docs/README.txt": "read me",
		})

	tool := &fakeTool{}
	result, err := NewRunner(d, tool, nil, env.config).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(tool.calls) != 0 {
		t.Errorf("Tool verbs must not run when skipped, got %v", tool.calls)
	}

	a, err := archive.Read(result.ArchivePath)
	if err != nil {
		t.Fatalf("Reading built archive failed: %v", err)
	}
	// The conf pattern matched nothing, which only warns; the doc file
	// carried the package
	if len(a.Manifest) != 1 || a.Manifest[0] != "/usr/share/doc/python-daemoniser/README.txt.0.0.0" {
		t.Errorf("Manifest = %v", a.Manifest)
	}
}
