package buildtool

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	perrors "pkgforge/internal/errors"
)

func TestBuildArgv(t *testing.T) {
	var got []string
	var dir string
	tool := NewExecTool([]string{"python", "setup.py"}, WithExecutor(func(cmd *exec.Cmd) error {
		got = cmd.Args
		dir = cmd.Dir
		return nil
	}))

	err := tool.Build(context.Background(), BuildRequest{
		SourceTree: "/work/python-daemoniser-0.0.0",
		Args:       []string{"--force"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{"python", "setup.py", "build", "--force"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build argv = %v, want %v", got, want)
	}
	if dir != "/work/python-daemoniser-0.0.0" {
		t.Errorf("Build dir = %q", dir)
	}
}

func TestInstallArgv(t *testing.T) {
	var got []string
	tool := NewExecTool([]string{"python", "setup.py"}, WithExecutor(func(cmd *exec.Cmd) error {
		got = cmd.Args
		return nil
	}))

	err := tool.Install(context.Background(), InstallRequest{
		SourceTree: "/work/python-daemoniser-0.0.0",
		DestRoot:   "/tmp/buildroot",
		RecordPath: "/work/python-daemoniser-0.0.0/INSTALLED_FILES",
		Optimize:   1,
	})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	want := []string{
		"python", "setup.py", "install",
		"-O1",
		"--root=/tmp/buildroot",
		"--record=/work/python-daemoniser-0.0.0/INSTALLED_FILES",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Install argv = %v, want %v", got, want)
	}
}

func TestToolFailuresAreTyped(t *testing.T) {
	boom := errors.New("exit status 1")
	tool := NewExecTool([]string{"make"}, WithExecutor(func(cmd *exec.Cmd) error {
		return boom
	}))

	err := tool.Build(context.Background(), BuildRequest{SourceTree: "."})
	if !perrors.IsType(err, perrors.ErrBuildTool) {
		t.Errorf("Build failure should be a build tool error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Build failure should wrap the executor error")
	}

	err = tool.Install(context.Background(), InstallRequest{SourceTree: "."})
	if !perrors.IsType(err, perrors.ErrInstallTool) {
		t.Errorf("Install failure should be an install tool error, got %v", err)
	}
}

func TestRunCommandPropagatesToolOutput(t *testing.T) {
	// The verb lands in $0; the script itself fails loudly
	tool := NewExecTool([]string{"/bin/sh", "-c", "echo compilation error >&2; exit 3"})

	err := tool.Build(context.Background(), BuildRequest{SourceTree: t.TempDir()})
	if err == nil {
		t.Fatalf("Expected the tool failure to propagate")
	}
	if !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("Error should carry the exit status: %v", err)
	}
	if !strings.Contains(err.Error(), "compilation error") {
		t.Errorf("Error should carry the tool output: %v", err)
	}
}
