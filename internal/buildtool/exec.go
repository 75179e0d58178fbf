package buildtool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	perrors "pkgforge/internal/errors"
)

// Executor runs a prepared command. Tests swap it out to avoid spawning
// processes.
type Executor func(cmd *exec.Cmd) error

// ExecTool invokes a build tool as a subprocess: the configured command
// prefix plus the lifecycle verb and its arguments, run from the source
// tree. The tool's exit status and output propagate verbatim; there are no
// retries.
type ExecTool struct {
	command []string
	exec    Executor
}

// Option configures an ExecTool.
type Option func(*ExecTool)

// WithExecutor replaces the process executor.
func WithExecutor(e Executor) Option {
	return func(t *ExecTool) {
		t.exec = e
	}
}

// NewExecTool creates a tool from its command prefix, e.g.
// ["python", "setup.py"].
func NewExecTool(command []string, opts ...Option) *ExecTool {
	t := &ExecTool{
		command: command,
		exec:    runCommand,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ExecTool) Build(ctx context.Context, req BuildRequest) error {
	argv := append(t.argv("build"), req.Args...)
	if err := t.run(ctx, req.SourceTree, argv); err != nil {
		return perrors.New(perrors.ErrBuildTool, "build", err)
	}
	return nil
}

func (t *ExecTool) Install(ctx context.Context, req InstallRequest) error {
	argv := append(t.argv("install"),
		fmt.Sprintf("-O%d", req.Optimize),
		"--root="+req.DestRoot,
		"--record="+req.RecordPath,
	)
	argv = append(argv, req.Args...)
	if err := t.run(ctx, req.SourceTree, argv); err != nil {
		return perrors.New(perrors.ErrInstallTool, "install", err)
	}
	return nil
}

func (t *ExecTool) argv(verb string) []string {
	argv := make([]string, 0, len(t.command)+4)
	argv = append(argv, t.command...)
	return append(argv, verb)
}

func (t *ExecTool) run(ctx context.Context, dir string, argv []string) error {
	if len(t.command) == 0 {
		return fmt.Errorf("no tool command configured")
	}
	logrus.Infof("Running %s", strings.Join(argv, " "))
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return t.exec(cmd)
}

func runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return fmt.Errorf("%s: %w\n%s", cmd.Args[0], err, strings.TrimSpace(string(output)))
		}
		return fmt.Errorf("%s: %w", cmd.Args[0], err)
	}
	if len(output) > 0 {
		logrus.Debugf("%s output:\n%s", cmd.Args[0], strings.TrimSpace(string(output)))
	}
	return nil
}
