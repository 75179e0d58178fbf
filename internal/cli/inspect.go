package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pkgforge/internal/depend"
	"pkgforge/internal/descriptor"
	perrors "pkgforge/internal/errors"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "inspect <descriptor>",
		Short: "Show what a descriptor declares",
		Long: `Loads and validates a descriptor, then prints its metadata, dependency
constraints and extra files. With --env, each constraint is checked
against the given environment file and unmet ones make the command fail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0], envPath)
		},
	}

	cmd.Flags().StringVar(&envPath, "env", "", "Environment file to check constraints against")

	return cmd
}

func runInspect(descriptorPath, envPath string) error {
	d, err := descriptor.Load(descriptorPath)
	if err != nil {
		return err
	}

	var env depend.Environment
	if envPath != "" {
		if env, err = depend.LoadEnvironment(envPath); err != nil {
			return err
		}
	}

	fmt.Println(renderTable(table.Row{"Field", "Value"}, metadataRows(d)))

	kinds := []struct {
		kind string
		reqs []depend.Requirement
	}{
		{"build", d.BuildRequirements()},
		{"runtime", d.RuntimeRequirements()},
	}

	var reqRows []table.Row
	unmet := 0
	for _, k := range kinds {
		for _, req := range k.reqs {
			row := table.Row{k.kind, req.String()}
			if env != nil {
				provided, status := requirementStatus(env, req)
				if status != "ok" {
					unmet++
				}
				row = append(row, provided, status)
			}
			reqRows = append(reqRows, row)
		}
	}
	if len(reqRows) > 0 {
		header := table.Row{"Kind", "Requires"}
		if env != nil {
			header = append(header, "Provided", "Status")
		}
		fmt.Println(renderTable(header, reqRows))
	}

	if len(d.ExtraFiles) > 0 {
		extraRows := make([]table.Row, 0, len(d.ExtraFiles))
		for _, ef := range d.ExtraFiles {
			extraRows = append(extraRows, table.Row{ef.Src, ef.Dest, ef.Versioned, ef.Recursive})
		}
		fmt.Println(renderTable(table.Row{"Extra file", "Destination", "Versioned", "Recursive"}, extraRows))
	}

	if unmet > 0 {
		return perrors.Newf(perrors.ErrDependency, "", "%d unmet requirements", unmet)
	}
	return nil
}

func requirementStatus(env depend.Environment, req depend.Requirement) (provided, status string) {
	unmet := depend.Check(env, []depend.Requirement{req})
	if len(unmet) == 0 {
		if v := env[req.Name]; v != "" {
			return v, "ok"
		}
		return "(unversioned)", "ok"
	}

	u := unmet[0]
	switch {
	case u.Missing:
		return "-", "missing"
	case u.Provided == "":
		return "(unversioned)", "unmet"
	default:
		return u.Provided, "unmet"
	}
}

func metadataRows(d *descriptor.Descriptor) []table.Row {
	rows := []table.Row{
		{"Name", d.Package.Name},
		{"Version", d.Package.Version},
		{"Release", d.Package.Release},
		{"Arch", d.Package.Arch},
		{"Summary", d.Package.Summary},
		{"License", d.Package.License},
		{"Group", d.Package.Group},
		{"Vendor", d.Package.Vendor},
		{"Homepage", d.Package.Homepage},
		{"Source archive", d.SourceArchive()},
		{"Source dir", d.ExpectedSourceDir()},
		{"Build tool", strings.Join(d.Tool.Command, " ")},
		{"Record file", d.ManifestName()},
		{"Identity", d.Identity()},
	}
	if skipped := skippedStages(d); len(skipped) > 0 {
		rows = append(rows, table.Row{"Skipped stages", strings.Join(skipped, ", ")})
	}
	return rows
}

func skippedStages(d *descriptor.Descriptor) []string {
	var skipped []string
	if d.Stages.Build.Skip {
		skipped = append(skipped, "build")
	}
	if d.Stages.Install.Skip {
		skipped = append(skipped, "install")
	}
	if d.Stages.Clean.Skip {
		skipped = append(skipped, "clean")
	}
	return skipped
}
