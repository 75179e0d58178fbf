package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pkgforge/internal/archive"
	perrors "pkgforge/internal/errors"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var listFiles bool

	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check a package archive against its embedded manifest",
		Long: `Reads a package archive, prints its embedded metadata and checks that
manifest and payload agree: every manifest entry is present in the
payload and the payload carries nothing unlisted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], listFiles)
		},
	}

	cmd.Flags().BoolVar(&listFiles, "files", false, "List the payload files")

	return cmd
}

func runVerify(path string, listFiles bool) error {
	a, err := archive.Read(path)
	if err != nil {
		return err
	}

	m := a.Metadata
	rows := []table.Row{
		{"Identity", m.Identity()},
		{"Summary", m.Summary},
		{"License", m.License},
		{"Vendor", m.Vendor},
		{"Build ID", m.BuildID},
		{"Built at", m.BuiltAt.Format(time.RFC3339)},
		{"Compression", string(a.Compression)},
		{"Manifest entries", len(a.Manifest)},
		{"Payload files", len(a.Payload)},
	}
	if len(m.Requires) > 0 {
		rows = append(rows, table.Row{"Requires", strings.Join(m.Requires, ", ")})
	}
	fmt.Println(renderTable(table.Row{"Field", "Value"}, rows))

	if listFiles {
		fileRows := make([]table.Row, 0, len(a.Payload))
		for _, entry := range a.Payload {
			fileRows = append(fileRows, table.Row{
				entry.Path,
				entry.Size,
				fmt.Sprintf("%04o", entry.Mode),
				fmt.Sprintf("%s:%s", entry.Uname, entry.Gname),
			})
		}
		fmt.Println(renderTable(table.Row{"Path", "Size", "Mode", "Owner"}, fileRows, 2))
	}

	if len(a.Manifest) == 0 {
		return perrors.Newf(perrors.ErrArchive, "", "%s carries an empty manifest", filepath.Base(path))
	}

	report := a.Verify()
	for _, missing := range report.MissingPayload {
		logrus.Errorf("Listed in manifest but missing from payload: %s", missing)
	}
	for _, unlisted := range report.Unlisted {
		logrus.Errorf("In payload but not in manifest: %s", unlisted)
	}
	if !report.OK() {
		return perrors.Newf(perrors.ErrArchive, "",
			"%s does not match its manifest", filepath.Base(path))
	}

	logrus.Infof("%d files, manifest and payload agree", len(a.Payload))
	return nil
}
