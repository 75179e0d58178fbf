package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pkgforge/internal/history"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	var limit int
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), dbPath, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of builds to show")
	cmd.Flags().StringVar(&dbPath, "db", "", "History database path (defaults under the user cache dir)")

	return cmd
}

func runHistory(ctx context.Context, dbPath string, limit int) error {
	var err error
	if dbPath == "" {
		dbPath, err = history.DefaultPath()
		if err != nil {
			return err
		}
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		logrus.Info("No builds recorded yet")
		return nil
	}

	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		identity := fmt.Sprintf("%s-%s-%s.%s", e.Name, e.Version, e.Release, e.Arch)
		rows = append(rows, table.Row{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			identity,
			e.Status,
			e.Files,
			e.Duration.Round(time.Millisecond).String(),
			e.Archive,
		})
	}
	fmt.Println(renderTable(
		table.Row{"Built", "Package", "Status", "Files", "Duration", "Archive"},
		rows, 4, 5))

	return nil
}
