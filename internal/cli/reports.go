package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/store"
)

var (
	reportsDB    string
	reportsLimit int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect archived evaluations",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived evaluations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rs, closeDB, err := openReports()
		if err != nil {
			return err
		}
		defer closeDB()

		reports, err := rs.List(cmd.Context(), reportsLimit)
		if err != nil {
			return err
		}
		printReports(cmd.OutOrStdout(), reports)
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <session_id>",
	Short: "Print one archived evaluation as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, closeDB, err := openReports()
		if err != nil {
			return err
		}
		defer closeDB()

		r, err := rs.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	reportsCmd.PersistentFlags().StringVar(&reportsDB, "db", "", "Archive database path (overrides ARCHIVE_DB_PATH)")
	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 20, "Maximum reports to show (0 for all)")

	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
}

func openReports() (*store.ReportStore, func(), error) {
	path := reportsDB
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.ArchiveDBPath
	}
	if path == "" {
		return nil, nil, fmt.Errorf("no archive configured: set ARCHIVE_DB_PATH or pass --db")
	}

	db, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return store.NewReportStore(db), func() { db.Close() }, nil
}

func printReports(w io.Writer, reports []*models.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No archived evaluations.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTUDENT\tPROJECT\tSCORE\tQ/A\tEVALUATED")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d/%d\t%s\n",
			r.SessionID,
			orDash(r.StudentName),
			orDash(r.ProjectTitle),
			r.Composite,
			r.Questions, r.Answers,
			time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339),
		)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
