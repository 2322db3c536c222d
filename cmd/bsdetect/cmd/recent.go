package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRecentCmd(opts *globalOptions) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "recent",
		Short: "List the newest analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			rows, err := a.service.RecentAnalyses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no analyses recorded yet")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tLANG\tSCORE\tSOURCE\tTEXT")
			for _, r := range rows {
				source := r.SourceKind
				if r.SourceTitle != "" {
					source += ":" + r.SourceTitle
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Language, r.Score, source, preview(r.Text, 40))
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 10, "number of rows (1-100)")
	return c
}

func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
