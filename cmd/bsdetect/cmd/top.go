package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTopCmd(opts *globalOptions) *cobra.Command {
	var (
		lang  string
		limit int
	)
	c := &cobra.Command{
		Use:   "top",
		Short: "Show the most frequent buzzwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			rows, err := a.service.TopBuzzwords(cmd.Context(), lang, limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no buzzwords recorded yet")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WORD\tLANG\tCOUNT")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Word, r.Language, r.Count)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&lang, "lang", "all", "language: no, en or all")
	c.Flags().IntVar(&limit, "limit", 20, "number of rows (1-100)")
	return c
}
