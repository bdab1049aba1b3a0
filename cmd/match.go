package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/remote"
)

var matchCmd = &cobra.Command{
	Use:   "match <deal-id>",
	Short: "Rank lenders for a deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "match")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pub, closePub, err := initPublisher(ctx)
		if err != nil {
			return err
		}
		defer closePub()

		matches, res, err := initMatcher(st, pub, initClaude()).Run(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, remote.Describe(err))
		}

		out := cmd.OutOrStdout()
		if res.Summary != "" {
			fmt.Fprintln(out, res.Summary)
			fmt.Fprintln(out)
		}
		formatMatches(out, matches)

		if len(res.Screened) > 0 {
			names := make([]string, 0, len(res.Screened))
			for name := range res.Screened {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Screened out:")
			for _, name := range names {
				fmt.Fprintf(out, "  %s: %s\n", name, strings.Join(res.Screened[name], "; "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
