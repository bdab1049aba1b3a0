package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/events"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Deal board maintenance",
}

var trackerPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Apply status changes made on the deal board",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "tracker")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pub, closePub, err := initPublisher(ctx)
		if err != nil {
			return err
		}
		defer closePub()

		changes, err := initBoard().Pull(ctx, st)
		for _, c := range changes {
			events.PublishLogged(ctx, pub, events.New(events.DealStatusChanged, c.DealID, map[string]any{"status": c.To}))
		}
		if err != nil {
			return eris.Wrap(err, "tracker pull")
		}
		out := cmd.OutOrStdout()
		if len(changes) == 0 {
			fmt.Fprintln(out, "No status changes.")
			return nil
		}
		for _, c := range changes {
			fmt.Fprintf(out, "%s: %s -> %s\n", c.DealID, c.From, c.To)
		}
		return nil
	},
}

func init() {
	trackerCmd.AddCommand(trackerPullCmd)
	rootCmd.AddCommand(trackerCmd)
}
