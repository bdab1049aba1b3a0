package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/internal/tracker"
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Inspect and update deals",
}

// -- deals list --

var dealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deals, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		loanType, _ := cmd.Flags().GetString("loan-type")
		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.DealFilter{
			Status:   model.DealStatus(status),
			LoanType: model.LoanType(loanType),
			Query:    query,
			Limit:    limit,
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return eris.Errorf("unknown status %q", status)
		}
		if filter.LoanType != "" && !filter.LoanType.Valid() {
			return eris.Errorf("unknown loan type %q", loanType)
		}

		st, err := openStore(ctx, "deals")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deals, err := st.ListDeals(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "deals list")
		}
		if len(deals) == 0 {
			fmt.Fprintln(os.Stderr, "No deals found.")
			return nil
		}
		formatDealsList(cmd.OutOrStdout(), deals)
		return nil
	},
}

// -- deals show --

var dealsShowCmd = &cobra.Command{
	Use:   "show <deal-id>",
	Short: "Show a deal with owners, statements and positions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "deals")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		agg, err := st.GetDealAggregate(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "deals show")
		}
		return writeJSON(cmd.OutOrStdout(), agg)
	},
}

// -- deals status --

var dealsStatusCmd = &cobra.Command{
	Use:   "status <deal-id> <status>",
	Short: "Move a deal to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.DealStatus(args[1])
		if !status.Valid() {
			return eris.Errorf("unknown status %q", args[1])
		}

		st, err := openStore(ctx, "deals")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pub, closePub, err := initPublisher(ctx)
		if err != nil {
			return err
		}
		defer closePub()

		if err := st.UpdateDealStatus(ctx, args[0], status); err != nil {
			return eris.Wrap(err, "deals status")
		}
		d, err := st.GetDeal(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "deals status")
		}
		events.PublishLogged(ctx, pub, events.New(events.DealStatusChanged, d.ID, map[string]any{"status": d.Status}))
		tracker.Notify(ctx, initBoard(), st, d)

		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", d.ID, d.Status)
		return nil
	},
}

func init() {
	dealsListCmd.Flags().String("status", "", "filter by status (new, documents_received, underwriting, ...)")
	dealsListCmd.Flags().String("loan-type", "", "filter by loan type (mca, sba, term_loan, ...)")
	dealsListCmd.Flags().String("query", "", "match business name or DBA")
	dealsListCmd.Flags().Int("limit", 50, "max number of deals to display")

	dealsCmd.AddCommand(dealsListCmd)
	dealsCmd.AddCommand(dealsShowCmd)
	dealsCmd.AddCommand(dealsStatusCmd)
	rootCmd.AddCommand(dealsCmd)
}
