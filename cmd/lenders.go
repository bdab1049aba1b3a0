package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lendersCmd = &cobra.Command{
	Use:   "lenders",
	Short: "Maintain the lender directory",
}

var lendersImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import lenders from a YAML directory, XLSX or CSV spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ls, skipped, err := readLenders(ctx, args[0])
		if err != nil {
			return err
		}
		for _, s := range skipped {
			fmt.Fprintln(os.Stderr, "skipped", s)
		}

		st, err := openStore(ctx, "lenders")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertLenders(ctx, ls)
		if err != nil {
			return eris.Wrap(err, "lenders import")
		}
		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("lenders", n),
			zap.Int("skipped", len(skipped)),
		)
		return nil
	},
}

var lendersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lenders",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "lenders")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ls, err := st.ListLenders(ctx)
		if err != nil {
			return eris.Wrap(err, "lenders list")
		}
		if len(ls) == 0 {
			fmt.Fprintln(os.Stderr, "No lenders found.")
			return nil
		}
		formatLendersList(cmd.OutOrStdout(), ls)
		return nil
	},
}

func init() {
	lendersCmd.AddCommand(lendersImportCmd)
	lendersCmd.AddCommand(lendersListCmd)
	rootCmd.AddCommand(lendersCmd)
}
