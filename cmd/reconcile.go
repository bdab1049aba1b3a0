package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/reconcile"
)

var (
	reconcileFile   string
	reconcileMonths []string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge position candidates and infer payment frequency",
	Long:  "Reads a JSON array of position candidates (lender_name, amount, detected_dates, optional frequency and statement_month) and prints the reconciled positions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var in io.Reader = os.Stdin
		if reconcileFile != "" && reconcileFile != "-" {
			f, err := os.Open(reconcileFile)
			if err != nil {
				return eris.Wrapf(err, "open %s", reconcileFile)
			}
			defer f.Close() //nolint:errcheck
			in = f
		}
		return runReconcile(in, cmd.OutOrStdout(), reconcileMonths)
	},
}

func runReconcile(in io.Reader, out io.Writer, months []string) error {
	var candidates []model.PositionCandidate
	if err := json.NewDecoder(in).Decode(&candidates); err != nil {
		return eris.Wrap(err, "decode candidates")
	}

	positions := reconcile.Reconcile(candidates)
	if len(months) > 0 {
		for i := range positions {
			if idx := reconcile.AssignStatement(positions[i], months); idx >= 0 {
				positions[i].StatementMonth = months[idx]
			}
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(positions)
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileFile, "file", "", "candidates JSON file (default stdin)")
	reconcileCmd.Flags().StringSliceVar(&reconcileMonths, "months", nil, "statement months (YYYY-MM) to assign positions to")
	rootCmd.AddCommand(reconcileCmd)
}
