package main

import (
	"encoding/json"
	"mime"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/remote"
)

var (
	intakeApplications []string
	intakeStatements   []string
	intakeFolder       string
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Create a deal from an application and bank statements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		files, err := loadFiles(intakeApplications, intake.CategoryApplication)
		if err != nil {
			return err
		}
		stmts, err := loadFiles(intakeStatements, intake.CategoryStatements)
		if err != nil {
			return err
		}
		files = append(files, stmts...)

		st, err := openStore(ctx, "intake")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pub, closePub, err := initPublisher(ctx)
		if err != nil {
			return err
		}
		defer closePub()

		svc, err := initIntake(ctx, st, pub, initBoard(), initClaude())
		if err != nil {
			return err
		}

		sub, err := svc.Submit(ctx, intake.Request{Files: files, FolderRef: intakeFolder})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if sub != nil {
			if encErr := enc.Encode(sub); encErr != nil {
				return eris.Wrap(encErr, "write submission")
			}
		}
		if err != nil {
			zap.L().Error("intake failed", zap.String("error", remote.Describe(err)))
			return eris.Wrap(err, "intake")
		}
		return nil
	},
}

// loadFiles reads each path into an intake file of the given category.
func loadFiles(paths []string, cat intake.Category) ([]intake.File, error) {
	files := make([]intake.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", p)
		}
		files = append(files, intake.File{
			Name:     filepath.Base(p),
			MimeType: mime.TypeByExtension(filepath.Ext(p)),
			Category: cat,
			Data:     data,
		})
	}
	return files, nil
}

func init() {
	intakeCmd.Flags().StringSliceVar(&intakeApplications, "application", nil, "loan application file (repeatable)")
	intakeCmd.Flags().StringSliceVar(&intakeStatements, "statement", nil, "bank statement file (repeatable)")
	intakeCmd.Flags().StringVar(&intakeFolder, "folder", "", "existing document folder to reuse")
	rootCmd.AddCommand(intakeCmd)
}
