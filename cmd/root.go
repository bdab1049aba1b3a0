package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/config"
)

var cfg *config.Config

var (
	configFile  string
	logLevel    string
	storeDriver string
	databaseURL string
)

var rootCmd = &cobra.Command{
	Use:   "dealdesk",
	Short: "Deal intake and lender matching for a commercial lending brokerage",
	Long:  "Parses loan applications and bank statements into deals, reconciles existing funding positions, matches deals to lenders and serves the deal desk API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(loadOptions(cmd)...)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("store", cfg.Store.Driver),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	f.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&storeDriver, "store", "", "store driver: postgres or sqlite")
	f.StringVar(&databaseURL, "database-url", "", "postgres URL or sqlite file path")
}

// loadOptions maps the persistent flags the user actually set onto config
// keys, so unset flags never mask the file or environment.
func loadOptions(cmd *cobra.Command) []config.LoadOption {
	var opts []config.LoadOption
	if configFile != "" {
		opts = append(opts, config.WithFile(configFile))
	}
	for flag, key := range map[string]string{
		"log-level":    "log.level",
		"store":        "store.driver",
		"database-url": "store.database_url",
	} {
		if fl := cmd.Root().PersistentFlags().Lookup(flag); fl != nil && fl.Changed {
			opts = append(opts, config.WithOverride(key, fl.Value.String()))
		}
	}
	return opts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
