package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"serve", "migrate", "intake", "reconcile", "deals", "lenders", "match", "tracker"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "dealdesk", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestIntakeCommand_Flags(t *testing.T) {
	for _, name := range []string{"application", "statement", "folder"} {
		assert.NotNil(t, intakeCmd.Flags().Lookup(name), "intake should have --%s flag", name)
	}
}

func TestReconcileCommand_Flags(t *testing.T) {
	for _, name := range []string{"file", "months"} {
		assert.NotNil(t, reconcileCmd.Flags().Lookup(name), "reconcile should have --%s flag", name)
	}
}

func TestDealsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range dealsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "status"} {
		assert.True(t, names[name], "deals should have subcommand %q", name)
	}

	flag := dealsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestLendersCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range lendersCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["import"])
	assert.True(t, names["list"])
}

func TestArgs(t *testing.T) {
	assert.Error(t, matchCmd.Args(matchCmd, nil))
	assert.NoError(t, matchCmd.Args(matchCmd, []string{"deal-1"}))
	assert.Error(t, dealsStatusCmd.Args(dealsStatusCmd, []string{"deal-1"}))
	assert.NoError(t, dealsStatusCmd.Args(dealsStatusCmd, []string{"deal-1", "funded"}))
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "store", "database-url"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "root should have --%s flag", name)
	}
}

func TestLoadOptions_OnlyChangedFlags(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "desk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\nstore:\n  driver: postgres\n"), 0o644))

	flags := rootCmd.PersistentFlags()
	t.Cleanup(func() {
		for _, name := range []string{"config", "log-level", "store", "database-url"} {
			fl := flags.Lookup(name)
			_ = fl.Value.Set(fl.DefValue)
			fl.Changed = false
		}
	})
	require.NoError(t, flags.Set("config", path))
	require.NoError(t, flags.Set("store", "sqlite"))
	require.NoError(t, flags.Set("database-url", filepath.Join(dir, "desk.db")))

	c, err := config.Load(loadOptions(rootCmd)...)
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.Equal(t, filepath.Join(dir, "desk.db"), c.Store.DatabaseURL)
}
