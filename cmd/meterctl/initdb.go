package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meterease/internal/app"
	"meterease/internal/repository/sqlite"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the meter and auth databases",
	Long:  `Creates both SQLite databases and their tables. Existing data is kept.`,
	Args:  cobra.NoArgs,
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets := []struct {
		path   string
		schema string
	}{
		{cfg.DatabasePath, sqlite.MeterSchema},
		{cfg.AuthDatabasePath, sqlite.AuthSchema},
	}

	out := cmd.OutOrStdout()
	for _, t := range targets {
		db, err := app.OpenDB(t.path, t.schema)
		if err != nil {
			return fmt.Errorf("initializing %s: %w", t.path, err)
		}
		if err := db.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", t.path, err)
		}
		fmt.Fprintf(out, "Initialized %s\n", t.path)
	}
	return nil
}
