package main

import (
	"meterease/internal/app"
	"meterease/internal/config"
	"meterease/internal/repository/sqlite"

	"github.com/spf13/cobra"
)

var (
	envFile    string
	dbPath     string
	authDBPath string
)

var rootCmd = &cobra.Command{
	Use:   "meterctl",
	Short: "Administer a MeterEase installation",
	Long: `meterctl prepares the MeterEase databases, lists stored readings,
prices consumption against the tariff and reads meter photos from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default is ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "meter database file (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&authDBPath, "auth-db", "", "auth database file (overrides AUTH_DB_PATH)")
}

// loadConfig reads the environment and applies the path flags
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if envFile != "" {
		var err error
		if cfg, err = config.LoadFile(envFile); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}

	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if authDBPath != "" {
		cfg.AuthDatabasePath = authDBPath
	}
	return cfg, nil
}

// openMeterDB opens the meter database, creating it when missing
func openMeterDB(cfg *config.Config) (*sqlite.DB, error) {
	return app.OpenDB(cfg.DatabasePath, sqlite.MeterSchema)
}
