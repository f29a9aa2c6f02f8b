package main

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/services"
)

// app carries the lazily opened database shared by subcommands.
type app struct {
	db *gorm.DB
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "smartlinksctl",
		Short:         "Operator tooling for the smartlinks backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	rootCmd.AddCommand(newSuperadminCmd(a))
	return rootCmd
}

// admin opens the database and returns an admin service bound to it.
func (a *app) admin() (*services.AdminService, error) {
	if a.db == nil {
		cfg := config.Load()
		logging.Setup(cfg.AppEnv)

		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
	}
	return services.NewAdminService(a.db, nil, services.NewSmartlinkService(a.db), nil), nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := database.Close(a.db)
	a.db = nil
	return err
}

// actor identifies the operator in the audit log.
func actor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}
