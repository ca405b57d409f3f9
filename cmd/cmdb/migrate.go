package main

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bgp-cmdb/pkg/config"
	"bgp-cmdb/pkg/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the MySQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store != config.StoreMySQL {
			return errors.New("migrate needs CMDB_STORE=mysql")
		}
		gdb, err := db.Open(cfg.DSN())
		if err != nil {
			return err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		logrus.Info("schema up to date")
		return nil
	},
}
