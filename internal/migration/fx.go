package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		// The embedded migrations are postgres SQL. Other dialects
		// (sqlite in tests, mysql installs with external schema
		// management) manage their own schema.
		if conn.Dialector.Name() != "postgres" {
			log.Info("skipping embedded migrations",
				zap.String("dialect", conn.Dialector.Name()))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
