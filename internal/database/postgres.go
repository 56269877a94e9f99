// Package database opens the Postgres connection shared by the server and
// the reindex CLI.
package database

import (
	"fmt"
	"time"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the pool and sizes it for the environment.
func Connect() (*gorm.DB, error) {
	appConfig := config.LoadAppConfig()

	logLevel := logger.Warn
	if appConfig.IsProduction() {
		logLevel = logger.Error
	}
	db, err := gorm.Open(postgres.Open(config.LoadDBConfig().DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	pgDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get database instance: %w", err)
	}
	if !appConfig.IsProduction() {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(200)
		pgDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// Migrate enables the required extensions and creates the tables this
// service reads.
func Migrate(db *gorm.DB) error {
	for _, ext := range []string{"vector", `"uuid-ossp"`} {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS " + ext).Error; err != nil {
			return fmt.Errorf("enable extension %s: %w", ext, err)
		}
	}
	if err := db.AutoMigrate(&model.Document{}, &model.Ticket{}, &model.DepartmentEdge{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
