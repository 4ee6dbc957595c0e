// Package datastore opens and migrates SQL Sentinel's internal state and
// history database.
package datastore

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// Open connects to the state database. The DSN selects the dialect: a
// mysql:// URL opens MySQL, anything else is treated as a SQLite path
// (":memory:" works for tests).
func Open(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New(errors.CategoryConfiguration, "state database DSN cannot be empty")
	}

	var dialector gorm.Dialector
	isSQLite := false
	if rest, ok := strings.CutPrefix(dsn, "mysql://"); ok {
		dialector = mysql.Open(rest)
	} else {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
		isSQLite = true
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.CategoryConfiguration, err, "failed to open state database")
	}

	if isSQLite {
		// SQLite allows one writer; a pool of connections also breaks
		// ":memory:" databases, which exist per connection.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// Migrate creates or updates the internal tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&entities.AlertState{}, &entities.Execution{}); err != nil {
		return errors.Wrap(errors.CategoryExecution, err, "failed to migrate internal schema")
	}
	return nil
}
