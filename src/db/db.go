package db

import (
	"bookpay/src/config"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func gormConfig() *gorm.Config {
	level := logger.Warn
	if os.Getenv("API_ENV") == "" || os.Getenv("API_ENV") == "local" {
		level = logger.Info
	}
	return &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func GetDb() *gorm.DB {
	if db != nil {
		return db
	}
	_db, err := gorm.Open(postgres.Open(config.GetDSN()), gormConfig())
	if err != nil {
		log.Printf("Error connecting to database: %s\n", err.Error())
		panic(err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Fatalf("Error establishing connection to database: %s\n", err.Error())
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	db = _db
	return _db
}

// NewDB replaces the process-wide connection, used by tests.
func NewDB(newdb *gorm.DB) {
	db = newdb
}

// IsPostgres reports whether d talks to postgres rather than a test driver.
func IsPostgres(d *gorm.DB) bool {
	return d.Dialector.Name() == "postgres"
}
