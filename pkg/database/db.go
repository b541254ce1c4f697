package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	Type     string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	// Path is the database file for sqlite.
	Path string
}

// Open connects to the configured database and migrates the tree schema.
func Open(config *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(config.Type) {
	case "postgres", "postgresql", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			config.Host,
			config.User,
			config.Password,
			config.DBName,
			config.Port,
		)
		dialector = postgres.Open(dsn)
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			config.User,
			config.Password,
			config.Host,
			config.Port,
			config.DBName,
		)
		dialector = mysql.Open(dsn)
	case "sqlite", "sqlite3":
		path := config.Path
		if path == "" {
			path = "quiz.db"
		}
		dialector = sqlite.Open(path + "?_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the tree and account tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Node{}, &Account{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
