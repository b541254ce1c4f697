// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Addr           string
	AllowedOrigins []string

	DBType     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	RedisAddr     string
	RedisPassword string

	JWTSecret     string
	JWTExpiration time.Duration
	SessionTTL    time.Duration
	FeedbackDelay time.Duration

	SESFromEmail string
	AWSRegion    string

	DriveFolderID        string
	DriveCredentialsFile string
	MaxUploadBytes       int64
}

// New returns a viper instance with every default set and the environment
// bound, so variables such as DB_TYPE override the defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("addr", ":8080")
	v.SetDefault("allowed_origins", "http://localhost:3000")
	v.SetDefault("db_type", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "quiz")
	v.SetDefault("db_path", "quiz.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expiration", 24*time.Hour)
	v.SetDefault("session_ttl", 12*time.Hour)
	v.SetDefault("feedback_delay", 2*time.Second)
	v.SetDefault("ses_from_email", "")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("drive_folder_id", "")
	v.SetDefault("drive_credentials_file", "")
	v.SetDefault("max_upload_bytes", int64(50<<20))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}
	return FromViper(New())
}

func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Addr:                 v.GetString("addr"),
		DBType:               v.GetString("db_type"),
		DBHost:               v.GetString("db_host"),
		DBPort:               v.GetString("db_port"),
		DBUser:               v.GetString("db_user"),
		DBPassword:           v.GetString("db_password"),
		DBName:               v.GetString("db_name"),
		DBPath:               v.GetString("db_path"),
		RedisAddr:            v.GetString("redis_addr"),
		RedisPassword:        v.GetString("redis_password"),
		JWTSecret:            v.GetString("jwt_secret"),
		JWTExpiration:        v.GetDuration("jwt_expiration"),
		SessionTTL:           v.GetDuration("session_ttl"),
		FeedbackDelay:        v.GetDuration("feedback_delay"),
		SESFromEmail:         v.GetString("ses_from_email"),
		AWSRegion:            v.GetString("aws_region"),
		DriveFolderID:        v.GetString("drive_folder_id"),
		DriveCredentialsFile: v.GetString("drive_credentials_file"),
		MaxUploadBytes:       v.GetInt64("max_upload_bytes"),
	}
	for _, origin := range strings.Split(v.GetString("allowed_origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	if cfg.JWTSecret == "" {
		log.Printf("Warning: JWT_SECRET is not set, tokens are signed with an insecure development key")
		cfg.JWTSecret = "development-only-secret"
	}
	return cfg
}
