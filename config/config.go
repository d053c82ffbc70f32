// server/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- Sub-structs, mirroring the YAML layout ---

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Env         string   `mapstructure:"env"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

// TTL returns the parsed token lifetime.
func (j JWTConfig) TTL() time.Duration {
	d, err := time.ParseDuration(j.Expiration)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// AuthConfig throttles PIN sign-in per device.
type AuthConfig struct {
	PinMaxAttempts int    `mapstructure:"pinMaxAttempts"`
	PinWindow      string `mapstructure:"pinWindow"`
}

// Window returns the parsed PIN throttling window.
func (a AuthConfig) Window() time.Duration {
	d, err := time.ParseDuration(a.PinWindow)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type UploadConfig struct {
	MaxWidth    int   `mapstructure:"maxWidth"`
	JPEGQuality int   `mapstructure:"jpegQuality"`
	Concurrency int   `mapstructure:"concurrency"`
	MaxFileSize int64 `mapstructure:"maxFileSize"`
	MaxPixels   int   `mapstructure:"maxPixels"`
}

// AdminConfig is the account seeded on first start.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// --- Root config ---

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Auth   AuthConfig   `mapstructure:"auth"`
	S3     S3Config     `mapstructure:"s3"`
	AMQP   AMQPConfig   `mapstructure:"amqp"`
	Upload UploadConfig `mapstructure:"upload"`
	Admin  AdminConfig  `mapstructure:"admin"`
}

var envBindings = map[string]string{
	"mongo.uri":           "MONGO_URI",
	"mongo.dbName":        "MONGO_DBNAME",
	"server.port":         "SERVER_PORT",
	"server.env":          "APP_ENV",
	"server.corsOrigins":  "CORS_ORIGINS",
	"jwt.secret":          "JWT_SECRET",
	"jwt.expiration":      "JWT_EXPIRATION",
	"auth.pinMaxAttempts": "AUTH_PIN_MAX_ATTEMPTS",
	"auth.pinWindow":      "AUTH_PIN_WINDOW",
	"s3.bucket":           "S3_BUCKET",
	"s3.region":           "S3_REGION",
	"s3.accessKeyID":      "S3_ACCESS_KEY_ID",
	"s3.secretAccessKey":  "S3_SECRET_ACCESS_KEY",
	"s3.cloudFrontDomain": "S3_CLOUDFRONT_DOMAIN",
	"amqp.url":            "AMQP_URL",
	"amqp.exchange":       "AMQP_EXCHANGE",
	"upload.maxWidth":     "UPLOAD_MAX_WIDTH",
	"upload.jpegQuality":  "UPLOAD_JPEG_QUALITY",
	"upload.concurrency":  "UPLOAD_CONCURRENCY",
	"upload.maxFileSize":  "UPLOAD_MAX_FILE_SIZE",
	"upload.maxPixels":    "UPLOAD_MAX_PIXELS",
	"admin.username":      "ADMIN_USERNAME",
	"admin.password":      "ADMIN_PASSWORD",
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "dev")
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "container_inspection")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("auth.pinMaxAttempts", 10)
	v.SetDefault("auth.pinWindow", "15m")
	v.SetDefault("amqp.exchange", "container-inspection")
	v.SetDefault("upload.maxWidth", 1600)
	v.SetDefault("upload.jpegQuality", 70)
	v.SetDefault("upload.concurrency", 4)
	v.SetDefault("upload.maxFileSize", 20<<20)
	v.SetDefault("upload.maxPixels", 50_000_000)
	v.SetDefault("admin.username", "admin")

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err = v.BindEnv(key, env); err != nil {
			return
		}
	}

	// A missing file is fine: env vars and defaults are enough.
	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	// CORS_ORIGINS arrives as one comma separated string.
	config.Server.CORSOrigins = splitAndTrim(strings.Join(config.Server.CORSOrigins, ","))

	if _, perr := time.ParseDuration(config.JWT.Expiration); perr != nil {
		err = fmt.Errorf("invalid jwt.expiration %q: %w", config.JWT.Expiration, perr)
		return
	}
	if _, perr := time.ParseDuration(config.Auth.PinWindow); perr != nil {
		err = fmt.Errorf("invalid auth.pinWindow %q: %w", config.Auth.PinWindow, perr)
		return
	}
	if config.Upload.JPEGQuality < 1 || config.Upload.JPEGQuality > 100 {
		err = fmt.Errorf("upload.jpegQuality must be within 1..100, got %d", config.Upload.JPEGQuality)
		return
	}
	if config.Upload.Concurrency < 1 {
		config.Upload.Concurrency = 1
	}
	return
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
