package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Remote backend.
	BackendURL         string `mapstructure:"BACKEND_URL"`
	SocketURL          string `mapstructure:"SOCKET_URL"`
	HTTPTimeoutSeconds int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	// Persisted client state.
	TokenStore      string `mapstructure:"TOKEN_STORE"`
	TokenFile       string `mapstructure:"TOKEN_FILE"`
	TokenPassphrase string `mapstructure:"TOKEN_PASSPHRASE"`

	// Redis configuration, used when TOKEN_STORE=redis.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`

	// SessionProfile names the redis key of this portal's session; zero
	// SessionTTLHours keeps it until logout.
	SessionProfile  string `mapstructure:"SESSION_PROFILE"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`

	// Booking.
	RegistrationFee float64  `mapstructure:"REGISTRATION_FEE"`
	DefaultSlots    []string `mapstructure:"DEFAULT_SLOTS"`

	// Notifications.
	MarkReadPerSecond int `mapstructure:"MARK_READ_PER_SECOND"`

	// Presentation.
	AllowedOrigins  []string `mapstructure:"ALLOWED_ORIGINS"`
	LoginPath       string   `mapstructure:"LOGIN_PATH"`
	PatientLanding  string   `mapstructure:"PATIENT_LANDING"`
	HospitalLanding string   `mapstructure:"HOSPITAL_LANDING"`
}

var AppConfig Config

var defaultSlots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	normalize(&AppConfig)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8090")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 300)
	v.SetDefault("BACKEND_URL", "http://localhost:5000")
	v.SetDefault("SOCKET_URL", "ws://localhost:5000/ws")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 15)
	v.SetDefault("TOKEN_STORE", "file")
	v.SetDefault("TOKEN_FILE", ".opdportal/session.json")
	v.SetDefault("TOKEN_PASSPHRASE", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 1)
	v.SetDefault("SESSION_PROFILE", "default")
	v.SetDefault("SESSION_TTL_HOURS", 0)
	v.SetDefault("REGISTRATION_FEE", 20)
	v.SetDefault("DEFAULT_SLOTS", defaultSlots)
	v.SetDefault("MARK_READ_PER_SECOND", 10)
	v.SetDefault("ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("PATIENT_LANDING", "/dashboard")
	v.SetDefault("HOSPITAL_LANDING", "/hospital/dashboard")
}

// normalize repairs list values that arrive as a single comma separated
// environment variable.
func normalize(c *Config) {
	c.DefaultSlots = splitList(c.DefaultSlots)
	c.AllowedOrigins = splitList(c.AllowedOrigins)
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
