package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port int `mapstructure:"PORT" validate:"min=1,max=65535"`

	DatabaseDriver string `mapstructure:"DB_DRIVER" validate:"oneof=sqlite mysql postgres"`
	DatabaseDSN    string `mapstructure:"DB_DSN" validate:"required"`

	SMTPHost     string        `mapstructure:"SMTP_HOST"`
	SMTPPort     int           `mapstructure:"SMTP_PORT" validate:"min=1,max=65535"`
	SMTPUser     string        `mapstructure:"SMTP_USER"`
	SMTPPassword string        `mapstructure:"SMTP_PASSWORD"`
	SMTPFromName string        `mapstructure:"SMTP_FROM_NAME"`
	SMTPTimeout  time.Duration `mapstructure:"SMTP_TIMEOUT" validate:"gt=0"`

	NotifyWorkers int `mapstructure:"NOTIFY_WORKERS" validate:"min=1"`
	NotifyQueue   int `mapstructure:"NOTIFY_QUEUE" validate:"min=1"`

	// Reject rewards that are not in the server-side catalog.
	CatalogStrict bool `mapstructure:"CATALOG_STRICT"`

	// Reject addresses whose domain has no MX or address records.
	EmailMXCheck bool `mapstructure:"EMAIL_MX_CHECK"`

	LogDir   string `mapstructure:"LOG_DIR"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	TemplatesDir string `mapstructure:"TEMPLATES_DIR"`
	StaticDir    string `mapstructure:"STATIC_DIR"`
}

// MailConfigured reports whether the SMTP transport has credentials.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != ""
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// legacyKeys maps unprefixed variables used by earlier deployments.
var legacyKeys = map[string]string{
	"PORT":               "PORT",
	"GMAIL_USER":         "SMTP_USER",
	"GMAIL_APP_PASSWORD": "SMTP_PASSWORD",
}

var validate = validator.New()

func LoadConfig() (*Config, error) {
	return load(viper.New(), ".env")
}

func load(v *viper.Viper, envFile string) (*Config, error) {
	// Ignore err if .env doesn't exist
	_ = godotenv.Load(envFile)

	v.SetDefault("PORT", 3000)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "spinwheel.db")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM_NAME", "ZooTechX")
	v.SetDefault("SMTP_TIMEOUT", 10*time.Second)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_QUEUE", 64)
	v.SetDefault("CATALOG_STRICT", true)
	v.SetDefault("EMAIL_MX_CHECK", false)
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TEMPLATES_DIR", "web/templates")
	v.SetDefault("STATIC_DIR", "web/static")

	for legacy, key := range legacyKeys {
		if val, ok := os.LookupEnv(legacy); ok && val != "" {
			v.SetDefault(key, val)
		}
	}

	v.SetEnvPrefix("SPINWHEEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.DatabaseDriver = strings.ToLower(strings.TrimSpace(config.DatabaseDriver))
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
