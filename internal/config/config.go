package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Timezone          string `yaml:"timezone"`
		SlotStepMinutes   int    `yaml:"slot_step_minutes"`
		MinAdvanceMinutes int    `yaml:"min_advance_minutes"`
		MaxAdvanceDays    int    `yaml:"max_advance_days"`
		LogLevel          string `yaml:"log_level"`
	} `yaml:"app"`

	Database struct {
		Driver   string `yaml:"driver"` // sqlite | postgres
		Path     string `yaml:"path"`
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	HTTP struct {
		Address     string `yaml:"address"`
		AdminAPIKey string `yaml:"admin_api_key"`
	} `yaml:"http"`

	Telegram struct {
		BotToken   string  `yaml:"bot_token"`
		Debug      bool    `yaml:"debug"`
		TenantCode string  `yaml:"tenant_code"`
		Managers   []int64 `yaml:"managers"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Reminders struct {
		Enabled         bool    `yaml:"enabled"`
		HoursBefore     int     `yaml:"hours_before"`
		IntervalMinutes int     `yaml:"interval_minutes"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
	} `yaml:"reminders"`

	AutoComplete struct {
		Enabled         bool `yaml:"enabled"`
		IntervalMinutes int  `yaml:"interval_minutes"`
	} `yaml:"autocomplete"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"sheets"`

	Catalog struct {
		Path         string `yaml:"path"`
		WatchSeconds int    `yaml:"watch_seconds"`
	} `yaml:"catalog"`
}

// Load reads the YAML config at path. A .env file next to the binary is
// loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/salonbook.db"
	}
	if cfg.Database.Driver == "sqlite" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) SlotStep() int {
	if c.App.SlotStepMinutes <= 0 {
		return 30
	}
	return c.App.SlotStepMinutes
}

func (c *Config) BookingMinAdvance() time.Duration {
	if c.App.MinAdvanceMinutes < 0 {
		return 0
	}
	return time.Duration(c.App.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.App.MaxAdvanceDays <= 0 {
		return 60 * 24 * time.Hour
	}
	return time.Duration(c.App.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) HTTPAddress() string {
	if c.HTTP.Address == "" {
		return ":8080"
	}
	return c.HTTP.Address
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) ReminderLead() time.Duration {
	if c.Reminders.HoursBefore <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Reminders.HoursBefore) * time.Hour
}

func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.IntervalMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Reminders.IntervalMinutes) * time.Minute
}

func (c *Config) AutoCompleteInterval() time.Duration {
	if c.AutoComplete.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AutoComplete.IntervalMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) CatalogWatchInterval() time.Duration {
	if c.Catalog.WatchSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.WatchSeconds) * time.Second
}

func (c *Config) KafkaTopic() string {
	if c.Kafka.Topic == "" {
		return "salonbook.reservations"
	}
	return c.Kafka.Topic
}
