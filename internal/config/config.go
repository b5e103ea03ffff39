package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"myrhythm/internal/platform/dates"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type StorageConfig struct {
	// Driver: memory | postgres | sqlite
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	SQLitePath string `yaml:"sqlite_path"`
}

// CommandsConfig: si RedisAddr está vacío, los comandos se aplican en proceso.
type CommandsConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Stream        string `yaml:"stream"`
	Group         string `yaml:"group"`
	Consumer      string `yaml:"consumer"`
	MaxLen        int64  `yaml:"max_len"`
	QueueSize     int    `yaml:"queue_size"`
	Workers       int    `yaml:"workers"`
}

type RemindersConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Cron       string        `yaml:"cron"`
	Lookback   time.Duration `yaml:"lookback"`
	MaxCatchUp time.Duration `yaml:"max_catch_up"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// Chats mapea user id => chat id.
	Chats map[string]int64 `yaml:"chats"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	RemoteURL     string        `yaml:"remote_url"`
	RemoteAPIKey  string        `yaml:"remote_api_key"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	// AllowDebugHeader deja pasar X-Debug-User-ID aunque haya verifier.
	AllowDebugHeader bool `yaml:"allow_debug_header"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Port      string          `yaml:"port"`
	Timezone  string          `yaml:"timezone"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Commands  CommandsConfig  `yaml:"commands"`
	Reminders RemindersConfig `yaml:"reminders"`
	Notify    NotifyConfig    `yaml:"notify"`
	Auth      AuthConfig      `yaml:"auth"`
}

func Default() *Config {
	c := &Config{
		Reminders: RemindersConfig{Enabled: true},
	}
	c.Normalize()
	return c
}

// Normalize rellena los valores vacíos con los defaults.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "8080"
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = dates.DefaultZone
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		switch {
		case c.Storage.DSN != "":
			c.Storage.Driver = StoragePostgres
		case c.Storage.SQLitePath != "":
			c.Storage.Driver = StorageSQLite
		default:
			c.Storage.Driver = StorageMemory
		}
	}
	if c.Storage.Driver == StorageSQLite && c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "myrhythm.db"
	}

	if c.Commands.QueueSize <= 0 {
		c.Commands.QueueSize = 256
	}
	if c.Commands.Workers <= 0 {
		c.Commands.Workers = 2
	}
	if c.Commands.MaxLen <= 0 {
		c.Commands.MaxLen = 10000
	}

	if c.Reminders.Cron == "" {
		c.Reminders.Cron = "* * * * *"
	}
	if c.Reminders.Lookback <= 0 {
		c.Reminders.Lookback = 2 * time.Minute
	}
	if c.Reminders.MaxCatchUp <= 0 {
		c.Reminders.MaxCatchUp = time.Hour
	}

	if c.Notify.MQTT.TopicPrefix == "" {
		c.Notify.MQTT.TopicPrefix = "myrhythm/alarms"
	}
	if c.Notify.MQTT.ClientID == "" {
		c.Notify.MQTT.ClientID = "myrhythm-api"
	}
	if c.Auth.RemoteTimeout <= 0 {
		c.Auth.RemoteTimeout = 5 * time.Second
	}
}

// Validate revisa lo que no se puede corregir con un default.
func (c *Config) Validate() error {
	if _, err := dates.LoadZone(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Reminders.Enabled {
		if _, err := cron.ParseStandard(c.Reminders.Cron); err != nil {
			return fmt.Errorf("reminders.cron %q: %w", c.Reminders.Cron, err)
		}
	}
	if c.Notify.MQTT.QoS > 2 {
		return fmt.Errorf("notify.mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// Location devuelve la zona ya validada.
func (c *Config) Location() *time.Location {
	loc, err := dates.LoadZone(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Addr() string { return ":" + c.Port }

// Load lee el YAML (si path está vacío o no existe usa defaults), después
// .env y las variables de entorno, y valida.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env es opcional
	_ = godotenv.Load()

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(c *Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Port, "PORT")
	set(&c.Timezone, "TIMEZONE")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
	set(&c.Storage.Driver, "STORAGE_DRIVER")
	set(&c.Storage.DSN, "DB_DSN")
	set(&c.Storage.SQLitePath, "SQLITE_PATH")
	set(&c.Commands.RedisAddr, "REDIS_ADDR")
	set(&c.Commands.RedisPassword, "REDIS_PASSWORD")
	set(&c.Reminders.Cron, "REMINDERS_CRON")
	set(&c.Notify.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	set(&c.Notify.MQTT.Broker, "MQTT_BROKER")
	set(&c.Auth.JWTSecret, "JWT_SECRET")
	set(&c.Auth.RemoteURL, "AUTH_REMOTE_URL")
	set(&c.Auth.RemoteAPIKey, "AUTH_REMOTE_API_KEY")

	if v := strings.TrimSpace(getenv("REMINDERS_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REMINDERS_ENABLED: %w", err)
		}
		c.Reminders.Enabled = b
	}

	// TELEGRAM_CHATS=user1:123,user2:456
	if v := strings.TrimSpace(getenv("TELEGRAM_CHATS")); v != "" {
		chats, err := parseChats(v)
		if err != nil {
			return err
		}
		c.Notify.Telegram.Chats = chats
	}
	return nil
}

func parseChats(s string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, chat, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(user) == "" {
			return nil, fmt.Errorf("TELEGRAM_CHATS: invalid entry %q", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHATS: invalid chat id for %q", user)
		}
		out[strings.TrimSpace(user)] = id
	}
	return out, nil
}
