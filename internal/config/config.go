package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "HEALER"

// Remediation pairs an alert name with the playbook that heals it
type Remediation struct {
	Alert    string `mapstructure:"alert" json:"alert"`
	Playbook string `mapstructure:"playbook" json:"playbook"`
}

// AppConfig identifies the service
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig defines the process log sinks
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ActionsConfig defines the healing-actions audit log
type ActionsConfig struct {
	File string `mapstructure:"file"`
}

// RunnerConfig defines how the external remediation runner is invoked
type RunnerConfig struct {
	Command    string        `mapstructure:"command"`
	Inventory  string        `mapstructure:"inventory"`
	Connection string        `mapstructure:"connection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// HistoryConfig defines the optional SQLite index of healing actions
type HistoryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DBPath          string        `mapstructure:"db_path"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// NATSConfig defines the optional healing event publisher
type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	Stream         string        `mapstructure:"stream"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
}

// MonitorConfig toggles host sampling
type MonitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the immutable service configuration, built once at startup
type Config struct {
	App          AppConfig     `mapstructure:"app"`
	Server       ServerConfig  `mapstructure:"server"`
	Logging      LoggingConfig `mapstructure:"logging"`
	Actions      ActionsConfig `mapstructure:"actions"`
	Runner       RunnerConfig  `mapstructure:"runner"`
	Remediations []Remediation `mapstructure:"remediations"`
	History      HistoryConfig `mapstructure:"history"`
	NATS         NATSConfig    `mapstructure:"nats"`
	Monitor      MonitorConfig `mapstructure:"monitor"`
}

// DefaultRemediations is the alert to playbook table used when none is configured
func DefaultRemediations() []Remediation {
	return []Remediation{
		{Alert: "NginxDown", Playbook: "/app/ansible/heal-nginx.yml"},
		{Alert: "NginxServiceUnhealthy", Playbook: "/app/ansible/heal-nginx.yml"},
		{Alert: "NginxHighCPU", Playbook: "/app/ansible/system-recovery.yml"},
		{Alert: "NginxHighMemory", Playbook: "/app/ansible/system-recovery.yml"},
		{Alert: "ContainerDown", Playbook: "/app/ansible/restart-container.yml"},
		{Alert: "StackUnhealthy", Playbook: "/app/ansible/heal-docker-stack.yml"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "webhook-handler")

	v.SetDefault("server.address", "0.0.0.0:5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "/app/logs/webhook.log")

	v.SetDefault("actions.file", "/app/logs/healing-actions.log")

	v.SetDefault("runner.command", "ansible-playbook")
	v.SetDefault("runner.inventory", "localhost,")
	v.SetDefault("runner.connection", "local")
	v.SetDefault("runner.timeout", 300*time.Second)

	defaults := make([]map[string]string, 0, len(DefaultRemediations()))
	for _, r := range DefaultRemediations() {
		defaults = append(defaults, map[string]string{"alert": r.Alert, "playbook": r.Playbook})
	}
	v.SetDefault("remediations", defaults)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "/app/logs/healing-history.db")
	v.SetDefault("history.retention", 30*24*time.Hour)
	v.SetDefault("history.cleanup_schedule", "0 0 3 * * *")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.stream", "HEALING")
	v.SetDefault("nats.subject_prefix", "healing.action")
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", 15*time.Second)
}

// Load reads the configuration file at path, applies HEALER_* environment
// overrides and validates the result. An empty path looks for
// config/config.yaml and falls back to defaults when it does not exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or conflicting values
func (c *Config) Validate() error {
	if c.Runner.Command == "" {
		return fmt.Errorf("%w: runner.command is required", ErrInvalidConfig)
	}
	if c.Runner.Timeout <= 0 {
		return fmt.Errorf("%w: runner.timeout must be positive", ErrInvalidConfig)
	}
	if c.Actions.File == "" {
		return fmt.Errorf("%w: actions.file is required", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Remediations))
	for i, r := range c.Remediations {
		if r.Alert == "" || r.Playbook == "" {
			return fmt.Errorf("%w: remediations[%d] needs both alert and playbook", ErrInvalidConfig, i)
		}
		if _, dup := seen[r.Alert]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRemediation, r.Alert)
		}
		seen[r.Alert] = struct{}{}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("%w: history.db_path is required when history is enabled", ErrInvalidConfig)
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("%w: monitor.interval must be positive", ErrInvalidConfig)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required when nats is enabled", ErrInvalidConfig)
	}
	return nil
}
