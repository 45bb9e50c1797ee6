package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-project configuration directory.
const DirName = ".suiterun"

// ConfigurationError reports a missing or invalid setting. It is fatal:
// the run aborts before any worker starts.
type ConfigurationError struct {
	Key     string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration error")
	if e.Key != "" {
		fmt.Fprintf(&sb, " at %s", e.Key)
	}
	fmt.Fprintf(&sb, ": %s", e.Message)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func invalid(key, format string, args ...interface{}) error {
	return &ConfigurationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// EngineConfig selects the automation engine.
type EngineConfig struct {
	Type     string `yaml:"type"`
	Headless bool   `yaml:"headless"`
}

// WaitConfig holds engine wait durations.
type WaitConfig struct {
	Implicit time.Duration
	Explicit time.Duration
	PageLoad time.Duration
}

// ReportConfig controls the HTML report.
type ReportConfig struct {
	Path    string `yaml:"path"`
	Name    string `yaml:"name"`
	MaxKeep int    `yaml:"max_keep"`
}

// ScreenshotConfig controls failure captures.
type ScreenshotConfig struct {
	Path    string `yaml:"path"`
	MaxKeep int    `yaml:"max_keep"`
}

// TelegramConfig holds raw Telegram settings. Credential fields may hold
// ${NAME} placeholders resolved at startup.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

// EmailConfig holds raw SMTP settings. Recipients is a comma separated list.
type EmailConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	FromName      string `yaml:"from_name"`
	Recipients    string `yaml:"recipients"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NotifyConfig groups the notification channels.
type NotifyConfig struct {
	Timeout  time.Duration
	Telegram TelegramConfig
	Email    EmailConfig
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	MaxRuns int    `yaml:"max_runs"`
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Config represents suiterun configuration options
type Config struct {
	// SuiteName labels reports and notifications
	SuiteName string

	// BaseURL is loaded by every new session
	BaseURL string

	Engine EngineConfig
	Wait   WaitConfig

	// ThreadCount is the fixed number of workers
	ThreadCount int

	// RetryCount is how many times a failed test is retried
	RetryCount int

	// CIEnvironment forces headless sessions
	CIEnvironment bool

	// TestTimeout bounds each test body (0 = no limit)
	TestTimeout time.Duration

	Report     ReportConfig
	Screenshot ScreenshotConfig
	Notify     NotifyConfig

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is the directory where run logs are written
	LogDir string

	// LogMaxKeep is how many run logs survive a sweep
	LogMaxKeep int

	History HistoryConfig
	Metrics MetricsConfig

	// EnvFile is loaded into the environment before credentials resolve
	EnvFile string
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		SuiteName: "Test Suite",
		Engine:    EngineConfig{Type: "http"},
		Wait: WaitConfig{
			Implicit: 10 * time.Second,
			Explicit: 15 * time.Second,
			PageLoad: 30 * time.Second,
		},
		ThreadCount: 1,
		RetryCount:  0,
		Report: ReportConfig{
			Path:    "reports",
			Name:    "Automation Test Report",
			MaxKeep: 3,
		},
		Screenshot: ScreenshotConfig{
			Path:    "screenshots",
			MaxKeep: 3,
		},
		Notify: NotifyConfig{
			Timeout:  30 * time.Second,
			Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
			Email:    EmailConfig{SMTPPort: 587, FromName: "suiterun", SubjectPrefix: "[Automation]"},
		},
		LogLevel:   "info",
		LogDir:     filepath.Join(DirName, "logs"),
		LogMaxKeep: 10,
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(DirName, "history.db"),
			MaxRuns: 200,
		},
		EnvFile: ".env",
	}
}

type yamlWait struct {
	Implicit string `yaml:"implicit"`
	Explicit string `yaml:"explicit"`
	PageLoad string `yaml:"page_load"`
}

type yamlNotify struct {
	Timeout  string         `yaml:"timeout"`
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
}

type yamlConfig struct {
	SuiteName     string           `yaml:"suite_name"`
	BaseURL       string           `yaml:"base_url"`
	Engine        EngineConfig     `yaml:"engine"`
	Wait          yamlWait         `yaml:"wait"`
	ThreadCount   int              `yaml:"thread_count"`
	RetryCount    int              `yaml:"retry_count"`
	CIEnvironment bool             `yaml:"ci_environment"`
	TestTimeout   string           `yaml:"test_timeout"`
	Report        ReportConfig     `yaml:"report"`
	Screenshot    ScreenshotConfig `yaml:"screenshot"`
	Notify        yamlNotify       `yaml:"notify"`
	LogLevel      string           `yaml:"log_level"`
	LogDir        string           `yaml:"log_dir"`
	LogMaxKeep    int              `yaml:"log_max_keep"`
	History       HistoryConfig    `yaml:"history"`
	Metrics       MetricsConfig    `yaml:"metrics"`
	EnvFile       string           `yaml:"env_file"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns a ConfigurationError
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Message: "failed to read config file", Err: err}
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, &ConfigurationError{Message: "failed to parse config file", Err: err}
	}

	// Presence map so explicit false/0 values override defaults.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Message: "failed to parse config file", Err: err}
	}

	if err := cfg.apply(yc, presence(raw)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromDir loads configuration from .suiterun/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DirName, "config.yaml"))
}

// presence flattens a decoded YAML document into dotted keys.
func presence(raw map[string]interface{}) map[string]bool {
	keys := make(map[string]bool)
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			keys[key] = true
			if child, ok := v.(map[string]interface{}); ok {
				walk(key, child)
			}
		}
	}
	walk("", raw)
	return keys
}

func (c *Config) apply(yc yamlConfig, has map[string]bool) error {
	setString := func(dst *string, key, v string) {
		if has[key] {
			*dst = v
		}
	}
	setInt := func(dst *int, key string, v int) {
		if has[key] {
			*dst = v
		}
	}
	setBool := func(dst *bool, key string, v bool) {
		if has[key] {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, key, v string) error {
		if !has[key] || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigurationError{Key: key, Message: fmt.Sprintf("invalid duration %q", v), Err: err}
		}
		*dst = d
		return nil
	}

	setString(&c.SuiteName, "suite_name", yc.SuiteName)
	setString(&c.BaseURL, "base_url", yc.BaseURL)
	setString(&c.Engine.Type, "engine.type", yc.Engine.Type)
	setBool(&c.Engine.Headless, "engine.headless", yc.Engine.Headless)
	setInt(&c.ThreadCount, "thread_count", yc.ThreadCount)
	setInt(&c.RetryCount, "retry_count", yc.RetryCount)
	setBool(&c.CIEnvironment, "ci_environment", yc.CIEnvironment)

	for _, d := range []struct {
		dst *time.Duration
		key string
		v   string
	}{
		{&c.Wait.Implicit, "wait.implicit", yc.Wait.Implicit},
		{&c.Wait.Explicit, "wait.explicit", yc.Wait.Explicit},
		{&c.Wait.PageLoad, "wait.page_load", yc.Wait.PageLoad},
		{&c.TestTimeout, "test_timeout", yc.TestTimeout},
		{&c.Notify.Timeout, "notify.timeout", yc.Notify.Timeout},
	} {
		if err := setDuration(d.dst, d.key, d.v); err != nil {
			return err
		}
	}

	setString(&c.Report.Path, "report.path", yc.Report.Path)
	setString(&c.Report.Name, "report.name", yc.Report.Name)
	setInt(&c.Report.MaxKeep, "report.max_keep", yc.Report.MaxKeep)
	setString(&c.Screenshot.Path, "screenshot.path", yc.Screenshot.Path)
	setInt(&c.Screenshot.MaxKeep, "screenshot.max_keep", yc.Screenshot.MaxKeep)

	tg := yc.Notify.Telegram
	setBool(&c.Notify.Telegram.Enabled, "notify.telegram.enabled", tg.Enabled)
	setString(&c.Notify.Telegram.BotToken, "notify.telegram.bot_token", tg.BotToken)
	setString(&c.Notify.Telegram.ChatID, "notify.telegram.chat_id", tg.ChatID)
	setString(&c.Notify.Telegram.APIURL, "notify.telegram.api_url", tg.APIURL)

	em := yc.Notify.Email
	setBool(&c.Notify.Email.Enabled, "notify.email.enabled", em.Enabled)
	setString(&c.Notify.Email.SMTPHost, "notify.email.smtp_host", em.SMTPHost)
	setInt(&c.Notify.Email.SMTPPort, "notify.email.smtp_port", em.SMTPPort)
	setString(&c.Notify.Email.Username, "notify.email.username", em.Username)
	setString(&c.Notify.Email.Password, "notify.email.password", em.Password)
	setString(&c.Notify.Email.FromName, "notify.email.from_name", em.FromName)
	setString(&c.Notify.Email.Recipients, "notify.email.recipients", em.Recipients)
	setString(&c.Notify.Email.SubjectPrefix, "notify.email.subject_prefix", em.SubjectPrefix)

	setString(&c.LogLevel, "log_level", yc.LogLevel)
	setString(&c.LogDir, "log_dir", yc.LogDir)
	setInt(&c.LogMaxKeep, "log_max_keep", yc.LogMaxKeep)

	setBool(&c.History.Enabled, "history.enabled", yc.History.Enabled)
	setString(&c.History.DBPath, "history.db_path", yc.History.DBPath)
	setInt(&c.History.MaxRuns, "history.max_runs", yc.History.MaxRuns)

	setString(&c.Metrics.Textfile, "metrics.textfile", yc.Metrics.Textfile)
	setString(&c.EnvFile, "env_file", yc.EnvFile)
	return nil
}

// Flags carries CLI overrides. Nil fields leave the configuration unchanged.
type Flags struct {
	SuiteName   *string
	BaseURL     *string
	Engine      *string
	Headless    *bool
	Threads     *int
	Retries     *int
	TestTimeout *time.Duration
	ReportDir   *string
	LogDir      *string
	LogLevel    *string
	NoNotify    *bool
	NoHistory   *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f Flags) {
	if f.SuiteName != nil {
		c.SuiteName = *f.SuiteName
	}
	if f.BaseURL != nil {
		c.BaseURL = *f.BaseURL
	}
	if f.Engine != nil {
		c.Engine.Type = *f.Engine
	}
	if f.Headless != nil {
		c.Engine.Headless = *f.Headless
	}
	if f.Threads != nil {
		c.ThreadCount = *f.Threads
	}
	if f.Retries != nil {
		c.RetryCount = *f.Retries
	}
	if f.TestTimeout != nil {
		c.TestTimeout = *f.TestTimeout
	}
	if f.ReportDir != nil {
		c.Report.Path = *f.ReportDir
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.NoNotify != nil && *f.NoNotify {
		c.Notify.Telegram.Enabled = false
		c.Notify.Email.Enabled = false
	}
	if f.NoHistory != nil && *f.NoHistory {
		c.History.Enabled = false
	}
}

// Validate validates the configuration values
// Returns a ConfigurationError naming the first invalid key
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.Type) == "" {
		return invalid("engine.type", "must not be empty")
	}
	if c.ThreadCount < 1 {
		return invalid("thread_count", "must be >= 1, got %d", c.ThreadCount)
	}
	if c.RetryCount < 0 {
		return invalid("retry_count", "must be >= 0, got %d", c.RetryCount)
	}
	for key, d := range map[string]time.Duration{
		"wait.implicit":  c.Wait.Implicit,
		"wait.explicit":  c.Wait.Explicit,
		"wait.page_load": c.Wait.PageLoad,
		"test_timeout":   c.TestTimeout,
		"notify.timeout": c.Notify.Timeout,
	} {
		if d < 0 {
			return invalid(key, "must be >= 0, got %v", d)
		}
	}

	if c.Report.Path == "" {
		return invalid("report.path", "must not be empty")
	}
	if c.Report.MaxKeep < 1 {
		return invalid("report.max_keep", "must be >= 1, got %d", c.Report.MaxKeep)
	}
	if c.Screenshot.Path == "" {
		return invalid("screenshot.path", "must not be empty")
	}
	if c.Screenshot.MaxKeep < 1 {
		return invalid("screenshot.max_keep", "must be >= 1, got %d", c.Screenshot.MaxKeep)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return invalid("log_level", "invalid value %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	if c.LogMaxKeep < 0 {
		return invalid("log_max_keep", "must be >= 0, got %d", c.LogMaxKeep)
	}

	if c.Notify.Email.Enabled && (c.Notify.Email.SMTPPort < 1 || c.Notify.Email.SMTPPort > 65535) {
		return invalid("notify.email.smtp_port", "must be a valid port, got %d", c.Notify.Email.SMTPPort)
	}

	if c.History.Enabled {
		if c.History.DBPath == "" {
			return invalid("history.db_path", "cannot be empty when history is enabled")
		}
		if c.History.MaxRuns < 0 {
			return invalid("history.max_runs", "must be >= 0, got %d", c.History.MaxRuns)
		}
	}
	return nil
}
