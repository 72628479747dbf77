package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/olegiv/battlelog-tools-go/internal/engine"
	"github.com/spf13/viper"
)

// maxWorkers bounds WORKERS and -threads.
const maxWorkers = 256

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds all application configuration
type Config struct {
	// Run selection
	Mode        engine.Mode
	Directories []string

	// Engine
	Workers      int
	Exclude      string
	MaxLogSizeMB int

	// Statistics
	MinimumElo        float64
	HasMinimumElo     bool
	CSVPath           string // Write CSV here instead of stdout
	HumanReadablePath string // Write the table here instead of stdout

	// Search
	Username     string
	WinsOnly     bool
	ForfeitsOnly bool

	// Anonymize
	OutputDir string
	Safe      bool

	// Named collections (loaded from collections.json)
	CollectionID          string
	CollectionName        string
	CollectionsConfig     *CollectionsConfig
	CollectionsConfigPath string

	// Telegram run reports (optional)
	TelegramBotToken string
	TelegramChannel  int64

	// Application
	LogLevel             string
	LogDir               string
	LogConsole           bool
	EnableDatabase       bool
	DatabasePath         string
	HistoryRetentionDays int
}

// Load loads configuration from .env file and environment variables only.
// For CLI overrides, use LoadWithCLI instead
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	// Set up viper first to read OS environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Values from .env replace OS environment variables; viper reads the result
	_ = godotenv.Overload()

	// Set defaults
	setDefaults()

	config := &Config{
		Workers:      viper.GetInt("WORKERS"),
		Exclude:      viper.GetString("EXCLUDE"),
		MaxLogSizeMB: viper.GetInt("MAX_LOG_SIZE_MB"),

		OutputDir: viper.GetString("ANONYMIZE_OUTPUT_DIR"),
		Safe:      viper.GetBool("ANONYMIZE_SAFE"),

		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChannel:  viper.GetInt64("TELEGRAM_CHANNEL_ID"),

		LogLevel:             viper.GetString("LOG_LEVEL"),
		LogDir:               viper.GetString("LOG_DIR"),
		LogConsole:           viper.GetBool("LOG_CONSOLE"),
		EnableDatabase:       viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:         viper.GetString("DATABASE_PATH"),
		HistoryRetentionDays: viper.GetInt("HISTORY_RETENTION_DAYS"),
	}
	if viper.IsSet("MINIMUM_ELO") && viper.GetString("MINIMUM_ELO") != "" {
		config.MinimumElo = viper.GetFloat64("MINIMUM_ELO")
		config.HasMinimumElo = true
	}

	// Apply CLI overrides (highest priority)
	if cli != nil {
		if err := config.applyCLI(cli); err != nil {
			return nil, err
		}
	}

	if err := config.applyCollection(cli); err != nil {
		return nil, err
	}

	if config.Workers == 0 {
		config.Workers = runtime.NumCPU()
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyCLI(cli *CLIOptions) error {
	if cli.Mode != "" {
		mode, err := engine.ParseMode(cli.Mode)
		if err != nil {
			return err
		}
		c.Mode = mode
	}
	c.Directories = append(c.Directories, cli.Directories...)

	if cli.Threads != 0 {
		c.Workers = cli.Threads
	}
	if cli.Exclude != "" {
		c.Exclude = cli.Exclude
	}

	c.CSVPath = cli.CSVPath
	c.HumanReadablePath = cli.HumanReadablePath
	if cli.MinimumEloSet {
		c.MinimumElo = cli.MinimumElo
		c.HasMinimumElo = true
	}

	c.Username = cli.Username
	c.WinsOnly = cli.WinsOnly
	c.ForfeitsOnly = cli.ForfeitsOnly

	if cli.OutputDir != "" {
		c.OutputDir = cli.OutputDir
	}
	if cli.Safe {
		c.Safe = true
	}
	return nil
}

// applyCollection fills in directories from collections.json when a
// collection is requested, or when no directories were given and the file
// names a default collection.
func (c *Config) applyCollection(cli *CLIOptions) error {
	var requested, configPath string
	if cli != nil {
		requested = cli.Collection
		configPath = cli.CollectionsConfig
	}
	if configPath == "" {
		configPath = viper.GetString("COLLECTIONS_CONFIG")
	}
	if requested == "" && len(c.Directories) > 0 {
		return nil
	}

	collections, foundPath, err := LoadCollectionsConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load collections config: %w", err)
	}
	if collections == nil {
		if requested != "" {
			return fmt.Errorf("collection %q requested but no collections.json was found. "+
				"Create one in ./collections.json, ./configs/collections.json or "+
				"~/.config/battlelog-tools/collections.json", requested)
		}
		return nil
	}

	c.CollectionsConfig = collections
	c.CollectionsConfigPath = foundPath

	collection, err := collections.GetCollection(requested)
	if err != nil {
		if requested == "" {
			// No default collection; Validate reports the missing directories
			return nil
		}
		return fmt.Errorf("failed to get collection '%s': %w", requested, err)
	}

	c.CollectionID = requested
	if c.CollectionID == "" {
		c.CollectionID = collections.DefaultCollection
	}
	c.CollectionName = collection.Name
	if c.CollectionName == "" {
		c.CollectionName = c.CollectionID
	}
	c.Directories = append(c.Directories, collection.Directories...)
	if c.Exclude == "" {
		c.Exclude = collection.Exclude
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("WORKERS", 0) // number of CPUs
	viper.SetDefault("MAX_LOG_SIZE_MB", 10)
	viper.SetDefault("ANONYMIZE_SAFE", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DIR", "./logs")
	viper.SetDefault("LOG_CONSOLE", true)
	viper.SetDefault("ENABLE_DATABASE", false)
	viper.SetDefault("DATABASE_PATH", "./data/battletools.db")
	viper.SetDefault("HISTORY_RETENTION_DAYS", 90)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate mode and mode-specific settings
	if err := c.validateMode(); err != nil {
		return err
	}

	if len(c.Directories) == 0 {
		return fmt.Errorf("at least one log directory is required (pass directories or use -collection)")
	}

	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("WORKERS must be between 1 and %d (got: %d)", maxWorkers, c.Workers)
	}

	// Validate max log size
	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 100 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 100")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	// Validate Telegram settings (optional, but if set must be valid)
	if c.TelegramBotToken != "" {
		if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
		}
		if c.TelegramChannel == 0 {
			return fmt.Errorf("TELEGRAM_CHANNEL_ID is required when TELEGRAM_BOT_TOKEN is set")
		}
	}
	if c.TelegramChannel != 0 && c.TelegramChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ID must be a supergroup/channel ID (starts with -100)")
	}

	if c.EnableDatabase {
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE=true")
		}
		if c.HistoryRetentionDays < 1 {
			return fmt.Errorf("HISTORY_RETENTION_DAYS must be at least 1")
		}
	}

	return nil
}

// validateMode validates the selected mode and the settings it requires
func (c *Config) validateMode() error {
	if _, err := engine.ParseMode(string(c.Mode)); err != nil {
		return fmt.Errorf("a command is required: %w", err)
	}

	switch c.Mode {
	case engine.ModeStatistics:
		if c.HasMinimumElo && c.MinimumElo < 0 {
			return fmt.Errorf("minimum ELO must not be negative (got: %g)", c.MinimumElo)
		}
	case engine.ModeSearch:
		if strings.TrimSpace(c.Username) == "" {
			return fmt.Errorf("search requires a username")
		}
	case engine.ModeAnonymize:
		if c.OutputDir == "" {
			return fmt.Errorf("anonymize requires an output directory (-output or ANONYMIZE_OUTPUT_DIR)")
		}
	}

	return nil
}

// HasTelegram returns true if run reports should be sent to Telegram
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != "" && c.TelegramChannel != 0
}

// EngineOptions returns the engine settings of this configuration
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Workers:       c.Workers,
		Exclude:       c.Exclude,
		MaxFileSizeMB: c.MaxLogSizeMB,
	}
}
