// Package config loads ServerConfig via Viper: environment variables
// override a YAML file which overrides built-in defaults. Grounded on
// the teacher's internal/config (same priority order, same
// SetDefault/BindEnv calls for the ambient server settings) —
// generalized from the teacher's card-game RolesConfig/Preset section
// to this game's Game/Cache/Archive/Question sections, since those are
// this domain's lobby-configurable knobs rather than the teacher's.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig is the full process configuration.
type ServerConfig struct {
	Server   ServerSettings   `mapstructure:"server"`
	Game     GameSettings     `mapstructure:"game"`
	Cache    CacheSettings    `mapstructure:"cache"`
	Archive  ArchiveSettings  `mapstructure:"archive"`
	Question QuestionSettings `mapstructure:"question"`
}

// ServerSettings contains transport-level and ambient settings.
type ServerSettings struct {
	Port              string        `mapstructure:"port"`
	Host              string        `mapstructure:"host"`
	ReadTimeout       time.Duration `mapstructure:"readtimeout"`
	WriteTimeout      time.Duration `mapstructure:"writetimeout"`
	IdleTimeout       time.Duration `mapstructure:"idletimeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdowntimeout"`
	RateLimit         float64       `mapstructure:"ratelimit"`      // requests per second
	RateLimitBurst    int           `mapstructure:"ratelimitburst"` // burst size
	MaxRequestSize    int64         `mapstructure:"maxrequestsize"`
	MaxSSEConnections int           `mapstructure:"maxsseconnections"`
	EnableMetrics     bool          `mapstructure:"enablemetrics"`
	MetricsPort       string        `mapstructure:"metricsport"`
	LogLevel          string        `mapstructure:"loglevel"`
	LogFormat         string        `mapstructure:"logformat"`
}

// GameSettings holds game bounds and defaults loaded from config (spec §3
// RoomSettings). RoomManager does not read them: UpdateSettings checks
// rooms against the constants in internal/validate.
type GameSettings struct {
	MaxPlayersPerRoom    int           `mapstructure:"maxplayersperroom"`
	MinPlayersPerRoom    int           `mapstructure:"minplayersperroom"`
	DefaultQuestionCount int           `mapstructure:"defaultquestioncount"`
	MinQuestionCount     int           `mapstructure:"minquestioncount"`
	MaxQuestionCount     int           `mapstructure:"maxquestioncount"`
	DefaultTimeLimit     int           `mapstructure:"defaulttimelimit"` // seconds
	MinTimeLimit         int           `mapstructure:"mintimelimit"`
	MaxTimeLimit         int           `mapstructure:"maxtimelimit"`
	RoomCodeLength       int           `mapstructure:"roomcodelength"`
	RoomTTL              time.Duration `mapstructure:"roomttl"`
}

// CacheSettings selects and configures the RoomStore backend.
type CacheSettings struct {
	UseMemory bool   `mapstructure:"usememory"` // true: in-process MemoryStore, false: Redis
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
}

// ArchiveSettings configures the SessionArchive backend.
type ArchiveSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // SQLite file path
}

// QuestionSettings is loaded from config but not passed to the
// QuestionPipeline, which bounds its provider call with
// question.ProviderTimeout.
type QuestionSettings struct {
	ProviderTimeout time.Duration `mapstructure:"providertimeout"`
}

// LoadConfig loads configuration with priority env > file > defaults.
// path, if non-empty, is read as an explicit config file; otherwise
// "./config/server.yaml", ".", and "/etc/trivia" are searched.
func LoadConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigName("server")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/trivia")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.loglevel", "LOG_LEVEL")
	v.BindEnv("server.logformat", "LOG_FORMAT")
	v.BindEnv("cache.address", "REDIS_ADDR")
	v.BindEnv("cache.usememory", "CACHE_USE_MEMORY")
	v.BindEnv("archive.path", "ARCHIVE_PATH")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !strings.Contains(err.Error(), "no such file or directory") {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &ServerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Server.Port == "" {
		return nil, fmt.Errorf("PORT environment variable must be set")
	}
	if cfg.Server.Host == "" {
		return nil, fmt.Errorf("HOST environment variable must be set")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.readtimeout", "15s")
	v.SetDefault("server.writetimeout", "15s")
	v.SetDefault("server.idletimeout", "60s")
	v.SetDefault("server.shutdowntimeout", "30s")
	v.SetDefault("server.ratelimit", 10.0)
	v.SetDefault("server.ratelimitburst", 20)
	v.SetDefault("server.maxrequestsize", 1048576) // 1MB
	v.SetDefault("server.maxsseconnections", 1000)
	v.SetDefault("server.enablemetrics", false)
	v.SetDefault("server.loglevel", "info")
	v.SetDefault("server.logformat", "text")

	v.SetDefault("game.maxplayersperroom", 50)
	v.SetDefault("game.minplayersperroom", 2)
	v.SetDefault("game.defaultquestioncount", 10)
	v.SetDefault("game.minquestioncount", 5)
	v.SetDefault("game.maxquestioncount", 30)
	v.SetDefault("game.defaulttimelimit", 20)
	v.SetDefault("game.mintimelimit", 5)
	v.SetDefault("game.maxtimelimit", 60)
	v.SetDefault("game.roomcodelength", 6)
	v.SetDefault("game.roomttl", "4h")

	v.SetDefault("cache.usememory", true)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.db", 0)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "trivia-archive.db")

	v.SetDefault("question.providertimeout", "30s")
}

// Validate checks the loaded configuration for internal consistency.
func (c *ServerConfig) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT environment variable must be set")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HOST environment variable must be set")
	}
	if c.Server.EnableMetrics && c.Server.MetricsPort == "" {
		return fmt.Errorf("METRICS_PORT must be set when ENABLE_METRICS is true")
	}

	if c.Game.MaxPlayersPerRoom < 1 {
		return fmt.Errorf("maxPlayersPerRoom must be at least 1")
	}
	if c.Game.MinPlayersPerRoom < 1 {
		return fmt.Errorf("minPlayersPerRoom must be at least 1")
	}
	if c.Game.MinPlayersPerRoom > c.Game.MaxPlayersPerRoom {
		return fmt.Errorf("minPlayersPerRoom cannot be greater than maxPlayersPerRoom")
	}
	if c.Game.RoomCodeLength < 3 {
		return fmt.Errorf("roomCodeLength must be at least 3")
	}
	if c.Game.MinQuestionCount > c.Game.MaxQuestionCount {
		return fmt.Errorf("minQuestionCount cannot be greater than maxQuestionCount")
	}
	if c.Game.MinTimeLimit > c.Game.MaxTimeLimit {
		return fmt.Errorf("minTimeLimit cannot be greater than maxTimeLimit")
	}
	if c.Game.DefaultQuestionCount < c.Game.MinQuestionCount || c.Game.DefaultQuestionCount > c.Game.MaxQuestionCount {
		return fmt.Errorf("defaultQuestionCount must be within [minQuestionCount, maxQuestionCount]")
	}
	if c.Game.DefaultTimeLimit < c.Game.MinTimeLimit || c.Game.DefaultTimeLimit > c.Game.MaxTimeLimit {
		return fmt.Errorf("defaultTimeLimit must be within [minTimeLimit, maxTimeLimit]")
	}

	if !c.Cache.UseMemory && c.Cache.Address == "" {
		return fmt.Errorf("cache.address must be set when cache.useMemory is false")
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path must be set when archive.enabled is true")
	}

	return nil
}
