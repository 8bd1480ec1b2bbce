package internal

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// 捨入模式
const (
	// RoundHalfUp 0.5 遠離零進位（math.Round）
	RoundHalfUp = "half_up"
	// RoundHalfEven 銀行家捨入（math.RoundToEven）
	RoundHalfEven = "half_even"
)

// Config 整個應用的配置
//
// 先讀 YAML，再以環境變數覆蓋（env tag），最後補預設值並驗證。
type Config struct {
	Server struct {
		Port            int           `yaml:"port" env:"SERVER_PORT"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	Redis struct {
		Enabled      bool          `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr         string        `yaml:"addr" env:"REDIS_ADDR"`
		Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB           int           `yaml:"db" env:"REDIS_DB"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		MaxRetries   int           `yaml:"max_retries"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		KeyPrefix    string        `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`
	} `yaml:"redis"`

	Postgres struct {
		Host     string `yaml:"host" env:"POSTGRES_HOST"`
		Port     int    `yaml:"port" env:"POSTGRES_PORT"`
		User     string `yaml:"user" env:"POSTGRES_USER"`
		Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
		DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"postgres"`

	Rank struct {
		TiersFile            string  `yaml:"tiers_file" env:"RANK_TIERS_FILE"`
		MinPlayers           int     `yaml:"min_players" env:"RANK_MIN_PLAYERS"`
		WarmupPoints         bool    `yaml:"warmup_points" env:"RANK_WARMUP_POINTS"`
		MultiplierCapability string  `yaml:"multiplier_capability"`
		VIPMultiplier        float64 `yaml:"vip_multiplier" env:"RANK_VIP_MULTIPLIER"`
		RoundingMode         string  `yaml:"rounding_mode" env:"RANK_ROUNDING_MODE"`
		RoundEndPoints       bool    `yaml:"round_end_points"` // 只在回合結束時匯總通知
		DynamicDeathPoints   bool    `yaml:"dynamic_death_points"`
		DynamicMinMultiplier float64 `yaml:"dynamic_min_multiplier"`
		DynamicMaxMultiplier float64 `yaml:"dynamic_max_multiplier"`
	} `yaml:"rank"`

	Stats struct {
		MinPlayers  int  `yaml:"min_players" env:"STATS_MIN_PLAYERS"`
		WarmupStats bool `yaml:"warmup_stats"`
	} `yaml:"stats"`

	Persist struct {
		SaveInterval     time.Duration `yaml:"save_interval" env:"PERSIST_SAVE_INTERVAL"`
		Workers          int           `yaml:"workers"`
		QueueSize        int           `yaml:"queue_size"`
		FlushConcurrency int           `yaml:"flush_concurrency"`
		FlushTimeout     time.Duration `yaml:"flush_timeout"`
	} `yaml:"persist"`

	Notify struct {
		DispatchInterval time.Duration `yaml:"dispatch_interval"`
		NATSUrl          string        `yaml:"nats_url" env:"NATS_URL"`
		SubjectPrefix    string        `yaml:"subject_prefix"`
	} `yaml:"notify"`

	General struct {
		LevelRanksCompatibility bool `yaml:"level_ranks_compatibility" env:"LEVEL_RANKS_COMPATIBILITY"`
	} `yaml:"general"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
		Output string `yaml:"output"`
	} `yaml:"log"`
}

// DefaultConfig 返回填好預設值的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig 載入配置檔案並套用環境變數覆蓋
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		// #nosec G304 - path 來自命令列參數
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults 為零值欄位補上預設值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "rank"
	}

	if c.Rank.TiersFile == "" {
		c.Rank.TiersFile = "ranks.yaml"
	}
	if c.Rank.MultiplierCapability == "" {
		c.Rank.MultiplierCapability = "@rank/vip/points-multiplier"
	}
	if c.Rank.VIPMultiplier == 0 {
		c.Rank.VIPMultiplier = 1.25
	}
	if c.Rank.RoundingMode == "" {
		c.Rank.RoundingMode = RoundHalfUp
	}
	if c.Rank.DynamicMinMultiplier == 0 {
		c.Rank.DynamicMinMultiplier = 0.5
	}
	if c.Rank.DynamicMaxMultiplier == 0 {
		c.Rank.DynamicMaxMultiplier = 3.0
	}

	if c.Persist.SaveInterval == 0 {
		c.Persist.SaveInterval = 5 * time.Minute
	}
	if c.Persist.Workers == 0 {
		c.Persist.Workers = 4
	}
	if c.Persist.QueueSize == 0 {
		c.Persist.QueueSize = 256
	}
	if c.Persist.FlushConcurrency == 0 {
		c.Persist.FlushConcurrency = 16
	}
	if c.Persist.FlushTimeout == 0 {
		c.Persist.FlushTimeout = 10 * time.Second
	}

	if c.Notify.DispatchInterval == 0 {
		c.Notify.DispatchInterval = 50 * time.Millisecond
	}
	if c.Notify.SubjectPrefix == "" {
		c.Notify.SubjectPrefix = "rank.notify"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

// Validate 檢查配置的一致性
func (c *Config) Validate() error {
	if c.Rank.MinPlayers < 0 || c.Stats.MinPlayers < 0 {
		return fmt.Errorf("min players must not be negative")
	}
	if c.Rank.VIPMultiplier <= 0 {
		return fmt.Errorf("vip multiplier must be positive, got %v", c.Rank.VIPMultiplier)
	}
	if c.Rank.DynamicMinMultiplier <= 0 || c.Rank.DynamicMinMultiplier > c.Rank.DynamicMaxMultiplier {
		return fmt.Errorf("dynamic multiplier range invalid: [%v, %v]",
			c.Rank.DynamicMinMultiplier, c.Rank.DynamicMaxMultiplier)
	}
	switch c.Rank.RoundingMode {
	case RoundHalfUp, RoundHalfEven:
	default:
		return fmt.Errorf("unknown rounding mode %q", c.Rank.RoundingMode)
	}
	if c.Persist.Workers <= 0 || c.Persist.QueueSize <= 0 || c.Persist.FlushConcurrency <= 0 {
		return fmt.Errorf("persist workers, queue size and flush concurrency must be positive")
	}
	if c.Persist.SaveInterval <= 0 || c.Notify.DispatchInterval <= 0 {
		return fmt.Errorf("save and dispatch intervals must be positive")
	}
	return nil
}

// PostgresDSN 生成 PostgreSQL 連線字串
func (c *Config) PostgresDSN() string {
	// 支援環境變數覆蓋
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.DBName,
	)
}

// PostgresURL 生成 URL 形式的連線字串（golang-migrate 需要）
func (c *Config) PostgresURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     fmt.Sprintf("%s:%d", c.Postgres.Host, c.Postgres.Port),
		Path:     "/" + c.Postgres.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
