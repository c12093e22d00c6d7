package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
)

// Config holds application configuration
// アプリケーション設定を保持
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Costing  CostingConfig  `yaml:"costing"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
// データベース設定を保持
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// APIConfig holds API server configuration
// APIサーバー設定を保持
type APIConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	EnableCORS    bool          `yaml:"enable_cors"`
	EnableMetrics bool          `yaml:"enable_metrics"`
	MaxUploadMB   int64         `yaml:"max_upload_mb"` // 発注ガイドのアップロード上限
}

// CostingConfig holds cost engine configuration
// 原価計算エンジンの設定を保持
type CostingConfig struct {
	Workers           int           `yaml:"workers"`
	MatchWorkers      int           `yaml:"match_workers"`
	ValuationLookback time.Duration `yaml:"valuation_lookback"`
	ExpandRecipeWaste bool          `yaml:"expand_recipe_waste"`
}

// EventsConfig selects where domain events are delivered
// イベント配信先の設定を保持
type EventsConfig struct {
	Backend  string `yaml:"backend"` // log, redis
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"` // チャネル名の接頭辞
}

// LoggingConfig holds logging configuration
// ログ設定を保持
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, ファイルパス
}

// Default returns the built-in defaults
// 組み込みのデフォルト設定を返す
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "kitchencost",
			Password:        "password",
			DBName:          "kitchencost_db",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		API: APIConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   60 * time.Second,
			EnableCORS:    true,
			EnableMetrics: true,
			MaxUploadMB:   10,
		},
		Costing: CostingConfig{
			Workers:           inventory.DefaultWorkers,
			MatchWorkers:      inventory.DefaultWorkers,
			ValuationLookback: inventory.DefaultValuationLookback,
			ExpandRecipeWaste: true,
		},
		Events: EventsConfig{
			Backend:  "log",
			RedisURL: "redis://localhost:6379/0",
			Channel:  "kitchencost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from a .env file (if present) and environment variables
// .envファイル（存在する場合）と環境変数から設定を読み込み
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envファイルの読み込みに失敗しました: %w", err)
	}

	cfg := Default()
	cfg.applyEnv()

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a YAML configuration file; environment variables override its values
// YAML設定ファイルを読み込み（環境変数が優先）
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields whose environment variables are set
func (c *Config) applyEnv() {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.API.Port = getEnvAsInt("API_PORT", c.API.Port)
	c.API.ReadTimeout = getEnvAsDuration("API_READ_TIMEOUT", c.API.ReadTimeout)
	c.API.WriteTimeout = getEnvAsDuration("API_WRITE_TIMEOUT", c.API.WriteTimeout)
	c.API.IdleTimeout = getEnvAsDuration("API_IDLE_TIMEOUT", c.API.IdleTimeout)
	c.API.EnableCORS = getEnvAsBool("API_ENABLE_CORS", c.API.EnableCORS)
	c.API.EnableMetrics = getEnvAsBool("API_ENABLE_METRICS", c.API.EnableMetrics)
	c.API.MaxUploadMB = getEnvAsInt64("API_MAX_UPLOAD_MB", c.API.MaxUploadMB)

	c.Costing.Workers = getEnvAsInt("COSTING_WORKERS", c.Costing.Workers)
	c.Costing.MatchWorkers = getEnvAsInt("COSTING_MATCH_WORKERS", c.Costing.MatchWorkers)
	c.Costing.ValuationLookback = getEnvAsDuration("COSTING_VALUATION_LOOKBACK", c.Costing.ValuationLookback)
	c.Costing.ExpandRecipeWaste = getEnvAsBool("COSTING_EXPAND_RECIPE_WASTE", c.Costing.ExpandRecipeWaste)

	c.Events.Backend = getEnv("EVENTS_BACKEND", c.Events.Backend)
	c.Events.RedisURL = getEnv("REDIS_URL", c.Events.RedisURL)
	c.Events.Channel = getEnv("EVENTS_CHANNEL", c.Events.Channel)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
}

// Validate validates the configuration
// 設定をバリデーション
func (c *Config) Validate() error {
	// データベース設定チェック
	if c.Database.Host == "" {
		return fmt.Errorf("データベースホストが指定されていません")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("無効なデータベースポート: %d", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("データベースユーザーが指定されていません")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("データベース名が指定されていません")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("最大接続数は1以上である必要があります")
	}

	// API設定チェック
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("無効なAPIポート: %d", c.API.Port)
	}
	if c.API.MaxUploadMB <= 0 {
		return fmt.Errorf("アップロード上限は1MB以上である必要があります")
	}

	// 原価計算設定チェック
	if c.Costing.Workers <= 0 || c.Costing.MatchWorkers <= 0 {
		return fmt.Errorf("並列数は1以上である必要があります")
	}
	if c.Costing.ValuationLookback <= 0 {
		return fmt.Errorf("加重平均原価の対象期間は正である必要があります")
	}

	// イベント設定チェック
	switch c.Events.Backend {
	case "log":
	case "redis":
		if c.Events.RedisURL == "" {
			return fmt.Errorf("Redis URLが指定されていません")
		}
	default:
		return fmt.Errorf("無効なイベント配信先: %s", c.Events.Backend)
	}

	// ログ設定チェック
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("無効なログレベル: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("無効なログフォーマット: %s", c.Logging.Format)
	}

	return nil
}

// DSN generates PostgreSQL Data Source Name
// PostgreSQLデータソース名を生成
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// Manager converts the costing section into the engine configuration
// 原価計算設定をマネージャー設定に変換
func (c *Config) Manager() *inventory.Config {
	return &inventory.Config{
		Workers:           c.Costing.Workers,
		MatchWorkers:      c.Costing.MatchWorkers,
		ValuationLookback: c.Costing.ValuationLookback,
		ExpandRecipeWaste: c.Costing.ExpandRecipeWaste,
	}
}

// NewLogger builds a zap logger from the logging section
// ログ設定からロガーを作成
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("無効なログレベル: %w", err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Output != "" {
		zc.OutputPaths = []string{cfg.Output}
	}
	return zc.Build()
}

// ヘルパー関数

// getEnv gets environment variable with default value
// デフォルト値付きで環境変数を取得
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
// デフォルト値付きで環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsInt64 gets environment variable as int64 with default value
// デフォルト値付きで環境変数をint64として取得
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if int64Value, err := strconv.ParseInt(value, 10, 64); err == nil {
			return int64Value
		}
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean with default value
// デフォルト値付きで環境変数をbooleanとして取得
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration with default value
// デフォルト値付きで環境変数をdurationとして取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
