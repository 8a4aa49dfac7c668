package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 选择存储驱动：mysql（生产）或 sqlite（本地开发/单机部署）
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvent string `mapstructure:"ledger_event"`
	OrderEvent  string `mapstructure:"order_event"`
}

type BusinessConfig struct {
	BonusThreshold           float64 `mapstructure:"bonus_threshold"`
	BonusAmount              float64 `mapstructure:"bonus_amount"`
	MaxRetryCount            int     `mapstructure:"max_retry_count"`
	LockTTLSeconds           int     `mapstructure:"lock_ttl_seconds"`
	LockRetryIntervalMs      int     `mapstructure:"lock_retry_interval_ms"`
	LockMaxRetries           int     `mapstructure:"lock_max_retries"`
	HistoryOrder             string  `mapstructure:"history_order"`
	ReconcileIntervalSeconds int     `mapstructure:"reconcile_interval_seconds"`
	Timezone                 string  `mapstructure:"timezone"`
}

// Threshold 每满多少充值额度奖励一次
func (b BusinessConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(b.BonusThreshold)
}

// Bonus 每跨过一个档位奖励的金额
func (b BusinessConfig) Bonus() decimal.Decimal {
	return decimal.NewFromFloat(b.BonusAmount)
}

func (b BusinessConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

func (b BusinessConfig) LockRetryInterval() time.Duration {
	return time.Duration(b.LockRetryIntervalMs) * time.Millisecond
}

func (b BusinessConfig) ReconcileInterval() time.Duration {
	return time.Duration(b.ReconcileIntervalSeconds) * time.Second
}

// Location 月度充值按该时区切分自然月，未配置或无法解析时使用服务器本地时区
func (b BusinessConfig) Location() *time.Location {
	if b.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Default 返回只包含默认值的配置，测试和 sqlite 单机模式直接使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// 默认值都是基础类型，解码不会失败
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite_path", "cafeteria.db")

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "cafeteria")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.ledger_event", "cafeteria.ledger")
	v.SetDefault("kafka.topic.order_event", "cafeteria.order")

	v.SetDefault("business.bonus_threshold", 250)
	v.SetDefault("business.bonus_amount", 500)
	v.SetDefault("business.max_retry_count", 3)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.lock_retry_interval_ms", 50)
	v.SetDefault("business.lock_max_retries", 100)
	v.SetDefault("business.history_order", "asc")
	v.SetDefault("business.reconcile_interval_seconds", 300)
	v.SetDefault("business.timezone", "Local")
}

// Load 读取配置文件，环境变量 CAFETERIA_* 覆盖文件中的值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAFETERIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver 不支持: %q", c.Database.Driver)
	}
	if c.Business.BonusThreshold <= 0 {
		return fmt.Errorf("business.bonus_threshold 必须大于0")
	}
	if c.Business.BonusAmount < 0 {
		return fmt.Errorf("business.bonus_amount 不能为负数")
	}
	if c.Business.MaxRetryCount < 1 {
		return fmt.Errorf("business.max_retry_count 至少为1")
	}
	switch strings.ToLower(c.Business.HistoryOrder) {
	case "asc", "desc":
	default:
		return fmt.Errorf("business.history_order 只能是 asc 或 desc")
	}
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("business.timezone 无法识别: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.enabled 为 true 时必须配置 kafka.brokers")
	}
	return nil
}
