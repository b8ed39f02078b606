package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Vivid    VividConfig    `mapstructure:"vivid"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// VividConfig Vivid Seats 经纪接口配置
type VividConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIToken      string        `mapstructure:"api_token"`      // 为空时回退到环境变量 VIVID_API_TOKEN
	Timeout       time.Duration `mapstructure:"timeout"`        // 列表拉取超时
	DetailTimeout time.Duration `mapstructure:"detail_timeout"` // 单订单详情拉取超时
}

// SnapshotConfig 快照文件配置
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
	// 还原时判定"已富集"的最小字段数（经验阈值，可调）
	EnrichedMinFields int `mapstructure:"enriched_min_fields"`
}

// TransferConfig 转移请求配置
type TransferConfig struct {
	Source string `mapstructure:"source"` // transferSource 来源标识
}

// RedisConfig Redis 配置（可选，addr 为空时禁用事件发布）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// MySQLConfig MySQL 配置（可选，dsn 为空时禁用转移审计）
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// 默认值
const (
	DefaultBaseURL           = "https://brokers.vividseats.com/webservices/v1"
	DefaultTimeout           = 30 * time.Second
	DefaultDetailTimeout     = 15 * time.Second
	DefaultEnrichedMinFields = 10
	DefaultTransferSource    = "Manual_GUI_Automation"
	DefaultEventChannel      = "vividsync_store_events"
)

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充缺省配置
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Vivid.BaseURL == "" {
		c.Vivid.BaseURL = DefaultBaseURL
	}
	// 凭证优先取配置文件，其次取环境变量
	if c.Vivid.APIToken == "" {
		c.Vivid.APIToken = os.Getenv("VIVID_API_TOKEN")
	}
	if c.Vivid.Timeout <= 0 {
		c.Vivid.Timeout = DefaultTimeout
	}
	if c.Vivid.DetailTimeout <= 0 {
		c.Vivid.DetailTimeout = DefaultDetailTimeout
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = "."
	}
	if c.Snapshot.EnrichedMinFields <= 0 {
		c.Snapshot.EnrichedMinFields = DefaultEnrichedMinFields
	}
	if c.Transfer.Source == "" {
		c.Transfer.Source = DefaultTransferSource
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		c.Redis.Channel = DefaultEventChannel
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	// 凭证缺失是启动期致命错误，任何同步都不允许开始
	if c.Vivid.APIToken == "" {
		return fmt.Errorf("vivid api token is required (set vivid.api_token or VIVID_API_TOKEN)")
	}
	return nil
}
