package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Seats    SeatsConfig    `mapstructure:"seats"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int             `mapstructure:"port"`
	CORS         CORSConfig      `mapstructure:"cors"`
	BodyLimit    int64           `mapstructure:"body_limit"` // 请求体上限（字节）
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimitConfig 接口限流配置
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	AuthLimit int           `mapstructure:"auth_limit"` // 登录/注册/刷新接口的独立限额
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string   `mapstructure:"level"`
	Format string   `mapstructure:"format"`
	Output []string `mapstructure:"output"` // stdout / stderr / 文件路径
}

// BillingConfig 缴费与定时任务配置
type BillingConfig struct {
	DueDay           int    `mapstructure:"due_day"`            // 账期次月的截止日
	OverdueSweepCron string `mapstructure:"overdue_sweep_cron"` // 逾期扫描 cron 表达式
	MonthlyCron      string `mapstructure:"monthly_cron"`       // 月度账单生成 cron 表达式，空值表示关闭
	Currency         string `mapstructure:"currency"`
	JobsEnabled      bool   `mapstructure:"jobs_enabled"`
}

// SeatsConfig 座位配置
type SeatsConfig struct {
	InitialCount     int  `mapstructure:"initial_count"`
	PerRow           int  `mapstructure:"per_row"`
	ReconcileOnStart bool `mapstructure:"reconcile_on_start"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.limit", 120)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.auth_limit", 10)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "studyhall")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "1h")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", []string{"stdout"})

	v.SetDefault("billing.due_day", 15)
	v.SetDefault("billing.overdue_sweep_cron", "@every 1h")
	v.SetDefault("billing.monthly_cron", "0 6 1 * *")
	v.SetDefault("billing.currency", "INR")
	v.SetDefault("billing.jobs_enabled", true)

	v.SetDefault("seats.initial_count", 50)
	v.SetDefault("seats.per_row", 10)
	v.SetDefault("seats.reconcile_on_start", true)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("STUDYHALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Billing.DueDay < 1 || c.Billing.DueDay > 28 {
		return fmt.Errorf("配置校验失败: billing.due_day 必须在 1-28 之间")
	}
	if c.Seats.PerRow <= 0 {
		return fmt.Errorf("配置校验失败: seats.per_row 必须大于 0")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Billing.OverdueSweepCron); err != nil {
		return fmt.Errorf("配置校验失败: billing.overdue_sweep_cron 无效: %w", err)
	}
	if c.Billing.MonthlyCron != "" {
		if _, err := parser.Parse(c.Billing.MonthlyCron); err != nil {
			return fmt.Errorf("配置校验失败: billing.monthly_cron 无效: %w", err)
		}
	}
	return nil
}
