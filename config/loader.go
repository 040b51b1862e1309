// =============================================================================
// 📦 crewstudio 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("crewstudio.yaml").
//	    WithEnvPrefix("CREWSTUDIO").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 是配置环境变量前缀，例如 CREWSTUDIO_LOG_LEVEL。
const DefaultEnvPrefix = "CREWSTUDIO"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 crewstudio 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Session 会话配置
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Crew 研究团队执行配置
	Crew CrewConfig `yaml:"crew" env:"CREW"`

	// Providers LLM Provider 端点与超时
	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`

	// Search 搜索与抓取工具配置
	Search SearchConfig `yaml:"search" env:"SEARCH"`

	// Selection 默认的模型选择
	Selection Selection `yaml:"selection" env:"-"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示与 HTTP 同端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需覆盖一次完整的研究运行
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每 IP 每秒请求数
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的 WebSocket Origin 模式
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	// 最大会话数（LRU 淘汰）
	MaxSessions int `yaml:"max_sessions" env:"MAX_SESSIONS"`
	// 会话有效期，同时是令牌有效期
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// HS256 签名密钥，为空时启动时随机生成
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 令牌签发者
	Issuer string `yaml:"issuer" env:"ISSUER"`
}

// CrewConfig 研究运行配置
type CrewConfig struct {
	// 报告输出目录
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
	// 报告文件名
	ReportFile string `yaml:"report_file" env:"REPORT_FILE"`
	// 每个 Agent 的最大 ReAct 轮数 (1..20)
	MaxIterations int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	// 单次运行超时
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
	// 输出详细执行日志
	Verbose bool `yaml:"verbose" env:"VERBOSE"`
}

// ProvidersConfig Provider 端点配置
type ProvidersConfig struct {
	OpenAIBaseURL    string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicBaseURL string `yaml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL"`
	GroqBaseURL      string `yaml:"groq_base_url" env:"GROQ_BASE_URL"`
	ZhipuBaseURL     string `yaml:"zhipu_base_url" env:"ZHIPU_BASE_URL"`
	OllamaBaseURL    string `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL"`
	// 单次补全请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Provider 级别的瞬时错误重试次数，0 关闭
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// OpenAI 模型列表查询超时
	OpenAIListTimeout time.Duration `yaml:"openai_list_timeout" env:"OPENAI_LIST_TIMEOUT"`
	// 本地 Ollama 模型列表查询超时
	OllamaListTimeout time.Duration `yaml:"ollama_list_timeout" env:"OLLAMA_LIST_TIMEOUT"`
}

// SearchConfig 搜索与抓取工具配置
type SearchConfig struct {
	// Serper 接口地址
	SerperURL string `yaml:"serper_url" env:"SERPER_URL"`
	// 单次搜索超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 默认结果数
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
	// 每分钟最多搜索次数
	CallsPerMinute int `yaml:"calls_per_minute" env:"CALLS_PER_MINUTE"`
	// 单页抓取超时
	ScrapeTimeout time.Duration `yaml:"scrape_timeout" env:"SCRAPE_TIMEOUT"`
	// 抓取内容最大长度（字符）
	ScrapeMaxLength int `yaml:"scrape_max_length" env:"SCRAPE_MAX_LENGTH"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// ReportPath 返回报告的完整路径。
func (c CrewConfig) ReportPath() string {
	return strings.TrimRight(c.OutputDir, "/") + "/" + c.ReportFile
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithLookupEnv 替换环境变量读取函数
func (l *Loader) WithLookupEnv(fn func(string) (string, bool)) *Loader {
	if fn != nil {
		l.lookupEnv = fn
	}
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Load 以默认前缀加载 path，并执行 Validate
func Load(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).WithValidator((*Config).Validate).Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, "session.max_sessions must be positive")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}
	if c.Crew.MaxIterations < 1 || c.Crew.MaxIterations > 20 {
		errs = append(errs, "crew.max_iterations must be between 1 and 20")
	}
	if c.Crew.OutputDir == "" || c.Crew.ReportFile == "" {
		errs = append(errs, "crew.output_dir and crew.report_file are required")
	}
	if c.Providers.MaxRetries < 0 {
		errs = append(errs, "providers.max_retries must not be negative")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, "log.format must be json or console")
	}
	if !c.Selection.IsZero() {
		if err := c.Selection.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
