package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
type BaseProviderConfig struct {
	APIKey  string        `json:"-" yaml:"-"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AnthropicConfig Anthropic Messages API 配置
type AnthropicConfig struct {
	BaseProviderConfig `yaml:",inline"`
	// MaxTokens 在请求未指定时使用；Messages API 要求必须提供
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"` // anthropic-version 头
}
