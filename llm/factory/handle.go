package factory

import (
	"fmt"

	"github.com/BaSui01/crewstudio/llm"
	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/BaSui01/crewstudio/llm/credentials"
)

// Handle 绑定唯一的 (provider, model, role)，只属于请求它的 Agent。
type Handle struct {
	Provider         catalog.Kind       `json:"provider"`
	Model            string             `json:"model"`        // 线上请求使用的模型名
	RoutedModel      string             `json:"routed_model"` // prefix/model，用于展示与日志
	Role             credentials.Role   `json:"role"`
	Temperature      float32            `json:"temperature"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	BaseURL          string             `json:"base_url"`
	APIKey           string             `json:"-"`
	CredentialSource credentials.Source `json:"credential_source"`
	Client           llm.Provider       `json:"-"`
}

// ChatRequest 以 Handle 的参数构造请求。
func (h *Handle) ChatRequest(msgs []llm.Message, tools []llm.ToolSchema) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       h.Model,
		Messages:    msgs,
		Tools:       tools,
		Temperature: h.Temperature,
		MaxTokens:   h.MaxTokens,
		Metadata: map[string]string{
			"routed_model": h.RoutedModel,
			"role":         string(h.Role),
		},
	}
}

func (h *Handle) String() string {
	key := "none"
	if h.APIKey != "" {
		key = credentials.Mask(h.APIKey)
	}
	return fmt.Sprintf("%s role=%s temp=%.1f key=%s", h.RoutedModel, h.Role, h.Temperature, key)
}
