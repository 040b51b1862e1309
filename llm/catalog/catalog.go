package catalog

// Descriptor 描述一个 Provider 的固定属性，定义后不可变。
type Descriptor struct {
	Kind           Kind   `json:"kind"`
	DisplayName    string `json:"display_name"`
	RoutingPrefix  string `json:"routing_prefix"`
	EnvPrefix      string `json:"env_prefix,omitempty"`
	RequiresAPIKey bool   `json:"requires_api_key"`
	LiveListing    bool   `json:"live_listing"`
	DefaultBaseURL string `json:"default_base_url"`

	staticModels []string
}

// StaticModels returns a copy of the built-in model list.
func (d Descriptor) StaticModels() []string {
	return append([]string(nil), d.staticModels...)
}

// OpenAI 静态列表已按 RankModels 的优先级排序。
var openAIStatic = []string{
	"gpt-5.2-pro",
	"gpt-5.2",
	"gpt-5.1",
	"gpt-5",
	"gpt-5-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
	"gpt-4o",
	"gpt-4o-mini",
	"o1",
	"o3",
	"o3-mini",
}

var descriptors = []Descriptor{
	{
		Kind:           KindOpenAI,
		DisplayName:    "OpenAI",
		RoutingPrefix:  "openai",
		EnvPrefix:      "OPENAI",
		RequiresAPIKey: true,
		LiveListing:    true,
		DefaultBaseURL: "https://api.openai.com",
		staticModels:   openAIStatic,
	},
	{
		Kind:           KindAnthropic,
		DisplayName:    "Anthropic (Claude)",
		RoutingPrefix:  "anthropic",
		EnvPrefix:      "ANTHROPIC",
		RequiresAPIKey: true,
		DefaultBaseURL: "https://api.anthropic.com",
		staticModels: []string{
			"claude-opus-4-5",
			"claude-sonnet-4-5",
			"claude-haiku-4-5",
			"claude-3-7-sonnet-latest",
		},
	},
	{
		Kind:           KindGroq,
		DisplayName:    "GROQ",
		RoutingPrefix:  "groq",
		EnvPrefix:      "GROQ",
		RequiresAPIKey: true,
		DefaultBaseURL: "https://api.groq.com/openai",
		staticModels: []string{
			"llama-3.3-70b-versatile",
			"llama-3.1-8b-instant",
			"mixtral-8x7b-32768",
			"gemma2-9b-it",
		},
	},
	{
		Kind:           KindZhipu,
		DisplayName:    "Zhipu AI (GLM)",
		RoutingPrefix:  "zhipu",
		EnvPrefix:      "ZHIPUAI",
		RequiresAPIKey: true,
		DefaultBaseURL: "https://open.bigmodel.cn",
		staticModels:   []string{"glm-4.6", "glm-4.5", "glm-4-plus", "glm-4-flash"},
	},
	{
		// 本地模型只能在线列出
		Kind:           KindOllama,
		DisplayName:    "Ollama",
		RoutingPrefix:  "ollama",
		LiveListing:    true,
		DefaultBaseURL: "http://localhost:11434",
	},
}

// Providers 返回全部 Provider 描述（副本）。
func Providers() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// Lookup 按 Kind 查找描述。
func Lookup(k Kind) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Kind == k {
			return d, true
		}
	}
	return Descriptor{}, false
}

// MustLookup panics for an invalid kind; use only with AllKinds values.
func MustLookup(k Kind) Descriptor {
	d, ok := Lookup(k)
	if !ok {
		panic("catalog: no descriptor for " + k.String())
	}
	return d
}
