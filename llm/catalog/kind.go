package catalog

import (
	"fmt"
	"strings"
)

// Kind 是受支持 Provider 的封闭枚举。
type Kind int

const (
	KindUnknown Kind = iota
	KindOpenAI
	KindAnthropic
	KindGroq
	KindZhipu
	KindOllama
)

// AllKinds 按展示顺序返回全部 Provider。
func AllKinds() []Kind {
	return []Kind{KindOpenAI, KindAnthropic, KindGroq, KindZhipu, KindOllama}
}

// String 返回短名（openai、anthropic、groq、zhipu、ollama）。
func (k Kind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindAnthropic:
		return "anthropic"
	case KindGroq:
		return "groq"
	case KindZhipu:
		return "zhipu"
	case KindOllama:
		return "ollama"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the supported providers.
func (k Kind) Valid() bool {
	return k >= KindOpenAI && k <= KindOllama
}

// UnknownProviderError 表示无法识别的 Provider 名称。
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q", e.Name)
}

// ParseKind 解析展示名或短名，大小写不敏感。
// "Anthropic (Claude)"、"Zhipu AI (GLM)" 这类 UI 展示名同样接受。
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "openai":
		return KindOpenAI, nil
	case "anthropic", "anthropic (claude)", "claude":
		return KindAnthropic, nil
	case "groq":
		return KindGroq, nil
	case "zhipu", "glm", "zhipuai", "zhipu ai", "zhipu ai (glm)":
		return KindZhipu, nil
	case "ollama":
		return KindOllama, nil
	}
	return KindUnknown, &UnknownProviderError{Name: s}
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, &UnknownProviderError{Name: k.String()}
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
