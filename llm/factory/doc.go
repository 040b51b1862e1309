// Package factory 把 (provider, model, role) 构建为可调用的模型 Handle。
//
// 规则：OpenAI 与 Anthropic 的 manager 温度 0.3，其余角色 0.7；
// Anthropic 附带 max_tokens 8192；GROQ、智谱、Ollama 固定 0.7；
// Ollama 不使用凭据。构建时不发起网络请求。
package factory
