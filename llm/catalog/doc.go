// Package catalog 描述受支持的 LLM Provider（封闭枚举 Kind）及其模型列表。
//
// OpenAI 与 Ollama 支持在线查询，其余使用内置列表。查询结果是类型化的
// ListResult（live / static / fallback / timeout / unavailable），网络失败
// 只会降级，不会作为 error 传播。
package catalog
