// Package openaicompat provides a shared base implementation for the
// OpenAI-compatible backends: OpenAI itself, GROQ, Zhipu GLM and Ollama.
//
// They share the same API format (OpenAI Chat Completions). Presets only
// override what differs:
//
//   - Provider name and fallback model
//   - Base URL and endpoint paths
//   - Auth headers (Ollama sends none)
//
// Usage:
//
//	p := openaicompat.NewGroq(providers.BaseProviderConfig{
//	    APIKey: key,
//	    Model:  "llama-3.3-70b-versatile",
//	}, nil, logger)
package openaicompat
