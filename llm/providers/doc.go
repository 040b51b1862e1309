// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供跨模型服务商的通用适配与辅助能力，是 openaicompat 与
anthropic 两个具体实现的公共基础层。

# 核心类型

  - BaseProviderConfig / AnthropicConfig — Provider 基础配置
  - OpenAICompat* 系列 — OpenAI 兼容 API 的请求/响应/工具调用结构体
  - RetryableProvider — 对可重试错误做指数退避的 Provider 包装器

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - TransportError — 区分网络超时与不可达
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI — 统一消息与工具格式转换
  - ToLLMChatResponse — OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ListModelsOpenAICompat — 通用模型列表获取
*/
package providers
