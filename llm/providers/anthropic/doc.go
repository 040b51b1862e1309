// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 anthropic 提供 Anthropic Claude 系列模型的 Provider 适配实现，
把统一的 llm.ChatRequest 映射到 Messages API（/v1/messages）。

# 协议差异

  - 认证使用 x-api-key 请求头（非 Bearer Token），并携带 anthropic-version
  - system 消息从 messages 数组中提取，单独传递到 system 字段
  - 消息 content 为数组形式，支持 text / tool_use / tool_result 混合
  - Tool 结果包装为 user 角色的 tool_result，连续结果合并为一条
  - max_tokens 必填，默认 8192

# 支持能力

  - Chat Completion（同步）
  - 原生 Function Calling
  - 模型列表查询与健康检查
*/
package anthropic
