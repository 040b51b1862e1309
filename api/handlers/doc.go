// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 crewstudio HTTP API 的请求处理器。

# 概述

所有 Handler 遵循标准 net/http 接口，由 API.Register 注册到
http.ServeMux。除健康检查与创建会话外，所有路由都需要
Authorization: Bearer <token>，令牌由 POST /api/v1/sessions 签发。

# 核心类型

  - SessionHandler   — 会话创建/删除、凭据写入、模型选择，以及 Authenticate
  - CatalogHandler   — Provider 目录与模型列表（使用会话凭据）
  - RunHandler       — 阻塞式运行与 WebSocket 事件流
  - HealthHandler    — /health, /healthz, /ready, /version
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）

# 错误映射

ToAPIError 把领域错误映射为 types.Error：执行失败为 502 EXECUTION_FAILED，
不支持的 Provider 为 422 UNSUPPORTED_PROVIDER，会话缺失或令牌无效为
401 SESSION_NOT_FOUND。模型列表的网络失败不是错误，体现在 status 字段中。
*/
package handlers
