// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package session 管理按用户隔离的会话状态。
//
// 每个会话持有独立的 credentials.Store 与模型选择，会话之间不共享凭据。
// Store 基于 golang-lru/v2 的 expirable LRU，TokenIssuer 使用 golang-jwt/v5 签发 HS256 令牌。
package session
