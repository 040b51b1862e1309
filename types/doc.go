// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 crewstudio 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、agent、api 与 cmd
等上层模块提供统一的错误契约与上下文键。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - 研究团队错误码    — 会话缺失、凭据缺失、不支持的 Provider、执行失败等

# 主要能力

  - Context 传播：WithTraceID / WithSessionID / WithRunID
  - 错误工具链：AsError / GetErrorCode / IsRetryable
*/
package types
