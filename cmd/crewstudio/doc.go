// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 crewstudio 命令行程序入口。

# 概述

cmd/crewstudio 基于 cobra 组织子命令：列出 Provider 与模型、交互式
选择模型（promptui）、运行研究团队并在终端渲染报告（glamour），
以及启动 HTTP API 服务。程序支持 YAML 配置文件加载、CREWSTUDIO_
前缀的环境变量覆盖、结构化日志（zap）与 Prometheus 指标。

# 核心类型

  - app         — CLI 与服务端共用的组件：Catalog、Factory、Runner、指标
  - Server      — API 与 Metrics 双端口，管理中间件链与优雅关闭
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 子命令

  - providers / models      — Provider 目录与模型列表
  - configure               — 交互式选择并保存 crewstudio-selection.yaml
  - run                     — 运行研究团队，写出 output/research_report.md
  - serve                   — HTTP + WebSocket API
  - config export / import  — 选择导出与导入
  - version

# 中间件链

Recovery、RequestID、SecurityHeaders、RequestLogger、Metrics、
OTelTracing、RateLimiter（基于 IP，超限直接 429）。会话认证由
handlers.SessionHandler.Authenticate 按路由包装。

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
