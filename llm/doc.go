// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、请求/响应模型、
错误码与凭据覆盖。

# 概述

本包屏蔽不同模型服务商在接口、鉴权与错误语义上的差异，对上层的
研究团队（agent/crews、agent/research）暴露一致的请求与响应模型。
具体的 HTTP 客户端位于 llm/providers 子包，模型目录位于 llm/catalog，
按角色解析凭据的存储位于 llm/credentials，模型句柄的构造位于 llm/factory。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name / SupportsNativeFunctionCalling
  - [ModelLister]：在线列出模型

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [Message] / [ToolCall] / [ToolSchema]：消息与工具调用
  - [Error] / [ErrorCode]：统一错误
*/
package llm
