// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、LLM 调用、
模型列表、工具调用与研究运行。

# 概述

每个 Collector 持有独立的 prometheus.Registry，通过 promauto.With 注册，
Handler 只暴露本实例的指标。同一进程内可以创建多个 Collector。

# 主要能力

  - HTTP：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM：请求总数、耗时、prompt/completion Token 用量，按 provider/model 分组。
  - 模型列表：按 provider 与结果（live/static/fallback/timeout/unavailable）计数。
  - 工具：web_search / web_scrape 调用次数与耗时。
  - 研究运行：按 process 分组的运行次数、耗时，以及进行中的运行数与会话数。

Collector 同时满足 catalog.Recorder、tools.Recorder、providers.Recorder
与 research.RunRecorder，由 cmd/crewstudio 统一注入。
*/
package metrics
