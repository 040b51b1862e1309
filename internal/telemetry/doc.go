// Package telemetry 封装 OpenTelemetry SDK 初始化，为 crewstudio 提供
// 全局 TracerProvider 与 MeterProvider。禁用时不连接任何外部服务。
package telemetry
