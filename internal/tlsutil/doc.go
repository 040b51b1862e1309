// Package tlsutil 提供集中式 TLS 配置与出站 HTTP 客户端，
// 供 LLM 提供商、模型列表、搜索与网页抓取共用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
