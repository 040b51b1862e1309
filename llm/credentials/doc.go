// Package credentials 按 (Provider, 角色) 保存会话级凭据。
//
// 角色凭据（如 OPENAI_API_KEY_MANAGER）总是优先于共享凭据
// （OPENAI_API_KEY）。环境变量只在启动时读取一次，之后每个会话持有
// 独立的 Store 副本，互不可见。
package credentials
