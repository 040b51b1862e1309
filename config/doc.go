// Package config 提供 crewstudio 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 CREWSTUDIO_）的顺序加载。
// Selection 是用户的模型选择对象，支持 YAML/JSON 导出与导入，
// 同时接受简化形式 {provider, model}。
package config
