// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package config 提供 DebateFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 DEBATEFLOW_）的顺序合并，
// 加载前可先读取 .env 文件。裸 API_KEY 作为 LLM Key 的兜底。
package config
