// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package tlsutil 集中管理 DebateFlow 的出站 TLS 设置：
// Claude Messages API 的 HTTP 客户端与 Redis 归档连接共用同一份
// 加固配置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
