// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 claude 提供 Anthropic Claude 的 llm.Provider 实现。

# 协议要点

  - 认证使用 x-api-key 请求头，附带 anthropic-version
  - system 消息从 messages 中提取，单独传递到 system 字段
  - 相邻同角色消息合并，首条消息保证为 user
  - HTTP 错误经 providers.MapHTTPError 映射为 llm.Error（429/5xx/529 可重试）

# 支持能力

  - Chat Completion（/v1/messages，同步）
  - 健康检查（/v1/models），供仪表盘 "Test API Connection" 使用
*/
package claude
