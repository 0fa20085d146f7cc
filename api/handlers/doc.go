// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 debateflow HTTP API 的请求处理器实现。

# 概述

handlers 包实现看板所需的全部端点：驱动唯一的活动辩论、导出文本、
websocket 实时推送、归档浏览、上游连通性检查以及健康检查。
所有 Handler 均遵循标准 net/http 接口，路由在 cmd/debateflow 中注册。

# 核心类型

  - DebateHandler    — 持有活动会话：开始、单步、运行、收尾、导出、重置、归档
  - StreamHub        — websocket 扇出，慢订阅者直接断开
  - LLMHandler       — "Test API Connection"
  - HealthHandler    — /health, /healthz, /ready, /version
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 错误映射

会话错误码映射到 HTTP 状态码：UPSTREAM_UNAVAILABLE → 503（消息前缀
"debate paused"），SESSION_BUSY / BUDGET_EXHAUSTED / SESSION_NOT_COMPLETE → 409，
NO_ACTIVE_SESSION → 404。
*/
package handlers
