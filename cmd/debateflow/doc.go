// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 DebateFlow 程序入口。

# 概述

cmd/debateflow 既能在终端直接跑一场辩论，也能启动看板服务。
配置按 默认值 → YAML → .env / DEBATEFLOW_* 环境变量 的顺序加载，
日志使用 zap，指标通过独立端口以 Prometheus 格式暴露。

# 子命令

  - run      — 终端辩论；--tui 显示 "X is typing..." 动画，--out 写出文本记录。
    上游失败时以退出码 2 结束，并仍写出已有发言
  - serve    — 看板 + REST API + websocket 推送 + Metrics 双端口，优雅关闭
  - version  — 构建信息（Version、BuildTime、GitCommit 通过 ldflags 注入）
  - health   — 请求 /health

# 中间件链

Recovery → RequestID → SecurityHeaders → OTelTracing → MetricsMiddleware →
RequestLogger → CORS → RateLimiter（基于 IP）→ APIKeyAuth（X-API-Key，可选
?api_key=）→ JWTAuth（HS256 / RS256，可选）
*/
package main
