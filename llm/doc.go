// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 llm 定义 DebateFlow 与大语言模型服务之间的最小契约。

# 概述

[Provider] 只暴露同步补全、健康检查与名称三项能力：一次辩论发言对应
一次 Completion 调用，看板的 "Test API Connection" 对应 HealthCheck。

# 错误语义

Provider 返回的失败统一为 [*Error]，携带 [ErrorCode]、HTTP 状态与
Retryable 标记。[IsRetryable] 穿透包装链读取该标记，llm/retry 据此
决定是否重试，llm/circuitbreaker 据此累计失败。

# 相关子包

  - llm/providers：共享配置与 HTTP 错误映射
  - llm/providers/anthropic：Claude Messages API 实现
  - llm/retry：指数退避重试
  - llm/circuitbreaker：熔断器
*/
package llm
