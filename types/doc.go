// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 debateflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 debate、agent、api
等上层模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误，含 HTTP 状态码与 Retryable 标记

# 错误码

  - 辩论核心：DUPLICATE_IDENTITY、INVALID_PARTICIPANT、BUDGET_EXHAUSTED、
    OUT_OF_ORDER_TURN、UPSTREAM_UNAVAILABLE、EMPTY_CONTENT、SESSION_BUSY、
    SESSION_NOT_COMPLETE
  - 接口层：NO_ACTIVE_SESSION、INVALID_CONFIG、INVALID_REQUEST、NOT_FOUND、
    UNAUTHORIZED、RATE_LIMITED、INTERNAL_ERROR

# 主要能力

  - 错误工具链：AsError / IsErrorCode / GetErrorCode / IsRetryable，
    均通过 errors.As 穿透包装链
*/
package types
