// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package providers 放置各 Provider 实现共用的配置结构与 HTTP 错误映射。
//
// MapHTTPError 把上游状态码转换为 llm.Error：429、408/504、502/503、529
// 以及其余 5xx 标记为可重试；400 中带 quota / credit 字样的归为额度耗尽。
package providers
