// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、LLM、
辩论会话与归档存储四个维度。

# 核心类型

  - Collector：指标收集器，通过 promauto 注册到默认 Registry，
    所有指标按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数、耗时、Token 用量（prompt/completion）与熔断器状态。
  - 辩论指标：已提交回合（区分兜底收尾回合）、生成失败、收尾结果、
    内存会话数以及实时推送订阅者数量与被丢弃的慢订阅者。
  - 归档指标：按 driver/operation 统计次数与耗时。
*/
package metrics
