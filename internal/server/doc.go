// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
并行优雅关闭与系统信号监听。

# 核心类型

  - Manager：单个 HTTP 服务器，持有 http.Server、net.Listener
    与异步错误通道。
  - Group：同时管理 dashboard 与 metrics 服务器，Start 失败时回滚
    已启动的服务器，Shutdown 通过 errgroup 并行关闭并汇总错误。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空。
  - 信号监听：Group.Wait 监听 SIGINT/SIGTERM、ctx 结束或服务器异常，
    随后关闭全部服务器。
*/
package server
