// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// 包 console 负责命令行下的辩论展示：Printer 逐条打印发言，
// Watch 用 bubbletea 显示 "X is typing..." 动画并在收尾后给出结果横幅。
package console
