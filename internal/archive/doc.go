// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 archive 保存导出的辩论记录。只存放写入后不再变化的文本产物，
进行中的会话状态仍只保存在内存里。

# 核心类型

  - Record：一份归档记录（辩题、收尾结果、回合数、完整文本）。
  - Store：Save/Get/List/Close 接口。
  - GormStore：sqlite（glebarez 纯 Go 驱动）、postgres、mysql，启动时 AutoMigrate。
  - RedisStore：每条记录一个 JSON 键，配合有序集合按时间倒序列出，支持 TTL。
  - NopStore：未配置归档时使用。

NewStore 根据 config.ArchiveConfig 选择实现，并在提供 metrics.Collector 时
记录每次操作的次数与耗时。
*/
package archive
