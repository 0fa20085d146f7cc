// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package database 管理归档库（sqlite / postgres / mysql）的 GORM 连接池。

PoolManager 应用连接池上限，后台定时探活，并提供带重试的事务：
死锁、序列化失败与断连类错误按指数退避重试，其余错误直接返回。
sqlite 使用 SingleConnConfig，保证 :memory: 库在整个进程内只有一份。
*/
package database
