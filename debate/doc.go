// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package debate 实现多智能体辩论的回合编排核心。

# 概述

debate 自己掌控轮转、记录与收尾，不依赖外部群聊编排器。调用方只需
提供一个 Generator（通常是 agent.LLMGenerator），其余由 Session 负责。

# 核心组件

  - Registry — 有序参与者表，插入顺序即发言顺序，创建 Session 后封存
  - Log — 只追加的回合日志，序号从 0 连续递增，All/Tail 返回快照
  - Scheduler — 纯轮询调度：NextSpeaker = Ordered()[seq mod P]，
    RoundNumber = seq div P，超出预算返回 BUDGET_EXHAUSTED
  - Guarantor — 终局保证：最后一条不满足 ClosingPredicate 时由主持人
    追加一条确定性的结论，且只追加一次
  - Session — 单写者会话：并发 Step/Run/Finalize 返回 SESSION_BUSY

# 结论策略

  - DeterministicStrategy — 由 (topic, turn count) 的 FNV 哈希选出胜者
  - FixedWinnerStrategy — 手动指定胜者
  - SeededRandomStrategy — 调用方注入种子的可复现随机

# 状态

running → paused（上游失败，可继续 Step）→ completed（预算用尽）→
concluded_natural / concluded_forced（Finalize 之后）。
*/
package debate
