// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 crews 提供基于角色分工的多智能体团队执行引擎。

# 核心模型

  - Role：成员的角色名称、目标、背景与委派权限。
  - CrewMember：持有角色与底层 CrewAgent 的成员实例。
  - CrewTask：任务描述、期望输出、上下文与指定执行者。
  - Proposal / NegotiationResult：委派协商协议。
  - Crew：团队容器，管理成员、任务队列与执行流程。

# 执行方式

  - 顺序执行（Sequential）：按任务顺序执行，前序输出作为后续任务上下文。
  - 层级执行（Hierarchical）：唯一的委派者可先制定计划（Planner），再逐个
    委派任务；成员拒绝、协商失败或执行失败时由管理者自己执行，最后由
    Synthesizer 汇总为最终交付物。

# LLMAgent

LLMAgent 是基于 llm/tools ReAct 循环的 CrewAgent 实现，只看得到自己被
授权的工具（tools.ScopedRegistry），并同时实现 Planner 与 Synthesizer。
*/
package crews
