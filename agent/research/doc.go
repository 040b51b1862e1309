/*
包 research 把用户的模型选择组装成研究团队并执行。

# 组装

  - BuildManager / BuildWorkers / BuildSingle：固定人设的 AgentSpec。
  - BuildHierarchicalTasks / BuildSingleTask：固定任务描述与预期输出约定。
  - Assemble：根据 Selection.UseHierarchical 选择拓扑。层级模式为 1 个管理者、
    3 名专家、3 个任务并开启规划；顺序模式为 1 个 Agent、1 个任务。

# 执行

Runner 把 CrewSpec 转成 crews.Crew，每次运行创建独立的工具注册表（搜索凭据来自
会话），执行完成后把报告覆盖写入 output/research_report.md，并通过 RunEvent
推送进度。执行失败以 *ExecutionError 返回。
*/
package research
