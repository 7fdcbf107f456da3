package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

// RenderMarkdown renders the result set as one Markdown report: a summary
// table, per-status counts and, when includeDetails is set, a subsection
// per log with fully decoded inputs/outputs and node executions.
func RenderMarkdown(rs *enrich.ResultSet, includeDetails bool) File {
	var b strings.Builder

	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line("# Dify 工作流执行日志报告")
	line("")
	line(fmt.Sprintf("生成时间: %s", time.Now().Format("2006-01-02 15:04:05")))
	line("")

	line("## 📊 整体摘要")
	line("")
	line("| 项目 | 值 |")
	line("|------|-----|")
	line(fmt.Sprintf("| 总记录数 | %d |", rs.Total))
	line(fmt.Sprintf("| 当前页 | %d |", rs.Page))
	line(fmt.Sprintf("| 每页数量 | %d |", rs.Limit))
	line(fmt.Sprintf("| 当前页记录数 | %d |", len(rs.Data)))
	line(fmt.Sprintf("| 是否有更多 | %s |", yesNo(rs.HasMore)))
	line("")

	if len(rs.Data) > 0 {
		statusCount := map[string]int{}
		for _, rec := range rs.Data {
			status := rec.WorkflowRun.Status
			if status == "" {
				status = "unknown"
			}
			statusCount[status]++
		}
		statuses := make([]string, 0, len(statusCount))
		for s := range statusCount {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)

		line("### 状态统计")
		line("")
		line("| 状态 | 数量 |")
		line("|------|------|")
		for _, s := range statuses {
			line(fmt.Sprintf("| %s | %d |", s, statusCount[s]))
		}
		line("")
	}

	if includeDetails {
		line("## 📋 日志详情")
		line("")
		for i, rec := range rs.Data {
			writeLogSection(line, i+1, rec)
			if i < len(rs.Data)-1 {
				line("---")
				line("")
			}
		}
	}

	return File{
		Name:    fmt.Sprintf("logs_report_%d.md", rs.Total),
		Content: []byte(b.String()),
	}
}

func writeLogSection(line func(string), seq int, rec *enrich.Log) {
	line(fmt.Sprintf("### %d. 日志 ID: `%s`", seq, rec.ID))
	line("")
	line("#### 基本信息")
	line("")
	line("| 字段 | 值 |")
	line("|------|-----|")
	line(fmt.Sprintf("| 日志ID | `%s` |", rec.ID))
	line(fmt.Sprintf("| 状态 | %s |", orNA(rec.WorkflowRun.Status)))
	line(fmt.Sprintf("| 创建时间 | %s |", timestampOrNA(rec.CreatedAt)))
	line(fmt.Sprintf("| 耗时 | %.2f 秒 |", rec.WorkflowRun.ElapsedTime))
	line(fmt.Sprintf("| 来源 | %s |", orNA(rec.CreatedFrom)))

	creator, creatorType := "N/A", "N/A"
	switch {
	case rec.CreatedByAccount != nil:
		creator, creatorType = orNA(rec.CreatedByAccount.Email), "账户"
	case rec.CreatedByEndUser != nil:
		creator, creatorType = orNA(rec.CreatedByEndUser.SessionID), "终端用户"
	}
	line(fmt.Sprintf("| 创建者类型 | %s |", creatorType))
	line(fmt.Sprintf("| 创建者 | %s |", creator))
	line("")

	switch {
	case rec.WorkflowRunDetail != nil:
		writeRunDetail(line, rec.WorkflowRunDetail)
	case rec.WorkflowRunDetailError != "":
		line("#### 工作流运行详情")
		line("")
		line(fmt.Sprintf("❌ 获取失败: %s", rec.WorkflowRunDetailError))
		line("")
	}

	switch {
	case len(rec.NodeExecutions) > 0:
		line("#### 节点执行详情")
		line("")
		line(fmt.Sprintf("共 %d 个节点", len(rec.NodeExecutions)))
		line("")
		for j, node := range rec.NodeExecutions {
			writeNodeSection(line, j+1, node)
		}
	case rec.NodeExecutionsError != "":
		line("#### 节点执行详情")
		line("")
		line(fmt.Sprintf("❌ 获取失败: %s", rec.NodeExecutionsError))
		line("")
	}
}

func writeRunDetail(line func(string), detail *dify.WorkflowRunDetail) {
	line("#### 工作流运行详情")
	line("")
	line("| 字段 | 值 |")
	line("|------|-----|")
	line(fmt.Sprintf("| 运行ID | `%s` |", orNA(detail.ID)))
	line(fmt.Sprintf("| 状态 | %s |", orNA(detail.Status)))
	line(fmt.Sprintf("| 耗时 | %.2f 秒 |", detail.ElapsedTime))
	line(fmt.Sprintf("| Token 消耗 | %d |", detail.TotalTokens))
	line(fmt.Sprintf("| 总步数 | %d |", detail.TotalSteps))
	line(fmt.Sprintf("| 异常数量 | %d |", detail.ExceptionsCount))
	if detail.Error != "" {
		line(fmt.Sprintf("| 错误信息 | %s |", detail.Error))
	}
	if detail.CreatedAt > 0 {
		line(fmt.Sprintf("| 创建时间 | %s |", timestampOrNA(detail.CreatedAt)))
	}
	if detail.FinishedAt > 0 {
		line(fmt.Sprintf("| 完成时间 | %s |", timestampOrNA(detail.FinishedAt)))
	}
	line("")

	writeJSONBlock(line, "##### 输入参数", detail.Inputs)
	writeJSONBlock(line, "##### 输出结果", detail.Outputs)
}

func writeNodeSection(line func(string), seq int, node dify.NodeExecution) {
	line(fmt.Sprintf("##### 节点 %d: %s", seq, orNA(node.Title)))
	line("")
	line("| 字段 | 值 |")
	line("|------|-----|")
	line(fmt.Sprintf("| 节点ID | `%s` |", orNA(node.NodeID)))
	line(fmt.Sprintf("| 节点类型 | %s |", orNA(node.NodeType)))
	line(fmt.Sprintf("| 状态 | %s |", orNA(node.Status)))
	line(fmt.Sprintf("| 耗时 | %.2f 秒 |", node.ElapsedTime))
	line(fmt.Sprintf("| 序号 | %d |", node.Index))
	if node.PredecessorNodeID != "" {
		line(fmt.Sprintf("| 前置节点 | `%s` |", node.PredecessorNodeID))
	}
	if node.Error != "" {
		line(fmt.Sprintf("| 错误信息 | %s |", node.Error))
	}
	line("")

	writeJSONBlock(line, "**输入:**", node.Inputs)
	writeJSONBlock(line, "**处理数据:**", node.ProcessData)
	writeJSONBlock(line, "**输出:**", node.Outputs)
}

// writeJSONBlock emits a fenced JSON block with all nested JSON-encoded
// strings expanded. Absent payloads are skipped.
func writeJSONBlock(line func(string), heading string, p dify.Payload) {
	if p.IsZero() {
		return
	}
	line(heading)
	line("")
	line("```json")
	line(formatJSONForMarkdown(p.Decoded()))
	line("```")
	line("")
}

// formatJSONForMarkdown renders a decoded value as indented JSON without
// HTML escaping, so Unicode text stays readable.
func formatJSONForMarkdown(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func timestampOrNA(ts float64) string {
	if ts <= 0 {
		return "N/A"
	}
	return formatTimestamp(ts)
}
