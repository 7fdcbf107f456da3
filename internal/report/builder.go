// Package report derives tabular reports from enriched workflow logs and
// renders them as CSV, Markdown, JSON or XLSX.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

// answerMaxRunes caps the AI answer column; segmentMaxRunes caps each cited
// passage snippet. minSegmentColumns is the floor of the dynamic segment
// column count in the Q&A export.
const (
	answerMaxRunes    = 5000
	segmentMaxRunes   = 200
	minSegmentColumns = 3
)

// Overview is the single-row summary table.
type Overview struct {
	StartDate       string
	EndDate         string
	TotalMessages   int
	TotalUsers      int
	TotalSessions   int
	AvgInteractions float64
	TokenSpeed      float64 // tokens per second of run elapsed time
	TotalCost       float64
}

// DailyCount is one row of the per-day message counts.
type DailyCount struct {
	Date  string
	Count int
}

// UserStat is one row of the user list.
type UserStat struct {
	UserID     string
	Messages   int
	ActiveDays int
	FirstDate  string
	LastDate   string
}

// QARow is one line of the question/answer export, keyed by (log sequence
// number, knowledge base, document) when citations exist, else one row per
// log. Order is the 1-based position of the question within its session.
type QARow struct {
	Seq         int
	UserID      string
	SessionID   string
	Order       int
	Query       string
	Attachments string
	Answer      string
	Dataset     string
	Document    string
	Segments    []string
	CreatedAt   string
}

// Tables holds the four derived tables. MaxSegments is the widest segment
// count across all Q&A rows, with a floor of three columns.
type Tables struct {
	Overview    Overview
	Daily       []DailyCount
	Users       []UserStat
	QA          []QARow
	MaxSegments int
}

type userAccum struct {
	messages int
	days     map[string]struct{}
	first    float64
	last     float64
}

// Build derives all report tables from the enriched result set in a single
// pass over the records. Row construction is two-phase: all rows are built
// in memory first, then the segment column width is computed, so renderers
// never have to guess the table width mid-stream.
func Build(rs *enrich.ResultSet) *Tables {
	daily := map[string]int{}
	users := map[string]*userAccum{}
	sessions := map[string]struct{}{}

	// All citation rows of one record share a question order, so ordering
	// works on per-record groups, not individual rows.
	type recGroup struct {
		createdAt float64
		rows      []*QARow
	}
	sessionRecords := map[string][]*recGroup{}

	var (
		rows         []*QARow
		totalTokens  int
		totalElapsed float64
		totalCost    float64
		minCreated   float64
		maxCreated   float64
	)

	for idx, rec := range rs.Data {
		seq := idx + 1

		if rec.CreatedAt > 0 {
			daily[formatDate(rec.CreatedAt)]++
			if minCreated == 0 || rec.CreatedAt < minCreated {
				minCreated = rec.CreatedAt
			}
			if rec.CreatedAt > maxCreated {
				maxCreated = rec.CreatedAt
			}
		}

		userID := resolveUserID(rec)
		sessionID := resolveSessionID(rec)
		if sessionID != "" {
			sessions[sessionID] = struct{}{}
		}

		if userID != "" {
			u := users[userID]
			if u == nil {
				u = &userAccum{days: map[string]struct{}{}}
				users[userID] = u
			}
			u.messages++
			if rec.CreatedAt > 0 {
				u.days[formatDate(rec.CreatedAt)] = struct{}{}
				if u.first == 0 || rec.CreatedAt < u.first {
					u.first = rec.CreatedAt
				}
				if rec.CreatedAt > u.last {
					u.last = rec.CreatedAt
				}
			}
		}

		if rec.WorkflowRunDetail != nil {
			totalTokens += rec.WorkflowRunDetail.TotalTokens
		}
		totalElapsed += rec.WorkflowRun.ElapsedTime
		totalCost += nodeCost(rec.NodeExecutions)

		query, answer, attachments := resolveQA(rec)
		segments := collectSegments(rec.NodeExecutions)

		created := ""
		if rec.CreatedAt > 0 {
			created = formatTimestamp(rec.CreatedAt)
		}

		base := QARow{
			Seq:         seq,
			UserID:      userID,
			SessionID:   sessionID,
			Order:       1,
			Query:       query,
			Attachments: attachments,
			Answer:      truncateRunes(answer, answerMaxRunes),
			CreatedAt:   created,
		}

		var recRows []*QARow

		if len(segments) == 0 {
			row := base
			recRows = append(recRows, &row)
		} else {
			// One row per distinct (knowledge base, document) pair, first-seen
			// order, keeping every segment occurrence without deduplication.
			type pairKey struct{ dataset, document string }
			var pairOrder []pairKey
			grouped := map[pairKey][]string{}
			for _, seg := range segments {
				key := pairKey{seg.dataset, seg.document}
				if _, seen := grouped[key]; !seen {
					pairOrder = append(pairOrder, key)
				}
				grouped[key] = append(grouped[key], seg.text)
			}

			for _, key := range pairOrder {
				row := base
				row.Dataset = key.dataset
				row.Document = key.document
				row.Segments = grouped[key]
				recRows = append(recRows, &row)
			}
		}

		rows = append(rows, recRows...)
		if sessionID != "" {
			sessionRecords[sessionID] = append(sessionRecords[sessionID], &recGroup{
				createdAt: rec.CreatedAt,
				rows:      recRows,
			})
		}
	}

	// Question order: 1-based position of the record within the session, by
	// creation time ascending. Every citation row of a record gets the same
	// order.
	for _, groups := range sessionRecords {
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].createdAt < groups[j].createdAt
		})
		for i, g := range groups {
			for _, r := range g.rows {
				r.Order = i + 1
			}
		}
	}

	// Final row order follows the original record sequence.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Seq < rows[j].Seq
	})

	maxSegments := minSegmentColumns
	for _, r := range rows {
		if len(r.Segments) > maxSegments {
			maxSegments = len(r.Segments)
		}
	}

	t := &Tables{MaxSegments: maxSegments}

	for _, r := range rows {
		t.QA = append(t.QA, *r)
	}

	for date := range daily {
		t.Daily = append(t.Daily, DailyCount{Date: date, Count: daily[date]})
	}
	sort.Slice(t.Daily, func(i, j int) bool { return t.Daily[i].Date < t.Daily[j].Date })

	for id, u := range users {
		stat := UserStat{UserID: id, Messages: u.messages, ActiveDays: len(u.days)}
		if u.first > 0 {
			stat.FirstDate = formatDate(u.first)
		}
		if u.last > 0 {
			stat.LastDate = formatDate(u.last)
		}
		t.Users = append(t.Users, stat)
	}
	sort.Slice(t.Users, func(i, j int) bool {
		if t.Users[i].Messages != t.Users[j].Messages {
			return t.Users[i].Messages > t.Users[j].Messages
		}
		return t.Users[i].UserID < t.Users[j].UserID
	})

	ov := Overview{
		TotalMessages: len(rs.Data),
		TotalUsers:    len(t.Users),
		TotalSessions: len(sessions),
		TotalCost:     totalCost,
	}
	if minCreated > 0 {
		ov.StartDate = formatDate(minCreated)
		ov.EndDate = formatDate(maxCreated)
	}
	if ov.TotalSessions > 0 {
		ov.AvgInteractions = float64(ov.TotalMessages) / float64(ov.TotalSessions)
	}
	if totalElapsed > 0 {
		ov.TokenSpeed = float64(totalTokens) / totalElapsed
	}
	t.Overview = ov

	return t
}

// resolveUserID prefers the end-user session id, then the account email,
// then a sys.user_id recoverable from the run-detail inputs.
func resolveUserID(rec *enrich.Log) string {
	var userID string
	switch {
	case rec.CreatedByEndUser != nil:
		userID = rec.CreatedByEndUser.SessionID
	case rec.CreatedByAccount != nil:
		userID = rec.CreatedByAccount.Email
	}
	if userID != "" || rec.WorkflowRunDetail == nil {
		return userID
	}

	inputs := rec.WorkflowRunDetail.Inputs.Map()
	if inputs == nil {
		return ""
	}
	if s := stringValue(inputs["sys.user_id"]); s != "" {
		return s
	}
	if sys, ok := inputs["sys"].(map[string]any); ok {
		return stringValue(sys["user_id"])
	}
	return ""
}

// resolveSessionID is the conversation identity used for Q&A grouping and
// the overview session count: the end-user session id when present, else
// the workflow run id, else the log id.
func resolveSessionID(rec *enrich.Log) string {
	if rec.CreatedByEndUser != nil && rec.CreatedByEndUser.SessionID != "" {
		return rec.CreatedByEndUser.SessionID
	}
	if rec.WorkflowRun.ID != "" {
		return rec.WorkflowRun.ID
	}
	return rec.ID
}

// resolveQA extracts the user query, the AI answer and the joined
// attachment names from the run detail.
func resolveQA(rec *enrich.Log) (query, answer, attachments string) {
	if rec.WorkflowRunDetail == nil {
		return "", "", ""
	}

	inputs := rec.WorkflowRunDetail.Inputs.Map()
	outputs := rec.WorkflowRunDetail.Outputs.Map()

	if inputs != nil {
		query = stringValue(inputs["query"])
		if query == "" {
			query = stringValue(inputs["sys.query"])
		}

		files, _ := inputs["sys.files"].([]any)
		if len(files) == 0 {
			if sys, ok := inputs["sys"].(map[string]any); ok {
				files, _ = sys["files"].([]any)
			}
		}
		var names []string
		for _, f := range files {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			name := stringValue(fm["name"])
			if name == "" {
				name = stringValue(fm["filename"])
			}
			names = append(names, name)
		}
		attachments = strings.Join(names, "; ")
	}

	if outputs != nil {
		answer = stringValue(outputs["text"])
	}
	return query, answer, attachments
}

type segment struct {
	dataset  string
	document string
	text     string
}

// collectSegments gathers every retrieved passage cited by
// knowledge-retrieval nodes, in retrieval order, without deduplication.
// Passages missing a dataset name, document name or content are skipped.
func collectSegments(nodes []dify.NodeExecution) []segment {
	var segments []segment
	for _, node := range nodes {
		if node.NodeType != dify.NodeTypeKnowledgeRetrieval {
			continue
		}
		outputs := node.Outputs.Map()
		if outputs == nil {
			continue
		}
		results, _ := outputs["result"].([]any)
		for _, item := range results {
			im, ok := item.(map[string]any)
			if !ok {
				continue
			}
			meta, ok := im["metadata"].(map[string]any)
			if !ok {
				continue
			}
			dataset := cleanName(stringValue(meta["dataset_name"]))
			document := cleanName(stringValue(meta["document_name"]))
			content := stringValue(im["content"])
			if dataset == "" || document == "" || content == "" {
				continue
			}
			score, _ := toFloat(meta["score"])
			segments = append(segments, segment{
				dataset:  dataset,
				document: document,
				text:     fmt.Sprintf("相似度:%.4f\n%s", score, truncateRunes(content, segmentMaxRunes)),
			})
		}
	}
	return segments
}

// nodeCost sums usage.total_price across llm nodes, coercing
// string-encoded numbers and treating anything non-numeric as zero.
func nodeCost(nodes []dify.NodeExecution) float64 {
	var cost float64
	for _, node := range nodes {
		if node.NodeType != dify.NodeTypeLLM {
			continue
		}
		pd := node.ProcessData.Map()
		if pd == nil {
			continue
		}
		usage, ok := pd["usage"].(map[string]any)
		if !ok {
			continue
		}
		if price, ok := toFloat(usage["total_price"]); ok {
			cost += price
		}
	}
	return cost
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "...", ""))
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func formatTimestamp(ts float64) string {
	return time.Unix(int64(ts), 0).Format("2006-01-02 15:04:05")
}

func formatDate(ts float64) string {
	return time.Unix(int64(ts), 0).Format("2006-01-02")
}
