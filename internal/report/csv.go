package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
)

// File is one rendered report, ready to be persisted by the storage layer.
type File struct {
	Name    string
	Content []byte
}

// Fixed CSV file names and column headers, kept identical to the reports
// the operations team already consumes.
const (
	overviewFileName = "问答类应用数-总览.csv"
	dailyFileName    = "问答类应用数-每日消息数.csv"
	userFileName     = "问答类应用数-用户列表.csv"
	qaFileName       = "问答类应用数-用户问答对.csv"

	qaFooterNote = "注：此处区分是否可上传附件、是否引用RAG知识库，若无内容，为空即可。"
)

var (
	overviewColumns = []string{
		"开始日期", "结束日期", "全部消息数", "用户数", "全部会话数",
		"平均会话互动数", "Token输出速度", "用户满意度", "费用消耗",
	}
	dailyColumns = []string{"日期", "消息数量"}
	userColumns  = []string{"用户ID", "消息数", "使用天数", "首次使用日期", "最后使用日期"}

	qaBaseColumns = []string{
		"序号", "用户id", "会话id", "问题排序（同一个会话ID，提问先后顺序）",
		"用户提问", "附件名称：名称.后缀", "AI回答", "知识库名称", "引用的文档名称",
	}
)

// qaColumns builds the full Q&A header for the given segment column width.
func qaColumns(maxSegments int) []string {
	cols := append([]string{}, qaBaseColumns...)
	for i := 1; i <= maxSegments; i++ {
		cols = append(cols, fmt.Sprintf("文本片段内容%d（相似度+文本内容）", i))
	}
	return append(cols, "创建时间")
}

// RenderCSV renders the four CSV report files from the enriched result set.
// Files are encoded UTF-8 with a byte order mark so spreadsheet tools open
// them with the correct encoding.
func RenderCSV(rs *enrich.ResultSet) ([]File, error) {
	t := Build(rs)

	overview, err := renderOverviewCSV(rs, t)
	if err != nil {
		return nil, err
	}
	daily, err := renderDailyCSV(t)
	if err != nil {
		return nil, err
	}
	users, err := renderUserCSV(t)
	if err != nil {
		return nil, err
	}
	qa, err := renderQACSV(t)
	if err != nil {
		return nil, err
	}

	return []File{overview, daily, users, qa}, nil
}

func renderOverviewCSV(rs *enrich.ResultSet, t *Tables) (File, error) {
	return writeCSVFile(overviewFileName, overviewRows(rs, t))
}

func renderDailyCSV(t *Tables) (File, error) {
	return writeCSVFile(dailyFileName, dailyRows(t))
}

func renderUserCSV(t *Tables) (File, error) {
	return writeCSVFile(userFileName, userRows(t))
}

func renderQACSV(t *Tables) (File, error) {
	return writeCSVFile(qaFileName, qaRows(t))
}

func overviewRows(rs *enrich.ResultSet, t *Tables) [][]string {
	rows := [][]string{overviewColumns}
	if len(rs.Data) > 0 {
		ov := t.Overview
		rows = append(rows, []string{
			ov.StartDate,
			ov.EndDate,
			strconv.Itoa(ov.TotalMessages),
			strconv.Itoa(ov.TotalUsers),
			strconv.Itoa(ov.TotalSessions),
			fmt.Sprintf("%.2f", ov.AvgInteractions),
			fmt.Sprintf("%.2f tokens/秒", ov.TokenSpeed),
			"", // 用户满意度: no data source feeds this column
			fmt.Sprintf("%.6f", ov.TotalCost),
		})
	} else {
		rows = append(rows, make([]string, len(overviewColumns)))
	}
	return rows
}

func dailyRows(t *Tables) [][]string {
	rows := [][]string{dailyColumns}
	for _, d := range t.Daily {
		rows = append(rows, []string{d.Date, strconv.Itoa(d.Count)})
	}
	return rows
}

func userRows(t *Tables) [][]string {
	rows := [][]string{userColumns}
	for _, u := range t.Users {
		rows = append(rows, []string{
			u.UserID,
			strconv.Itoa(u.Messages),
			strconv.Itoa(u.ActiveDays),
			u.FirstDate,
			u.LastDate,
		})
	}
	return rows
}

// qaRows builds the Q&A rows with leading blank/header/blank rows and a
// trailing blank/note/blank footer, matching the layout the spreadsheet
// template expects.
func qaRows(t *Tables) [][]string {
	header := qaColumns(t.MaxSegments)
	width := len(header)
	blank := make([]string, width)

	rows := [][]string{blank, header, blank}
	for _, qa := range t.QA {
		row := []string{
			strconv.Itoa(qa.Seq),
			qa.UserID,
			qa.SessionID,
			strconv.Itoa(qa.Order),
			qa.Query,
			qa.Attachments,
			qa.Answer,
			qa.Dataset,
			qa.Document,
		}
		for i := 0; i < t.MaxSegments; i++ {
			if i < len(qa.Segments) {
				row = append(row, qa.Segments[i])
			} else {
				row = append(row, "")
			}
		}
		row = append(row, qa.CreatedAt)
		rows = append(rows, row)
	}

	note := make([]string, width)
	note[0] = qaFooterNote
	return append(rows, blank, note, blank)
}

// writeCSVFile serializes rows as UTF-8-with-BOM CSV.
func writeCSVFile(name string, rows [][]string) (File, error) {
	var buf bytes.Buffer
	bw := transform.NewWriter(&buf, unicode.UTF8BOM.NewEncoder())
	w := csv.NewWriter(bw)

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return File{}, eris.Wrapf(err, "report: write %s", name)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return File{}, eris.Wrapf(err, "report: flush %s", name)
	}
	if err := bw.Close(); err != nil {
		return File{}, eris.Wrapf(err, "report: close encoder for %s", name)
	}

	return File{Name: name, Content: buf.Bytes()}, nil
}
