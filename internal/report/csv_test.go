package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseCSV(t *testing.T, f File) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(f.Content, utf8BOM), "missing BOM in %s", f.Name)
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(f.Content, utf8BOM)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRenderCSV_FileNames(t *testing.T) {
	t.Parallel()

	files, err := RenderCSV(&enrich.ResultSet{})
	require.NoError(t, err)
	require.Len(t, files, 4)

	names := []string{files[0].Name, files[1].Name, files[2].Name, files[3].Name}
	assert.Equal(t, []string{
		"问答类应用数-总览.csv",
		"问答类应用数-每日消息数.csv",
		"问答类应用数-用户列表.csv",
		"问答类应用数-用户问答对.csv",
	}, names)
}

func TestRenderCSV_OverviewEmptyResultSet(t *testing.T) {
	t.Parallel()

	files, err := RenderCSV(&enrich.ResultSet{})
	require.NoError(t, err)

	rows := parseCSV(t, files[0])
	require.Len(t, rows, 2)
	assert.Equal(t, overviewColumns, rows[0])
	for _, cell := range rows[1] {
		assert.Empty(t, cell)
	}
}

func TestRenderCSV_OverviewValues(t *testing.T) {
	t.Parallel()

	a := endUserLog("a", "sess-1", 1700000000)
	a.WorkflowRun.ElapsedTime = 2.0
	a.WorkflowRunDetail = &dify.WorkflowRunDetail{TotalTokens: 100}
	a.NodeExecutions = []dify.NodeExecution{llmNode("0.0025")}

	files, err := RenderCSV(&enrich.ResultSet{Total: 1, Data: []*enrich.Log{a}})
	require.NoError(t, err)

	rows := parseCSV(t, files[0])
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, "1", row[2])               // messages
	assert.Equal(t, "1", row[3])               // users
	assert.Equal(t, "1", row[4])               // sessions
	assert.Equal(t, "1.00", row[5])            // avg interactions
	assert.Equal(t, "50.00 tokens/秒", row[6]) // token speed
	assert.Equal(t, "", row[7])                // satisfaction always empty
	assert.Equal(t, "0.002500", row[8])        // cost
}

func TestRenderCSV_QALayout(t *testing.T) {
	t.Parallel()

	rec := endUserLog("a", "sess-1", 1700000000)
	rec.NodeExecutions = []dify.NodeExecution{retrievalNode(
		passage("ds", "doc", "content", 0.9),
	)}

	files, err := RenderCSV(&enrich.ResultSet{Data: []*enrich.Log{rec}})
	require.NoError(t, err)

	rows := parseCSV(t, files[3])
	// blank, header, blank, 1 data row, blank, note, blank
	require.Len(t, rows, 7)

	header := rows[1]
	assert.Equal(t, "序号", header[0])
	assert.Equal(t, "文本片段内容1（相似度+文本内容）", header[9])
	assert.Equal(t, "创建时间", header[len(header)-1])
	// 9 base columns + 3 segment columns + created time
	assert.Len(t, header, 13)

	data := rows[3]
	assert.Equal(t, "1", data[0])
	assert.Equal(t, "sess-1", data[2])
	assert.Equal(t, "ds", data[7])
	assert.Equal(t, "doc", data[8])
	assert.Equal(t, "相似度:0.9000\ncontent", data[9])
	assert.Empty(t, data[10])
	assert.Empty(t, data[11])

	note := rows[5]
	assert.True(t, strings.HasPrefix(note[0], "注："))
}

func TestRenderCSV_DailyAndUsers(t *testing.T) {
	t.Parallel()

	rs := &enrich.ResultSet{Data: []*enrich.Log{
		endUserLog("a", "sess-1", 1700000000),
		endUserLog("b", "sess-1", 1700000060),
	}}

	files, err := RenderCSV(rs)
	require.NoError(t, err)

	daily := parseCSV(t, files[1])
	require.Len(t, daily, 2)
	assert.Equal(t, dailyColumns, daily[0])
	assert.Equal(t, "2", daily[1][1])

	users := parseCSV(t, files[2])
	require.Len(t, users, 2)
	assert.Equal(t, userColumns, users[0])
	assert.Equal(t, "sess-1", users[1][0])
	assert.Equal(t, "2", users[1][1])
}
