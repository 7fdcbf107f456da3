package report

import (
	"bytes"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
)

// Sheet names of the XLSX workbook, one per CSV report.
const (
	overviewSheetName = "总览"
	dailySheetName    = "每日消息数"
	userSheetName     = "用户列表"
	qaSheetName       = "用户问答对"
)

// RenderXLSX renders the four report tables as one workbook, sheets laid
// out identically to the CSV files.
func RenderXLSX(rs *enrich.ResultSet) (File, error) {
	t := Build(rs)
	f := xlsx.NewFile()

	sheets := []struct {
		name string
		rows [][]string
	}{
		{overviewSheetName, overviewRows(rs, t)},
		{dailySheetName, dailyRows(t)},
		{userSheetName, userRows(t)},
		{qaSheetName, qaRows(t)},
	}
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return File{}, eris.Wrapf(err, "report: add sheet %s", s.name)
		}
		for _, rowData := range s.rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return File{}, eris.Wrap(err, "report: write workbook")
	}
	return File{
		Name:    fmt.Sprintf("logs_report_%d.xlsx", rs.Total),
		Content: buf.Bytes(),
	}, nil
}
