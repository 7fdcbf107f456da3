package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
)

// RenderJSON serializes the full result set, enrichment annotations
// included, as indented JSON without HTML escaping.
func RenderJSON(rs *enrich.ResultSet) (File, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rs); err != nil {
		return File{}, eris.Wrap(err, "report: serialize result set")
	}
	return File{
		Name:    fmt.Sprintf("logs_data_%d.json", rs.Total),
		Content: buf.Bytes(),
	}, nil
}
