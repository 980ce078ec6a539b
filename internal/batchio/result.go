package batchio

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/zoning-cli/internal/model"
)

// KindInvalidInput labels rows that failed to parse.
const KindInvalidInput = "invalid_input"

// Result pairs a request with its outcome. Exactly one of Report and Err is set.
type Result struct {
	Request  Request
	Report   *model.ComplianceReport
	Err      error
	Attempts int
}

// Kind is the error kind of a failed result, or "" on success.
func (r Result) Kind() string {
	switch {
	case r.Err == nil:
		return ""
	case r.Request.Err != nil && r.Err == r.Request.Err:
		return KindInvalidInput
	default:
		return model.Kind(r.Err)
	}
}

// Sheet names in the results workbook.
const (
	SheetResults  = "results"
	SheetFindings = "findings"
)

var summaryHeader = []string{
	"row", "address", "status", "error_kind", "error",
	"zone", "zone_name", "all_zones", "limits", "failed_parameters",
	"latitude", "longitude", "x", "y", "analysis_id", "attempts",
}

var findingsHeader = []string{"row", "address", "zone", "parameter", "project_value", "regulatory_limit", "compliant"}

func status(r Result) string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Report.Approved:
		return "approved"
	default:
		return "rejected"
	}
}

// summaryRow renders r as strings in summaryHeader order.
func summaryRow(r Result) []string {
	row := []string{
		strconv.Itoa(r.Request.Row),
		r.Request.Address,
		status(r),
		r.Kind(),
		"",
		"", "", "", "", "",
		"", "", "", "", "",
		strconv.Itoa(r.Attempts),
	}
	if r.Err != nil {
		row[4] = r.Err.Error()
		return row
	}

	rep := r.Report
	failed := make([]string, 0, len(rep.Findings))
	for _, f := range rep.Failed() {
		failed = append(failed, f.Parameter)
	}
	row[5] = rep.Zone.ZoneCode
	row[6] = rep.Zone.ZoneName
	row[7] = strings.Join(rep.Zone.AllIntersectingZones, ";")
	row[8] = string(rep.Parameters.Matched)
	row[9] = strings.Join(failed, ";")
	row[10] = strconv.FormatFloat(rep.Point.Latitude, 'f', 7, 64)
	row[11] = strconv.FormatFloat(rep.Point.Longitude, 'f', 7, 64)
	row[12] = strconv.FormatFloat(rep.Projected.X, 'f', 2, 64)
	row[13] = strconv.FormatFloat(rep.Projected.Y, 'f', 2, 64)
	row[14] = rep.ID
	return row
}

// WriteXLSX saves results to path with a summary sheet and a findings sheet.
func WriteXLSX(path string, results []Result) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetResults)
	if err != nil {
		return eris.Wrap(err, "batchio: xlsx: add results sheet")
	}
	findings, err := f.AddSheet(SheetFindings)
	if err != nil {
		return eris.Wrap(err, "batchio: xlsx: add findings sheet")
	}

	addStringRow(summary, summaryHeader)
	addStringRow(findings, findingsHeader)

	for _, r := range results {
		addStringRow(summary, summaryRow(r))
		if r.Report == nil {
			continue
		}
		for _, fd := range r.Report.Findings {
			row := findings.AddRow()
			row.AddCell().SetInt(r.Request.Row)
			row.AddCell().SetString(r.Request.Address)
			row.AddCell().SetString(r.Report.Zone.ZoneCode)
			row.AddCell().SetString(fd.Parameter)
			row.AddCell().SetString(fd.ProjectValue)
			row.AddCell().SetString(fd.RegulatoryLimit)
			row.AddCell().SetBool(fd.Compliant)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "batchio: xlsx: save %s", path)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

// WriteCSV writes the summary table to w.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return eris.Wrap(err, "batchio: csv: write header")
	}
	for _, r := range results {
		if err := cw.Write(summaryRow(r)); err != nil {
			return eris.Wrapf(err, "batchio: csv: write row %d", r.Request.Row)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "batchio: csv: flush")
}
