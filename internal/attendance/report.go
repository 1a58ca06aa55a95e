package attendance

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReportHeader is the first line of every exported report.
var ReportHeader = []string{"Student Name", "Lecture Participation", "Discussion Participation", "Total Participation"}

// WriteReportCSV renders rows as comma-separated text under ReportHeader.
func WriteReportCSV(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{escapeCell(r.Name), FormatPercent(r.Lecture), FormatPercent(r.Discussion), FormatPercent(r.Total)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadReportCSV parses a report written by WriteReportCSV.
func ReadReportCSV(r io.Reader) ([]ReportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ReportHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read report: missing header")
	}
	for i, col := range ReportHeader {
		if records[0][i] != col {
			return nil, fmt.Errorf("read report: column %d is %q, want %q", i+1, records[0][i], col)
		}
	}
	rows := make([]ReportRow, 0, len(records)-1)
	for line, rec := range records[1:] {
		row := ReportRow{Name: unescapeCell(rec[0])}
		for i, dst := range []*float64{&row.Lecture, &row.Discussion, &row.Total} {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("read report: line %d: %w", line+2, err)
			}
			*dst = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Spreadsheets evaluate cells starting with one of these as formulas.
const formulaPrefixes = "=+-@\t\r"

// escapeCell quotes a leading formula character with an apostrophe.
func escapeCell(v string) string {
	if v != "" && strings.ContainsRune(formulaPrefixes, rune(v[0])) {
		return "'" + v
	}
	return v
}

func unescapeCell(v string) string {
	if len(v) > 1 && v[0] == '\'' && strings.ContainsRune(formulaPrefixes, rune(v[1])) {
		return v[1:]
	}
	return v
}
