package workbook

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/phillip-england/punchaudit/internal/attendance"
	"github.com/xuri/excelize/v2"
)

const (
	ResultSheetName = "考勤處理結果"
	OutputPrefix    = "邏輯處理_"
	ContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	markerColumnWidth = 8
	columnWidth       = 15
)

// ExportHeaders returns the original column order with the anomaly marker and
// Friday flag appended when the source did not already carry them.
func ExportHeaders(original []string) []string {
	headers := slices.Clone(original)
	for _, f := range []attendance.Field{attendance.FieldChanged, attendance.FieldFriday} {
		if !slices.Contains(headers, string(f)) {
			headers = append(headers, string(f))
		}
	}
	return headers
}

// OutputName derives the download name from the uploaded file name.
func OutputName(original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return OutputPrefix + base + ".xlsx"
}

func WriteFile(path string, headers []string, results []attendance.Result) error {
	var buf bytes.Buffer
	if err := Write(&buf, headers, results); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Write renders results as a single-sheet workbook. Cells named in a row's
// modified set get the highlight style.
func Write(w io.Writer, headers []string, results []attendance.Result) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	if err := file.SetSheetName(file.GetSheetName(0), ResultSheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	highlight, err := file.NewStyle(highlightStyle())
	if err != nil {
		return fmt.Errorf("create highlight style: %w", err)
	}

	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := file.SetSheetRow(ResultSheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for i, res := range results {
		rowNum := i + 2
		for c, h := range headers {
			axis, err := excelize.CoordinatesToCellName(c+1, rowNum)
			if err != nil {
				return err
			}
			if v := exportValue(h, res.Row[h]); v != nil {
				if err := file.SetCellValue(ResultSheetName, axis, v); err != nil {
					return fmt.Errorf("write %s: %w", axis, err)
				}
			}
			if res.Modified.HasColumn(h) {
				if err := file.SetCellStyle(ResultSheetName, axis, axis, highlight); err != nil {
					return fmt.Errorf("style %s: %w", axis, err)
				}
			}
		}
	}

	for c, h := range headers {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		width := float64(columnWidth)
		if h == string(attendance.FieldChanged) || h == string(attendance.FieldFriday) {
			width = markerColumnWidth
		}
		if err := file.SetColWidth(ResultSheetName, col, col, width); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}

func exportValue(header string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if header == string(attendance.FieldAttendanceDate) {
			return val.Format("2006/01/02")
		}
		if val.Year() < 1900 {
			return val.Format("15:04")
		}
		return val
	default:
		return v
	}
}

func highlightStyle() *excelize.Style {
	border := func(side string) excelize.Border {
		return excelize.Border{Type: side, Color: "000000", Style: 1}
	}
	return &excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}},
		Font: &excelize.Font{Family: "Arial", Size: 11, Bold: true, Color: "FF0000"},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{border("top"), border("bottom"), border("left"), border("right")},
	}
}
