package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/phillip-england/punchaudit/internal/attendance"
	"github.com/xuri/excelize/v2"
)

// ErrUnreadable wraps every failure to turn an upload into rows.
var ErrUnreadable = errors.New("unreadable workbook")

const maxXLSRows = 100000

// Sheet is the first worksheet of an upload after summary rows are filtered out.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []attendance.Row
	Dropped int
}

func ReadFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses an .xls or .xlsx upload. The extension decides the format.
func Read(reader io.Reader, filename string) (*Sheet, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	var (
		name  string
		cells [][]any
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xsl":
		name, cells, err = readXLS(data)
	default:
		name, cells, err = readXLSX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: worksheet is empty", ErrUnreadable)
	}

	width := 0
	for _, line := range cells {
		width = max(width, len(line))
	}
	first := make([]any, width)
	copy(first, cells[0])
	headers := headerNames(first)
	parsed := make([]attendance.Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		row := attendance.Row{}
		for i, v := range line {
			if i >= len(headers) || v == nil {
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			row[headers[i]] = v
		}
		if len(row) == 0 {
			continue
		}
		parsed = append(parsed, row)
	}

	rows := attendance.Filter(parsed)
	return &Sheet{
		Name:    name,
		Headers: headers,
		Rows:    rows,
		Dropped: len(parsed) - len(rows),
	}, nil
}

func readXLS(data []byte) (name string, cells [][]any, err error) {
	// The xls decoder panics on some malformed BIFF streams.
	defer func() {
		if r := recover(); r != nil {
			name, cells, err = "", nil, fmt.Errorf("decode xls: %v", r)
		}
	}()

	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", nil, err
	}
	if workbook.NumSheets() == 0 {
		return "", nil, fmt.Errorf("no worksheet found")
	}
	if sheet := workbook.GetSheet(0); sheet != nil {
		name = sheet.Name
	}
	raw := workbook.ReadAllCells(maxXLSRows)
	cells = make([][]any, len(raw))
	for i, line := range raw {
		cells[i] = make([]any, len(line))
		for j, value := range line {
			cells[i][j] = xlsCellValue(value)
		}
	}
	return name, cells, nil
}

// xlsCellValue keeps legacy cells as text except for the RFC 3339 stamps the
// xls decoder emits for date-formatted numbers.
func xlsCellValue(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t
	}
	return value
}

func readXLSX(data []byte) (string, [][]any, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return "", nil, fmt.Errorf("no worksheet found")
	}
	raw, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, err
	}

	dates := dateStyleCache{file: file, known: map[int]bool{}}
	cells := make([][]any, len(raw))
	for r, line := range raw {
		cells[r] = make([]any, len(line))
		for c, value := range line {
			if value == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return "", nil, err
			}
			cells[r][c] = xlsxCellValue(file, sheetName, axis, value, &dates)
		}
	}
	return sheetName, cells, nil
}

func xlsxCellValue(file *excelize.File, sheet, axis, raw string, dates *dateStyleCache) any {
	cellType, err := file.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	switch cellType {
	case excelize.CellTypeBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		return raw
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
		return raw
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		if dates.isDate(sheet, axis) {
			return attendance.SerialToTime(serial).Round(time.Second)
		}
		return serial
	default:
		return raw
	}
}

type dateStyleCache struct {
	file  *excelize.File
	known map[int]bool
}

func (d *dateStyleCache) isDate(sheet, axis string) bool {
	styleID, err := d.file.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := d.known[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := d.file.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isBuiltInDateFormat(style.NumFmt)
		}
	}
	d.known[styleID] = isDate
	return isDate
}

func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

// isDateFormatCode looks for date or clock tokens outside quoted literals,
// bracketed sections and escaped characters.
func isDateFormatCode(code string) bool {
	inQuote, inBracket, escaped := false, false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\' || r == '_' || r == '*':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		case r == 'y' || r == 'm' || r == 'd' || r == 'h':
			return true
		}
	}
	return false
}

// headerNames turns the first row into column keys. Header text is kept
// verbatim. Blank headers become Unknown_<index>; repeats get the first free
// _1, _2, ... suffix so no column is shadowed.
func headerNames(first []any) []string {
	headers := make([]string, len(first))
	seen := make(map[string]int, len(first))
	for i, v := range first {
		name := ""
		if v != nil {
			name = fmt.Sprint(v)
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unknown_%d", i)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s_%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		headers[i] = name
	}
	return headers
}
