package core

// decode.go turns an uploaded file into a Sheet: a header row plus data rows
// as ordered string cells. Delimited text goes through encoding/csv; workbooks
// go through excelize and only the first worksheet is read.

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// Format is the container format of an uploaded stock report.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatWorkbook  Format = "workbook"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeOptions controls delimited decoding.
type DecodeOptions struct {
	// Delimiter overrides the field separator for .csv and .txt files.
	// Zero means comma. Files ending in .tsv always use tab.
	Delimiter rune
}

// DetectFormat picks a decoder from the file extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".tsv":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm":
		return FormatWorkbook, nil
	case ".xls":
		return "", errors.WithHint(
			errors.Wrapf(ErrUnsupportedFormat, "%s", fileName),
			"Legacy .xls workbooks are not supported; save the file as .xlsx or .csv",
		)
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%s", fileName)
	}
}

// Decode reads data as a stock report. The first non-empty row is the
// header. It fails with ErrMalformedInput when the file has no header or no
// data rows.
func Decode(data []byte, fileName string, opts DecodeOptions) (*Sheet, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch format {
	case FormatWorkbook:
		records, err = readWorkbook(data)
	default:
		delim := opts.Delimiter
		if strings.EqualFold(filepath.Ext(fileName), ".tsv") {
			delim = '\t'
		}
		records, err = readDelimited(data, delim)
	}
	if err != nil {
		return nil, err
	}

	return buildSheet(records)
}

func readDelimited(data []byte, delim rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	if delim != 0 {
		r.Comma = delim
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "read delimited file"), ErrMalformedInput)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open workbook"), ErrMalformedInput)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrap(ErrMalformedInput, "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read sheet %q", sheets[0]), ErrMalformedInput)
	}

	for i, row := range rows {
		for j, cell := range row {
			rows[i][j] = strings.ToValidUTF8(cell, "\uFFFD")
		}
	}
	return rows, nil
}

// buildSheet selects the header and keeps non-empty data rows, padding each
// to the header width.
func buildSheet(records [][]string) (*Sheet, error) {
	headerAt := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, errors.Wrap(ErrMalformedInput, "empty file")
	}

	headers := make([]string, len(records[headerAt]))
	for i, h := range records[headerAt] {
		headers[i] = strings.TrimSpace(h)
	}

	sheet := &Sheet{Headers: headers}
	for i := headerAt + 1; i < len(records); i++ {
		rec := records[i]
		if isEmptyRow(rec) {
			continue
		}
		values := make([]string, len(headers))
		copy(values, rec)
		sheet.Rows = append(sheet.Rows, RawRow{Line: i + 1, Values: values})
	}

	if len(sheet.Rows) == 0 {
		return nil, errors.Wrap(ErrMalformedInput, "no data rows after header")
	}
	return sheet, nil
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
