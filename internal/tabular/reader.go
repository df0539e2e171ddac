// Package tabular validates and parses uploaded tabular files into ordered
// row mappings. It is deliberately ignorant of import semantics: the importer
// package decides what the rows mean.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Failure codes for file-level validation and parsing. They prefix the
// human-readable messages so callers can branch without string matching
// the whole text.
const (
	CodeEmptyFile        = "EMPTY_FILE"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeUnsupportedType  = "UNSUPPORTED_TYPE"
	CodeEmptyTable       = "EMPTY_TABLE"
	CodeRowLimitExceeded = "ROW_LIMIT_EXCEEDED"
)

// ErrEmptyTable is returned by Parse when the file contains no data records.
var ErrEmptyTable = errors.New(CodeEmptyTable + ": file contains no data rows")

// ErrRowLimitExceeded is returned by Parse when the data-row count exceeds
// the configured ceiling.
var ErrRowLimitExceeded = errors.New(CodeRowLimitExceeded + ": file exceeds the maximum row count")

// RowNumberField is injected into every parsed row so downstream errors can
// reference the originating line. The value is 1-based and accounts for the
// header row.
const RowNumberField = "_row_number"

// allowedContentTypes is the declared-type allow-list. Spreadsheet exports
// declare CSVs inconsistently, so the list is permissive; the filename
// extension is the second chance.
var allowedContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// FileUpload is an uploaded payload plus the metadata the client declared.
type FileUpload struct {
	Data        []byte
	FileName    string
	ContentType string
}

// ParsedTable is the output of Parse: ordered headers and header-keyed rows.
// TotalRows always reflects the full file, even when the row list has been
// truncated by Preview.
type ParsedTable struct {
	Headers   []string
	Rows      []map[string]string
	TotalRows int
	// Warnings collects per-record read failures that did not abort parsing.
	Warnings []string
}

// ValidationResult holds the outcome of pre-parse file validation.
// Validity is the conjunction of all checks.
type ValidationResult struct {
	Errors []string
}

// IsValid reports whether every validation check passed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Reader validates and parses uploaded files against fixed resource ceilings.
type Reader struct {
	maxFileSize int64
	maxRows     int
}

// NewReader returns a Reader enforcing the given byte and row ceilings.
func NewReader(maxFileSize int64, maxRows int) *Reader {
	return &Reader{maxFileSize: maxFileSize, maxRows: maxRows}
}

// Validate runs all file-level checks and returns every failure, not just
// the first.
func (rd *Reader) Validate(f FileUpload) ValidationResult {
	var errs []string

	if len(f.Data) == 0 {
		errs = append(errs, CodeEmptyFile+": uploaded file is empty")
	}
	if int64(len(f.Data)) > rd.maxFileSize {
		errs = append(errs, fmt.Sprintf("%s: file size %d exceeds limit of %d bytes",
			CodeFileTooLarge, len(f.Data), rd.maxFileSize))
	}
	if !allowedContentTypes[strings.ToLower(f.ContentType)] &&
		!strings.HasSuffix(strings.ToLower(f.FileName), ".csv") {
		errs = append(errs, fmt.Sprintf("%s: content type %q is not supported and filename %q lacks a .csv extension",
			CodeUnsupportedType, f.ContentType, f.FileName))
	}

	return ValidationResult{Errors: errs}
}

// delimiter candidates, in the order counts are reported.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter inspects only the first line of the file and returns the
// candidate delimiter with a strict majority over comma. Occurrences inside
// double-quoted fields are ignored. Ties and unreadable input fall back to
// comma.
func (rd *Reader) DetectDelimiter(f FileUpload) rune {
	line := f.Data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) == 0 {
		return ','
	}

	counts := make(map[rune]int, len(delimiterCandidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, c := range delimiterCandidates {
			if r == c {
				counts[c]++
				break
			}
		}
	}

	best := ','
	bestCount := counts[',']
	for _, c := range delimiterCandidates[1:] {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}

// Parse reads every record of the file and converts it into a ParsedTable.
//
// When hasHeader is true the first record supplies the headers, with blank
// entries replaced by positional placeholders; otherwise synthetic headers
// are generated from the first record's width. Missing trailing cells become
// empty strings. A 1-based row-number field is injected into each row,
// starting at 2 when a header row is present.
//
// Individual record read failures become Warnings; structural failures
// (ErrEmptyTable, ErrRowLimitExceeded, unreadable first record) abort.
func (rd *Reader) Parse(f FileUpload, hasHeader bool, delimiter rune) (*ParsedTable, error) {
	data := sanitizeUTF8(f.Data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	var warnings []string
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if len(records) == 0 {
				return nil, fmt.Errorf("read first record: %w", err)
			}
			warnings = append(warnings, fmt.Sprintf("row skipped: %v", err))
			continue
		}
		records = append(records, record)
	}

	var headers []string
	var dataRows [][]string
	if hasHeader {
		if len(records) > 0 {
			headers = normalizeHeaders(records[0])
			dataRows = records[1:]
		}
	} else {
		if len(records) > 0 {
			headers = syntheticHeaders(len(records[0]))
		}
		dataRows = records
	}

	if len(dataRows) == 0 {
		return nil, ErrEmptyTable
	}
	if len(dataRows) > rd.maxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrRowLimitExceeded, len(dataRows), rd.maxRows)
	}

	firstRowNumber := 1
	if hasHeader {
		firstRowNumber = 2
	}

	rows := make([]map[string]string, 0, len(dataRows))
	for i, record := range dataRows {
		row := make(map[string]string, len(headers)+1)
		for j, h := range headers {
			if j < len(record) {
				row[h] = strings.TrimSpace(record[j])
			} else {
				row[h] = ""
			}
		}
		row[RowNumberField] = strconv.Itoa(firstRowNumber + i)
		rows = append(rows, row)
	}

	return &ParsedTable{
		Headers:   headers,
		Rows:      rows,
		TotalRows: len(rows),
		Warnings:  warnings,
	}, nil
}

// Preview runs a full Parse and truncates the row list to maxRows while
// keeping the true TotalRows, so a caller can inspect a large file without
// committing to an import.
func (rd *Reader) Preview(f FileUpload, maxRows int, hasHeader bool) (*ParsedTable, error) {
	table, err := rd.Parse(f, hasHeader, rd.DetectDelimiter(f))
	if err != nil {
		return nil, err
	}
	if maxRows >= 0 && len(table.Rows) > maxRows {
		table.Rows = table.Rows[:maxRows]
	}
	return table, nil
}

// RowNumber extracts the injected row-number field from a parsed row.
// Returns 0 when the field is absent or malformed.
func RowNumber(row map[string]string) int {
	n, err := strconv.Atoi(row[RowNumberField])
	if err != nil {
		return 0
	}
	return n
}

// normalizeHeaders trims headers, replaces blanks with positional
// placeholders, and de-duplicates repeats with a positional suffix so no
// column silently shadows another.
func normalizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, h := range record {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] {
			h = fmt.Sprintf("%s_%d", h, i+1)
		}
		seen[h] = true
		headers[i] = h
	}
	return headers
}

// syntheticHeaders generates column_1..column_n for headerless files.
func syntheticHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i+1)
	}
	return headers
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// the csv reader never chokes on mis-encoded spreadsheet exports.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
