package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/golovatskygroup/data-lens/internal/apperr"
)

type Options struct {
	// Delimiter for delimited text; 0 auto-detects among ',', ';' and '\t'.
	Delimiter rune
	// MaxRows stops reading after this many data rows; 0 means unlimited.
	MaxRows int
}

// Format of an upload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks a format from a file name, defaulting to CSV.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Read parses an upload of the given format. Every failure is an upload error.
func Read(r io.Reader, name string, format Format, opts Options) (*Frame, error) {
	switch format {
	case FormatXLSX:
		return LoadXLSX(r, name, opts)
	default:
		return LoadCSV(r, name, opts)
	}
}

func LoadFile(path string, opts Options) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.New(apperr.KindUpload, "open", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), FormatFromName(path), opts)
}

// LoadCSV parses delimited text with a header row.
func LoadCSV(r io.Reader, name string, opts Options) (*Frame, error) {
	br := bufio.NewReader(r)
	delim := opts.Delimiter
	if delim == 0 {
		peek, _ := br.Peek(64 * 1024)
		delim = detectDelimiter(peek)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = 0
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Newf(apperr.KindUpload, "load csv", "no columns to parse from file")
	}
	if err != nil {
		return nil, apperr.New(apperr.KindUpload, "load csv", err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.New(apperr.KindUpload, "load csv", err)
		}
		records = append(records, rec)
		if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
			break
		}
	}

	f, err := Build(name, header, records)
	if err != nil {
		return nil, apperr.New(apperr.KindUpload, "load csv", err)
	}
	return f, nil
}

// LoadXLSX reads the first sheet of a workbook; its first row is the header.
func LoadXLSX(r io.Reader, name string, opts Options) (*Frame, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.New(apperr.KindUpload, "load xlsx", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Newf(apperr.KindUpload, "load xlsx", "workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.New(apperr.KindUpload, "load xlsx", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, apperr.Newf(apperr.KindUpload, "load xlsx", "sheet %q has no header row", sheets[0])
	}

	header := rows[0]
	records := rows[1:]
	if opts.MaxRows > 0 && len(records) > opts.MaxRows {
		records = records[:opts.MaxRows]
	}
	// GetRows drops trailing empty cells, so a record may be longer than a
	// header with trailing blanks only if the sheet is malformed.
	for i, rec := range records {
		if len(rec) > len(header) {
			return nil, apperr.Newf(apperr.KindUpload, "load xlsx", "row %d has %d cells, header has %d", i+2, len(rec), len(header))
		}
	}

	f, err := Build(name, header, records)
	if err != nil {
		return nil, apperr.New(apperr.KindUpload, "load xlsx", err)
	}
	return f, nil
}

func detectDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(line), string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// String describes the frame for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("%s (%d rows x %d columns)", f.name, f.rows, len(f.cols))
}
