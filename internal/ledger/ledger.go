// Package ledger persists grading results to a semicolon separated CSV
// file. The file is the durable source of truth for which submissions are
// already graded: rows are only ever appended, and a re-grade appends a
// superseding row instead of editing history.
package ledger

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	appErr "autojunit/pkg/errors"
	"autojunit/pkg/utils/logger"
)

// utf8BOM keeps the file openable in spreadsheet tools that sniff
// encoding from the first bytes.
const utf8BOM = "\ufeff"

func init() {
	// the ledger dialect is semicolon separated throughout
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = ';'
		r.LazyQuotes = true
		r.FieldsPerRecord = -1
		return r
	})
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = ';'
		return gocsv.NewSafeCSVWriter(w)
	})
}

// GradeRecord is one durable row of grading state. The first six columns
// match the historical ledger layout, so files written by earlier tool
// versions load cleanly.
type GradeRecord struct {
	StudentName   string `csv:"Student Name"`
	Matriculation string `csv:"Matriculation Nr"`
	Task1         int    `csv:"Task 1"`
	Task2         int    `csv:"Task 2"`
	Task3         int    `csv:"Task 3"`
	Comment       string `csv:"Comment"`
	TestSummary   string `csv:"Test Summary"`
	GradedAt      string `csv:"Graded At"`
}

// Ledger is an append-only grade store with an in-memory index.
type Ledger struct {
	path  string
	file  *os.File
	index map[string]GradeRecord // latest row wins per matriculation
	count int
	now   func() time.Time
}

// Open loads the ledger at path, creating it with a BOM and header row
// when absent. Existing rows are indexed by matriculation number with the
// latest row winning.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, appErr.ValidationError("ledger_path", "required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.OutputDirFailed, "create output dir failed")
	}

	l := &Ledger{path: path, index: make(map[string]GradeRecord), now: time.Now}

	existing, err := os.ReadFile(path)
	needHeader := false
	switch {
	case os.IsNotExist(err):
		needHeader = true
	case err != nil:
		return nil, appErr.Wrapf(err, appErr.LedgerOpenFailed, "read ledger failed")
	case isBlank(existing):
		if err := os.Truncate(path, 0); err != nil {
			return nil, appErr.Wrapf(err, appErr.LedgerOpenFailed, "reset blank ledger failed")
		}
		needHeader = true
	default:
		if err := l.load(existing); err != nil {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.LedgerOpenFailed, "open ledger for append failed")
	}
	l.file = file

	if needHeader {
		if err := l.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return l, nil
}

// Append durably records rec. The row is flushed and synced to disk
// before Append returns, so a submission is only archived once its grade
// cannot be lost.
func (l *Ledger) Append(ctx context.Context, rec GradeRecord) error {
	if l.file == nil {
		return appErr.New(appErr.LedgerOpenFailed).WithMessage("ledger is not open")
	}
	if rec.Matriculation == "" && rec.StudentName == "" {
		return appErr.ValidationError("grade_record", "student identity required")
	}
	rec.GradedAt = l.now().Format(time.RFC3339)

	rows := []GradeRecord{rec}
	if err := gocsv.MarshalWithoutHeaders(&rows, l.file); err != nil {
		return appErr.Wrapf(err, appErr.LedgerAppendFailed, "append grade row failed")
	}
	if err := l.file.Sync(); err != nil {
		return appErr.Wrapf(err, appErr.LedgerFlushFailed, "sync ledger failed")
	}

	if rec.Matriculation != "" {
		l.index[rec.Matriculation] = rec
	}
	l.count++
	logger.Info(ctx, "grade recorded",
		zap.String("student", rec.StudentName),
		zap.String("matriculation", rec.Matriculation))
	return nil
}

// Lookup returns the latest record for a matriculation number.
func (l *Ledger) Lookup(matric string) (GradeRecord, bool) {
	rec, ok := l.index[matric]
	return rec, ok
}

// Len returns the number of rows in the ledger, superseded rows included.
func (l *Ledger) Len() int {
	return l.count
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Close releases the file handle. Rows already appended stay durable.
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Ledger) load(data []byte) error {
	content := strings.TrimPrefix(string(data), utf8BOM)
	var rows []GradeRecord
	if err := gocsv.UnmarshalString(content, &rows); err != nil {
		return appErr.Wrapf(err, appErr.LedgerParseFailed, "parse ledger failed")
	}
	for _, rec := range rows {
		if rec.Matriculation != "" {
			l.index[rec.Matriculation] = rec
		}
	}
	l.count = len(rows)
	return nil
}

func (l *Ledger) writeHeader() error {
	if _, err := l.file.WriteString(utf8BOM); err != nil {
		return appErr.Wrapf(err, appErr.LedgerOpenFailed, "write byte order mark failed")
	}
	empty := []GradeRecord{}
	if err := gocsv.Marshal(&empty, l.file); err != nil {
		return appErr.Wrapf(err, appErr.LedgerOpenFailed, "write header failed")
	}
	if err := l.file.Sync(); err != nil {
		return appErr.Wrapf(err, appErr.LedgerFlushFailed, "sync ledger failed")
	}
	return nil
}

func isBlank(data []byte) bool {
	return strings.TrimSpace(strings.TrimPrefix(string(data), utf8BOM)) == ""
}
