package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
)

// timestampLayouts are tried in order. Layouts without an offset are read
// as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CSVError reports a malformed upload.
type CSVError struct {
	Line int
	Err  error
}

func (e *CSVError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("csv: %v", e.Err)
}

func (e *CSVError) Unwrap() error { return e.Err }

// ParseTraceCSV reads a trace from CSV with a header row naming a timestamp
// and a power column. Other columns are ignored. Rows are sorted by
// timestamp, keeping file order for equal timestamps.
func ParseTraceCSV(r io.Reader) (analysis.Trace, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &CSVError{Err: analysis.ErrEmptyTrace}
	}
	if err != nil {
		return nil, &CSVError{Line: 1, Err: err}
	}

	tsCol, powerCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "timestamp":
			tsCol = i
		case "power":
			powerCol = i
		}
	}
	if tsCol < 0 || powerCol < 0 {
		return nil, &CSVError{Line: 1, Err: errors.New("header must contain timestamp and power columns")}
	}

	var tr analysis.Trace
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &CSVError{Line: perr.Line, Err: perr.Err}
			}
			return nil, &CSVError{Err: err}
		}
		line, _ := reader.FieldPos(0)
		if tsCol >= len(record) || powerCol >= len(record) {
			return nil, &CSVError{Line: line, Err: errors.New("missing column")}
		}

		ts, err := ParseTimestamp(record[tsCol])
		if err != nil {
			return nil, &CSVError{Line: line, Err: err}
		}
		power, err := strconv.ParseFloat(strings.TrimSpace(record[powerCol]), 64)
		if err != nil {
			return nil, &CSVError{Line: line, Err: fmt.Errorf("invalid power %q", record[powerCol])}
		}
		tr = append(tr, analysis.Sample{Timestamp: ts, Value: power})
	}

	if len(tr) == 0 {
		return nil, &CSVError{Err: analysis.ErrEmptyTrace}
	}
	sort.SliceStable(tr, func(i, j int) bool { return tr[i].Timestamp.Before(tr[j].Timestamp) })
	return tr, nil
}

// ParseTimestamp accepts RFC 3339 and the common "YYYY-MM-DD hh:mm:ss"
// variants.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
