// Package timeseries loads hourly price and demand tables.
package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/chpdispatch/core/model"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing column")

// Defaults fill columns that are absent from the table.
type Defaults struct {
	// GasPrice is used when there is no gas_price column.
	GasPrice float64
	// HeatPrice is used when there is no heat_price column.
	HeatPrice float64
	// Location interprets timestamps without an offset. Defaults to UTC.
	Location *time.Location
}

var aliases = map[string][]string{
	"datetime":          {"datetime", "timestamp", "time", "date"},
	"electricity_price": {"electricity_price", "ee_price", "price"},
	"gas_price":         {"gas_price"},
	"heat_price":        {"heat_price"},
	"heat_demand":       {"heat_demand", "demand"},
}

var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
}

// ReadCSV parses an hourly table with the columns datetime, electricity_price
// (or ee_price), heat_demand and optionally gas_price and heat_price. Headers
// are case-insensitive and spaces map to underscores. A semicolon separated
// file with decimal commas is accepted. Errors carry the 1-based line number.
// The result is validated with Series.Validate.
func ReadCSV(r io.Reader, d Defaults) (model.Series, error) {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	br := bufio.NewReader(r)
	semicolon, err := sniffSemicolon(br)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	if semicolon {
		cr.Comma = ';'
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("line 1: empty table")
		}
		return nil, fmt.Errorf("line 1: %w", err)
	}
	idx := indexHeader(header)
	for _, col := range []string{"datetime", "electricity_price", "heat_demand"} {
		if idx[col] < 0 {
			return nil, fmt.Errorf("line 1: %w %s (found %s)", ErrMissingColumn, col, strings.Join(header, ", "))
		}
	}

	var out model.Series
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRow(row, idx, d, loc, semicolon)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func sniffSemicolon(br *bufio.Reader) (bool, error) {
	first, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return false, err
	}
	if i := strings.IndexByte(string(first), '\n'); i >= 0 {
		first = first[:i]
	}
	head := string(first)
	return strings.Contains(head, ";") && !strings.Contains(head, ","), nil
}

func normalize(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func indexHeader(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := pos[normalize(h)]; !ok {
			pos[normalize(h)] = i
		}
	}
	idx := make(map[string]int, len(aliases))
	for col, names := range aliases {
		idx[col] = -1
		for _, n := range names {
			if i, ok := pos[n]; ok {
				idx[col] = i
				break
			}
		}
	}
	return idx
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, idx map[string]int, d Defaults, loc *time.Location, decimalComma bool) (model.HourRecord, error) {
	field := func(col string) (string, bool) {
		i := idx[col]
		if i < 0 || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}
	num := func(col string, def float64, required bool) (float64, error) {
		s, ok := field(col)
		if !ok || s == "" {
			if required {
				return 0, fmt.Errorf("%w %s", ErrMissingColumn, col)
			}
			return def, nil
		}
		if decimalComma {
			s = strings.ReplaceAll(s, ",", ".")
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: invalid number %q", col, s)
		}
		return v, nil
	}

	var rec model.HourRecord
	ts, _ := field("datetime")
	t, err := ParseTime(ts, loc)
	if err != nil {
		return rec, err
	}
	rec.Time = t
	if rec.ElectricityPrice, err = num("electricity_price", 0, true); err != nil {
		return rec, err
	}
	if rec.GasPrice, err = num("gas_price", d.GasPrice, false); err != nil {
		return rec, err
	}
	if rec.HeatPrice, err = num("heat_price", d.HeatPrice, false); err != nil {
		return rec, err
	}
	if rec.HeatDemand, err = num("heat_demand", 0, true); err != nil {
		return rec, err
	}
	return rec, nil
}

// ParseTime accepts RFC3339 and the common spreadsheet layouts. Layouts
// without an offset are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, l := range layouts[1:] {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("datetime: unrecognised timestamp %q", s)
}
