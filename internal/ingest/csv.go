// Package ingest reads raw transaction and identity tables and shrinks their
// in-memory footprint.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mbd888/fraudscore/internal/frame"
)

var (
	ErrEmptyInput = errors.New("input has no header row")
	ErrRowWidth   = errors.New("row width does not match header")
)

// DefaultCategorical lists raw columns that are always read as categories,
// even when a sample happens to hold only numbers or nothing at all.
var DefaultCategorical = []string{
	"ProductCD", "card4", "card6", "P_emaildomain", "R_emaildomain",
	"M1", "M2", "M3", "M4", "M5", "M6", "M7", "M8", "M9",
	"id_12", "id_15", "id_16", "id_23", "id_27", "id_28", "id_29",
	"id_30", "id_31", "id_33", "id_34", "id_35", "id_36", "id_37", "id_38",
	"DeviceType", "DeviceInfo",
}

// ReadOptions controls CSV parsing.
type ReadOptions struct {
	// Categorical forces the named columns to be read as categories.
	Categorical []string
	// MaxRows stops reading after this many data rows. Zero reads everything.
	MaxRows int
}

// ReadCSV parses a header-first CSV into a table. A column is numeric when
// every non-empty field parses as a float; otherwise it is categorical.
// Empty fields and the literals NaN/nan/NULL are nulls.
func ReadCSV(r io.Reader, opts ReadOptions) (*frame.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	forced := make(map[string]bool, len(opts.Categorical))
	for _, n := range opts.Categorical {
		forced[n] = true
	}

	raw := make([][]string, len(names))
	line := 1
	for opts.MaxRows == 0 || line <= opts.MaxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(rec) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrRowWidth, line, len(rec), len(names))
		}
		for i, v := range rec {
			if isNullLiteral(v) {
				v = ""
			}
			raw[i] = append(raw[i], strings.Clone(v))
		}
		line++
	}

	return build(names, raw, forced)
}

// build types every raw column: forced names are categorical, columns whose
// non-null fields all parse as floats are numeric, the rest categorical.
func build(names []string, raw [][]string, forced map[string]bool) (*frame.Table, error) {
	cols := make([]frame.Column, len(names))
	for i, name := range names {
		if forced[name] {
			cols[i] = frame.NewCategorical(name, raw[i])
			continue
		}
		if vals, ok := parseNumeric(raw[i]); ok {
			cols[i] = frame.NewNumeric(name, vals)
			continue
		}
		cols[i] = frame.NewCategorical(name, raw[i])
	}
	t, err := frame.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("build table: %w", err)
	}
	return t, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opts ReadOptions) (*frame.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func isNullLiteral(v string) bool {
	switch v {
	case "", "NaN", "nan", "NULL", "null", "NA":
		return true
	}
	return false
}

func parseNumeric(raw []string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		if s == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
