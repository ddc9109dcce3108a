// Package features derives stateless row-level features from raw
// transaction columns. Every function here is pure: it reads the input table
// and returns a new table with extra columns.
package features

import (
	"fmt"
	"math"
	"time"

	"github.com/mbd888/fraudscore/internal/frame"
)

// TimeColumn is the elapsed-seconds column every temporal feature reads.
const TimeColumn = "TransactionDT"

// DefaultEpoch is the reference instant TransactionDT counts from.
var DefaultEpoch = time.Date(2017, time.November, 30, 0, 0, 0, 0, time.UTC)

// TemporalConfig controls DeriveTemporal.
type TemporalConfig struct {
	Epoch time.Time
	// Holidays are calendar days (UTC midnight) flagged by DT_is_holiday.
	// Nil selects USFederalHolidays(2017, 2019).
	Holidays map[time.Time]bool
}

// DefaultTemporalConfig returns the standard epoch and holiday calendar.
func DefaultTemporalConfig() TemporalConfig {
	return TemporalConfig{Epoch: DefaultEpoch, Holidays: USFederalHolidays(2017, 2019)}
}

// Temporal column names.
const (
	ColTimestamp    = "DT_ts"
	ColMonth        = "DT_M"
	ColWeek         = "DT_W"
	ColDay          = "DT_D"
	ColHour         = "DT_hour"
	ColHourSin      = "DT_hour_sin"
	ColHourCos      = "DT_hour_cos"
	ColDayOfWeek    = "DT_day_week"
	ColDayOfMonth   = "DT_day_month"
	ColIsHoliday    = "DT_is_holiday"
	ColIsDecember   = "DT_is_december"
	ColTimeOfDay    = "DT_time_of_day"
	ColIsNight      = "DT_is_night"
	ColBusinessHour = "DT_is_business_hour"
)

// DeriveTemporal decomposes TransactionDT into calendar features. DT_M is
// (year-epochYear)*12+month and is the month bucket used for validation
// folds. Rows with a null TransactionDT get nulls everywhere.
func DeriveTemporal(t *frame.Table, cfg TemporalConfig) (*frame.Table, error) {
	dt, err := t.Numeric(TimeColumn)
	if err != nil {
		return nil, fmt.Errorf("derive temporal: %w", err)
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = DefaultEpoch
	}
	if cfg.Holidays == nil {
		cfg.Holidays = USFederalHolidays(2017, 2019)
	}

	n := t.NumRows()
	names := []string{
		ColTimestamp, ColMonth, ColWeek, ColDay, ColHour, ColHourSin, ColHourCos,
		ColDayOfWeek, ColDayOfMonth, ColIsHoliday, ColIsDecember,
		ColTimeOfDay, ColIsNight, ColBusinessHour,
	}
	out := make([][]float64, len(names))
	for i := range out {
		out[i] = make([]float64, n)
	}

	epochYear := cfg.Epoch.Year()
	for i := 0; i < n; i++ {
		secs, ok := dt.Float(i)
		if !ok {
			for j := range out {
				out[j][i] = math.NaN()
			}
			continue
		}
		ts := cfg.Epoch.Add(time.Duration(secs) * time.Second)
		hour := ts.Hour()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)

		out[0][i] = float64(ts.Unix())
		out[1][i] = float64((ts.Year()-epochYear)*12 + int(ts.Month()))
		out[2][i] = math.Floor(secs / (7 * 86400))
		out[3][i] = math.Floor(secs / 86400)
		out[4][i] = float64(hour)
		out[5][i] = math.Sin(2 * math.Pi * float64(hour) / 24)
		out[6][i] = math.Cos(2 * math.Pi * float64(hour) / 24)
		// Monday = 0.
		out[7][i] = float64((int(ts.Weekday()) + 6) % 7)
		out[8][i] = float64(ts.Day())
		out[9][i] = boolFloat(cfg.Holidays[day])
		out[10][i] = boolFloat(ts.Month() == time.December)
		out[11][i] = float64(TimeOfDay(hour))
		out[12][i] = boolFloat(hour < 6)
		out[13][i] = boolFloat(hour >= 9 && hour <= 17)
	}

	cols := make([]frame.Column, len(names))
	for i, name := range names {
		cols[i] = frame.NewNumeric(name, out[i])
	}
	return t.With(cols...)
}

// TimeOfDay buckets an hour: 0 night (0-6), 1 morning (7-12),
// 2 afternoon (13-18), 3 evening (19-23).
func TimeOfDay(hour int) int {
	switch {
	case hour <= 6:
		return 0
	case hour <= 12:
		return 1
	case hour <= 18:
		return 2
	}
	return 3
}

// USFederalHolidays returns the observed US federal holidays for the
// inclusive year range, keyed by UTC midnight.
func USFederalHolidays(from, to int) map[time.Time]bool {
	out := make(map[time.Time]bool)
	for y := from; y <= to; y++ {
		fixed := []time.Time{
			date(y, time.January, 1),
			date(y, time.July, 4),
			date(y, time.November, 11),
			date(y, time.December, 25),
		}
		for _, d := range fixed {
			out[observed(d)] = true
		}
		out[nthWeekday(y, time.January, time.Monday, 3)] = true
		out[nthWeekday(y, time.February, time.Monday, 3)] = true
		out[lastWeekday(y, time.May, time.Monday)] = true
		out[nthWeekday(y, time.September, time.Monday, 1)] = true
		out[nthWeekday(y, time.October, time.Monday, 2)] = true
		out[nthWeekday(y, time.November, time.Thursday, 4)] = true
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// observed moves Saturday holidays to Friday and Sunday holidays to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(y int, m time.Month, wd time.Weekday, n int) time.Time {
	d := date(y, m, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(y int, m time.Month, wd time.Weekday) time.Time {
	d := date(y, m+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
