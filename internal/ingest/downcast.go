package ingest

import (
	"log/slog"
	"math"

	"github.com/mbd888/fraudscore/internal/frame"
)

// ColumnReport records the storage decision for one numeric column.
type ColumnReport struct {
	Name        string      `json:"name"`
	From        frame.Width `json:"-"`
	To          frame.Width `json:"-"`
	FromName    string      `json:"from"`
	ToName      string      `json:"to"`
	BytesBefore int         `json:"bytesBefore"`
	BytesAfter  int         `json:"bytesAfter"`
	Overflow    bool        `json:"overflow,omitempty"`
}

// Report summarises a downcast pass.
type Report struct {
	Columns     []ColumnReport `json:"columns"`
	BytesBefore int            `json:"bytesBefore"`
	BytesAfter  int            `json:"bytesAfter"`
}

// Saved returns the number of bytes released.
func (r *Report) Saved() int { return r.BytesBefore - r.BytesAfter }

// Downcast re-encodes every numeric column in the narrowest width that
// preserves its values. Integer columns pick the smallest integer width
// covering [min, max]; fractional columns use float32 only when every value
// survives the round trip to the cent. Integer columns too wide for int64
// stay float64 and are logged at warn level. Categorical columns pass
// through untouched.
func Downcast(t *frame.Table, logger *slog.Logger) (*frame.Table, *Report) {
	if logger == nil {
		logger = slog.Default()
	}
	rep := &Report{}
	cols := t.Columns()
	for i, c := range cols {
		num, ok := c.(*frame.NumericColumn)
		if !ok {
			continue
		}
		from := num.Storage().Width()
		vals := num.Values()
		to, overflow := chooseWidth(vals)
		if overflow {
			logger.Warn("downcast: integer column exceeds int64, keeping float64",
				"column", num.Name())
		}

		cr := ColumnReport{
			Name:        num.Name(),
			From:        from,
			To:          to,
			FromName:    from.String(),
			ToName:      to.String(),
			BytesBefore: from.Bytes() * num.Len(),
			BytesAfter:  to.Bytes() * num.Len(),
			Overflow:    overflow,
		}
		rep.Columns = append(rep.Columns, cr)
		rep.BytesBefore += cr.BytesBefore
		rep.BytesAfter += cr.BytesAfter

		if to != from {
			cols[i] = frame.NewNumericStorage(num.Name(), frame.Encode(vals, num.Nulls(), to), num.Nulls())
		}
	}

	out, err := frame.New(cols...)
	if err != nil {
		// Same names and lengths as the input; cannot fail.
		panic(err)
	}
	logger.Info("downcast complete",
		"columns", len(rep.Columns),
		"bytes_before", rep.BytesBefore,
		"bytes_after", rep.BytesAfter)
	return out, rep
}

// chooseWidth returns the narrowest width for vals (NaN = null). overflow is
// set when the values are integral but outside the int64 range.
func chooseWidth(vals []float64) (w frame.Width, overflow bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	integral := true
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if v != math.Trunc(v) {
			integral = false
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		// All null.
		return frame.WidthInt8, false
	}

	if integral {
		switch {
		case lo >= math.MinInt8 && hi <= math.MaxInt8:
			return frame.WidthInt8, false
		case lo >= math.MinInt16 && hi <= math.MaxInt16:
			return frame.WidthInt16, false
		case lo >= math.MinInt32 && hi <= math.MaxInt32:
			return frame.WidthInt32, false
		case lo >= -(1<<63) && hi < (1<<63):
			return frame.WidthInt64, false
		}
		return frame.WidthFloat64, true
	}

	if hi > math.MaxFloat32 || lo < -math.MaxFloat32 {
		return frame.WidthFloat64, false
	}
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.Round(float64(float32(v))*100) != math.Round(v*100) {
			return frame.WidthFloat64, false
		}
	}
	return frame.WidthFloat32, false
}
