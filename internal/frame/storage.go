package frame

import "math"

// Width is the fixed-width physical representation of a numeric column.
type Width uint8

const (
	WidthInt8 Width = iota + 1
	WidthInt16
	WidthInt32
	WidthInt64
	WidthFloat32
	WidthFloat64
)

func (w Width) String() string {
	switch w {
	case WidthInt8:
		return "int8"
	case WidthInt16:
		return "int16"
	case WidthInt32:
		return "int32"
	case WidthInt64:
		return "int64"
	case WidthFloat32:
		return "float32"
	case WidthFloat64:
		return "float64"
	}
	return "unknown"
}

// Bytes returns the per-value size of the width.
func (w Width) Bytes() int {
	switch w {
	case WidthInt8:
		return 1
	case WidthInt16:
		return 2
	case WidthInt32, WidthFloat32:
		return 4
	}
	return 8
}

// IsInteger reports whether the width stores integers.
func (w Width) IsInteger() bool {
	return w >= WidthInt8 && w <= WidthInt64
}

// Storage is the physical backing of a numeric column. Null slots hold an
// unspecified value; nullness is tracked by the owning column.
type Storage interface {
	Width() Width
	Len() int
	At(i int) float64
}

type int8Storage []int8
type int16Storage []int16
type int32Storage []int32
type int64Storage []int64
type float32Storage []float32
type float64Storage []float64

func (s int8Storage) Width() Width      { return WidthInt8 }
func (s int8Storage) Len() int          { return len(s) }
func (s int8Storage) At(i int) float64  { return float64(s[i]) }
func (s int16Storage) Width() Width     { return WidthInt16 }
func (s int16Storage) Len() int         { return len(s) }
func (s int16Storage) At(i int) float64 { return float64(s[i]) }
func (s int32Storage) Width() Width     { return WidthInt32 }
func (s int32Storage) Len() int         { return len(s) }
func (s int32Storage) At(i int) float64 { return float64(s[i]) }
func (s int64Storage) Width() Width     { return WidthInt64 }
func (s int64Storage) Len() int         { return len(s) }
func (s int64Storage) At(i int) float64 { return float64(s[i]) }

func (s float32Storage) Width() Width     { return WidthFloat32 }
func (s float32Storage) Len() int         { return len(s) }
func (s float32Storage) At(i int) float64 { return float64(s[i]) }
func (s float64Storage) Width() Width     { return WidthFloat64 }
func (s float64Storage) Len() int         { return len(s) }
func (s float64Storage) At(i int) float64 { return s[i] }

// Encode packs values into storage of the requested width. Null slots
// (marked in nulls, which may be nil) are written as zero. Callers are
// responsible for choosing a width that can hold every non-null value.
func Encode(values []float64, nulls []bool, w Width) Storage {
	n := len(values)
	at := func(i int) float64 {
		if nulls != nil && nulls[i] {
			return 0
		}
		return values[i]
	}
	switch w {
	case WidthInt8:
		s := make(int8Storage, n)
		for i := range s {
			s[i] = int8(at(i))
		}
		return s
	case WidthInt16:
		s := make(int16Storage, n)
		for i := range s {
			s[i] = int16(at(i))
		}
		return s
	case WidthInt32:
		s := make(int32Storage, n)
		for i := range s {
			s[i] = int32(at(i))
		}
		return s
	case WidthInt64:
		s := make(int64Storage, n)
		for i := range s {
			s[i] = int64(at(i))
		}
		return s
	case WidthFloat32:
		s := make(float32Storage, n)
		for i := range s {
			if nulls != nil && nulls[i] {
				s[i] = float32(math.NaN())
				continue
			}
			s[i] = float32(values[i])
		}
		return s
	}
	s := make(float64Storage, n)
	for i := range s {
		if nulls != nil && nulls[i] {
			s[i] = math.NaN()
			continue
		}
		s[i] = values[i]
	}
	return s
}

// Decode expands storage back to float64 values, writing NaN for nulls.
func Decode(s Storage, nulls []bool) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		if nulls != nil && nulls[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = s.At(i)
	}
	return out
}

func takeStorage(s Storage, idx []int) Storage {
	switch st := s.(type) {
	case int8Storage:
		out := make(int8Storage, len(idx))
		for i, j := range idx {
			out[i] = st[j]
		}
		return out
	case int16Storage:
		out := make(int16Storage, len(idx))
		for i, j := range idx {
			out[i] = st[j]
		}
		return out
	case int32Storage:
		out := make(int32Storage, len(idx))
		for i, j := range idx {
			out[i] = st[j]
		}
		return out
	case int64Storage:
		out := make(int64Storage, len(idx))
		for i, j := range idx {
			out[i] = st[j]
		}
		return out
	case float32Storage:
		out := make(float32Storage, len(idx))
		for i, j := range idx {
			out[i] = st[j]
		}
		return out
	}
	out := make(float64Storage, len(idx))
	for i, j := range idx {
		out[i] = s.At(j)
	}
	return out
}
