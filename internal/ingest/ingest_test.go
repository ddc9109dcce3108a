package ingest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudscore/internal/frame"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestReadCSV_InfersKinds(t *testing.T) {
	in := "TransactionID,TransactionAmt,ProductCD,card4,M1\n" +
		"1,10.5,W,visa,T\n" +
		"2,,C,,NaN\n" +
		"3,7,W,mastercard,F\n"

	tbl, err := ReadCSV(strings.NewReader(in), ReadOptions{Categorical: []string{"card4"}})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())

	amt, err := tbl.Numeric("TransactionAmt")
	require.NoError(t, err)
	assert.True(t, amt.IsNull(1))

	_, err = tbl.Categorical("ProductCD")
	assert.NoError(t, err)

	m1, err := tbl.Categorical("M1")
	require.NoError(t, err)
	assert.True(t, m1.IsNull(1))

	card4, err := tbl.Categorical("card4")
	require.NoError(t, err)
	assert.True(t, card4.IsNull(1))
}

func TestReadCSV_MaxRowsAndErrors(t *testing.T) {
	in := "a,b\n1,2\n3,4\n5,6\n"
	tbl, err := ReadCSV(strings.NewReader(in), ReadOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())

	_, err = ReadCSV(strings.NewReader(""), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestMergeIdentity_LeftJoin(t *testing.T) {
	tx, err := ReadCSV(strings.NewReader("TransactionID,TransactionAmt\n1,5\n2,6\n"), ReadOptions{})
	require.NoError(t, err)
	id, err := ReadCSV(strings.NewReader("TransactionID,id_01,DeviceType\n2,-5,mobile\n"), ReadOptions{Categorical: DefaultCategorical})
	require.NoError(t, err)

	merged, err := MergeIdentity(tx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.NumRows())

	dev, err := merged.Categorical("DeviceType")
	require.NoError(t, err)
	assert.True(t, dev.IsNull(0))
	v, ok := dev.Value(1)
	assert.True(t, ok)
	assert.Equal(t, "mobile", v)

	same, err := MergeIdentity(tx, nil)
	require.NoError(t, err)
	assert.Same(t, tx, same)
}

func TestChooseWidth(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name     string
		vals     []float64
		want     frame.Width
		overflow bool
	}{
		{"int8", []float64{-100, 0, 127, nan}, frame.WidthInt8, false},
		{"int16", []float64{-129, 300}, frame.WidthInt16, false},
		{"int32", []float64{70000}, frame.WidthInt32, false},
		{"int64", []float64{5e9}, frame.WidthInt64, false},
		{"overflow", []float64{1e20}, frame.WidthFloat64, true},
		{"cents fit float32", []float64{10.5, 99.99, 117.25}, frame.WidthFloat32, false},
		{"sub-cent needs float64", []float64{1234567.891}, frame.WidthFloat64, false},
		{"all null", []float64{nan, nan}, frame.WidthInt8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, overflow := chooseWidth(tt.vals)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.overflow, overflow)
		})
	}
}

func TestDowncast_RoundTripToTheCent(t *testing.T) {
	amounts := []float64{68.5, 29, 59, 50, 117.99, math.NaN(), 0.01}
	tbl := frame.MustNew(
		frame.NewNumeric("TransactionID", []float64{1, 2, 3, 4, 5, 6, 7}),
		frame.NewNumeric("TransactionAmt", amounts),
		frame.NewNumeric("big", []float64{1e20, 0, 0, 0, 0, 0, 0}),
		frame.NewCategorical("ProductCD", []string{"W", "W", "C", "H", "R", "S", "W"}),
	)

	out, rep := Downcast(tbl, quietLogger())
	require.Len(t, rep.Columns, 3)
	assert.Less(t, rep.BytesAfter, rep.BytesBefore)
	assert.Positive(t, rep.Saved())

	id, err := out.Numeric("TransactionID")
	require.NoError(t, err)
	assert.Equal(t, frame.WidthInt8, id.Storage().Width())

	amt, err := out.Numeric("TransactionAmt")
	require.NoError(t, err)
	assert.Equal(t, frame.WidthFloat32, amt.Storage().Width())
	got := amt.Values()
	for i, want := range amounts {
		if math.IsNaN(want) {
			assert.True(t, amt.IsNull(i))
			continue
		}
		assert.Equal(t, math.Round(want*100), math.Round(got[i]*100), "row %d", i)
	}

	big, err := out.Numeric("big")
	require.NoError(t, err)
	assert.Equal(t, frame.WidthFloat64, big.Storage().Width())
	assert.True(t, rep.Columns[2].Overflow)

	_, err = out.Categorical("ProductCD")
	assert.NoError(t, err)
}

func TestFromRecords(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`[
		{"TransactionID": 3663549, "TransactionAmt": 31.95, "card4": "visa", "M1": true},
		{"TransactionID": 3663550, "card4": null, "P_emaildomain": "gmail.com"}
	]`))
	dec.UseNumber()
	var recs []Record
	require.NoError(t, dec.Decode(&recs))

	tbl, err := FromRecords(recs, ReadOptions{Categorical: DefaultCategorical})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, []string{"M1", "TransactionAmt", "TransactionID", "card4", "P_emaildomain"}, tbl.Names())

	id, err := tbl.Numeric("TransactionID")
	require.NoError(t, err)
	assert.Equal(t, []float64{3663549, 3663550}, id.Values())

	amt, err := tbl.Numeric("TransactionAmt")
	require.NoError(t, err)
	assert.True(t, amt.IsNull(1))

	card, err := tbl.Categorical("card4")
	require.NoError(t, err)
	assert.True(t, card.IsNull(1))

	m1, err := tbl.Categorical("M1")
	require.NoError(t, err)
	v, ok := m1.Value(0)
	require.True(t, ok)
	assert.Equal(t, "T", v)
}

func TestFromRecords_RejectsNested(t *testing.T) {
	_, err := FromRecords([]Record{{"card1": map[string]any{"x": 1}}}, ReadOptions{})
	require.ErrorIs(t, err, ErrFieldType)
}
