package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudscore/internal/frame"
)

func value(t *testing.T, tbl *frame.Table, col string, row int) float64 {
	t.Helper()
	c, err := tbl.Numeric(col)
	require.NoError(t, err)
	return c.Values()[row]
}

func TestDeriveTemporal(t *testing.T) {
	tbl := frame.MustNew(frame.NewNumeric(TimeColumn, []float64{
		86400,              // 2017-12-01 00:00, Friday
		25*86400 + 10*3600, // 2017-12-25 10:00, Christmas
		math.NaN(),
	}))

	out, err := DeriveTemporal(tbl, DefaultTemporalConfig())
	require.NoError(t, err)

	assert.Equal(t, float64(DefaultEpoch.Unix()+86400), value(t, out, ColTimestamp, 0))
	assert.Equal(t, 12.0, value(t, out, ColMonth, 0))
	assert.Equal(t, 1.0, value(t, out, ColDay, 0))
	assert.Equal(t, 0.0, value(t, out, ColWeek, 0))
	assert.Equal(t, 4.0, value(t, out, ColDayOfWeek, 0))
	assert.Equal(t, 1.0, value(t, out, ColDayOfMonth, 0))
	assert.Equal(t, 1.0, value(t, out, ColIsDecember, 0))
	assert.Equal(t, 0.0, value(t, out, ColIsHoliday, 0))
	assert.Equal(t, 1.0, value(t, out, ColIsNight, 0))
	assert.InDelta(t, 1.0, value(t, out, ColHourCos, 0), 1e-12)

	assert.Equal(t, 1.0, value(t, out, ColIsHoliday, 1))
	assert.Equal(t, 10.0, value(t, out, ColHour, 1))
	assert.Equal(t, 1.0, value(t, out, ColBusinessHour, 1))
	assert.Equal(t, 1.0, value(t, out, ColTimeOfDay, 1))
	assert.Equal(t, 3.0, value(t, out, ColWeek, 1))

	assert.True(t, math.IsNaN(value(t, out, ColMonth, 2)))
}

func TestDeriveTemporal_MonthRollsOverYear(t *testing.T) {
	tbl := frame.MustNew(frame.NewNumeric(TimeColumn, []float64{40 * 86400}))
	out, err := DeriveTemporal(tbl, TemporalConfig{})
	require.NoError(t, err)
	// 2018-01-09 is month 13 relative to 2017.
	assert.Equal(t, 13.0, value(t, out, ColMonth, 0))
}

func TestUSFederalHolidays(t *testing.T) {
	h := USFederalHolidays(2017, 2019)
	for _, d := range []time.Time{
		date(2017, time.November, 10), // Veterans Day on Saturday, observed Friday
		date(2018, time.January, 1),
		date(2018, time.May, 28),
		date(2018, time.November, 22),
		date(2019, time.January, 21),
		date(2019, time.September, 2),
	} {
		assert.True(t, h[d], d.Format(time.DateOnly))
	}
	assert.False(t, h[date(2017, time.November, 11)])
	assert.False(t, h[date(2018, time.March, 1)])
}

func TestTimeOfDay(t *testing.T) {
	assert.Equal(t, 0, TimeOfDay(0))
	assert.Equal(t, 0, TimeOfDay(6))
	assert.Equal(t, 1, TimeOfDay(7))
	assert.Equal(t, 2, TimeOfDay(18))
	assert.Equal(t, 3, TimeOfDay(23))
}

func TestDeriveAmount_DistinguishesCents(t *testing.T) {
	tbl := frame.MustNew(frame.NewNumeric(AmountColumn, []float64{100.00, 99.99, 5, math.NaN()}))
	// Store the amounts as float32, as ingestion would.
	amt, _ := tbl.Numeric(AmountColumn)
	narrow := frame.NewNumericStorage(AmountColumn, frame.Encode(amt.Values(), amt.Nulls(), frame.WidthFloat32), amt.Nulls())
	tbl, err := tbl.With(narrow)
	require.NoError(t, err)

	out, err := DeriveAmount(tbl)
	require.NoError(t, err)

	assert.Equal(t, 0.0, value(t, out, "amt_decimal", 0))
	assert.Equal(t, 990.0, value(t, out, "amt_decimal", 1))
	assert.Equal(t, 0.0, value(t, out, "amt_cents", 0))
	assert.Equal(t, 99.0, value(t, out, "amt_cents", 1))
	assert.Equal(t, 1.0, value(t, out, "amt_is_round", 0))
	assert.Equal(t, 0.0, value(t, out, "amt_is_round", 1))
	assert.Equal(t, 1.0, value(t, out, "amt_bin", 0))
	assert.Equal(t, 1.0, value(t, out, "amt_bin", 1))
	assert.Equal(t, 1.0, value(t, out, "amt_is_micro", 2))
	assert.Equal(t, 0.0, value(t, out, "amt_bin", 2))
	assert.InDelta(t, math.Log1p(100), value(t, out, "amt_int_log", 0), 1e-9)
	assert.InDelta(t, math.Log1p(99), value(t, out, "amt_int_log", 1), 1e-9)
	assert.True(t, math.IsNaN(value(t, out, "amt_log", 3)))
}

func cardTable(cards []float64, times, amounts []float64) *frame.Table {
	n := len(cards)
	blank := make([]string, n)
	nan := make([]float64, n)
	for i := range nan {
		nan[i] = math.NaN()
	}
	return frame.MustNew(
		frame.NewNumeric(TimeColumn, times),
		frame.NewNumeric(AmountColumn, amounts),
		frame.NewNumeric("card1", cards),
		frame.NewNumeric("card2", nan),
		frame.NewNumeric("card3", nan),
		frame.NewCategorical("card4", blank),
		frame.NewNumeric("card5", nan),
		frame.NewCategorical("card6", blank),
	)
}

func TestDeriveSequence_PastOnly(t *testing.T) {
	// Card 7 rows appear out of time order; card 9 is interleaved.
	tbl := cardTable(
		[]float64{7, 9, 7, 7},
		[]float64{100, 50, 0, 5000},
		[]float64{100, 3, 10, 20},
	)
	out, err := DeriveSequence(tbl)
	require.NoError(t, err)

	// Row 2 is the first card-7 transaction.
	assert.InDelta(t, 10.0/11, value(t, out, "prev_amt_ratio", 2), 1e-12)
	assert.True(t, math.IsNaN(value(t, out, "card_time_gap", 2)))
	assert.Equal(t, 0.0, value(t, out, "card_cnt_1hr", 2))

	assert.InDelta(t, 100.0/11, value(t, out, "prev_amt_ratio", 0), 1e-12)
	assert.Equal(t, 1.0, value(t, out, "is_amount_spike", 0))
	assert.Equal(t, 100.0, value(t, out, "card_time_gap", 0))
	assert.Equal(t, 1.0, value(t, out, "card_cnt_1hr", 0))

	assert.InDelta(t, 20.0/101, value(t, out, "prev_amt_ratio", 3), 1e-12)
	assert.InDelta(t, 20.0/56, value(t, out, "amt_vs_rolling", 3), 1e-12)
	assert.Equal(t, 4900.0, value(t, out, "card_time_gap", 3))
	assert.Equal(t, 0.0, value(t, out, "card_cnt_1hr", 3))

	// Single-row card.
	assert.True(t, math.IsNaN(value(t, out, "card_time_gap", 1)))
}

func TestDeriveEmail(t *testing.T) {
	tbl := frame.MustNew(
		frame.NewCategorical("P_emaildomain", []string{"gmail.com", "yahoo.co.uk", "", "weird.org"}),
		frame.NewCategorical("R_emaildomain", []string{"gmail.com", "", "", "hotmail.com"}),
	)
	out, err := DeriveEmail(tbl)
	require.NoError(t, err)

	vendor, _ := out.Categorical("P_email_vendor")
	tld, _ := out.Categorical("P_email_tld")
	assert.Equal(t, []string{"google", "yahoo", "", "other"}, vendor.Strings())
	assert.Equal(t, []string{"com", "co.uk", "", "org"}, tld.Strings())

	assert.Equal(t, 1.0, value(t, out, "email_domain_match", 0))
	assert.Equal(t, 0.0, value(t, out, "email_domain_match", 3))
	assert.Equal(t, float64(EmailBothPresent), value(t, out, "email_presence", 0))
	assert.Equal(t, float64(EmailOnlyPurchaser), value(t, out, "email_presence", 1))
	assert.Equal(t, float64(EmailBothMissing), value(t, out, "email_presence", 2))
}

func TestDeriveDevice(t *testing.T) {
	tbl := frame.MustNew(
		frame.NewCategorical("DeviceType", []string{"mobile", ""}),
		frame.NewCategorical("DeviceInfo", []string{"SM-G892A Build/NRD90M", ""}),
		frame.NewCategorical("id_30", []string{"Android 7.0", "Windows 10"}),
		frame.NewCategorical("id_31", []string{"chrome 63.0 for android", ""}),
		frame.NewCategorical("id_33", []string{"2220x1080", "bogus"}),
	)
	out, err := DeriveDevice(tbl)
	require.NoError(t, err)

	brand, _ := out.Categorical("device_brand")
	assert.Equal(t, []string{"SM-G892A", ""}, brand.Strings())
	osName, _ := out.Categorical("os_name")
	assert.Equal(t, []string{"Android", "Windows"}, osName.Strings())

	assert.Equal(t, 1.0, value(t, out, "device_is_mobile", 0))
	assert.Equal(t, 1.0, value(t, out, "browser_is_chrome", 0))
	assert.Equal(t, 1.0, value(t, out, "os_is_android", 0))
	assert.Equal(t, 1.0, value(t, out, "os_is_windows", 1))
	assert.Equal(t, 2220.0*1080, value(t, out, "screen_area", 0))
	assert.InDelta(t, 2220.0/1080, value(t, out, "screen_aspect", 0), 1e-12)
	assert.True(t, math.IsNaN(value(t, out, "screen_width", 1)))
}

func TestDeriveRowStats(t *testing.T) {
	nan := math.NaN()
	tbl := frame.MustNew(
		frame.NewNumeric("V1", []float64{1, nan}),
		frame.NewNumeric("V2", []float64{3, nan}),
		frame.NewNumeric("V12", []float64{5, 2}),
		frame.NewNumeric("id_01", []float64{-5, nan}),
		frame.NewCategorical("id_12", []string{"Found", "NotFound"}),
		frame.NewNumeric("addr1", []float64{nan, 300}),
		frame.NewNumeric("dist1", []float64{nan, math.E - 1}),
	)
	out, err := DeriveRowStats(tbl)
	require.NoError(t, err)

	assert.Equal(t, 4.0, value(t, out, "v1_sum", 0))
	assert.Equal(t, 2.0, value(t, out, "v1_mean", 0))
	assert.InDelta(t, math.Sqrt2, value(t, out, "v1_std", 0), 1e-12)
	assert.Equal(t, 2.0, value(t, out, "v1_nan_count", 1))
	assert.True(t, math.IsNaN(value(t, out, "v1_mean", 1)))
	assert.Equal(t, 3.0, value(t, out, "V_all_mean", 0))
	assert.Equal(t, 1.0, value(t, out, "id_num_nan_count", 1))
	assert.Equal(t, 1.0, value(t, out, "id_12_is_found", 0))
	assert.Equal(t, 1.0, value(t, out, "addr1_missing", 0))
	assert.InDelta(t, 1.0, value(t, out, "dist1_log", 1), 1e-12)
	assert.False(t, out.Has("v3_mean"))
}
