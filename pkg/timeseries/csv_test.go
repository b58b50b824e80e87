package timeseries

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chpdispatch/core/model"
)

var fixed = Defaults{GasPrice: 35, HeatPrice: 40}

func TestReadCSVFullColumns(t *testing.T) {
	in := "datetime,electricity_price,gas_price,heat_price,heat_demand\n" +
		"2025-01-06T00:00:00Z,80.5,36,41,1.2\n" +
		"2025-01-06T01:00:00Z,90,36,41,0\n"
	s, err := ReadCSV(strings.NewReader(in), fixed)
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), s[0].Time.UTC())
	assert.Equal(t, 80.5, s[0].ElectricityPrice)
	assert.Equal(t, 36.0, s[0].GasPrice)
	assert.Equal(t, 41.0, s[0].HeatPrice)
	assert.Equal(t, 1.2, s[0].HeatDemand)
	assert.Zero(t, s[1].HeatDemand)
}

func TestReadCSVAliasesAndFixedPrices(t *testing.T) {
	in := " DateTime , EE Price ,Heat Demand\n" +
		"2025-01-06 00:00:00, 80 ,1\n" +
		"\n" +
		"2025-01-06 01:00,85,1.5\n"
	s, err := ReadCSV(strings.NewReader(in), fixed)
	require.NoError(t, err)
	require.Len(t, s, 2)
	for _, r := range s {
		assert.Equal(t, 35.0, r.GasPrice)
		assert.Equal(t, 40.0, r.HeatPrice)
	}
	assert.Equal(t, 85.0, s[1].ElectricityPrice)
	assert.Equal(t, time.Hour, s[1].Time.Sub(s[0].Time))
}

func TestReadCSVSemicolonDecimalComma(t *testing.T) {
	in := "datetime;ee_price;heat_demand\n" +
		"06.01.2025 00:00;80,25;1,5\n" +
		"06.01.2025 01:00;-3,5;0\n"
	loc := time.FixedZone("CET", 3600)
	s, err := ReadCSV(strings.NewReader(in), Defaults{GasPrice: 35, HeatPrice: 40, Location: loc})
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, 80.25, s[0].ElectricityPrice)
	assert.Equal(t, 1.5, s[0].HeatDemand)
	assert.Equal(t, -3.5, s[1].ElectricityPrice)
	assert.Equal(t, time.Date(2025, 1, 5, 23, 0, 0, 0, time.UTC), s[0].Time.UTC())
}

func TestReadCSVErrorsCarryLineNumbers(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"missing column", "datetime,ee_price\n2025-01-06 00:00,80\n", "line 1"},
		{"bad number", "datetime,ee_price,heat_demand\n2025-01-06 00:00,80,1\n2025-01-06 01:00,abc,1\n", "line 3"},
		{"bad timestamp", "datetime,ee_price,heat_demand\nyesterday,80,1\n", "line 2"},
		{"empty demand", "datetime,ee_price,heat_demand\n2025-01-06 00:00,80,\n", "line 2"},
		{"empty", "", "line 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.in), fixed)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	_, err := ReadCSV(strings.NewReader("datetime,ee_price\n"), fixed)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestReadCSVValidatesSeries(t *testing.T) {
	in := "datetime,ee_price,heat_demand\n" +
		"2025-01-06 01:00,80,1\n" +
		"2025-01-06 00:00,80,1\n"
	_, err := ReadCSV(strings.NewReader(in), fixed)
	assert.True(t, errors.Is(err, model.ErrInvalidSeries))

	in = "datetime,ee_price,heat_demand\n2025-01-06 00:00,80,-1\n"
	_, err = ReadCSV(strings.NewReader(in), fixed)
	assert.True(t, errors.Is(err, model.ErrInvalidSeries))
}

func TestParseTimeOffsets(t *testing.T) {
	ts, err := ParseTime("2025-03-30T02:00:00+02:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), ts.UTC())
}
