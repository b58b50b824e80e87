package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSeries is returned by Series.Validate.
var ErrInvalidSeries = errors.New("invalid time series")

// HourRecord is one hourly input interval.
type HourRecord struct {
	Time             time.Time `json:"datetime"`
	ElectricityPrice float64   `json:"electricity_price"` // EUR/MWh
	GasPrice         float64   `json:"gas_price"`         // EUR/MWh
	HeatPrice        float64   `json:"heat_price"`        // EUR/MWh
	HeatDemand       float64   `json:"heat_demand"`       // MWh
}

// Series is an ordered hourly horizon.
type Series []HourRecord

// Validate checks ordering, demand sign and finiteness. The optimizer assumes
// validated input and never calls this itself.
func (s Series) Validate() error {
	for i, r := range s {
		for _, v := range []float64{r.ElectricityPrice, r.GasPrice, r.HeatPrice, r.HeatDemand} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: hour %d has a non finite value", ErrInvalidSeries, i)
			}
		}
		if r.HeatDemand < 0 {
			return fmt.Errorf("%w: hour %d has negative heat demand %v", ErrInvalidSeries, i, r.HeatDemand)
		}
		if i > 0 && !r.Time.After(s[i-1].Time) {
			return fmt.Errorf("%w: timestamps not strictly increasing at hour %d (%s)", ErrInvalidSeries, i, r.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Hourly builds a series starting at start with one record per hour, using
// the same prices for every hour and the provided demand profile.
func Hourly(start time.Time, electricity, gas, heat float64, demand ...float64) Series {
	s := make(Series, len(demand))
	for i, d := range demand {
		s[i] = HourRecord{
			Time:             start.Add(time.Duration(i) * time.Hour),
			ElectricityPrice: electricity,
			GasPrice:         gas,
			HeatPrice:        heat,
			HeatDemand:       d,
		}
	}
	return s
}
