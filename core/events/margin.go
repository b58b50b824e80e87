package events

import (
	"time"

	"github.com/kilianp07/chpdispatch/core/model"
)

// MarginEvent is published when marginal costs are evaluated for a site.
type MarginEvent struct {
	Site             string
	ElectricityPrice float64
	GasPrice         float64
	HeatPrice        float64
	Margins          model.MarginSet
	Best             model.Strategy
	Time             time.Time
}
