// Package mqtt defines how solved plans are handed to plant controllers.
package mqtt

import (
	"time"

	"github.com/kilianp07/chpdispatch/core/dispatch"
)

// PlanPublisher sends plans to the controller of a site and waits for the
// controller to acknowledge them.
type PlanPublisher interface {
	// PublishPlan sends the schedule and returns the run identifier used to
	// track the acknowledgment.
	PublishPlan(site string, plan *dispatch.Plan) (runID string, err error)

	// WaitForAck waits for an acknowledgment of the run or until the timeout
	// expires.
	WaitForAck(runID string, timeout time.Duration) (bool, error)
}

// ScheduleEntry is the set-point of one hour.
type ScheduleEntry struct {
	Time            time.Time `json:"datetime"`
	CHPOn           bool      `json:"chp_on"`
	CHPHeat         float64   `json:"chp_heat"`
	BypassHeat      float64   `json:"bypass_heat"`
	BoilerHeat      float64   `json:"boiler_heat"`
	EBoilerHeat     float64   `json:"eboiler_heat"`
	ElectricitySold float64   `json:"electricity_sold"`
	ElectricityGrid float64   `json:"electricity_grid"`
}

// PlanMessage is the payload published for a plan.
type PlanMessage struct {
	RunID       string          `json:"run_id"`
	Site        string          `json:"site"`
	Status      string          `json:"status"`
	Objective   float64         `json:"objective"`
	GeneratedAt int64           `json:"generated_at"`
	Schedule    []ScheduleEntry `json:"schedule"`
}

// NewPlanMessage converts a plan into its wire form.
func NewPlanMessage(site string, plan *dispatch.Plan, now time.Time) PlanMessage {
	msg := PlanMessage{
		RunID:       plan.RunID,
		Site:        site,
		Status:      plan.Status,
		Objective:   plan.Objective,
		GeneratedAt: now.UnixMilli(),
		Schedule:    make([]ScheduleEntry, len(plan.Results)),
	}
	for i, r := range plan.Results {
		msg.Schedule[i] = ScheduleEntry{
			Time:            r.Time,
			CHPOn:           r.CHPOn,
			CHPHeat:         r.CHPHeat,
			BypassHeat:      r.BypassHeat,
			BoilerHeat:      r.BoilerHeat,
			EBoilerHeat:     r.EBoilerHeat,
			ElectricitySold: r.ElectricitySold,
			ElectricityGrid: r.ElectricityGrid,
		}
	}
	return msg
}
