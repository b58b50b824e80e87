package logging

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/model"
)

// Run statuses that are not solver statuses.
const (
	StatusNoSolution = "no_solution"
	StatusError      = "error"
)

// RunRecord captures one optimization run and its outcome.
type RunRecord struct {
	RunID        string            `json:"run_id"`
	Site         string            `json:"site"`
	Timestamp    time.Time         `json:"timestamp"`
	HorizonStart time.Time         `json:"horizon_start"`
	HorizonEnd   time.Time         `json:"horizon_end"`
	Hours        int               `json:"hours"`
	Status       string            `json:"status"`
	Objective    float64           `json:"objective"`
	Nodes        int               `json:"nodes"`
	DurationMS   int64             `json:"duration_ms"`
	Error        string            `json:"error,omitempty"`
	Summary      *dispatch.Summary `json:"summary,omitempty"`
}

// NewRunRecord describes the outcome of Optimizer.Optimize. plan may be nil
// when err is set.
func NewRunRecord(site string, series model.Series, plan *dispatch.Plan, err error, at time.Time) RunRecord {
	rec := RunRecord{Site: site, Timestamp: at, Hours: len(series)}
	if len(series) > 0 {
		rec.HorizonStart = series[0].Time
		rec.HorizonEnd = series[len(series)-1].Time
	}
	switch {
	case err != nil:
		rec.Error = err.Error()
		rec.Status = StatusError
		if errors.Is(err, dispatch.ErrNoSolution) {
			rec.Status = StatusNoSolution
		}
	case plan != nil:
		sum := plan.Summary
		rec.RunID = plan.RunID
		rec.Status = plan.Status
		rec.Objective = plan.Objective
		rec.Nodes = plan.Nodes
		rec.DurationMS = plan.Duration.Milliseconds()
		rec.Summary = &sum
	}
	return rec
}

// RunQuery defines filters for retrieving records. Zero values match all.
type RunQuery struct {
	Start  time.Time
	End    time.Time
	Site   string
	Status string
}

func (q RunQuery) match(r RunRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Site != "" && r.Site != q.Site {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}

// RunStore persists RunRecords and supports querying.
type RunStore interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q RunQuery) ([]RunRecord, error)
	Close() error
}
