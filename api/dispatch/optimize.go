package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/pkg/timeseries"
)

// hourInput is a posted hour. Missing prices fall back to the site's fixed
// gas and heat prices.
type hourInput struct {
	Time             time.Time `json:"datetime"`
	ElectricityPrice *float64  `json:"electricity_price"`
	GasPrice         *float64  `json:"gas_price"`
	HeatPrice        *float64  `json:"heat_price"`
	HeatDemand       *float64  `json:"heat_demand"`
}

// NewOptimizeHandler solves the posted horizon for ?site= and returns the plan.
// The body is a JSON array of hours or, with Content-Type text/csv, a table
// in the CSV loader format.
func NewOptimizeHandler(svc Service, maxBody int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site := r.URL.Query().Get("site")
		if site == "" {
			writeError(w, http.StatusBadRequest, "site is required")
			return
		}
		d, err := svc.Defaults(site)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		series, err := decodeSeries(r, d)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		plan, err := svc.Optimize(r.Context(), site, series)
		if err != nil {
			if errors.Is(err, dispatch.ErrNoSolution) {
				writeError(w, http.StatusUnprocessableEntity, dispatch.ErrNoSolution.Error())
				return
			}
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, plan)
	})
}

func decodeSeries(r *http.Request, d timeseries.Defaults) (model.Series, error) {
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "text/csv" {
		return timeseries.ReadCSV(r.Body, d)
	}
	var in []hourInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	s := make(model.Series, len(in))
	for i, h := range in {
		if h.Time.IsZero() || h.ElectricityPrice == nil || h.HeatDemand == nil {
			return nil, fmt.Errorf("hour %d: datetime, electricity_price and heat_demand are required", i)
		}
		s[i] = model.HourRecord{
			Time:             h.Time,
			ElectricityPrice: *h.ElectricityPrice,
			GasPrice:         orDefault(h.GasPrice, d.GasPrice),
			HeatPrice:        orDefault(h.HeatPrice, d.HeatPrice),
			HeatDemand:       *h.HeatDemand,
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
