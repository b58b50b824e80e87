package dispatch

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/kilianp07/chpdispatch/core/model"
)

// MarginResponse is returned by GET /api/dispatch/margins.
type MarginResponse struct {
	Site                   string             `json:"site"`
	ElectricityPrice       float64            `json:"electricity_price"`
	GasPrice               float64            `json:"gas_price"`
	HeatPrice              float64            `json:"heat_price"`
	Costs                  map[string]float64 `json:"costs"`
	Margins                map[string]float64 `json:"margins"`
	TriggerElectricityOnly float64            `json:"trigger_electricity_only"`
	TriggerFull            float64            `json:"trigger_full"`
	CHPElectricityMargin   float64            `json:"chp_electricity_margin"`
	BestSource             string             `json:"best_source"`
}

// NewMarginsHandler evaluates the marginal costs of a site at the given
// prices. gas and heat default to the site's fixed prices.
func NewMarginsHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		site := q.Get("site")
		if site == "" {
			writeError(w, http.StatusBadRequest, "site is required")
			return
		}
		d, err := svc.Defaults(site)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		ee, err := floatParam(q.Get("electricity"), 0, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "electricity: "+err.Error())
			return
		}
		gas, err := floatParam(q.Get("gas"), d.GasPrice, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "gas: "+err.Error())
			return
		}
		heat, err := floatParam(q.Get("heat"), d.HeatPrice, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "heat: "+err.Error())
			return
		}
		pt, err := svc.Margins(site, ee, gas, heat)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp := MarginResponse{
			Site:                   site,
			ElectricityPrice:       ee,
			GasPrice:               gas,
			HeatPrice:              heat,
			Costs:                  map[string]float64{},
			Margins:                map[string]float64{},
			TriggerElectricityOnly: pt.Margins.TriggerElectricityOnly,
			TriggerFull:            pt.Margins.TriggerFull,
			CHPElectricityMargin:   pt.Margins.CHPElectricityMargin,
			BestSource:             pt.Best.Code(),
		}
		for i, st := range strategies() {
			resp.Costs[st] = pt.Margins.Costs[i]
			resp.Margins[st] = pt.Margins.Margins[i]
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func floatParam(s string, def float64, required bool) (float64, error) {
	if s == "" {
		if required {
			return 0, fmt.Errorf("required")
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return v, nil
}

func strategies() []string {
	out := make([]string, len(model.Strategies))
	for i, st := range model.Strategies {
		out[i] = st.Code()
	}
	return out
}
