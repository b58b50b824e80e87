package dispatch

import (
	"math"

	"github.com/kilianp07/chpdispatch/core/model"
)

// hourPlan is the best continuous dispatch of one hour for a fixed CHP state.
type hourPlan struct {
	ok       bool
	profit   float64
	qCHP     float64
	qBoiler  float64
	heatInt  float64 // e-boiler heat from CHP electricity
	heatGrid float64 // e-boiler heat from grid electricity
}

type heatSource struct {
	cost float64
	cap  float64
	kind int
}

const (
	sourceBoiler = iota
	sourceInternal
	sourceGrid
)

// fill meets need with the cheapest sources first. Sources with a negative
// cost run at capacity even beyond need. The two e-boiler sources share the
// e-boiler capacity.
func fill(srcs []heatSource, need, eMax float64) (amounts [3]float64, cost float64, ok bool) {
	for i := 1; i < len(srcs); i++ {
		for j := i; j > 0 && srcs[j].cost < srcs[j-1].cost; j-- {
			srcs[j], srcs[j-1] = srcs[j-1], srcs[j]
		}
	}
	usedE := 0.0
	for _, s := range srcs {
		avail := s.cap
		if s.kind != sourceBoiler {
			avail = math.Min(avail, eMax-usedE)
		}
		if avail <= 0 {
			continue
		}
		x := avail
		if s.cost >= 0 {
			x = math.Min(avail, need)
		}
		if x <= 0 {
			continue
		}
		amounts[s.kind] += x
		if s.kind != sourceBoiler {
			usedE += x
		}
		need -= x
		cost += s.cost * x
	}
	return amounts, cost, need <= 1e-12
}

// bestHour solves the single-hour dispatch for a fixed CHP state. Given the
// state, hours are independent: every coupling row of the model involves
// only on, start and stop.
func bestHour(h model.HourRecord, req float64, p model.Profile, on bool) hourPlan {
	H := p.CHPHeatOutput()
	rho := p.ElectricityPerHeat()
	etaE := p.EBoilerEfficiency()
	bMax, eMax := p.BoilerMaxHeat(), p.EBoilerMaxHeat()

	eval := func(q float64) hourPlan {
		pl := hourPlan{qCHP: q}
		pl.profit = h.HeatPrice*req + q*(h.ElectricityPrice*rho-h.GasPrice*p.GasPerHeat())
		if on {
			pl.profit -= p.CHPServiceCost()
		}
		if h.HeatDemand <= 0 {
			pl.ok = true
			return pl
		}
		srcs := []heatSource{
			{cost: h.GasPrice / p.BoilerEfficiency(), cap: bMax, kind: sourceBoiler},
			{cost: h.ElectricityPrice / etaE, cap: math.Min(q*rho*etaE, eMax), kind: sourceInternal},
			{cost: (h.ElectricityPrice + p.DistributionCost()) / etaE, cap: eMax, kind: sourceGrid},
		}
		amounts, cost, ok := fill(srcs, math.Max(req-q, 0), eMax)
		if !ok {
			return pl
		}
		pl.ok = true
		pl.qBoiler = amounts[sourceBoiler]
		pl.heatInt = amounts[sourceInternal]
		pl.heatGrid = amounts[sourceGrid]
		pl.profit -= cost
		return pl
	}

	if !on {
		return eval(0)
	}
	lo := p.CHPMinLoad() * H
	// The hour value is concave piecewise linear in q; its kinks are where
	// the CHP output meets the requirement net of capacity blocks or where
	// the internal e-boiler feed saturates.
	cands := []float64{lo, H, eMax / (rho * etaE)}
	for _, s := range []float64{0, bMax, eMax, bMax + eMax} {
		cands = append(cands, req-s, (req-s)/(1+rho*etaE))
	}
	best := hourPlan{}
	for _, q := range cands {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			continue
		}
		q = math.Min(math.Max(q, lo), H)
		if pl := eval(q); pl.ok && (!best.ok || pl.profit > best.profit+1e-12) {
			best = pl
		}
	}
	return best
}

// commit returns the most profitable on/off trajectory that respects the
// minimum up and down rows of the model, or nil when some hour cannot be
// covered in any state. State k counts the further hours that must keep the
// current CHP state.
func (f *Formulation) commit() ([]bool, [][2]hourPlan) {
	T := len(f.series)
	p := f.profile
	plans := make([][2]hourPlan, T)
	for t, h := range f.series {
		plans[t][0] = bestHour(h, f.required[t], p, false)
		plans[t][1] = bestHour(h, f.required[t], p, true)
	}

	U, N := p.MinUpHours(), p.MinDownHours()
	W := max(U, N, 1)
	idx := func(s, k int) int { return s*W + k }
	negInf := math.Inf(-1)

	val := make([]float64, 2*W)
	for i := range val {
		val[i] = negInf
	}
	s0 := 0
	if p.InitialOn() {
		s0 = 1
	}
	val[idx(s0, 0)] = 0
	back := make([][]int32, T)

	for t := 0; t < T; t++ {
		next := make([]float64, 2*W)
		for i := range next {
			next[i] = negInf
		}
		par := make([]int32, 2*W)
		try := func(from, s, k int, v float64) {
			pl := plans[t][s]
			if !pl.ok {
				return
			}
			if w := v + pl.profit; w > next[idx(s, k)] {
				next[idx(s, k)] = w
				par[idx(s, k)] = int32(from)
			}
		}
		for s := 0; s < 2; s++ {
			for k := 0; k < W; k++ {
				v := val[idx(s, k)]
				if math.IsInf(v, -1) {
					continue
				}
				try(idx(s, k), s, max(k-1, 0), v)
				if k > 0 {
					continue
				}
				ns, nk := 1-s, 0
				if ns == 1 && U > 1 && t <= T-U {
					nk = U - 1
				}
				if ns == 0 && N > 1 && t <= T-N {
					nk = N - 1
				}
				try(idx(s, k), ns, nk, v)
			}
		}
		back[t] = par
		val = next
	}

	end := -1
	for i, v := range val {
		if !math.IsInf(v, -1) && (end < 0 || v > val[end]) {
			end = i
		}
	}
	if end < 0 {
		return nil, nil
	}
	on := make([]bool, T)
	for t, st := T-1, end; t >= 0; t-- {
		on[t] = st >= W
		st = int(back[t][st])
	}
	return on, plans
}

// Seed builds a feasible point of the model from the best commitment
// trajectory. It returns nil when no trajectory covers every hour.
func (f *Formulation) Seed() []float64 {
	on, plans := f.commit()
	if on == nil {
		return nil
	}
	p := f.profile
	v := f.vars
	rho, etaE := p.ElectricityPerHeat(), p.EBoilerEfficiency()
	x := make([]float64, f.Model.NumVars())
	prev := p.InitialOn()
	for t := range f.series {
		s := 0
		if on[t] {
			s = 1
		}
		pl := plans[t][s]
		qE := pl.heatInt + pl.heatGrid
		eeInt := pl.heatInt / etaE
		x[v.qCHP[t]] = pl.qCHP
		x[v.qBoiler[t]] = pl.qBoiler
		x[v.qEBoiler[t]] = qE
		x[v.eeCHP[t]] = pl.qCHP * rho
		x[v.eeInt[t]] = eeInt
		x[v.eeSpot[t]] = math.Max(pl.qCHP*rho-eeInt, 0)
		x[v.eeGrid[t]] = pl.heatGrid / etaE
		x[v.deficit[t]] = math.Max(math.Max(f.required[t]-pl.qCHP, pl.qBoiler+qE), 0)
		if on[t] {
			x[v.on[t]] = 1
		}
		if on[t] && !prev {
			x[v.start[t]] = 1
		}
		if !on[t] && prev {
			x[v.stop[t]] = 1
		}
		prev = on[t]
	}
	return x
}
