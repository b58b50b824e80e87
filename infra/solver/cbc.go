package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/chpdispatch/core/logger"
	"github.com/kilianp07/chpdispatch/core/milp"
	infralogger "github.com/kilianp07/chpdispatch/infra/logger"
)

// runCommand executes the solver binary. It can be overridden in tests.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CBC hands models to the COIN-OR cbc binary through an LP file and reads
// back its solution file.
type CBC struct {
	path string
	gap  float64
	log  logger.Logger
}

// NewCBC returns a CBC backend.
func NewCBC(cfg Config, log logger.Logger) *CBC {
	cfg.SetDefaults()
	if log == nil {
		log = infralogger.NopLogger{}
	}
	return &CBC{path: cfg.CBCPath, gap: cfg.Gap, log: log}
}

// Solve implements milp.Solver.
func (c *CBC) Solve(ctx context.Context, m *milp.Model) (milp.Solution, error) {
	start := time.Now()
	for _, con := range m.Constraints() {
		if len(con.Expr.Terms) == 0 && !constantHolds(con.Sense, con.RHS) {
			return milp.Solution{Status: milp.Infeasible, Duration: time.Since(start)}, nil
		}
	}

	dir, err := os.MkdirTemp("", "chpdispatch-cbc-*")
	if err != nil {
		return milp.Solution{}, fmt.Errorf("cbc: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")

	f, err := os.Create(lpPath)
	if err != nil {
		return milp.Solution{}, fmt.Errorf("cbc: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := WriteLP(w, m); err != nil {
		f.Close()
		return milp.Solution{}, fmt.Errorf("cbc: write model: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return milp.Solution{}, fmt.Errorf("cbc: write model: %w", err)
	}
	if err := f.Close(); err != nil {
		return milp.Solution{}, fmt.Errorf("cbc: write model: %w", err)
	}

	args := []string{lpPath}
	runCtx := ctx
	if deadline, ok := ctx.Deadline(); ok {
		secs := int(math.Max(1, math.Floor(time.Until(deadline).Seconds())))
		args = append(args, "sec", strconv.Itoa(secs))
		// cbc stops itself at the limit; leave it time to write the solution.
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(context.Background(), deadline.Add(10*time.Second))
		defer cancel()
	}
	args = append(args, "ratioGap", strconv.FormatFloat(c.gap, 'g', -1, 64), "solve", "solution", solPath)

	c.log.Debugw("cbc start", map[string]any{"model": m.Name, "vars": m.NumVars(), "rows": m.NumConstraints()})
	out, runErr := runCommand(runCtx, c.path, args...)
	sf, err := os.Open(solPath)
	if err != nil {
		if runErr != nil {
			return milp.Solution{}, fmt.Errorf("cbc: %w: %s", runErr, strings.TrimSpace(string(out)))
		}
		return milp.Solution{}, fmt.Errorf("cbc: no solution file: %w", err)
	}
	defer sf.Close()

	sol, err := ParseCBCSolution(sf, m.NumVars())
	if err != nil {
		return milp.Solution{}, err
	}
	obj, maximize := m.Objective()
	if sol.Status.HasSolution() {
		sol.Objective = obj.Eval(sol.Values)
		sol.Bound = sol.Objective
	}
	if sol.Status == milp.NotSolved || sol.Status == milp.Feasible {
		sol = c.preferStart(m, sol, obj, maximize)
	}
	sol.Duration = time.Since(start)
	return sol, nil
}

// preferStart replaces a stopped cbc run by the model start point when cbc
// found nothing better.
func (c *CBC) preferStart(m *milp.Model, sol milp.Solution, obj milp.Expr, maximize bool) milp.Solution {
	x := startPoint(m, c.log)
	if x == nil {
		return sol
	}
	v := obj.Eval(x)
	if sol.Status == milp.Feasible && ((maximize && sol.Objective >= v) || (!maximize && sol.Objective <= v)) {
		return sol
	}
	c.log.Infof("cbc: stopped without a better solution for %s, using its start point", m.Name)
	bound := math.Inf(1)
	if !maximize {
		bound = math.Inf(-1)
	}
	return milp.Solution{Status: milp.Feasible, Values: x, Objective: v, Bound: bound}
}

func lpName(v milp.Var) string { return "x" + strconv.Itoa(int(v)) }

func lpNum(v float64) string { return strconv.FormatFloat(v, 'g', 15, 64) }

func writeTerms(w io.Writer, terms []milp.Term) error {
	for k, t := range terms {
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if k > 0 && k%8 == 0 {
			if _, err := io.WriteString(w, "\n  "); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " %s %s %s", sign, lpNum(coef), lpName(t.Var)); err != nil {
			return err
		}
	}
	return nil
}

// WriteLP writes m in CPLEX LP format with variables named x0..xN-1 and rows
// named c0..cM-1. The objective constant is left out.
func WriteLP(w io.Writer, m *milp.Model) error {
	obj, maximize := m.Objective()
	ew := &errWriter{w: w}
	fmt.Fprintf(ew, "\\* %s *\\\n", m.Name)
	if maximize {
		ew.str("Maximize\n")
	} else {
		ew.str("Minimize\n")
	}
	ew.str(" obj:")
	if len(obj.Terms) == 0 && m.NumVars() > 0 {
		ew.str(" 0 x0")
	}
	ew.err = firstErr(ew.err, writeTerms(ew, obj.Terms))
	ew.str("\nSubject To\n")
	for i, c := range m.Constraints() {
		if len(c.Expr.Terms) == 0 {
			continue
		}
		fmt.Fprintf(ew, " c%d:", i)
		ew.err = firstErr(ew.err, writeTerms(ew, c.Expr.Terms))
		fmt.Fprintf(ew, " %s %s\n", c.Sense, lpNum(c.RHS))
	}
	ew.str("Bounds\n")
	var bins []string
	for j, v := range m.Vars() {
		name := lpName(milp.Var(j))
		if v.Kind == milp.Binary {
			bins = append(bins, name)
			continue
		}
		loInf, upInf := math.IsInf(v.Lower, -1), math.IsInf(v.Upper, 1)
		switch {
		case loInf && upInf:
			fmt.Fprintf(ew, " %s free\n", name)
		case loInf:
			fmt.Fprintf(ew, " -inf <= %s <= %s\n", name, lpNum(v.Upper))
		case upInf:
			fmt.Fprintf(ew, " %s >= %s\n", name, lpNum(v.Lower))
		default:
			fmt.Fprintf(ew, " %s <= %s <= %s\n", lpNum(v.Lower), name, lpNum(v.Upper))
		}
	}
	if len(bins) > 0 {
		ew.str("Binaries\n")
		for _, b := range bins {
			ew.str(" " + b + "\n")
		}
	}
	ew.str("End\n")
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) str(s string) { _, _ = io.WriteString(e, s) }

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

// ParseCBCSolution reads a cbc solution file. Variables absent from the file
// are zero.
func ParseCBCSolution(r io.Reader, nvars int) (milp.Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return milp.Solution{}, fmt.Errorf("cbc: read solution: %w", err)
		}
		return milp.Solution{}, fmt.Errorf("cbc: empty solution file")
	}
	header := strings.TrimSpace(sc.Text())
	values := make([]float64, nvars)
	found := 0
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "**"))
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.HasPrefix(fields[1], "x") {
			continue
		}
		idx, err := strconv.Atoi(fields[1][1:])
		if err != nil || idx < 0 || idx >= nvars {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return milp.Solution{}, fmt.Errorf("cbc: bad value %q for %s", fields[2], fields[1])
		}
		values[idx] = v
		found++
	}
	if err := sc.Err(); err != nil {
		return milp.Solution{}, fmt.Errorf("cbc: read solution: %w", err)
	}

	var status milp.Status
	switch {
	case strings.HasPrefix(header, "Optimal"):
		status = milp.Optimal
	case strings.HasPrefix(header, "Infeasible"), strings.HasPrefix(header, "Integer infeasible"):
		status = milp.Infeasible
	case strings.HasPrefix(header, "Unbounded"):
		status = milp.Unbounded
	case strings.HasPrefix(header, "Stopped"):
		status = milp.NotSolved
		if found > 0 && !strings.Contains(header, "no integer solution") {
			status = milp.Feasible
		}
	default:
		return milp.Solution{}, fmt.Errorf("cbc: unrecognised status %q", header)
	}
	sol := milp.Solution{Status: status}
	if status.HasSolution() {
		sol.Values = values
	}
	return sol, nil
}
