package solver

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chpdispatch/core/milp"
)

func cbcModel() *milp.Model {
	m := milp.NewModel("plant")
	x := m.AddContinuous("q", 0, 3)
	y := m.AddContinuous("free", math.Inf(-1), math.Inf(1))
	b := m.AddBinary("on")
	m.AddConstraint("cap", expr(0, x, 1.0, b, -3.0), milp.LessEq, 0)
	m.AddConstraint("link", expr(0, x, 1.0, y, -1.0), milp.Equal, 0)
	m.Maximize(expr(2, x, 5.0, b, -1.5))
	return m
}

func TestWriteLP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, cbcModel()))
	out := buf.String()

	assert.Contains(t, out, "\\* plant *\\")
	assert.Contains(t, out, "Maximize\n obj: + 5 x0 - 1.5 x2\n")
	assert.Contains(t, out, " c0: + 1 x0 - 3 x2 <= 0\n")
	assert.Contains(t, out, " c1: + 1 x0 - 1 x1 = 0\n")
	assert.Contains(t, out, " 0 <= x0 <= 3\n")
	assert.Contains(t, out, " x1 free\n")
	assert.Contains(t, out, "Binaries\n x2\n")
	assert.True(t, strings.HasSuffix(out, "End\n"))
}

func TestParseCBCSolution(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		status milp.Status
		values []float64
	}{
		{
			name:   "optimal",
			in:     "Optimal - objective value 15.5\n      0 x0  3  0\n      2 x2  1  -1.5\n",
			status: milp.Optimal,
			values: []float64{3, 0, 1},
		},
		{
			name:   "stopped with incumbent",
			in:     "Stopped on time - objective value 10\n0 x0 2 0\n** 2 x2 1 0\n",
			status: milp.Feasible,
			values: []float64{2, 0, 1},
		},
		{
			name:   "stopped without integer solution",
			in:     "Stopped on time (no integer solution - continuous used) - objective value 12\n0 x0 2.5 0\n",
			status: milp.NotSolved,
		},
		{
			name:   "infeasible",
			in:     "Infeasible - objective value 0\n",
			status: milp.Infeasible,
		},
		{
			name:   "integer infeasible",
			in:     "Integer infeasible - objective value 0\n",
			status: milp.Infeasible,
		},
		{
			name:   "unbounded",
			in:     "Unbounded - objective value 0\n",
			status: milp.Unbounded,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sol, err := ParseCBCSolution(strings.NewReader(c.in), 3)
			require.NoError(t, err)
			assert.Equal(t, c.status, sol.Status)
			if c.values != nil {
				assert.Equal(t, c.values, sol.Values)
			} else {
				assert.Nil(t, sol.Values)
			}
		})
	}

	_, err := ParseCBCSolution(strings.NewReader(""), 1)
	assert.Error(t, err)
	_, err = ParseCBCSolution(strings.NewReader("Something odd\n"), 1)
	assert.Error(t, err)
}

func TestCBCSolveRunsBinary(t *testing.T) {
	orig := runCommand
	defer func() { runCommand = orig }()

	var gotArgs []string
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		model, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		if !strings.Contains(string(model), "Binaries") {
			return nil, errors.New("model not written")
		}
		sol := "Optimal - objective value 13.5\n0 x0 3 0\n1 x1 3 0\n2 x2 1 0\n"
		return nil, os.WriteFile(args[len(args)-1], []byte(sol), 0o600)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s := NewCBC(Config{CBCPath: "/opt/cbc/bin/cbc"}, nil)
	sol, err := s.Solve(ctx, cbcModel())
	require.NoError(t, err)
	assert.Equal(t, milp.Optimal, sol.Status)
	// objective constant is added back after parsing
	assert.InDelta(t, 2+15-1.5, sol.Objective, 1e-12)
	assert.Contains(t, gotArgs, "sec")
	assert.Contains(t, gotArgs, "ratioGap")
	assert.Equal(t, "solution", gotArgs[len(gotArgs)-2])
}

func TestCBCSolveMissingBinary(t *testing.T) {
	orig := runCommand
	defer func() { runCommand = orig }()
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("not found"), errors.New("exec: \"cbc\": executable file not found in $PATH")
	}
	_, err := NewCBC(Config{}, nil).Solve(context.Background(), cbcModel())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cbc")
}

func TestCBCConstantConstraintInfeasible(t *testing.T) {
	m := milp.NewModel("const")
	m.AddContinuous("x", 0, 1)
	m.AddConstraint("bad", milp.NewExpr(2), milp.LessEq, 1)
	sol, err := NewCBC(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, milp.Infeasible, sol.Status)
}
