package solver

import (
	"fmt"
	"os/exec"

	"github.com/kilianp07/chpdispatch/core/logger"
	"github.com/kilianp07/chpdispatch/core/milp"
	infralogger "github.com/kilianp07/chpdispatch/infra/logger"
)

const (
	// EngineAuto uses cbc when its binary is found and branch and bound
	// otherwise.
	EngineAuto           = "auto"
	EngineBranchAndBound = "branch_and_bound"
	EngineCBC            = "cbc"

	RelaxationTableau = "tableau"
	RelaxationGonum   = "gonum"
)

// Config selects and tunes the MILP backend.
type Config struct {
	Engine     string `json:"engine"`
	Relaxation string `json:"relaxation"`
	// NodeLimit stops branch and bound after this many nodes. Zero means no limit.
	NodeLimit int `json:"node_limit"`
	// Gap is the relative optimality gap at which a branch is pruned.
	Gap             float64 `json:"gap"`
	MaxTableauCells int     `json:"max_tableau_cells"`
	CBCPath         string  `json:"cbc_path"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Engine == "" {
		c.Engine = EngineAuto
	}
	if c.Relaxation == "" {
		c.Relaxation = RelaxationTableau
	}
	if c.Gap == 0 {
		c.Gap = 1e-6
	}
	if c.MaxTableauCells == 0 {
		c.MaxTableauCells = 4_000_000
	}
	if c.CBCPath == "" {
		c.CBCPath = "cbc"
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineAuto, EngineBranchAndBound, EngineCBC:
	default:
		return fmt.Errorf("solver: unknown engine %q", c.Engine)
	}
	switch c.Relaxation {
	case RelaxationTableau, RelaxationGonum:
	default:
		return fmt.Errorf("solver: unknown relaxation %q", c.Relaxation)
	}
	if c.NodeLimit < 0 {
		return fmt.Errorf("solver: node_limit must be >= 0")
	}
	if c.Gap < 0 || c.Gap >= 1 {
		return fmt.Errorf("solver: gap must be in [0,1)")
	}
	if c.MaxTableauCells < 0 {
		return fmt.Errorf("solver: max_tableau_cells must be >= 0")
	}
	return nil
}

// lookPath finds the cbc binary. It can be overridden in tests.
var lookPath = exec.LookPath

// New builds the configured backend.
func New(cfg Config, log logger.Logger) (milp.Solver, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = infralogger.NopLogger{}
	}
	switch cfg.Engine {
	case EngineCBC:
		return NewCBC(cfg, log), nil
	case EngineAuto:
		if path, err := lookPath(cfg.CBCPath); err == nil {
			log.Infof("solver: using cbc at %s", path)
			cfg.CBCPath = path
			return NewCBC(cfg, log), nil
		}
		log.Infof("solver: %s not found, using branch and bound", cfg.CBCPath)
	}
	return NewBranchAndBound(cfg, log), nil
}
