package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gp2c/pkg/gp2c"
)

// Config configures an Executor.
type Config struct {
	Backend gp2c.BackendKind
	// Rules maps rule names to implementations; see Bind.
	Rules map[string]Rule
	Seed  uint64
	// Logger receives checkpoint and choice events at debug level. Nil
	// discards them.
	Logger *slog.Logger
}

// Event is one executed checkpoint operation.
type Event struct {
	Op gp2c.CheckpointOp
	ID gp2c.CheckpointID
}

func (e Event) String() string {
	return fmt.Sprintf("%s %d", e.Op, e.ID)
}

// Result is the outcome of one run. Output is empty when the program
// produced a graph, and holds the failure notice otherwise.
type Result struct {
	Graph  *HostGraph
	Output string
	Trace  []Event
}

// Failed reports whether the run ended without an output graph.
func (r *Result) Failed() bool {
	return r.Output != ""
}

type signal int

const (
	next signal = iota
	exit
	halt
)

// Executor interprets lowered programs in process, the same way the
// generated C would run them.
type Executor struct {
	cfg    Config
	rng    *rng
	logger *slog.Logger

	host    *HostGraph
	cp      Checkpointer
	success bool
	matches map[string]Match
	result  *Result
}

func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Backend == "" {
		cfg.Backend = gp2c.BackendDelta
	}
	if _, err := gp2c.NewBackend(cfg.Backend); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{cfg: cfg, rng: newRNG(cfg.Seed), logger: logger}, nil
}

// Run executes block against host, which is modified in place. The random
// source carries over between runs.
func (x *Executor) Run(ctx context.Context, block gp2c.Block, host *HostGraph) (*Result, error) {
	cp, err := NewCheckpointer(x.cfg.Backend, host)
	if err != nil {
		return nil, err
	}
	x.host = host
	x.cp = cp
	x.success = true
	x.matches = make(map[string]Match)
	x.result = &Result{Graph: host}
	defer func() {
		cp.Free()
		host.recording = false
	}()

	if _, err := x.block(ctx, block); err != nil {
		return nil, err
	}
	return x.result, nil
}

func (x *Executor) block(ctx context.Context, b gp2c.Block) (signal, error) {
	for _, s := range b {
		sig, err := x.stmt(ctx, s)
		if err != nil || sig != next {
			return sig, err
		}
	}
	return next, nil
}

func (x *Executor) stmt(ctx context.Context, s gp2c.Stmt) (signal, error) {
	switch s := s.(type) {
	case *gp2c.Comment:
	case *gp2c.SetSuccess:
		x.success = s.Value
	case *gp2c.IfMatch:
		r, err := x.rule(s.Rule.Name)
		if err != nil {
			return next, err
		}
		if m, ok := r.Match(x.host); ok {
			x.matches[s.Rule.Name] = m
			return x.block(ctx, s.Then)
		}
		return x.block(ctx, s.Else)
	case *gp2c.IfSuccess:
		if x.success {
			return x.block(ctx, s.Then)
		}
		return x.block(ctx, s.Else)
	case *gp2c.Choose:
		pick := x.rng.upto(2)
		x.logger.Debug("choice", "arm", pick, "draw", x.rng.draws)
		if pick == 0 {
			return x.block(ctx, s.Left)
		}
		return x.block(ctx, s.Right)
	case *gp2c.Region:
		sig, err := x.block(ctx, s.Body)
		if sig == exit {
			sig = next
		}
		return sig, err
	case *gp2c.Loop:
		for x.success {
			if err := ctx.Err(); err != nil {
				return next, err
			}
			sig, err := x.block(ctx, s.Body)
			if err != nil || sig == halt {
				return sig, err
			}
			if sig == exit {
				break
			}
		}
	case *gp2c.Exit:
		if !s.IfFailed || !x.success {
			return exit, nil
		}
	case *gp2c.Apply:
		return next, x.apply(s)
	case *gp2c.ResetMorphism:
		delete(x.matches, s.Rule.Name)
	case *gp2c.Halt:
		if s.Rule == "" {
			x.result.Output = "No output graph: Fail statement invoked."
		} else {
			x.result.Output = fmt.Sprintf("No output graph: rule %s not applicable.", s.Rule)
		}
		x.result.Graph = nil
		return halt, nil
	case *gp2c.Checkpoint:
		if s.IfSuccess && !x.success {
			return next, nil
		}
		return next, x.checkpoint(s)
	default:
		return next, fmt.Errorf("%w: statement %T", gp2c.ErrUnexpectedCommand, s)
	}
	return next, nil
}

func (x *Executor) rule(name string) (Rule, error) {
	r, ok := x.cfg.Rules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnboundRule, name)
	}
	return r, nil
}

func (x *Executor) apply(s *gp2c.Apply) error {
	r, err := x.rule(s.Rule.Name)
	if err != nil {
		return err
	}
	m := x.matches[s.Rule.Name]
	delete(x.matches, s.Rule.Name)

	x.host.recording = s.Record && x.cp.RecordsChanges()
	defer func() { x.host.recording = false }()
	if err := r.Apply(x.host, m); err != nil {
		return fmt.Errorf("apply %s: %w", s.Rule.Name, err)
	}
	return nil
}

func (x *Executor) checkpoint(s *gp2c.Checkpoint) error {
	var err error
	switch s.Op {
	case gp2c.OpCreate:
		err = x.cp.Create(s.ID)
	case gp2c.OpRollback:
		err = x.cp.Rollback(s.ID)
	case gp2c.OpCommit:
		err = x.cp.Commit(s.ID)
	case gp2c.OpUpdate:
		err = x.cp.Update(s.ID)
	default:
		err = fmt.Errorf("unknown checkpoint operation %d", s.Op)
	}
	if err != nil {
		return fmt.Errorf("%s checkpoint %d: %w", s.Op, s.ID, err)
	}
	x.result.Trace = append(x.result.Trace, Event{Op: s.Op, ID: s.ID})
	x.logger.Debug("checkpoint", "op", s.Op.String(), "id", int(s.ID))
	return nil
}
