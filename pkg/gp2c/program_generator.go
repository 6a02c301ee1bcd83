package gp2c

import (
	"fmt"

	"gp2c/pkg/program"
)

// Generator lowers command trees for one backend. It is not safe for
// concurrent use: the checkpoint allocator is shared by every call.
type Generator struct {
	opts    Options
	backend Backend
	diag    Diagnostics
	alloc   Allocator
}

// New validates opts and returns a Generator. A nil diag drops warnings.
func New(opts Options, diag Diagnostics) (*Generator, error) {
	opts = opts.normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	backend, err := NewBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return &Generator{opts: opts, backend: backend, diag: diag}, nil
}

func (g *Generator) Backend() Backend {
	return g.backend
}

func (g *Generator) Options() Options {
	return g.opts
}

// Reset restarts checkpoint numbering.
func (g *Generator) Reset() {
	g.alloc.Reset()
}

// Lower translates cmd as the body of main. Checkpoint numbering carries on
// from previous calls unless Reset is called in between.
func (g *Generator) Lower(cmd program.Command) (Block, error) {
	if err := checkCommand(cmd); err != nil {
		return nil, err
	}
	return g.lower(cmd, rootEnv())
}

// Generate produces the complete runtime main.c for prog.
func (g *Generator) Generate(prog *program.Program) (string, error) {
	if prog == nil {
		return "", fmt.Errorf("%w: nil program", ErrUnexpectedCommand)
	}
	g.Reset()
	body, err := g.Lower(prog.Main)
	if err != nil {
		return "", err
	}
	return newRuntimeGenerator(g.opts, g.backend, prog, body, g.alloc.Issued()).generate(), nil
}

// Generate is a one-shot wrapper around New and Generator.Generate.
func Generate(prog *program.Program, opts Options, diag Diagnostics) (string, error) {
	g, err := New(opts, diag)
	if err != nil {
		return "", err
	}
	return g.Generate(prog)
}
