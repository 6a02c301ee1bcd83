package gp2c

import "errors"

var (
	// ErrNontermination is returned for a loop whose body can never fail.
	ErrNontermination = errors.New("nontermination in loop")
	// ErrUnexpectedCommand reports a malformed command tree.
	ErrUnexpectedCommand = errors.New("unexpected command")
	ErrBreakOutsideLoop  = errors.New("break outside of a loop body")
)

// Diagnostics receives advisory messages. Generation continues after a
// warning; fatal problems are returned as errors instead.
type Diagnostics interface {
	Warn(msg string, args ...any)
}

type nopDiagnostics struct{}

func (nopDiagnostics) Warn(string, ...any) {}
