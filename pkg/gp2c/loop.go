package gp2c

import (
	"fmt"

	"gp2c/pkg/program"
)

func (g *Generator) lowerLoop(l *program.LoopStatement, e env) (Block, error) {
	if NeverFails(l.Body) {
		return nil, fmt.Errorf("%w: the loop body never fails", ErrNontermination)
	}
	if IsNullCommand(l.Body) {
		g.diag.Warn("possible nontermination in loop", "depth", e.loopDepth+1)
	}

	le := e
	le.ctx = loopBody
	le.loopDepth++
	le.tail = false
	cp := !IsSingleRule(l.Body)
	if cp {
		le = le.withCheckpoint(g.alloc.Next(), l.Nested || le.loopDepth > 1 || e.recording)
	} else {
		le = le.withoutCheckpoint()
	}

	var body Block
	if cp {
		// Re-marked every iteration: each pass pairs its own create with
		// exactly one rollback, commit or update.
		body = append(body, &Checkpoint{Op: OpCreate, ID: le.checkpoint})
	}
	b, err := g.lower(l.Body, le)
	if err != nil {
		return nil, err
	}
	body = append(body, b...)
	if cp {
		body = append(body, g.release(le, false, true))
	}

	return Block{
		&Comment{Text: "Loop Statement"},
		&Loop{Body: body},
		&SetSuccess{Value: true},
	}, nil
}
