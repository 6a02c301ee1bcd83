package gp2c

import (
	"fmt"

	"gp2c/pkg/program"
)

func (g *Generator) lower(cmd program.Command, e env) (Block, error) {
	switch c := cmd.(type) {
	case *program.Sequence:
		return g.lowerSequence(c, e)
	case *program.RuleCall:
		return append(Block{&Comment{Text: "Rule Call"}}, g.lowerRuleCall(c.Rule, true, e)...), nil
	case *program.RuleSetCall:
		return g.lowerRuleSet(c, e), nil
	case *program.ProcedureCall:
		return g.lower(c.Procedure.Body, e)
	case *program.IfStatement:
		return g.lowerBranch(c.Condition, c.Then, c.Else, false, e)
	case *program.TryStatement:
		return g.lowerBranch(c.Condition, c.Then, c.Else, true, e)
	case *program.LoopStatement:
		return g.lowerLoop(c, e)
	case *program.Choice:
		return g.lowerChoice(c, e)
	case *program.Skip:
		return Block{&Comment{Text: "Skip Statement"}, &SetSuccess{Value: true}}, nil
	case *program.Fail:
		return append(Block{&Comment{Text: "Fail Statement"}}, g.failure("", e)...), nil
	case *program.Break:
		return g.lowerBreak(c, e)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}
}

func (g *Generator) lowerSequence(s *program.Sequence, e env) (Block, error) {
	var out Block
	for i, cmd := range s.Commands {
		last := i == len(s.Commands)-1
		ce := e
		if !last {
			ce.tail = false
		}
		b, err := g.lower(cmd, ce)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		if e.ctx == loopBody && !last {
			out = append(out, &Exit{IfFailed: true})
		}
	}
	return out, nil
}

// lowerRuleCall emits one rule attempt. last is false for every alternative
// of a rule set but the final one: a match there leaves the set, a failure
// falls through to the next alternative.
func (g *Generator) lowerRuleCall(r *program.Rule, last bool, e env) Block {
	if r.EmptyLHS {
		var out Block
		// An unprotected if condition only needs the outcome, which is
		// always success.
		if !r.Predicate && !(e.ctx == ifCondition && !e.hasCheckpoint) {
			out = append(out, &Apply{Rule: r, Record: g.record(e)})
		}
		out = append(out, &SetSuccess{Value: true})
		if !last {
			out = append(out, &Exit{})
		}
		return out
	}

	var then Block
	switch {
	case r.Predicate:
		then = append(then, &ResetMorphism{Rule: r})
	case e.ctx == ifCondition && !e.hasCheckpoint:
		// Nothing could undo the application before the branches run.
		then = append(then, &ResetMorphism{Rule: r})
	default:
		then = append(then, &Apply{Rule: r, Record: g.record(e)})
	}
	then = append(then, &SetSuccess{Value: true})

	m := &IfMatch{Rule: r, Then: then}
	if last {
		m.Else = g.failure(r.Name, e)
	} else {
		m.Then = append(m.Then, &Exit{})
	}
	return Block{m}
}

func (g *Generator) lowerRuleSet(set *program.RuleSetCall, e env) Block {
	var body Block
	for i, r := range set.Rules {
		body = append(body, g.lowerRuleCall(r, i == len(set.Rules)-1, e)...)
	}
	out := Block{&Comment{Text: "Rule Set Call"}, &Region{Body: body}}
	if e.ctx.condition() {
		// The failure exit above only left the rule set region.
		out = append(out, &Exit{IfFailed: true})
	}
	return out
}

func (g *Generator) lowerChoice(c *program.Choice, e env) (Block, error) {
	left, err := g.lower(c.Left, e)
	if err != nil {
		return nil, err
	}
	right, err := g.lower(c.Right, e)
	if err != nil {
		return nil, err
	}
	out := Block{&Comment{Text: "OR Statement"}, &Choose{Left: left, Right: right}}
	if e.ctx.condition() && e.tail {
		out = append(out, &Exit{})
	}
	return out, nil
}

func (g *Generator) lowerBreak(b *program.Break, e env) (Block, error) {
	if e.ctx != loopBody {
		return nil, fmt.Errorf("%w (in %s)", ErrBreakOutsideLoop, e.ctx)
	}
	out := Block{&Comment{Text: "Break Statement"}}
	if e.hasCheckpoint {
		out = append(out, g.release(e, b.InnerLoop, true))
	}
	return append(out, &Exit{}), nil
}

// release keeps the changes made since e's checkpoint. A nested checkpoint
// is re-marked so an enclosing region can still roll back past it.
func (g *Generator) release(e env, nested, ifSuccess bool) *Checkpoint {
	op := OpCommit
	if nested || e.nested {
		op = OpUpdate
	}
	return &Checkpoint{Op: op, ID: e.checkpoint, IfSuccess: ifSuccess}
}

func (g *Generator) record(e env) bool {
	return e.recording && g.backend.RecordsChanges()
}
