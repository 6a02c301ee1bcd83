package gp2c

import "gp2c/pkg/program"

func (g *Generator) needsBranchCheckpoint(cond, then, els program.Command, try bool) bool {
	if !try {
		return !IsSingleRule(cond)
	}
	if IsNullCommand(cond) {
		return false
	}
	return !(IsSingleRule(cond) && IsNullCommand(then) && IsNullCommand(els))
}

func (g *Generator) lowerBranch(cond, then, els program.Command, try bool, e env) (Block, error) {
	title := "If Statement"
	ce := e
	ce.ctx = ifCondition
	if try {
		title = "Try Statement"
		ce.ctx = tryCondition
	}
	ce.tail = true

	cp := g.needsBranchCheckpoint(cond, then, els, try)
	if cp {
		ce = ce.withCheckpoint(g.alloc.Next(), e.recording)
	} else {
		ce = ce.withoutCheckpoint()
	}

	out := Block{&Comment{Text: title}}
	if cp {
		out = append(out, &Checkpoint{Op: OpCreate, ID: ce.checkpoint})
	}
	condBlock, err := g.lower(cond, ce)
	if err != nil {
		return nil, err
	}
	out = append(out, &Comment{Text: "Condition"}, &Region{Body: condBlock})
	if cp && !try {
		out = append(out, &Checkpoint{Op: OpRollback, ID: ce.checkpoint})
	}

	thenBlock := Block{&Comment{Text: "Then Branch"}}
	elseBlock := Block{&Comment{Text: "Else Branch"}}
	if cp && try {
		thenBlock = append(thenBlock, g.release(ce, false, false))
		elseBlock = append(elseBlock, &Checkpoint{Op: OpRollback, ID: ce.checkpoint})
	}
	elseBlock = append(elseBlock, &SetSuccess{Value: true})

	b, err := g.lower(then, e)
	if err != nil {
		return nil, err
	}
	thenBlock = append(thenBlock, b...)
	b, err = g.lower(els, e)
	if err != nil {
		return nil, err
	}
	elseBlock = append(elseBlock, b...)

	out = append(out, &IfSuccess{Then: thenBlock, Else: elseBlock})
	if e.ctx.condition() && e.tail {
		out = append(out, &Exit{})
	}
	return out, nil
}
