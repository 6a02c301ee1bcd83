package gp2c

// failure is what a failed match of rule (or a fail statement, when rule is
// empty) turns into at the current position.
func (g *Generator) failure(rule string, e env) Block {
	switch e.ctx {
	case topLevel:
		return Block{&Halt{Rule: rule}}
	case loopBody:
		out := Block{&SetSuccess{Value: false}}
		if e.hasCheckpoint {
			out = append(out, &Checkpoint{Op: OpRollback, ID: e.checkpoint})
		}
		return out
	default:
		// Undoing the condition is left to the branch.
		return Block{&SetSuccess{Value: false}, &Exit{}}
	}
}
