package gp2c

import "gp2c/pkg/program"

// IsSingleRule reports whether cmd reduces to one atomic step once leading
// commands that cannot change the graph are dropped. A failed attempt at
// such a command leaves the host graph untouched.
func IsSingleRule(cmd program.Command) bool {
	switch c := cmd.(type) {
	case *program.Sequence:
		rest := c.Commands
		for len(rest) > 0 && IsNullCommand(rest[0]) {
			rest = rest[1:]
		}
		switch len(rest) {
		case 0:
			return true
		case 1:
			return IsSingleRule(rest[0])
		default:
			return false
		}
	case *program.RuleCall, *program.RuleSetCall:
		return true
	case *program.ProcedureCall:
		return IsSingleRule(c.Procedure.Body)
	case *program.Choice:
		return IsSingleRule(c.Left) && IsSingleRule(c.Right)
	case *program.Skip, *program.Fail, *program.Break:
		return true
	}
	return false
}

// IsNullCommand reports whether cmd can never change the host graph.
func IsNullCommand(cmd program.Command) bool {
	switch c := cmd.(type) {
	case *program.Sequence:
		for _, sub := range c.Commands {
			if !IsNullCommand(sub) {
				return false
			}
		}
		return true
	case *program.RuleCall:
		return c.Rule.Predicate
	case *program.RuleSetCall:
		for _, r := range c.Rules {
			if !r.Predicate {
				return false
			}
		}
		return true
	case *program.ProcedureCall:
		return IsNullCommand(c.Procedure.Body)
	case *program.IfStatement:
		return IsNullCommand(c.Then) && IsNullCommand(c.Else)
	case *program.TryStatement:
		return IsNullCommand(c.Condition) && IsNullCommand(c.Then) && IsNullCommand(c.Else)
	case *program.LoopStatement:
		return IsNullCommand(c.Body)
	case *program.Choice:
		return IsNullCommand(c.Left) && IsNullCommand(c.Right)
	case *program.Skip, *program.Fail, *program.Break:
		return true
	}
	return false
}

// NeverFails reports whether cmd always leaves the success flag set.
// A loop as a whole never fails: it stops on the first failed iteration
// and then resets the flag.
func NeverFails(cmd program.Command) bool {
	switch c := cmd.(type) {
	case *program.Sequence:
		for _, sub := range c.Commands {
			if !NeverFails(sub) {
				return false
			}
		}
		return true
	case *program.RuleCall:
		return c.Rule.EmptyLHS
	case *program.RuleSetCall:
		for _, r := range c.Rules {
			if !r.EmptyLHS {
				return false
			}
		}
		return true
	case *program.ProcedureCall:
		return NeverFails(c.Procedure.Body)
	case *program.IfStatement:
		return NeverFails(c.Then) && NeverFails(c.Else)
	case *program.TryStatement:
		return NeverFails(c.Then) && NeverFails(c.Else)
	case *program.LoopStatement:
		return true
	case *program.Choice:
		return NeverFails(c.Left) && NeverFails(c.Right)
	case *program.Skip, *program.Break:
		return true
	}
	return false
}
