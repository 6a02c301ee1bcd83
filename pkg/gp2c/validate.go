package gp2c

import (
	"fmt"

	"gp2c/pkg/program"
)

// checkCommand rejects trees the lowering cannot handle: nil children,
// unresolved references and procedures that reach themselves.
func checkCommand(cmd program.Command) error {
	return checkTree(cmd, map[*program.Procedure]bool{})
}

func checkTree(cmd program.Command, active map[*program.Procedure]bool) error {
	switch c := cmd.(type) {
	case nil:
		return fmt.Errorf("%w: nil command", ErrUnexpectedCommand)
	case *program.Sequence:
		if c == nil {
			return fmt.Errorf("%w: nil sequence", ErrUnexpectedCommand)
		}
		for _, sub := range c.Commands {
			if err := checkTree(sub, active); err != nil {
				return err
			}
		}
	case *program.RuleCall:
		if c == nil || c.Rule == nil {
			return fmt.Errorf("%w: rule call without a rule", ErrUnexpectedCommand)
		}
	case *program.RuleSetCall:
		if c == nil || len(c.Rules) == 0 {
			return fmt.Errorf("%w: empty rule set", ErrUnexpectedCommand)
		}
		for _, r := range c.Rules {
			if r == nil {
				return fmt.Errorf("%w: rule set with a nil rule", ErrUnexpectedCommand)
			}
		}
	case *program.ProcedureCall:
		if c == nil || c.Procedure == nil {
			return fmt.Errorf("%w: call without a procedure", ErrUnexpectedCommand)
		}
		if active[c.Procedure] {
			return fmt.Errorf("%w: %s", program.ErrRecursiveProcedure, c.Procedure.Name)
		}
		active[c.Procedure] = true
		defer delete(active, c.Procedure)
		return checkTree(c.Procedure.Body, active)
	case *program.IfStatement:
		if c == nil {
			return fmt.Errorf("%w: nil if statement", ErrUnexpectedCommand)
		}
		return checkAll(active, c.Condition, c.Then, c.Else)
	case *program.TryStatement:
		if c == nil {
			return fmt.Errorf("%w: nil try statement", ErrUnexpectedCommand)
		}
		return checkAll(active, c.Condition, c.Then, c.Else)
	case *program.LoopStatement:
		if c == nil {
			return fmt.Errorf("%w: nil loop", ErrUnexpectedCommand)
		}
		return checkTree(c.Body, active)
	case *program.Choice:
		if c == nil {
			return fmt.Errorf("%w: nil choice", ErrUnexpectedCommand)
		}
		return checkAll(active, c.Left, c.Right)
	case *program.Skip, *program.Fail, *program.Break:
	default:
		return fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}
	return nil
}

func checkAll(active map[*program.Procedure]bool, cmds ...program.Command) error {
	for _, c := range cmds {
		if err := checkTree(c, active); err != nil {
			return err
		}
	}
	return nil
}
