package gp2c

import "gp2c/pkg/program"

// Stmt is one statement of the generated main function. Lowering builds a
// Block tree; the printer renders it and the runtime package can execute it
// directly.
type Stmt interface {
	stmt()
}

type Block []Stmt

type Comment struct {
	Text string
}

// SetSuccess assigns the shared success flag.
type SetSuccess struct {
	Value bool
}

// IfMatch attempts to match Rule against the host graph.
type IfMatch struct {
	Rule *program.Rule
	Then Block
	// Else is omitted from the output when nil.
	Else Block
}

// IfSuccess branches on the success flag.
type IfSuccess struct {
	Then Block
	Else Block
}

// Choose runs one of two blocks picked uniformly at random.
type Choose struct {
	Left  Block
	Right Block
}

// Region is an exitable block: an Exit inside it resumes after the region.
type Region struct {
	Body Block
}

// Loop repeats Body while the success flag holds. An Exit inside it leaves
// the loop.
type Loop struct {
	Body Block
}

// Exit leaves the innermost Region or Loop. With IfFailed set it only does
// so when the success flag is clear.
type Exit struct {
	IfFailed bool
}

// Apply applies Rule. Rules with an empty left-hand side need no match.
type Apply struct {
	Rule   *program.Rule
	Record bool
}

// ResetMorphism discards the bindings of a successful match without
// applying the rule.
type ResetMorphism struct {
	Rule *program.Rule
}

// Halt reports that the program produced no output graph and ends it.
// An empty Rule means an explicit fail statement.
type Halt struct {
	Rule string
}

type CheckpointOp int

const (
	OpCreate CheckpointOp = iota
	OpRollback
	OpCommit
	OpUpdate
)

func (o CheckpointOp) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpRollback:
		return "rollback"
	case OpCommit:
		return "commit"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

type Checkpoint struct {
	Op CheckpointOp
	ID CheckpointID
	// IfSuccess guards the operation with the success flag.
	IfSuccess bool
}

func (*Comment) stmt()       {}
func (*SetSuccess) stmt()    {}
func (*IfMatch) stmt()       {}
func (*IfSuccess) stmt()     {}
func (*Choose) stmt()        {}
func (*Region) stmt()        {}
func (*Loop) stmt()          {}
func (*Exit) stmt()          {}
func (*Apply) stmt()         {}
func (*ResetMorphism) stmt() {}
func (*Halt) stmt()          {}
func (*Checkpoint) stmt()    {}
