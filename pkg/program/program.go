package program

// Rule is a resolved rule declaration. Sizing fields are passed verbatim to
// makeMorphism in the generated runtime.
type Rule struct {
	Name      string
	EmptyLHS  bool
	Predicate bool
	LeftNodes int
	LeftEdges int
	Variables int

	// Action names a built-in rewrite for the reference executor, such as
	// "addNode" or "deleteNode:n". The C backend ignores it.
	Action string
}

// Procedure is a named command sequence. Calls are inlined at the call site.
type Procedure struct {
	Name string
	Body Command
}

// Program is the resolved output of the front end.
type Program struct {
	// Rules in declaration order, procedure-local rules included.
	Rules      []*Rule
	Procedures []*Procedure
	Main       Command
}

// Command is one node of the control-flow tree. The set of implementations
// is closed; see the types below.
type Command interface {
	command()
}

type Sequence struct {
	Commands []Command
}

type RuleCall struct {
	Rule *Rule
}

// RuleSetCall tries its rules in order; the first that matches is applied.
type RuleSetCall struct {
	Rules []*Rule
}

type ProcedureCall struct {
	Procedure *Procedure
}

type IfStatement struct {
	Condition Command
	Then      Command
	Else      Command
}

type TryStatement struct {
	Condition Command
	Then      Command
	Else      Command
}

// LoopStatement repeats Body as long as possible.
type LoopStatement struct {
	Body Command
	// Nested is set when the loop sits inside another loop of the same body.
	Nested bool
}

// Choice runs exactly one of its arms, picked uniformly at random.
type Choice struct {
	Left  Command
	Right Command
}

type Skip struct{}

type Fail struct{}

type Break struct {
	// InnerLoop is set when the enclosing loop is itself inside a loop.
	InnerLoop bool
}

func (*Sequence) command()      {}
func (*RuleCall) command()      {}
func (*RuleSetCall) command()   {}
func (*ProcedureCall) command() {}
func (*IfStatement) command()   {}
func (*TryStatement) command()  {}
func (*LoopStatement) command() {}
func (*Choice) command()        {}
func (*Skip) command()          {}
func (*Fail) command()          {}
func (*Break) command()         {}

// Rule returns the declared rule with the given name, or nil.
func (p *Program) Rule(name string) *Rule {
	for _, r := range p.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Procedure returns the declared procedure with the given name, or nil.
func (p *Program) Procedure(name string) *Procedure {
	for _, proc := range p.Procedures {
		if proc.Name == name {
			return proc
		}
	}
	return nil
}
