package program

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"
	"sigs.k8s.io/yaml"
)

// MainName is the call-graph vertex used for the main command sequence.
const MainName = "Main"

var (
	ErrUnknownName        = errors.New("unknown rule or procedure")
	ErrDuplicateName      = errors.New("duplicate declaration")
	ErrRecursiveProcedure = errors.New("recursive procedure")
	ErrMalformedCommand   = errors.New("malformed command")
)

type document struct {
	Rules      []ruleDoc      `json:"rules"`
	Procedures []procedureDoc `json:"procedures"`
	Main       *commandDoc    `json:"main"`
}

type ruleDoc struct {
	Name      string `json:"name"`
	EmptyLHS  bool   `json:"emptyLHS"`
	Predicate bool   `json:"predicate"`
	LeftNodes int    `json:"leftNodes"`
	LeftEdges int    `json:"leftEdges"`
	Variables int    `json:"variables"`
	Action    string `json:"action"`
}

type procedureDoc struct {
	Name  string      `json:"name"`
	Rules []ruleDoc   `json:"rules"`
	Body  *commandDoc `json:"body"`
}

type branchDoc struct {
	Cond *commandDoc `json:"cond"`
	Then *commandDoc `json:"then"`
	Else *commandDoc `json:"else"`
}

type commandFields struct {
	Seq     []*commandDoc `json:"seq"`
	Rule    string        `json:"rule"`
	RuleSet []string      `json:"ruleSet"`
	Call    string        `json:"call"`
	If      *branchDoc    `json:"if"`
	Try     *branchDoc    `json:"try"`
	Loop    *commandDoc   `json:"loop"`
	Or      []*commandDoc `json:"or"`
}

// commandDoc accepts three spellings: a bare name ("r1", "skip"), a list
// (a sequence) or a mapping with exactly one command key.
type commandDoc struct {
	name   string
	list   bool
	seq    []*commandDoc
	fields commandFields
}

func (c *commandDoc) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty command", ErrMalformedCommand)
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.name)
	case '[':
		c.list = true
		return json.Unmarshal(data, &c.seq)
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(&c.fields)
	}
	return fmt.Errorf("%w: expected a name, a list or a mapping, got %s", ErrMalformedCommand, data)
}

// Load decodes a YAML program description and resolves it into a command
// tree. Recursive procedures are rejected.
func Load(data []byte) (*Program, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	if doc.Main == nil {
		return nil, fmt.Errorf("%w: missing main", ErrMalformedCommand)
	}

	r := &resolver{
		prog:  &Program{},
		rules: make(map[string]*Rule),
		procs: make(map[string]*Procedure),
		calls: core.NewGraph(core.WithDirected(true), core.WithLoops()),
	}
	if err := r.calls.AddVertex(MainName); err != nil {
		return nil, err
	}
	for _, rd := range doc.Rules {
		if _, err := r.declareRule(rd); err != nil {
			return nil, err
		}
	}

	// Declare every procedure before resolving bodies so calls may refer
	// to procedures declared later in the file.
	locals := make(map[string]map[string]*Rule, len(doc.Procedures))
	for _, pd := range doc.Procedures {
		if pd.Name == "" || pd.Name == MainName {
			return nil, fmt.Errorf("%w: invalid procedure name %q", ErrMalformedCommand, pd.Name)
		}
		if _, ok := r.procs[pd.Name]; ok {
			return nil, fmt.Errorf("%w: procedure %q", ErrDuplicateName, pd.Name)
		}
		if _, ok := r.rules[pd.Name]; ok {
			return nil, fmt.Errorf("%w: procedure %q shadows a rule", ErrDuplicateName, pd.Name)
		}
		proc := &Procedure{Name: pd.Name}
		r.procs[pd.Name] = proc
		r.prog.Procedures = append(r.prog.Procedures, proc)
		if err := r.calls.AddVertex(pd.Name); err != nil {
			return nil, err
		}
		scope := make(map[string]*Rule, len(pd.Rules))
		for _, rd := range pd.Rules {
			rule, err := r.declareRule(rd)
			if err != nil {
				return nil, err
			}
			scope[rule.Name] = rule
		}
		locals[pd.Name] = scope
	}

	for _, pd := range doc.Procedures {
		if pd.Body == nil {
			return nil, fmt.Errorf("%w: procedure %q has no body", ErrMalformedCommand, pd.Name)
		}
		r.owner, r.scope, r.loopDepth = pd.Name, locals[pd.Name], 0
		body, err := r.resolve(pd.Body)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: %w", pd.Name, err)
		}
		r.procs[pd.Name].Body = body
	}

	r.owner, r.scope, r.loopDepth = MainName, nil, 0
	main, err := r.resolve(doc.Main)
	if err != nil {
		return nil, fmt.Errorf("main: %w", err)
	}
	r.prog.Main = main

	if err := checkRecursion(r.calls); err != nil {
		return nil, err
	}
	return r.prog, nil
}

type resolver struct {
	prog      *Program
	rules     map[string]*Rule
	procs     map[string]*Procedure
	calls     *core.Graph
	owner     string
	scope     map[string]*Rule
	loopDepth int
}

func (r *resolver) declareRule(rd ruleDoc) (*Rule, error) {
	if rd.Name == "" {
		return nil, fmt.Errorf("%w: rule without a name", ErrMalformedCommand)
	}
	if isKeyword(rd.Name) {
		return nil, fmt.Errorf("%w: rule name %q is reserved", ErrMalformedCommand, rd.Name)
	}
	if _, ok := r.rules[rd.Name]; ok {
		return nil, fmt.Errorf("%w: rule %q", ErrDuplicateName, rd.Name)
	}
	if rd.LeftNodes < 0 || rd.LeftEdges < 0 || rd.Variables < 0 {
		return nil, fmt.Errorf("%w: rule %q has negative sizing", ErrMalformedCommand, rd.Name)
	}
	rule := &Rule{
		Name:      rd.Name,
		EmptyLHS:  rd.EmptyLHS,
		Predicate: rd.Predicate,
		LeftNodes: rd.LeftNodes,
		LeftEdges: rd.LeftEdges,
		Variables: rd.Variables,
		Action:    rd.Action,
	}
	r.rules[rule.Name] = rule
	r.prog.Rules = append(r.prog.Rules, rule)
	return rule, nil
}

func isKeyword(name string) bool {
	switch name {
	case "skip", "fail", "break":
		return true
	}
	return false
}

func (r *resolver) lookupRule(name string) *Rule {
	if rule, ok := r.scope[name]; ok {
		return rule
	}
	return r.rules[name]
}

func (r *resolver) resolve(c *commandDoc) (Command, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: missing command", ErrMalformedCommand)
	}
	if c.list {
		return r.resolveSeq(c.seq)
	}
	if c.name != "" {
		return r.resolveName(c.name)
	}

	f := c.fields
	set := 0
	for _, present := range []bool{
		f.Seq != nil, f.Rule != "", f.RuleSet != nil, f.Call != "",
		f.If != nil, f.Try != nil, f.Loop != nil, f.Or != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: a command mapping needs exactly one key, got %d", ErrMalformedCommand, set)
	}

	switch {
	case f.Seq != nil:
		return r.resolveSeq(f.Seq)
	case f.Rule != "":
		rule := r.lookupRule(f.Rule)
		if rule == nil {
			return nil, fmt.Errorf("%w: rule %q", ErrUnknownName, f.Rule)
		}
		return &RuleCall{Rule: rule}, nil
	case f.RuleSet != nil:
		if len(f.RuleSet) == 0 {
			return nil, fmt.Errorf("%w: empty rule set", ErrMalformedCommand)
		}
		call := &RuleSetCall{}
		for _, name := range f.RuleSet {
			rule := r.lookupRule(name)
			if rule == nil {
				return nil, fmt.Errorf("%w: rule %q in rule set", ErrUnknownName, name)
			}
			call.Rules = append(call.Rules, rule)
		}
		return call, nil
	case f.Call != "":
		return r.resolveCall(f.Call)
	case f.If != nil:
		cond, then, els, err := r.resolveBranch(f.If)
		if err != nil {
			return nil, fmt.Errorf("if: %w", err)
		}
		return &IfStatement{Condition: cond, Then: then, Else: els}, nil
	case f.Try != nil:
		cond, then, els, err := r.resolveBranch(f.Try)
		if err != nil {
			return nil, fmt.Errorf("try: %w", err)
		}
		return &TryStatement{Condition: cond, Then: then, Else: els}, nil
	case f.Loop != nil:
		nested := r.loopDepth > 0
		r.loopDepth++
		body, err := r.resolve(f.Loop)
		r.loopDepth--
		if err != nil {
			return nil, fmt.Errorf("loop: %w", err)
		}
		return &LoopStatement{Body: body, Nested: nested}, nil
	default:
		if len(f.Or) != 2 {
			return nil, fmt.Errorf("%w: or takes exactly two commands, got %d", ErrMalformedCommand, len(f.Or))
		}
		left, err := r.resolve(f.Or[0])
		if err != nil {
			return nil, err
		}
		right, err := r.resolve(f.Or[1])
		if err != nil {
			return nil, err
		}
		return &Choice{Left: left, Right: right}, nil
	}
}

func (r *resolver) resolveSeq(docs []*commandDoc) (Command, error) {
	seq := &Sequence{Commands: make([]Command, 0, len(docs))}
	for _, d := range docs {
		c, err := r.resolve(d)
		if err != nil {
			return nil, err
		}
		seq.Commands = append(seq.Commands, c)
	}
	return seq, nil
}

func (r *resolver) resolveName(name string) (Command, error) {
	switch name {
	case "skip":
		return &Skip{}, nil
	case "fail":
		return &Fail{}, nil
	case "break":
		// Procedure bodies may break out of a loop at their call site.
		if r.loopDepth == 0 && r.owner == MainName {
			return nil, fmt.Errorf("%w: break outside of a loop", ErrMalformedCommand)
		}
		return &Break{InnerLoop: r.loopDepth > 1}, nil
	}
	if rule := r.lookupRule(name); rule != nil {
		return &RuleCall{Rule: rule}, nil
	}
	if _, ok := r.procs[name]; ok {
		return r.resolveCall(name)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

func (r *resolver) resolveCall(name string) (Command, error) {
	proc, ok := r.procs[name]
	if !ok {
		return nil, fmt.Errorf("%w: procedure %q", ErrUnknownName, name)
	}
	if name == r.owner {
		return nil, fmt.Errorf("%w: %s calls itself", ErrRecursiveProcedure, name)
	}
	if !r.calls.HasEdge(r.owner, name) {
		if _, err := r.calls.AddEdge(r.owner, name, 0); err != nil {
			return nil, err
		}
	}
	return &ProcedureCall{Procedure: proc}, nil
}

func (r *resolver) resolveBranch(b *branchDoc) (cond, then, els Command, err error) {
	if cond, err = r.resolve(b.Cond); err != nil {
		return nil, nil, nil, err
	}
	then, els = Command(&Skip{}), Command(&Skip{})
	if b.Then != nil {
		if then, err = r.resolve(b.Then); err != nil {
			return nil, nil, nil, err
		}
	}
	if b.Else != nil {
		if els, err = r.resolve(b.Else); err != nil {
			return nil, nil, nil, err
		}
	}
	return cond, then, els, nil
}

// checkRecursion rejects call cycles. Inlining a recursive procedure would
// never terminate.
func checkRecursion(calls *core.Graph) error {
	found, cycles, err := dfs.DetectCycles(calls)
	if err != nil {
		return fmt.Errorf("check procedure calls: %w", err)
	}
	if !found {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRecursiveProcedure, strings.Join(cycles[0], " -> "))
}
