package runtime

import (
	"errors"
	"fmt"
	"strings"

	"gp2c/pkg/program"
)

var (
	ErrUnboundRule = errors.New("rule has no implementation")
	// ErrEmptyMatch is returned when a rule that needs matched nodes or
	// edges is applied without them.
	ErrEmptyMatch = errors.New("match is empty")
)

// Match is the part of the host graph a rule matched.
type Match struct {
	Nodes []string
	Edges [][2]string
}

// Rule is the executor's view of a rule. Apply is only called with a Match
// returned by the same rule, or with a zero Match for empty left-hand sides.
type Rule interface {
	Match(h *HostGraph) (Match, bool)
	Apply(h *HostGraph, m Match) error
}

// RuleFunc adapts a pair of functions to Rule. A nil ApplyFunc leaves the
// graph unchanged.
type RuleFunc struct {
	MatchFunc func(h *HostGraph) (Match, bool)
	ApplyFunc func(h *HostGraph, m Match) error
}

func (f RuleFunc) Match(h *HostGraph) (Match, bool) {
	if f.MatchFunc == nil {
		return Match{}, true
	}
	return f.MatchFunc(h)
}

func (f RuleFunc) Apply(h *HostGraph, m Match) error {
	if f.ApplyFunc == nil {
		return nil
	}
	return f.ApplyFunc(h, m)
}

// Builtin returns the rule for an action string: "addNode",
// "deleteNode[:prefix]", "hasNode[:prefix]", "link", "unlink" or "loop".
func Builtin(action string) (Rule, error) {
	name, arg, _ := strings.Cut(action, ":")
	switch name {
	case "addNode":
		return RuleFunc{ApplyFunc: func(h *HostGraph, _ Match) error {
			_, err := h.AddNode()
			return err
		}}, nil
	case "deleteNode":
		return RuleFunc{
			MatchFunc: nodeWithPrefix(arg),
			ApplyFunc: func(h *HostGraph, m Match) error {
				if err := needNodes(m, 1); err != nil {
					return err
				}
				return h.RemoveNode(m.Nodes[0])
			},
		}, nil
	case "hasNode":
		return RuleFunc{MatchFunc: nodeWithPrefix(arg)}, nil
	case "link":
		return RuleFunc{
			MatchFunc: func(h *HostGraph) (Match, bool) {
				nodes := h.Nodes()
				for _, a := range nodes {
					for _, b := range nodes {
						if a != b && !h.HasEdge(a, b) {
							return Match{Nodes: []string{a, b}}, true
						}
					}
				}
				return Match{}, false
			},
			ApplyFunc: func(h *HostGraph, m Match) error {
				if err := needNodes(m, 2); err != nil {
					return err
				}
				return h.AddEdge(m.Nodes[0], m.Nodes[1])
			},
		}, nil
	case "unlink":
		return RuleFunc{
			MatchFunc: func(h *HostGraph) (Match, bool) {
				edges := h.Edges()
				if len(edges) == 0 {
					return Match{}, false
				}
				return Match{Edges: edges[:1]}, true
			},
			ApplyFunc: func(h *HostGraph, m Match) error {
				if len(m.Edges) == 0 {
					return fmt.Errorf("%w: need an edge", ErrEmptyMatch)
				}
				return h.RemoveEdge(m.Edges[0][0], m.Edges[0][1])
			},
		}, nil
	case "loop":
		return RuleFunc{
			MatchFunc: func(h *HostGraph) (Match, bool) {
				for _, n := range h.Nodes() {
					if !h.HasEdge(n, n) {
						return Match{Nodes: []string{n}}, true
					}
				}
				return Match{}, false
			},
			ApplyFunc: func(h *HostGraph, m Match) error {
				if err := needNodes(m, 1); err != nil {
					return err
				}
				return h.AddEdge(m.Nodes[0], m.Nodes[0])
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func needNodes(m Match, n int) error {
	if len(m.Nodes) < n {
		return fmt.Errorf("%w: need %d nodes, got %d", ErrEmptyMatch, n, len(m.Nodes))
	}
	return nil
}

// matchFree lists the actions that work without a match, the only ones a
// rule with an empty left-hand side can carry.
var matchFree = map[string]bool{"addNode": true, "hasNode": true}

func nodeWithPrefix(prefix string) func(*HostGraph) (Match, bool) {
	return func(h *HostGraph) (Match, bool) {
		for _, n := range h.Nodes() {
			if strings.HasPrefix(n, prefix) {
				return Match{Nodes: []string{n}}, true
			}
		}
		return Match{}, false
	}
}

// Bind resolves an implementation for every rule of prog. Entries in
// extra take precedence over a rule's declared action.
func Bind(prog *program.Program, extra map[string]Rule) (map[string]Rule, error) {
	out := make(map[string]Rule, len(prog.Rules))
	for _, r := range prog.Rules {
		if impl, ok := extra[r.Name]; ok {
			out[r.Name] = impl
			continue
		}
		if r.Action == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnboundRule, r.Name)
		}
		impl, err := Builtin(r.Action)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		if name, _, _ := strings.Cut(r.Action, ":"); r.EmptyLHS && !matchFree[name] {
			return nil, fmt.Errorf("rule %s: action %q with an empty left-hand side: %w", r.Name, r.Action, ErrEmptyMatch)
		}
		out[r.Name] = impl
	}
	return out, nil
}
