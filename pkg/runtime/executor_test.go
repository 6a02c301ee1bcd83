package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gp2c/pkg/gp2c"
	"gp2c/pkg/program"
)

var (
	del    = &program.Rule{Name: "del", LeftNodes: 1, Action: "deleteNode"}
	del0   = &program.Rule{Name: "del0", LeftNodes: 1, Action: "deleteNode:n0"}
	del1   = &program.Rule{Name: "del1", LeftNodes: 1, Action: "deleteNode:n1"}
	probe  = &program.Rule{Name: "probe", LeftNodes: 1, Predicate: true, Action: "hasNode"}
	link   = &program.Rule{Name: "link", LeftNodes: 2, Action: "link"}
	unlink = &program.Rule{Name: "unlink", LeftNodes: 2, LeftEdges: 1, Action: "unlink"}
	grow   = &program.Rule{Name: "grow", EmptyLHS: true, Action: "addNode"}
)

var backends = []gp2c.BackendKind{gp2c.BackendDelta, gp2c.BackendSnapshot}

func call(r *program.Rule) *program.RuleCall {
	return &program.RuleCall{Rule: r}
}

func seq(cmds ...program.Command) *program.Sequence {
	return &program.Sequence{Commands: cmds}
}

func hostWith(t *testing.T, nodes int, edges ...[2]string) *HostGraph {
	t.Helper()
	h := NewHostGraph()
	for i := 0; i < nodes; i++ {
		_, err := h.AddNode()
		require.NoError(t, err)
	}
	for _, e := range edges {
		require.NoError(t, h.AddEdge(e[0], e[1]))
	}
	return h
}

func newExecutor(t *testing.T, kind gp2c.BackendKind, seed uint64) *Executor {
	t.Helper()
	prog := &program.Program{Rules: []*program.Rule{del, del0, del1, probe, link, unlink, grow}}
	impls, err := Bind(prog, nil)
	require.NoError(t, err)
	x, err := NewExecutor(Config{Backend: kind, Rules: impls, Seed: seed})
	require.NoError(t, err)
	return x
}

func lower(t *testing.T, kind gp2c.BackendKind, cmd program.Command) gp2c.Block {
	t.Helper()
	g, err := gp2c.New(gp2c.Options{Backend: kind}, nil)
	require.NoError(t, err)
	block, err := g.Lower(cmd)
	require.NoError(t, err)
	return block
}

func run(t *testing.T, kind gp2c.BackendKind, cmd program.Command, host *HostGraph) *Result {
	t.Helper()
	res, err := newExecutor(t, kind, 1).Run(context.Background(), lower(t, kind, cmd), host)
	require.NoError(t, err)
	return res
}

// assertPaired checks that every created checkpoint is released by exactly
// one rollback, commit or update before it is created again.
func assertPaired(t *testing.T, trace []Event) {
	t.Helper()
	open := map[gp2c.CheckpointID]bool{}
	for i, ev := range trace {
		if ev.Op == gp2c.OpCreate {
			assert.False(t, open[ev.ID], "event %d: %s while still open", i, ev)
			open[ev.ID] = true
			continue
		}
		assert.True(t, open[ev.ID], "event %d: %s without a create", i, ev)
		open[ev.ID] = false
	}
	for id, o := range open {
		assert.False(t, o, "checkpoint %d never released", id)
	}
}

func TestTopLevelRuleFailure(t *testing.T) {
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			res := run(t, kind, call(del), NewHostGraph())
			assert.True(t, res.Failed())
			assert.Nil(t, res.Graph)
			assert.Equal(t, "No output graph: rule del not applicable.", res.Output)

			res = run(t, kind, seq(call(grow), &program.Fail{}), NewHostGraph())
			assert.Equal(t, "No output graph: Fail statement invoked.", res.Output)
		})
	}
}

func TestLoopUntilFailure(t *testing.T) {
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			res := run(t, kind, &program.LoopStatement{Body: call(del)}, hostWith(t, 1))
			require.False(t, res.Failed())
			assert.Equal(t, "[ | ]", res.Graph.String())
			assert.Empty(t, res.Trace, "a single rule body needs no checkpoint")

			res = run(t, kind, seq(&program.LoopStatement{Body: call(del)}, call(grow)), hostWith(t, 3))
			require.False(t, res.Failed(), "the loop resets the success flag")
			assert.Len(t, res.Graph.Nodes(), 1)
		})
	}
}

func TestLoopRollsBackFailedIteration(t *testing.T) {
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			res := run(t, kind, &program.LoopStatement{Body: seq(call(del), call(probe))}, hostWith(t, 3))
			require.False(t, res.Failed())
			assert.Equal(t, "[ (n2) | ]", res.Graph.String())
			assert.Equal(t, []Event{
				{gp2c.OpCreate, 0}, {gp2c.OpCommit, 0},
				{gp2c.OpCreate, 0}, {gp2c.OpCommit, 0},
				{gp2c.OpCreate, 0}, {gp2c.OpRollback, 0},
			}, res.Trace)
		})
	}
}

func TestNullTryLeavesGraphUnchanged(t *testing.T) {
	try := &program.TryStatement{Condition: call(probe), Then: &program.Skip{}, Else: &program.Skip{}}
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			for _, host := range []*HostGraph{
				NewHostGraph(),
				hostWith(t, 3, [2]string{"n0", "n1"}, [2]string{"n1", "n1"}),
			} {
				before := host.String()
				res := run(t, kind, try, host)
				require.False(t, res.Failed())
				assert.Equal(t, before, res.Graph.String())
				assert.Empty(t, res.Trace)
			}
		})
	}
}

func TestChoiceIsUniform(t *testing.T) {
	const runs = 10000
	for _, arms := range []struct {
		name        string
		choice      *program.Choice
		failOnFirst bool
	}{
		{"fail first", &program.Choice{Left: &program.Fail{}, Right: &program.Skip{}}, true},
		{"skip first", &program.Choice{Left: &program.Skip{}, Right: &program.Fail{}}, false},
	} {
		t.Run(arms.name, func(t *testing.T) {
			x := newExecutor(t, gp2c.BackendDelta, 42)
			block := lower(t, gp2c.BackendDelta, arms.choice)
			failed := 0
			for i := 0; i < runs; i++ {
				res, err := x.Run(context.Background(), block, NewHostGraph())
				require.NoError(t, err)
				assert.Equal(t, res.Failed(), res.Graph == nil)
				if res.Failed() {
					failed++
				}
			}
			assert.InDelta(t, runs/2, failed, runs*0.03)
		})
	}
}

func TestCheckpointPairing(t *testing.T) {
	tests := []struct {
		name  string
		cmd   program.Command
		nodes int
		want  string
	}{
		{
			name: "nested loops with break",
			cmd: &program.LoopStatement{Body: seq(
				&program.LoopStatement{Body: seq(call(link), call(probe)), Nested: true},
				call(unlink),
				&program.Break{},
			)},
			nodes: 3,
			want:  "[ (n0) (n1) (n2) | (n0, n2) (n1, n0) (n1, n2) (n2, n0) (n2, n1) ]",
		},
		{
			name: "failed try condition is undone",
			cmd: &program.TryStatement{
				Condition: seq(call(del0), call(del1)),
				Then:      call(link),
				Else:      &program.Skip{},
			},
			nodes: 1,
			want:  "[ (n0) | ]",
		},
		{
			name: "successful try condition is kept",
			cmd: &program.TryStatement{
				Condition: seq(call(del0), call(del1)),
				Then:      call(grow),
				Else:      &program.Skip{},
			},
			nodes: 3,
			want:  "[ (n2) (n3) | ]",
		},
		{
			name: "if condition never leaks",
			cmd: &program.IfStatement{
				Condition: seq(call(del), call(del)),
				Then:      call(grow),
				Else:      &program.Skip{},
			},
			nodes: 2,
			want:  "[ (n0) (n1) (n2) | ]",
		},
		{
			name: "try inside a loop",
			cmd: &program.LoopStatement{Body: &program.TryStatement{
				Condition: seq(call(del), call(probe)),
				Then:      &program.Skip{},
				Else:      &program.Fail{},
			}},
			nodes: 3,
			want:  "[ (n2) | ]",
		},
		{
			name: "rule set in a loop",
			cmd: &program.LoopStatement{Body: seq(
				&program.RuleSetCall{Rules: []*program.Rule{del0, del1}},
				call(probe),
			)},
			nodes: 3,
			want:  "[ (n2) | ]",
		},
	}
	for _, tt := range tests {
		for _, kind := range backends {
			t.Run(tt.name+"/"+string(kind), func(t *testing.T) {
				res := run(t, kind, tt.cmd, hostWith(t, tt.nodes))
				require.False(t, res.Failed(), res.Output)
				assert.Equal(t, tt.want, res.Graph.String())
				assertPaired(t, res.Trace)
			})
		}
	}
}

func TestEmptyLHSIfConditionLeavesGraphUnchanged(t *testing.T) {
	cmd := &program.IfStatement{Condition: call(grow), Then: call(grow), Else: &program.Skip{}}
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			res := run(t, kind, cmd, hostWith(t, 1))
			require.False(t, res.Failed(), res.Output)
			assert.Equal(t, "[ (n0) (n1) | ]", res.Graph.String())
			assert.Empty(t, res.Trace)
		})
	}
}

func TestEdgesAddedAfterRollbackKeepExistingEdges(t *testing.T) {
	cmd := seq(
		&program.IfStatement{
			Condition: seq(call(unlink), call(unlink)),
			Then:      &program.Skip{},
			Else:      call(link),
		},
		call(link),
	)
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			res := run(t, kind, cmd, hostWith(t, 3, [2]string{"n0", "n1"}))
			require.False(t, res.Failed(), res.Output)
			assert.Equal(t, "[ (n0) (n1) (n2) | (n0, n1) (n0, n2) (n1, n0) ]", res.Graph.String())
			assertPaired(t, res.Trace)
		})
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := newExecutor(t, gp2c.BackendDelta, 1)
	block := lower(t, gp2c.BackendDelta, &program.LoopStatement{Body: seq(call(grow), call(probe))})
	_, err := x.Run(ctx, block, NewHostGraph())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunReportsUnboundRules(t *testing.T) {
	x, err := NewExecutor(Config{Backend: gp2c.BackendSnapshot})
	require.NoError(t, err)
	_, err = x.Run(context.Background(), lower(t, gp2c.BackendSnapshot, call(del)), NewHostGraph())
	assert.ErrorIs(t, err, ErrUnboundRule)

	_, err = NewExecutor(Config{Backend: "journal"})
	assert.Error(t, err)
}
