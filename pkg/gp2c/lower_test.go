package gp2c

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gp2c/pkg/program"
)

type recordedWarnings struct {
	msgs []string
}

func (r *recordedWarnings) Warn(msg string, _ ...any) {
	r.msgs = append(r.msgs, msg)
}

func newTestGenerator(t *testing.T, kind BackendKind) *Generator {
	t.Helper()
	opts := Defaults()
	opts.Backend = kind
	g, err := New(opts, nil)
	require.NoError(t, err)
	return g
}

func lowerAndPrint(t *testing.T, kind BackendKind, cmd program.Command) string {
	t.Helper()
	g := newTestGenerator(t, kind)
	block, err := g.Lower(cmd)
	require.NoError(t, err)
	return Print(block, g.Backend())
}

// checkpointOps lists checkpoint operations in textual order.
func checkpointOps(block Block) []string {
	var out []string
	var walk func(Block)
	walk = func(b Block) {
		for _, s := range b {
			switch s := s.(type) {
			case *Checkpoint:
				out = append(out, fmt.Sprintf("%s %d", s.Op, s.ID))
			case *IfMatch:
				walk(s.Then)
				walk(s.Else)
			case *IfSuccess:
				walk(s.Then)
				walk(s.Else)
			case *Choose:
				walk(s.Left)
				walk(s.Right)
			case *Region:
				walk(s.Body)
			case *Loop:
				walk(s.Body)
			}
		}
	}
	walk(block)
	return out
}

func TestLowerRuleCallAtTopLevel(t *testing.T) {
	got := lowerAndPrint(t, BackendDelta, call(rule("grow")))
	want := `/* Rule Call */
if(matchgrow(M_grow))
{
    applygrow(M_grow, false);
    success = true;
}
else
{
    fprintf(output_file, "No output graph: rule grow not applicable.\n");
    printf("Output information saved to file gp2.output\n");
    garbageCollect();
    fclose(output_file);
    return 0;
}
`
	assert.Equal(t, want, got)
}

func TestLowerLoopDelta(t *testing.T) {
	got := lowerAndPrint(t, BackendDelta, &program.LoopStatement{Body: seq(call(rule("r1")), call(rule("r2")))})
	want := `/* Loop Statement */
while(success)
{
    int restore_point0 = graph_change_stack == NULL ? 0 : topOfGraphChangeStack();
    /* Rule Call */
    if(matchr1(M_r1))
    {
        applyr1(M_r1, true);
        success = true;
    }
    else
    {
        success = false;
        undoChanges(host, restore_point0);
    }
    if(!success) break;
    /* Rule Call */
    if(matchr2(M_r2))
    {
        applyr2(M_r2, true);
        success = true;
    }
    else
    {
        success = false;
        undoChanges(host, restore_point0);
    }
    if(success) discardChanges(restore_point0);
}
success = true;
`
	assert.Equal(t, want, got)
}

func TestLowerRuleCallComment(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	block, err := g.Lower(seq(call(rule("a")), &program.RuleSetCall{Rules: []*program.Rule{rule("b"), rule("c")}}))
	require.NoError(t, err)
	got := Print(block, g.Backend())
	assert.Equal(t, 1, strings.Count(got, "/* Rule Call */"), "alternatives of a rule set share one comment")
	assert.True(t, strings.HasPrefix(got, "/* Rule Call */\nif(matcha(M_a))\n"))
	assert.Contains(t, got, "/* Rule Set Call */\n")
}

func TestLowerLoopSnapshot(t *testing.T) {
	got := lowerAndPrint(t, BackendSnapshot, &program.LoopStatement{Body: seq(call(rule("r1")), call(rule("r2")))})
	assert.Contains(t, got, "saveSnapshot(0);")
	assert.Contains(t, got, "restoreSnapshot(0);")
	assert.Contains(t, got, "if(success) saveSnapshot(0);")
	assert.Contains(t, got, "applyr1(M_r1, false);", "snapshots never record changes")
	assert.NotContains(t, got, "restore_point")
}

func TestLowerSingleRuleLoopHasNoCheckpoint(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	block, err := g.Lower(&program.LoopStatement{Body: call(rule("r"))})
	require.NoError(t, err)
	assert.Empty(t, checkpointOps(block))
	assert.Contains(t, Print(block, g.Backend()), "applyr(M_r, false);")
}

func TestLowerIfWithSingleRuleCondition(t *testing.T) {
	got := lowerAndPrint(t, BackendDelta, &program.IfStatement{
		Condition: call(rule("r")),
		Then:      &program.Skip{},
		Else:      &program.Fail{},
	})
	want := `/* If Statement */
/* Condition */
do
{
    /* Rule Call */
    if(matchr(M_r))
    {
        initialiseMorphism(M_r, host);
        success = true;
    }
    else
    {
        success = false;
        break;
    }
} while(false);
if(success)
{
    /* Then Branch */
    /* Skip Statement */
    success = true;
}
else
{
    /* Else Branch */
    success = true;
    /* Fail Statement */
    fprintf(output_file, "No output graph: Fail statement invoked.\n");
    printf("Output information saved to file gp2.output\n");
    garbageCollect();
    fclose(output_file);
    return 0;
}
`
	assert.Equal(t, want, got)
}

func TestLowerBranchCheckpoints(t *testing.T) {
	cond := seq(call(rule("a")), call(rule("b")))
	tests := []struct {
		name string
		cmd  program.Command
		want []string
	}{
		{
			name: "if rolls back after the condition",
			cmd:  &program.IfStatement{Condition: cond, Then: &program.Skip{}, Else: &program.Skip{}},
			want: []string{"create 0", "rollback 0"},
		},
		{
			name: "try commits on then and rolls back on else",
			cmd:  &program.TryStatement{Condition: cond, Then: &program.Skip{}, Else: &program.Skip{}},
			want: []string{"create 0", "commit 0", "rollback 0"},
		},
		{
			name: "try with null condition",
			cmd:  &program.TryStatement{Condition: call(predicate("p")), Then: call(rule("r")), Else: &program.Skip{}},
			want: nil,
		},
		{
			name: "simple try with null branches",
			cmd:  &program.TryStatement{Condition: call(rule("r")), Then: &program.Skip{}, Else: &program.Skip{}},
			want: nil,
		},
		{
			name: "simple try with a mutating branch",
			cmd:  &program.TryStatement{Condition: call(rule("r")), Then: call(rule("s")), Else: &program.Skip{}},
			want: []string{"create 0", "commit 0", "rollback 0"},
		},
		{
			name: "try inside a loop updates",
			cmd: &program.LoopStatement{Body: seq(
				&program.TryStatement{Condition: cond, Then: &program.Skip{}, Else: &program.Fail{}},
				call(rule("c")),
			)},
			want: []string{"create 0", "create 1", "update 1", "rollback 1", "rollback 0", "rollback 0", "commit 0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, BackendDelta)
			block, err := g.Lower(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, checkpointOps(block))
		})
	}
}

func TestLowerNestedLoops(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	inner := &program.LoopStatement{Body: seq(call(rule("a")), call(rule("b"))), Nested: true}
	block, err := g.Lower(&program.LoopStatement{Body: seq(inner, call(rule("c")))})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"create 0",
		"create 1", "rollback 1", "rollback 1", "update 1",
		"rollback 0", "commit 0",
	}, checkpointOps(block))
}

func TestLowerBreak(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	block, err := g.Lower(&program.LoopStatement{Body: seq(call(rule("a")), call(rule("b")), &program.Break{})})
	require.NoError(t, err)
	assert.Equal(t, []string{"create 0", "rollback 0", "rollback 0", "commit 0", "commit 0"}, checkpointOps(block))
	assert.Contains(t, Print(block, g.Backend()), "    if(success) discardChanges(restore_point0);\n    break;\n")

	g.Reset()
	block, err = g.Lower(&program.LoopStatement{Body: seq(call(rule("a")), call(rule("b")), &program.Break{InnerLoop: true}), Nested: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"create 0", "rollback 0", "rollback 0", "update 0", "update 0"}, checkpointOps(block))
}

func TestLowerBreakOutsideLoop(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	_, err := g.Lower(&program.Break{})
	assert.ErrorIs(t, err, ErrBreakOutsideLoop)

	_, err = g.Lower(&program.LoopStatement{Body: &program.IfStatement{
		Condition: &program.Break{},
		Then:      call(rule("r")),
		Else:      &program.Skip{},
	}})
	assert.ErrorIs(t, err, ErrBreakOutsideLoop)
}

func TestLowerLoopTermination(t *testing.T) {
	warnings := &recordedWarnings{}
	g, err := New(Defaults(), warnings)
	require.NoError(t, err)

	_, err = g.Lower(&program.LoopStatement{Body: &program.Skip{}})
	assert.ErrorIs(t, err, ErrNontermination)

	_, err = g.Lower(&program.LoopStatement{Body: call(emptyRule("e"))})
	assert.ErrorIs(t, err, ErrNontermination)

	block, err := g.Lower(&program.LoopStatement{Body: &program.Fail{}})
	require.NoError(t, err)
	assert.NotEmpty(t, block)
	assert.Equal(t, []string{"possible nontermination in loop"}, warnings.msgs)
}

func TestLowerRuleSetInCondition(t *testing.T) {
	got := lowerAndPrint(t, BackendDelta, &program.IfStatement{
		Condition: &program.RuleSetCall{Rules: []*program.Rule{rule("a"), rule("b")}},
		Then:      &program.Skip{},
		Else:      &program.Skip{},
	})
	assert.Contains(t, got, `
        if(matcha(M_a))
        {
            initialiseMorphism(M_a, host);
            success = true;
            break;
        }
        if(matchb(M_b))
`)
	assert.Contains(t, got, "    } while(false);\n    if(!success) break;\n} while(false);\n")
}

func TestLowerChoiceExitsConditionOnlyAtTail(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	choice := &program.Choice{Left: call(rule("a")), Right: call(rule("b"))}

	block, err := g.Lower(&program.IfStatement{Condition: choice, Then: &program.Skip{}, Else: &program.Skip{}})
	require.NoError(t, err)
	cond := findRegion(t, block)
	assert.Equal(t, &Exit{}, cond.Body[len(cond.Body)-1])

	block, err = g.Lower(&program.TryStatement{Condition: seq(choice, call(rule("c"))), Then: &program.Skip{}, Else: &program.Skip{}})
	require.NoError(t, err)
	cond = findRegion(t, block)
	for _, s := range cond.Body {
		assert.NotEqual(t, &Exit{}, s)
	}
	assert.IsType(t, &IfMatch{}, cond.Body[len(cond.Body)-1])
}

func findRegion(t *testing.T, block Block) *Region {
	t.Helper()
	for _, s := range block {
		if r, ok := s.(*Region); ok {
			return r
		}
	}
	require.FailNow(t, "no region in block")
	return nil
}

func TestLowerEmptyLHSRules(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)

	block, err := g.Lower(call(&program.Rule{Name: "always", EmptyLHS: true, Predicate: true}))
	require.NoError(t, err)
	assert.Equal(t, Block{&Comment{Text: "Rule Call"}, &SetSuccess{Value: true}}, block)

	block, err = g.Lower(&program.LoopStatement{Body: seq(
		&program.RuleSetCall{Rules: []*program.Rule{emptyRule("e"), rule("r")}},
		&program.Fail{},
	)})
	require.NoError(t, err)
	got := Print(block, g.Backend())
	assert.Contains(t, got, "        applye(true);\n        success = true;\n        break;\n")
}

func TestLowerEmptyLHSIfConditionHasNoEffect(t *testing.T) {
	got := lowerAndPrint(t, BackendDelta, &program.IfStatement{
		Condition: call(emptyRule("e")),
		Then:      &program.Skip{},
		Else:      &program.Skip{},
	})
	assert.NotContains(t, got, "applye(")
	assert.Contains(t, got, "do\n{\n    /* Rule Call */\n    success = true;\n} while(false);\n")

	got = lowerAndPrint(t, BackendDelta, &program.IfStatement{
		Condition: seq(call(rule("r")), call(emptyRule("e"))),
		Then:      &program.Skip{},
		Else:      &program.Skip{},
	})
	assert.Contains(t, got, "applye(true);", "a checkpointed condition applies and rolls back")

	got = lowerAndPrint(t, BackendDelta, &program.TryStatement{
		Condition: call(emptyRule("e")),
		Then:      &program.Skip{},
		Else:      &program.Skip{},
	})
	assert.Contains(t, got, "applye(false);", "a try condition keeps its effect")
}

func TestLowerSequenceInLoopChecksBetweenMembers(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	block, err := g.Lower(&program.LoopStatement{Body: seq(call(rule("a")), call(rule("b")), call(rule("c")))})
	require.NoError(t, err)
	loop := block[1].(*Loop)
	exits := 0
	for _, s := range loop.Body {
		if e, ok := s.(*Exit); ok && e.IfFailed {
			exits++
		}
	}
	assert.Equal(t, 2, exits)
}

func TestLowerProcedureIsInlined(t *testing.T) {
	proc := &program.Procedure{Name: "P", Body: seq(call(rule("a")), call(rule("b")))}
	inlined := lowerAndPrint(t, BackendDelta, &program.ProcedureCall{Procedure: proc})
	direct := lowerAndPrint(t, BackendDelta, proc.Body)
	assert.Equal(t, direct, inlined)
}

func TestLowerRejectsMalformedTrees(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)

	_, err := g.Lower(nil)
	assert.ErrorIs(t, err, ErrUnexpectedCommand)

	_, err = g.Lower(seq(&program.Skip{}, nil))
	assert.ErrorIs(t, err, ErrUnexpectedCommand)

	_, err = g.Lower(&program.RuleSetCall{})
	assert.ErrorIs(t, err, ErrUnexpectedCommand)

	proc := &program.Procedure{Name: "P"}
	proc.Body = seq(call(rule("r")), &program.ProcedureCall{Procedure: proc})
	_, err = g.Lower(&program.ProcedureCall{Procedure: proc})
	assert.ErrorIs(t, err, program.ErrRecursiveProcedure)
}

func TestLowerAllocatorContinuesUntilReset(t *testing.T) {
	g := newTestGenerator(t, BackendDelta)
	loop := &program.LoopStatement{Body: seq(call(rule("a")), call(rule("b")))}

	first, err := g.Lower(loop)
	require.NoError(t, err)
	second, err := g.Lower(loop)
	require.NoError(t, err)
	assert.Equal(t, "create 0", checkpointOps(first)[0])
	assert.Equal(t, "create 1", checkpointOps(second)[0])

	g.Reset()
	third, err := g.Lower(loop)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}
