package gp2c

import (
	"fmt"
	"strings"
)

// Backend renders the checkpoint protocol of one backtracking strategy.
type Backend interface {
	Kind() BackendKind
	// RecordsChanges reports whether rule applications must log their
	// changes so they can later be undone.
	RecordsChanges() bool
	Create(id CheckpointID) string
	Rollback(id CheckpointID) string
	Commit(id CheckpointID) string
	Update(id CheckpointID) string
	// Free is the cleanup call emitted into garbageCollect.
	Free() string
	// Helpers returns C definitions the other calls rely on, for a program
	// that uses slots checkpoints. It may be empty.
	Helpers(slots int) string
}

func NewBackend(kind BackendKind) (Backend, error) {
	switch kind {
	case BackendDelta:
		return deltaBackend{}, nil
	case BackendSnapshot:
		return snapshotBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// deltaBackend marks a position on the runtime graph change stack.
type deltaBackend struct{}

func (deltaBackend) Kind() BackendKind    { return BackendDelta }
func (deltaBackend) RecordsChanges() bool { return true }

func (deltaBackend) Create(id CheckpointID) string {
	return fmt.Sprintf("int restore_point%d = graph_change_stack == NULL ? 0 : topOfGraphChangeStack();", id)
}

func (deltaBackend) Rollback(id CheckpointID) string {
	return fmt.Sprintf("undoChanges(host, restore_point%d);", id)
}

func (deltaBackend) Commit(id CheckpointID) string {
	return fmt.Sprintf("discardChanges(restore_point%d);", id)
}

func (deltaBackend) Update(id CheckpointID) string {
	return fmt.Sprintf("restore_point%d = topOfGraphChangeStack();", id)
}

func (deltaBackend) Free() string { return "freeGraphChangeStack();" }

// The change stack lives in the runtime library.
func (deltaBackend) Helpers(int) string { return "" }

// snapshotBackend keeps a copy of the host graph per checkpoint slot. The
// slot helpers are emitted into the generated file by Helpers; they take
// copies through the runtime graph stack (copyGraph pushes, popGraphs(0)
// hands the copy back and leaves the stack empty).
type snapshotBackend struct{}

func (snapshotBackend) Kind() BackendKind    { return BackendSnapshot }
func (snapshotBackend) RecordsChanges() bool { return false }

func (snapshotBackend) Create(id CheckpointID) string {
	return fmt.Sprintf("saveSnapshot(%d);", id)
}

func (snapshotBackend) Rollback(id CheckpointID) string {
	return fmt.Sprintf("restoreSnapshot(%d);", id)
}

// A committed snapshot is re-marked at the current state so that a later
// rollback through the same slot cannot resurrect older changes.
func (snapshotBackend) Commit(id CheckpointID) string {
	return fmt.Sprintf("saveSnapshot(%d);", id)
}

func (snapshotBackend) Update(id CheckpointID) string {
	return fmt.Sprintf("saveSnapshot(%d);", id)
}

func (snapshotBackend) Free() string { return "freeSnapshots();" }

func (snapshotBackend) Helpers(slots int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("#define SNAPSHOT_SLOTS %d\n", max(slots, 1)))
	b.WriteString("static Graph *snapshot[SNAPSHOT_SLOTS];\n\n")

	b.WriteString("static void saveSnapshot(int slot)\n{\n")
	writeLine(&b, 1, "if(snapshot[slot] != NULL) freeGraph(snapshot[slot]);")
	writeLine(&b, 1, "copyGraph(host);")
	writeLine(&b, 1, "snapshot[slot] = popGraphs(0);")
	b.WriteString("}\n\n")

	b.WriteString("static void restoreSnapshot(int slot)\n{\n")
	writeLine(&b, 1, "freeGraph(host);")
	writeLine(&b, 1, "copyGraph(snapshot[slot]);")
	writeLine(&b, 1, "host = popGraphs(0);")
	b.WriteString("}\n\n")

	b.WriteString("static void freeSnapshots(void)\n{\n")
	writeLine(&b, 1, "for(int slot = 0; slot < SNAPSHOT_SLOTS; slot++)")
	writeLine(&b, 1, "{")
	writeLine(&b, 2, "if(snapshot[slot] != NULL) freeGraph(snapshot[slot]);")
	writeLine(&b, 2, "snapshot[slot] = NULL;")
	writeLine(&b, 1, "}")
	writeLine(&b, 1, "freeGraphStack();")
	b.WriteString("}\n\n")
	return b.String()
}
