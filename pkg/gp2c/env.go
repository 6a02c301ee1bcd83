package gp2c

// context is the syntactic position of the command being lowered. It decides
// what a failure turns into.
type context int

const (
	topLevel context = iota
	ifCondition
	tryCondition
	loopBody
)

func (c context) String() string {
	switch c {
	case topLevel:
		return "top level"
	case ifCondition:
		return "if condition"
	case tryCondition:
		return "try condition"
	case loopBody:
		return "loop body"
	default:
		return "unknown"
	}
}

func (c context) condition() bool {
	return c == ifCondition || c == tryCondition
}

// env is passed by value through the lowering. A callee may change its copy
// freely; siblings and the caller never see it.
type env struct {
	ctx       context
	loopDepth int
	// recording is set once any enclosing region holds a checkpoint.
	recording bool

	checkpoint    CheckpointID
	hasCheckpoint bool
	// nested means an enclosing region may still roll back past this
	// checkpoint, so releasing it must keep the recorded changes.
	nested bool

	// tail marks the last command of the enclosing condition region.
	tail bool
}

func rootEnv() env {
	return env{ctx: topLevel}
}

func (e env) withCheckpoint(id CheckpointID, nested bool) env {
	e.recording = true
	e.checkpoint = id
	e.hasCheckpoint = true
	e.nested = nested
	return e
}

func (e env) withoutCheckpoint() env {
	e.checkpoint = 0
	e.hasCheckpoint = false
	e.nested = false
	return e
}
