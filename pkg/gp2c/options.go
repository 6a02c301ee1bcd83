package gp2c

import (
	"fmt"
	"strings"
)

const (
	defaultHostNodeSize = 128
	defaultHostEdgeSize = 128
	defaultOutputFile   = "gp2.output"
	defaultLogFile      = "gp2.log"
)

// BackendKind selects how the generated runtime backtracks the host graph.
type BackendKind string

const (
	// BackendDelta records graph changes on a change stack and undoes them.
	BackendDelta BackendKind = "delta"
	// BackendSnapshot copies the whole host graph at every checkpoint.
	BackendSnapshot BackendKind = "snapshot"
)

// Options is the configuration contract for one generation run.
type Options struct {
	Backend BackendKind

	// Initial capacities passed to newGraph by the generated runtime.
	HostNodeSize int
	HostEdgeSize int

	// Files the generated runtime writes.
	OutputFile string
	LogFile    string

	// Concise drops the per-construct comments from the generated code.
	Concise bool
}

func Defaults() Options {
	return Options{
		Backend:      BackendDelta,
		HostNodeSize: defaultHostNodeSize,
		HostEdgeSize: defaultHostEdgeSize,
		OutputFile:   defaultOutputFile,
		LogFile:      defaultLogFile,
	}
}

func (o Options) normalize() Options {
	o.Backend = BackendKind(strings.ToLower(strings.TrimSpace(string(o.Backend))))
	if o.Backend == "" {
		o.Backend = BackendDelta
	}
	if o.HostNodeSize == 0 {
		o.HostNodeSize = defaultHostNodeSize
	}
	if o.HostEdgeSize == 0 {
		o.HostEdgeSize = defaultHostEdgeSize
	}
	if o.OutputFile == "" {
		o.OutputFile = defaultOutputFile
	}
	if o.LogFile == "" {
		o.LogFile = defaultLogFile
	}
	return o
}

func (o Options) Validate() error {
	switch o.Backend {
	case BackendDelta, BackendSnapshot:
	default:
		return fmt.Errorf("backend must be one of %q or %q, got %q", BackendDelta, BackendSnapshot, o.Backend)
	}
	if o.HostNodeSize < 1 {
		return fmt.Errorf("host-node-size must be at least 1")
	}
	if o.HostEdgeSize < 1 {
		return fmt.Errorf("host-edge-size must be at least 1")
	}
	if strings.ContainsAny(o.OutputFile, "\"\\\n") {
		return fmt.Errorf("output-file cannot contain quotes, backslashes or newlines")
	}
	if strings.ContainsAny(o.LogFile, "\"\\\n") {
		return fmt.Errorf("log-file cannot contain quotes, backslashes or newlines")
	}
	return nil
}
