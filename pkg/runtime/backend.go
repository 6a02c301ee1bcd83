package runtime

import (
	"errors"
	"fmt"

	"gp2c/pkg/gp2c"
)

var ErrUnknownCheckpoint = errors.New("unknown checkpoint")

// Checkpointer executes the checkpoint protocol against one host graph.
type Checkpointer interface {
	Create(id gp2c.CheckpointID) error
	// Rollback returns the host graph to its state at the checkpoint.
	Rollback(id gp2c.CheckpointID) error
	// Commit keeps every change made since the checkpoint.
	Commit(id gp2c.CheckpointID) error
	// Update re-marks the checkpoint at the current state.
	Update(id gp2c.CheckpointID) error
	// RecordsChanges reports whether the host graph must log changes.
	RecordsChanges() bool
	Free()
}

func NewCheckpointer(kind gp2c.BackendKind, host *HostGraph) (Checkpointer, error) {
	switch kind {
	case gp2c.BackendDelta:
		return &deltaBackend{host: host, marks: make(map[gp2c.CheckpointID]int)}, nil
	case gp2c.BackendSnapshot:
		return &snapshotBackend{host: host, copies: make(map[gp2c.CheckpointID]*HostGraph)}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// deltaBackend keeps a mark into the host graph's change log per
// checkpoint.
type deltaBackend struct {
	host  *HostGraph
	marks map[gp2c.CheckpointID]int
}

func (d *deltaBackend) RecordsChanges() bool { return true }

func (d *deltaBackend) Create(id gp2c.CheckpointID) error {
	d.marks[id] = d.host.top()
	return nil
}

func (d *deltaBackend) mark(id gp2c.CheckpointID) (int, error) {
	m, ok := d.marks[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCheckpoint, id)
	}
	return m, nil
}

func (d *deltaBackend) Rollback(id gp2c.CheckpointID) error {
	m, err := d.mark(id)
	if err != nil {
		return err
	}
	return d.host.undo(m)
}

func (d *deltaBackend) Commit(id gp2c.CheckpointID) error {
	m, err := d.mark(id)
	if err != nil {
		return err
	}
	return d.host.discard(m)
}

func (d *deltaBackend) Update(id gp2c.CheckpointID) error {
	if _, err := d.mark(id); err != nil {
		return err
	}
	d.marks[id] = d.host.top()
	return nil
}

func (d *deltaBackend) Free() {
	clear(d.marks)
	d.host.log = nil
}

// snapshotBackend keeps a full copy of the host graph per checkpoint.
type snapshotBackend struct {
	host   *HostGraph
	copies map[gp2c.CheckpointID]*HostGraph
}

func (s *snapshotBackend) RecordsChanges() bool { return false }

func (s *snapshotBackend) Create(id gp2c.CheckpointID) error {
	c, err := s.host.Clone()
	if err != nil {
		return err
	}
	s.copies[id] = c
	return nil
}

func (s *snapshotBackend) Rollback(id gp2c.CheckpointID) error {
	c, ok := s.copies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCheckpoint, id)
	}
	return s.host.restore(c)
}

// Commit re-marks the slot rather than dropping it, so a stale copy can
// never be restored through this identifier.
func (s *snapshotBackend) Commit(id gp2c.CheckpointID) error {
	return s.Update(id)
}

func (s *snapshotBackend) Update(id gp2c.CheckpointID) error {
	if _, ok := s.copies[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCheckpoint, id)
	}
	return s.Create(id)
}

func (s *snapshotBackend) Free() {
	clear(s.copies)
}
