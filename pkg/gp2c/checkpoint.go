package gp2c

// CheckpointID labels one create/rollback/commit/update family in the
// generated program.
type CheckpointID int

// Allocator mints checkpoint identifiers for one generation run.
type Allocator struct {
	next CheckpointID
}

func (a *Allocator) Next() CheckpointID {
	id := a.next
	a.next++
	return id
}

// Issued is the number of identifiers minted since the last Reset.
func (a *Allocator) Issued() int {
	return int(a.next)
}

// Reset starts numbering again from zero. Call it between independent
// compilations.
func (a *Allocator) Reset() {
	a.next = 0
}
