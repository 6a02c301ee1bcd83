package program

import "github.com/davecgh/go-spew/spew"

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders a command tree for debugging.
func Dump(c Command) string {
	return dumpConfig.Sdump(c)
}
