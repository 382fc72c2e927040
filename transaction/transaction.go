// Package transaction orders a set of package installs and erasures into
// a sequence that satisfies every dependency arc between them, breaking
// any dependency cycle it finds along the way (spec ยง4.8). It is a direct
// port of the original reader's RpmRelations/RpmOrderer: rpm's own
// transaction planner, not a generic topological sort library.
package transaction

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when ordering hits a dependency cycle with no
// breakable arc, which should only happen if the graph construction
// itself is broken (spec ยง4.8's suggested sentinel for this case).
var ErrCycle = errors.New("transaction: no breakable dependency cycle found")

// Hardness classifies a dependency arc: a HARD arc (rpm's legacy prereq)
// is kept in preference to a SOFT one when a cycle must be broken (soft
// arcs are dropped first), and a
// VIRTUAL arc is one synthesized by a previous break to preserve transitive
// ordering.
type Hardness int32

const (
	Soft    Hardness = 0
	Hard    Hardness = 1 << 0
	Virtual Hardness = 1 << 1
)

// String renders h the way a hand-authored stringer would, including the
// VIRTUAL|HARD combination dropRelation can produce.
func (h Hardness) String() string {
	switch h {
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	case Virtual:
		return "virtual"
	case Virtual | Hard:
		return "virtual|hard"
	default:
		return fmt.Sprintf("Hardness(%d)", int32(h))
	}
}

// Op is the action a Step performs.
type Op int32

const (
	OpInstall Op = iota
	OpUpdate
	OpErase
	OpFreshen
)

func (o Op) String() string {
	switch o {
	case OpInstall:
		return "install"
	case OpUpdate:
		return "update"
	case OpErase:
		return "erase"
	case OpFreshen:
		return "freshen"
	default:
		return fmt.Sprintf("Op(%d)", int32(o))
	}
}
